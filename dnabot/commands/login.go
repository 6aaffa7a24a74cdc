package commands

import (
	"context"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/utils"
)

var Login = discord.SlashCommandCreate{
	Name:        "login",
	Description: "登录二重螺旋账号",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "token",
			Description: "使用token登录",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "token",
					Description: "登录token（以eyJh开头）",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "code",
			Description: "使用手机号+验证码登录",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "mobile",
					Description: "手机号",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "code",
					Description: "短信验证码",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "logout",
			Description: "退出当前账号并删除token",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cookies",
			Description: "查看已绑定账号的token",
		},
	},
}

func LoginHandler(b *dnabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.LoginTimeout)
		defer cancel()

		userID := e.User().ID.String()
		botID := b.Client.ApplicationID().String()
		groupID := groupIDOf(e)

		data := e.SlashCommandInteractionData()
		var (
			msg string
			err error
		)
		switch *data.SubCommandName {
		case "token":
			token := strings.TrimSpace(data.String("token"))
			if !strings.HasPrefix(token, "eyJh") {
				return utils.EH.CreateErrorEmbed(e, "账号登录失败\n请检查token格式后重新登录")
			}
			msg, err = b.Users.LoginToken(ctx, userID, botID, groupID, token, "")
		case "code":
			mobile := strings.TrimSpace(data.String("mobile"))
			code := strings.TrimSpace(data.String("code"))
			msg, err = b.Users.Login(ctx, userID, botID, groupID, mobile, code)
		case "logout":
			msg, err = b.Users.Logout(ctx, userID, botID)
		case "cookies":
			msg, err = b.Users.Cookies(ctx, userID, botID)
		}
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "账号登录失败，请稍后再试")
		}
		// Credentials only ever go back ephemerally.
		return utils.EH.CreateEphemeralEmbed(e, "二重螺旋", msg)
	}
}

// groupIDOf is the channel the command was used in, or empty in DMs. The
// binding rows keep it so scheduled reports know where to post.
func groupIDOf(e *handler.CommandEvent) string {
	if e.GuildID() == nil {
		return ""
	}
	return e.Channel().ID().String()
}
