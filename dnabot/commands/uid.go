package commands

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/utils"
)

var UID = discord.SlashCommandCreate{
	Name:        "uid",
	Description: "管理绑定的游戏UID",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "查看绑定的UID列表",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bind",
			Description: "绑定一个UID",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "uid",
					Description: "13位游戏UID",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "switch",
			Description: "切换当前使用的UID",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "uid",
					Description: "要切换到的UID",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "delete",
			Description: "删除一个UID",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "uid",
					Description: "要删除的UID",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "clear",
			Description: "删除全部UID",
		},
	},
}

func UIDHandler(b *dnabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		userID := e.User().ID.String()
		botID := b.Client.ApplicationID().String()

		data := e.SlashCommandInteractionData()
		var (
			msg string
			err error
		)
		switch *data.SubCommandName {
		case "list":
			msg, err = b.Users.ListUIDs(ctx, userID, botID)
		case "bind":
			msg, err = b.Users.Bind(ctx, userID, botID, groupIDOf(e), data.String("uid"))
		case "switch":
			msg, err = b.Users.Switch(ctx, userID, botID, data.String("uid"))
		case "delete":
			msg, err = b.Users.Unbind(ctx, userID, botID, data.String("uid"))
		case "clear":
			msg, err = b.Users.UnbindAll(ctx, userID, botID)
		}
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "操作失败，请稍后再试")
		}
		return utils.EH.CreateInfoEmbed(e, msg)
	}
}
