package commands

import (
	"context"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/mh"
	"github.com/duetnight/dnabot/dnabot/utils"
)

var trackChoices = []discord.ApplicationCommandOptionChoiceString{
	{Name: "角色", Value: "角色"},
	{Name: "武器", Value: "武器"},
	{Name: "魔之楔", Value: "魔之楔"},
}

var MH = discord.SlashCommandCreate{
	Name:        "mh",
	Description: "密函轮换查询与订阅",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "now",
			Description: "查看当前密函轮换",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "subscribe",
			Description: "订阅密函刷新提醒",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "委托名，如拆解、勘探",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "track",
					Description: "只订阅某一类轮换",
					Required:    false,
					Choices:     trackChoices,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "unsubscribe",
			Description: "取消密函订阅",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "委托名，或\"全部\"",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "track",
					Description: "只取消某一类轮换",
					Required:    false,
					Choices:     trackChoices,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "查看订阅状态和可订阅密函",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "time",
			Description: "设置推送时间窗口",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "start",
					Description: "开始小时(0-23)",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "end",
					Description: "结束小时(0-23)",
					Required:    true,
				},
			},
		},
	},
}

func MHHandler(b *dnabot.Bot) handler.CommandHandler {
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
		case "now":
			msg = rotationText(ctx, b)
		case "subscribe":
			msg, err = b.MH.Subscribe(ctx, userID, botID, groupIDOf(e), data.String("name"), data.String("track"))
		case "unsubscribe":
			msg, err = b.MH.Unsubscribe(ctx, userID, botID, data.String("name"), data.String("track"))
		case "list":
			msg, err = b.MH.Describe(ctx, userID, botID)
			if err == nil {
				msg += "\n\n可订阅密函: " + strings.Join(mh.CommissionNames(), "、")
			}
		case "time":
			start := data.Int("start")
			end := data.Int("end")
			if _, _, ok := mh.ParseWindow(mh.FormatWindow(start, end)); !ok {
				return utils.EH.CreateErrorEmbed(e, "推送时间格式不正确, 应为0-23之间的小时, 且开始不晚于结束")
			}
			msg, err = b.MH.SetWindow(ctx, userID, botID, start, end)
		}
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "操作失败，请稍后再试")
		}
		return utils.EH.CreateInfoEmbed(e, msg)
	}
}

// rotationText renders the active rotation as one line per track.
func rotationText(ctx context.Context, b *dnabot.Bot) string {
	refresh := b.MH.Rotation().NextRefresh()
	tracks := b.MH.Rotation().Tracks(ctx, refresh, false)
	if len(tracks) == 0 {
		return "获取密函轮换失败, 请稍后再试"
	}

	lines := []string{"当前密函轮换:"}
	for _, track := range tracks {
		var names []string
		for _, instance := range track.Instances {
			names = append(names, instance.Name)
		}
		lines = append(lines, track.Type.TypeName()+" : "+strings.Join(names, "、"))
	}
	return strings.Join(lines, "\n")
}
