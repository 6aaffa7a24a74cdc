package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/utils"
)

var Sign = discord.SlashCommandCreate{
	Name:        "sign",
	Description: "游戏签到与社区任务",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "now",
			Description: "立即执行签到和社区任务",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "auto",
			Description: "开关当前UID的自动签到",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "mode",
					Description: "自动签到报告方式",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "开启(私聊报告)", Value: models.SignSwitchOn},
						{Name: "关闭", Value: models.SignSwitchOff},
						{Name: "本频道报告", Value: "group"},
					},
				},
			},
		},
	},
}

func SignHandler(b *dnabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		userID := e.User().ID.String()
		botID := b.Client.ApplicationID().String()

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "now":
			// The five community tasks take a while; defer and follow up.
			if err := e.DeferCreateMessage(true); err != nil {
				return fmt.Errorf("failed to defer response: %w", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), config.ManualSignTimeout)
			defer cancel()

			msg, err := b.SignRunner.ManualSign(ctx, userID, botID)
			if err != nil {
				slog.Error("Manual signin failed",
					slog.String("type", "cmd"),
					slog.String("user_id", userID),
					slog.Any("error", err))
				return utils.EH.FollowUpEmbed(e, "签到失败，请稍后再试", config.ErrorColor)
			}
			return utils.EH.FollowUpEmbed(e, msg, config.SuccessColor)

		case "auto":
			ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
			defer cancel()

			uid, err := b.AccountRepository.ActiveUID(ctx, userID, botID)
			if err != nil {
				return utils.EH.CreateErrorEmbed(e, "操作失败，请稍后再试")
			}
			if uid == "" {
				return utils.EH.CreateErrorEmbed(e, "当前并未登录")
			}

			value := data.String("mode")
			label := "开启"
			if value == "group" {
				// Group mode stores the channel id; the scheduled report
				// lands there with failed users mentioned.
				value = e.Channel().ID().String()
				label = "开启(本频道报告)"
			} else if value == models.SignSwitchOff {
				label = "关闭"
			}
			if err := b.AccountRepository.SetSignSwitch(ctx, uid, userID, botID, value); err != nil {
				return utils.EH.CreateErrorEmbed(e, "操作失败，请稍后再试")
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("UID: [%s] 自动签到已%s", uid, label))
		}
		return nil
	}
}
