package commands

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/utils"
)

var Note = discord.SlashCommandCreate{
	Name:        "note",
	Description: "查看当前UID的日常便签",
}

func NoteHandler(b *dnabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		msg, err := b.Users.Note(ctx, e.User().ID.String(), b.Client.ApplicationID().String())
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "获取便签失败，请稍后再试")
		}
		return utils.EH.CreateInfoEmbed(e, msg)
	}
}
