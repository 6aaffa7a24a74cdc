package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/utils"
)

const annsPerPage = 10

var Ann = discord.SlashCommandCreate{
	Name:        "ann",
	Description: "二重螺旋官方公告",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "查看公告列表",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "detail",
			Description: "查看公告详情",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "id",
					Description: "公告ID",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "subscribe",
			Description: "在本频道订阅公告推送",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "unsubscribe",
			Description: "取消本频道的公告推送",
		},
	},
}

func AnnHandler(b *dnabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "list":
			posts, err := b.API.AnnList(ctx, false)
			if err != nil || len(posts) == 0 {
				return utils.EH.CreateErrorEmbed(e, "获取公告列表失败")
			}

			totalPages := (len(posts) + annsPerPage - 1) / annsPerPage
			return b.Paginator.Create(e.Respond, paginator.Pages{
				ID:      e.ID().String(),
				Creator: e.User().ID,
				PageFunc: func(page int, embed *discord.EmbedBuilder) {
					start := page * annsPerPage
					end := min(start+annsPerPage, len(posts))

					var description strings.Builder
					for _, post := range posts[start:end] {
						description.WriteString(fmt.Sprintf("#%s %s\n", post.PostID, post.PostTitle))
					}
					embed.
						SetTitle("二重螺旋公告列表").
						SetDescription(description.String()).
						SetColor(config.InfoColor).
						SetFooter(fmt.Sprintf("第 %d/%d 页", page+1, totalPages), "")
				},
				Pages:      totalPages,
				ExpireMode: paginator.ExpireModeAfterLastUsage,
			}, false)

		case "detail":
			id := strings.TrimPrefix(strings.TrimSpace(data.String("id")), "#")
			if !isNumeric(id) {
				return utils.EH.CreateErrorEmbed(e, "公告ID不正确")
			}
			ann, refusal, err := b.Announce.Detail(ctx, id, false)
			if err != nil {
				return utils.EH.CreateErrorEmbed(e, "获取公告详情失败")
			}
			if refusal != "" {
				return utils.EH.CreateErrorEmbed(e, refusal)
			}
			embed := discord.Embed{
				Title:       ann.Title,
				Description: strings.Join(ann.Texts, "\n"),
				Color:       config.InfoColor,
			}
			if len(ann.Images) > 0 {
				embed.Image = &discord.EmbedResource{URL: ann.Images[0]}
			}
			return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})

		case "subscribe":
			msg, err := b.Announce.Subscribe(ctx, e.User().ID.String(), b.Client.ApplicationID().String(), groupIDOf(e))
			if err != nil {
				return utils.EH.CreateErrorEmbed(e, "操作失败，请稍后再试")
			}
			return utils.EH.CreateInfoEmbed(e, msg)

		case "unsubscribe":
			msg, err := b.Announce.Unsubscribe(ctx, groupIDOf(e))
			if err != nil {
				return utils.EH.CreateErrorEmbed(e, "操作失败，请稍后再试")
			}
			return utils.EH.CreateInfoEmbed(e, msg)
		}
		return nil
	}
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
