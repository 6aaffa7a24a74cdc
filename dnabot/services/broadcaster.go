package services

import (
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/duetnight/dnabot/dnabot/announce"
	"github.com/duetnight/dnabot/dnabot/mh"
	"github.com/duetnight/dnabot/dnabot/signin"
)

// Broadcaster delivers scheduled push material: signin reports, rotation
// refreshes and announcements. It is the only place that turns the report
// structs into Discord traffic.
type Broadcaster struct {
	client bot.Client
}

func NewBroadcaster(client bot.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// SendSignReport pushes a scheduled signin run: per-user DMs, per-group
// summaries with failed users mentioned, and the operator summary to the
// master channel if one is configured.
func (b *Broadcaster) SendSignReport(report *signin.BatchReport, masterChannel string) {
	if report == nil {
		return
	}

	for _, category := range []*signin.CategoryReport{report.Game, report.BBS} {
		if category == nil {
			continue
		}
		for userID, lines := range category.Private {
			b.dm(userID, "[二重螺旋]"+category.Title+"\n"+strings.Join(lines, "\n"))
		}
		for groupID := range category.Groups {
			msg := category.GroupSummary(groupID)
			group := category.Groups[groupID]
			for _, mention := range group.Mentions {
				msg += "\n" + mentionTag(mention.UserID) + " " + mention.Text
			}
			b.channel(groupID, msg)
		}
	}

	if masterChannel != "" && report.Summary != "" {
		b.channel(masterChannel, report.Summary)
	}
}

// SendMHPush pushes an hourly rotation refresh.
func (b *Broadcaster) SendMHPush(report *mh.PushReport) {
	if report == nil || report.Empty() {
		return
	}

	for userID, lines := range report.Private {
		b.dm(userID, strings.Join(lines, "\n"))
	}
	for groupID, push := range report.Groups {
		lines := []string{"当前订阅密函已刷新:"}
		for _, line := range push.Lines {
			tags := make([]string, 0, len(line.UserIDs))
			for _, userID := range line.UserIDs {
				tags = append(tags, mentionTag(userID))
			}
			lines = append(lines, line.Text+" "+strings.Join(tags, " "))
		}
		b.channel(groupID, strings.Join(lines, "\n"))
	}
}

// SendAnnouncements pushes fresh announcements to every subscribed group,
// one embed per announcement.
func (b *Broadcaster) SendAnnouncements(digest *announce.Digest) {
	if digest == nil || digest.Empty() {
		return
	}

	for groupID, anns := range digest.Groups {
		channelID, err := snowflake.Parse(groupID)
		if err != nil {
			slog.Warn("Skipping announcement push to malformed channel id",
				slog.String("type", "sys"),
				slog.String("channel_id", groupID))
			continue
		}
		for _, ann := range anns {
			embed := discord.Embed{
				Title:       ann.Title,
				Description: strings.Join(ann.Texts, "\n"),
			}
			if len(ann.Images) > 0 {
				embed.Image = &discord.EmbedResource{URL: ann.Images[0]}
			}
			_, err := b.client.Rest().CreateMessage(channelID, discord.MessageCreate{
				Embeds: []discord.Embed{embed},
			})
			if err != nil {
				slog.Error("Failed to push announcement",
					slog.String("type", "sys"),
					slog.String("channel_id", groupID),
					slog.String("post_id", ann.ID),
					slog.Any("error", err))
			}
		}
	}
}

func (b *Broadcaster) dm(userID, content string) {
	id, err := snowflake.Parse(userID)
	if err != nil {
		slog.Warn("Skipping DM to malformed user id",
			slog.String("type", "sys"),
			slog.String("user_id", userID))
		return
	}
	dmChannel, err := b.client.Rest().CreateDMChannel(id)
	if err != nil {
		slog.Error("Failed to open DM channel",
			slog.String("type", "sys"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}
	if _, err := b.client.Rest().CreateMessage(dmChannel.ID(), discord.MessageCreate{Content: content}); err != nil {
		slog.Error("Failed to send DM",
			slog.String("type", "sys"),
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

func (b *Broadcaster) channel(channelID, content string) {
	id, err := snowflake.Parse(channelID)
	if err != nil {
		slog.Warn("Skipping push to malformed channel id",
			slog.String("type", "sys"),
			slog.String("channel_id", channelID))
		return
	}
	if _, err := b.client.Rest().CreateMessage(id, discord.MessageCreate{Content: content}); err != nil {
		slog.Error("Failed to send channel message",
			slog.String("type", "sys"),
			slog.String("channel_id", channelID),
			slog.Any("error", err))
	}
}

func mentionTag(userID string) string {
	return "<@" + userID + ">"
}
