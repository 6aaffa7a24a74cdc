package utils

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot/config"
)

// ResponseHandler provides standardized response methods for commands
type ResponseHandler struct{}

var EH = &ResponseHandler{}

// CreateErrorEmbed creates a standard error embed for command events
func (h *ResponseHandler) CreateErrorEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.ErrorColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

// CreateSuccessEmbed creates a standard success embed for command events
func (h *ResponseHandler) CreateSuccessEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.SuccessColor,
		}},
	})
}

// CreateInfoEmbed creates a standard info embed for command events
func (h *ResponseHandler) CreateInfoEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.InfoColor,
		}},
	})
}

// CreateEphemeralEmbed answers with an embed only the invoking user can see,
// used for token dumps and login results.
func (h *ResponseHandler) CreateEphemeralEmbed(event *handler.CommandEvent, title, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       title,
			Description: message,
			Color:       config.InfoColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

// FollowUpEmbed sends an embed after a deferred response.
func (h *ResponseHandler) FollowUpEmbed(event *handler.CommandEvent, message string, color int) error {
	_, err := event.CreateFollowupMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       color,
		}},
	})
	return err
}
