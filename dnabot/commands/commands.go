package commands

import (
	"github.com/disgoorg/disgo/discord"
)

// Commands is every slash command the bot registers on sync.
var Commands = []discord.ApplicationCommandCreate{
	Login,
	UID,
	Sign,
	Alias,
	MH,
	Ann,
	Note,
}
