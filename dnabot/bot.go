package dnabot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/duetnight/dnabot/dnabot/alias"
	"github.com/duetnight/dnabot/dnabot/announce"
	"github.com/duetnight/dnabot/dnabot/database"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
	"github.com/duetnight/dnabot/dnabot/mh"
	"github.com/duetnight/dnabot/dnabot/services"
	"github.com/duetnight/dnabot/dnabot/signin"
	"github.com/duetnight/dnabot/dnabot/user"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

// Bot wires the Discord client to the game services. Fields are populated in
// main before the gateway opens.
type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	AccountRepository      repositories.AccountRepository
	SignRepository         repositories.SignRepository
	SubscriptionRepository repositories.SubscriptionRepository

	API           *dnaapi.Client
	Resolver      *dnaapi.AccountResolver
	SpacesService *services.SpacesService

	Alias      *alias.Service
	Users      *user.Service
	SignRunner *signin.Runner
	MH         *mh.Service
	Announce   *announce.Service
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("DNABot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithPlayingActivity("二重螺旋"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
