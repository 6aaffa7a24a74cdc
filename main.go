package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/go-co-op/gocron/v2"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/alias"
	"github.com/duetnight/dnabot/dnabot/announce"
	"github.com/duetnight/dnabot/dnabot/commands"
	"github.com/duetnight/dnabot/dnabot/database"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
	"github.com/duetnight/dnabot/dnabot/handlers"
	"github.com/duetnight/dnabot/dnabot/logger"
	"github.com/duetnight/dnabot/dnabot/mh"
	"github.com/duetnight/dnabot/dnabot/services"
	"github.com/duetnight/dnabot/dnabot/signin"
	"github.com/duetnight/dnabot/dnabot/user"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting DNABot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := dnabot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		slog.Error("Failed to create data directory",
			slog.String("dir", cfg.Data.Dir),
			slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	defer db.Close()

	b := dnabot.New(*cfg, version, commit)
	b.DB = db

	b.AccountRepository = repositories.NewAccountRepository(db.BunDB())
	b.SignRepository = repositories.NewSignRepository(db.BunDB())
	b.SubscriptionRepository = repositories.NewSubscriptionRepository(db.BunDB())

	b.API = dnaapi.NewClient()
	b.Resolver = dnaapi.NewAccountResolver(b.API, b.AccountRepository)

	if cfg.Spaces.Enabled() {
		spacesService, err := services.NewSpacesService(cfg.Spaces)
		if err != nil {
			slog.Error("Failed to initialize Spaces service", slog.Any("error", err))
			os.Exit(-1)
		}
		b.SpacesService = spacesService
	}

	aliasService, err := alias.NewService(cfg.Data.Dir)
	if err != nil {
		slog.Error("Failed to load alias tables", slog.Any("error", err))
		os.Exit(-1)
	}
	b.Alias = aliasService

	b.Users = user.NewService(b.API, b.AccountRepository)

	replies := signin.LoadReplyTemplates(filepath.Join(cfg.Data.Dir, "reply_templates.json"))
	signService := signin.NewService(b.API, b.SignRepository, cfg.Sign, replies)
	b.SignRunner = signin.NewRunner(signService, b.AccountRepository, b.SignRepository, cfg.Sign)

	rotation := mh.NewRotation(b.API, b.Resolver, cfg.MH)
	b.MH = mh.NewService(b.SubscriptionRepository, rotation, cfg.MH)

	var mirror announce.Mirror
	if b.SpacesService != nil {
		mirror = b.SpacesService
	}
	b.Announce = announce.NewService(b.API, b.SubscriptionRepository, mirror, cfg.Announce, cfg.Data.Dir)

	h := handler.New()
	h.Command("/login", handlers.WrapWithLogging("login", commands.LoginHandler(b)))
	h.Command("/uid", handlers.WrapWithLogging("uid", commands.UIDHandler(b)))
	h.Command("/sign", handlers.WrapWithLogging("sign", commands.SignHandler(b)))
	h.Command("/alias", handlers.WrapWithLogging("alias", commands.AliasHandler(b)))
	h.Command("/mh", handlers.WrapWithLogging("mh", commands.MHHandler(b)))
	h.Command("/ann", handlers.WrapWithLogging("ann", commands.AnnHandler(b)))
	h.Command("/note", handlers.WrapWithLogging("note", commands.NoteHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("error_details", fmt.Sprintf("%+v", err)),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	sched, err := startSchedulers(b)
	if err != nil {
		slog.Error("Failed to start schedulers",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	defer func() { _ = sched.Shutdown() }()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}

// startSchedulers wires the cron side: the daily signin batch, the midnight
// record sweep, the hourly rotation push and the announcement poll.
func startSchedulers(b *dnabot.Bot) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	broadcaster := services.NewBroadcaster(b.Client)
	cfg := b.Cfg

	if cfg.Sign.Scheduled {
		_, err = sched.NewJob(
			gocron.CronJob(cfg.Sign.Cron, false),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
				defer cancel()

				report, err := b.SignRunner.AutoSign(ctx)
				if err != nil {
					slog.Error("Scheduled signin batch failed",
						slog.String("type", "sys"),
						slog.Any("error", err))
					return
				}
				broadcaster.SendSignReport(report, cfg.Bot.MasterChannel)
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	_, err = sched.NewJob(
		gocron.CronJob("5 0 * * *", false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if err := b.SignRunner.Sweep(ctx); err != nil {
				slog.Error("Signin record sweep failed",
					slog.String("type", "db"),
					slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.CronJob(cfg.MH.Cron, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			report, err := b.MH.Push(ctx)
			if err != nil {
				slog.Error("Rotation push failed",
					slog.String("type", "sys"),
					slog.Any("error", err))
				return
			}
			broadcaster.SendMHPush(report)
		}),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Announce.Enabled && cfg.Announce.PollMinutes > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(time.Duration(cfg.Announce.PollMinutes)*time.Minute),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()

				digest, err := b.Announce.Poll(ctx)
				if err != nil {
					slog.Error("Announcement poll failed",
						slog.String("type", "sys"),
						slog.Any("error", err))
					return
				}
				if digest != nil {
					broadcaster.SendAnnouncements(digest)
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
