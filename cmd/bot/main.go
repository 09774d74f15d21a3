package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tnicklin/hanabot/ai"
	"github.com/tnicklin/hanabot/config"
	"github.com/tnicklin/hanabot/discord"
	"github.com/tnicklin/hanabot/logger"
	"github.com/tnicklin/hanabot/persona"
	"github.com/tnicklin/hanabot/store"
)

func main() {
	params, err := build()
	if err != nil {
		log.Fatal(err)
	}

	if err = run(params); err != nil {
		log.Fatal(err)
	}
}

func build() (runParams, error) {
	cfg, err := config.LoadWithDefaults("config/config.yaml", "config/secrets.yaml")
	if err != nil {
		return runParams{}, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return runParams{}, fmt.Errorf("initialize logger: %w", err)
	}

	priming, err := persona.LoadOptional(cfg.Persona.Path)
	if err != nil {
		return runParams{}, fmt.Errorf("load persona: %w", err)
	}
	closing, err := persona.LoadOptional(cfg.Persona.PostPath)
	if err != nil {
		return runParams{}, fmt.Errorf("load post-history persona: %w", err)
	}

	st := store.NewSQLiteStore(store.Params{
		Config: cfg.Store,
		Logger: appLogger,
	})

	aiClient := ai.New(ai.Params{
		Config: cfg.AI,
		Logger: appLogger,
	})

	var images *ai.ImageFetcher
	if cfg.AI.VisionEnabled {
		images = ai.NewImageFetcher(nil, 0)
	}

	// The !down command and OS signals share one shutdown path.
	shutdown := make(chan struct{})
	var once sync.Once
	requestShutdown := func() {
		once.Do(func() { close(shutdown) })
	}

	bots := make([]discord.Bot, 0, len(cfg.Discord.Bots))
	for _, cred := range cfg.Discord.Bots {
		bot, err := discord.New(discord.Params{
			Credential:    cred,
			Config:        cfg.Discord,
			Store:         st,
			AI:            aiClient,
			Images:        images,
			VisionEnabled: cfg.AI.VisionEnabled,
			Priming:       priming,
			Closing:       closing,
			Logger:        appLogger,
			Shutdown:      requestShutdown,
		})
		if err != nil {
			return runParams{}, fmt.Errorf("create discord bot: %w", err)
		}
		bots = append(bots, bot)
	}

	return runParams{
		Config:   cfg,
		Logger:   appLogger,
		Store:    st,
		Bots:     bots,
		Shutdown: shutdown,
	}, nil
}

type runParams struct {
	Config   *config.AppConfig
	Logger   logger.Logger
	Store    *store.SQLiteStore
	Bots     []discord.Bot
	Shutdown <-chan struct{}
}

// run starts all components and runs the application until shutdown.
func run(p runParams) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer p.Logger.Sync()

	if err := p.Store.Open(ctx); err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}

	if err := p.Store.RestoreFromDisk(ctx, p.Config.Store.Path); err != nil {
		p.Logger.WarnW("restore from disk", "error", err)
	}

	started := make([]discord.Bot, 0, len(p.Bots))
	for _, bot := range p.Bots {
		if err := bot.Start(ctx); err != nil {
			stopBots(started, p.Logger)
			return fmt.Errorf("start discord bot: %w", err)
		}
		started = append(started, bot)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		p.Logger.InfoW("signal received", "signal", sig.String())
	case <-p.Shutdown:
		p.Logger.InfoW("shutdown requested")
	}

	stopBots(started, p.Logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := p.Store.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}

func stopBots(bots []discord.Bot, log logger.Logger) {
	for _, bot := range bots {
		if err := bot.Stop(); err != nil {
			log.ErrorW("stop discord bot", "error", err)
		}
	}
}
