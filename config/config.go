package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v9"
	"github.com/tnicklin/hanabot/ai"
	"github.com/tnicklin/hanabot/discord"
	"github.com/tnicklin/hanabot/logger"
	"github.com/tnicklin/hanabot/persona"
	"github.com/tnicklin/hanabot/store"
	"go.uber.org/config"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger  logger.Config  `yaml:"logger"`
	Discord discord.Config `yaml:"discord"`
	AI      ai.Config      `yaml:"ai"`
	Persona persona.Config `yaml:"persona"`
	Store   store.Config   `yaml:"store"`
}

// envOverlay maps environment variables onto AppConfig fields. Environment
// values override anything the YAML files provided.
type envOverlay struct {
	APIKey        string              `env:"OPENAI_API_KEY"`
	APIBase       string              `env:"OPENAI_API_BASE"`
	Model         string              `env:"OPENAI_MODEL_NAME"`
	VisionEnabled *bool               `env:"OPENAI_VISION_ENABLED"`
	Temperature   *float32            `env:"TEMPERATURE"`
	MaxTokens     *int                `env:"MAX_TOKENS"`
	PersonaPath   string              `env:"PERSONA"`
	PersonaPost   string              `env:"PERSONA_POST"`
	Bots          discord.BotList     `env:"DISCORD_BOTS"`
	Blacklist     discord.ChannelList `env:"BLACKCHANNELS"`
	OwnerID       string              `env:"OWNER_ID"`
}

func (o *envOverlay) apply(cfg *AppConfig) {
	if o.APIKey != "" {
		cfg.AI.APIKey = o.APIKey
	}
	if o.APIBase != "" {
		cfg.AI.BaseURL = o.APIBase
	}
	if o.Model != "" {
		cfg.AI.Model = o.Model
	}
	if o.VisionEnabled != nil {
		cfg.AI.VisionEnabled = *o.VisionEnabled
	}
	if o.Temperature != nil {
		cfg.AI.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		cfg.AI.MaxTokens = *o.MaxTokens
	}
	if o.PersonaPath != "" {
		cfg.Persona.Path = o.PersonaPath
	}
	if o.PersonaPost != "" {
		cfg.Persona.PostPath = o.PersonaPost
	}
	if len(o.Bots) > 0 {
		cfg.Discord.Bots = o.Bots
	}
	if len(o.Blacklist) > 0 {
		cfg.Discord.Blacklist = o.Blacklist
	}
	if o.OwnerID != "" {
		cfg.Discord.OwnerID = o.OwnerID
	}
}

// Load reads configuration from the specified YAML files, then overlays
// environment variables on top. Files are merged in order, with later files
// overriding earlier ones. Missing files are silently ignored; with no files
// at all the configuration comes entirely from the environment.
func Load(files ...string) (*AppConfig, error) {
	var cfg AppConfig

	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) > 0 {
		provider, err := config.NewYAML(opts...)
		if err != nil {
			return nil, err
		}
		if err := provider.Get(config.Root).Populate(&cfg); err != nil {
			return nil, err
		}
	}

	var overlay envOverlay
	if err := env.Parse(&overlay); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	overlay.apply(&cfg)

	return &cfg, nil
}

// LoadWithDefaults loads configuration, applies defaults and validates the
// result.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if len(cfg.Logger.OutputPaths) == 0 {
		cfg.Logger.OutputPaths = []string{"stdout"}
	}
	cfg.AI.Defaults()
	cfg.Persona.Defaults()
	cfg.Store.Defaults()
	cfg.Discord.Defaults()

	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Discord.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
