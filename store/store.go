package store

import (
	"context"

	"github.com/tnicklin/hanabot/persona"
)

// Memory is a long-term note the model asked to keep about a channel.
type Memory struct {
	ID        int64
	ChannelID string
	GuildID   string
	UserID    string
	Content   string
	CreatedAt string
}

// Config holds conversation store configuration.
type Config struct {
	Path       string `yaml:"path"`
	MaxHistory int    `yaml:"max_history"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Path == "" {
		c.Path = "data/hanabot.db"
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 20
	}
}

// Store persists per-channel conversation history and long-term memories.
type Store interface {
	Open(ctx context.Context) error
	Close() error
	Shutdown(ctx context.Context) error

	RestoreFromDisk(ctx context.Context, path string) error
	FlushToDisk(ctx context.Context, path string) error

	AppendHistory(ctx context.Context, channelID string, msgs ...persona.Message) error
	History(ctx context.Context, channelID string) ([]persona.Message, error)
	ClearHistory(ctx context.Context, channelID string) (int64, error)

	AddMemory(ctx context.Context, memory Memory) error
	ListMemories(ctx context.Context, channelID string) ([]Memory, error)
}
