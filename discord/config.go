package discord

import (
	"encoding/json"
	"fmt"
)

// BotCredential is one gateway identity: a bot token plus the intent bitfield
// it identifies with. Intent 0 means the default intents.
type BotCredential struct {
	Token  string `json:"token" yaml:"token"`
	Intent int    `json:"intent" yaml:"intent"`
}

// BotList is a list of credentials. It unmarshals from the DISCORD_BOTS
// environment value, a JSON array of {token, intent} objects.
type BotList []BotCredential

func (b *BotList) UnmarshalText(text []byte) error {
	var creds []BotCredential
	if err := json.Unmarshal(text, &creds); err != nil {
		return fmt.Errorf("parse bot credentials: %w", err)
	}
	*b = creds
	return nil
}

// ChannelList is a set of channel IDs. It unmarshals from a JSON array whose
// elements may be strings or bare snowflake numbers.
type ChannelList []string

func (c *ChannelList) UnmarshalText(text []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(text, &raw); err != nil {
		return fmt.Errorf("parse channel list: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		out = append(out, id.String())
	}
	*c = out
	return nil
}

// Contains reports whether the channel is in the list.
func (c ChannelList) Contains(channelID string) bool {
	for _, id := range c {
		if id == channelID {
			return true
		}
	}
	return false
}

// Config holds Discord-specific configuration.
type Config struct {
	Bots      BotList     `yaml:"bots"`
	OwnerID   string      `yaml:"owner_id"`
	Blacklist ChannelList `yaml:"blacklist"`

	// Random replies trigger after a per-channel count of messages drawn
	// uniformly from [ReplyAfterMin, ReplyAfterMax].
	ReplyAfterMin int `yaml:"reply_after_min"`
	ReplyAfterMax int `yaml:"reply_after_max"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.ReplyAfterMin <= 0 {
		c.ReplyAfterMin = 10
	}
	if c.ReplyAfterMax < c.ReplyAfterMin {
		c.ReplyAfterMax = c.ReplyAfterMin + 5
	}
}

// Validate reports configuration the bot cannot start without.
func (c *Config) Validate() error {
	if len(c.Bots) == 0 {
		return fmt.Errorf("discord: at least one bot credential is required")
	}
	for i, cred := range c.Bots {
		if cred.Token == "" {
			return fmt.Errorf("discord: bot %d has an empty token", i)
		}
		if cred.Intent < 0 {
			return fmt.Errorf("discord: bot %d has invalid intent %d", i, cred.Intent)
		}
	}
	return nil
}
