package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Roles accepted in a persona transcript. They match the chat-completion
// API's message roles.
const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Message is a single role/content pair in a transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is an ordered sequence of messages used to prime the model.
type Transcript []Message

// Config holds the persona file paths.
type Config struct {
	Path     string `yaml:"path"`
	PostPath string `yaml:"post_path"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Path == "" {
		c.Path = "persona.json"
	}
	if c.PostPath == "" {
		c.PostPath = "persona_post.json"
	}
}

// Load reads a persona transcript from a JSON file. The file must contain an
// ordered array of {role, content} objects; order is preserved.
func Load(path string) (Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var transcript Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("parse persona %s: %w", path, err)
	}

	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("persona %s: %w", path, err)
	}

	return transcript, nil
}

// LoadOptional is Load, except a missing file yields an empty transcript.
// The bot can run without priming.
func LoadOptional(path string) (Transcript, error) {
	transcript, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return transcript, err
}

// Validate checks every message for a known role and non-empty content.
func (t Transcript) Validate() error {
	for i, msg := range t {
		switch msg.Role {
		case RoleSystem, RoleAssistant, RoleUser:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			return fmt.Errorf("message %d: empty content", i)
		}
	}
	return nil
}
