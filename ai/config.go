package ai

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds completion API client configuration.
type Config struct {
	APIKey        string       `yaml:"api_key"`
	BaseURL       string       `yaml:"base_url"`
	Model         string       `yaml:"model"`
	Temperature   float32      `yaml:"temperature"`
	MaxTokens     int          `yaml:"max_tokens"`
	VisionEnabled bool         `yaml:"vision_enabled"`
	HTTPClient    *http.Client `yaml:"-"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-3.5-turbo"
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
}

// Validate reports configuration the client cannot work with. The base URL
// check catches the common mistake of pointing at the host root instead of
// the versioned API prefix.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ai: api key is required")
	}
	if !strings.HasSuffix(strings.TrimRight(c.BaseURL, "/"), "/v1") {
		return fmt.Errorf("ai: base url %q must end in /v1", c.BaseURL)
	}
	return nil
}
