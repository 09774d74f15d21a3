package ai

import "testing"

func TestConfigDefaults(t *testing.T) {
	cfg := Config{APIKey: "key"}
	cfg.Defaults()

	if cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.Model != "gpt-3.5-turbo" {
		t.Errorf("unexpected model %q", cfg.Model)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("unexpected temperature %v", cfg.Temperature)
	}
	if cfg.HTTPClient == nil {
		t.Error("expected default http client")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid",
			config: Config{APIKey: "key", BaseURL: "https://api.openai.com/v1"},
		},
		{
			name:   "trailing slash accepted",
			config: Config{APIKey: "key", BaseURL: "https://api.openai.com/v1/"},
		},
		{
			name:    "missing api key",
			config:  Config{BaseURL: "https://api.openai.com/v1"},
			wantErr: true,
		},
		{
			name:    "base url without version prefix",
			config:  Config{APIKey: "key", BaseURL: "https://api.openai.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
