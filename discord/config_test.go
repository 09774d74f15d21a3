package discord

import (
	"reflect"
	"testing"
)

func TestBotListUnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    BotList
		wantErr bool
	}{
		{
			name: "two bots",
			text: `[{"token": "abc", "intent": 37377}, {"token": "def"}]`,
			want: BotList{{Token: "abc", Intent: 37377}, {Token: "def"}},
		},
		{
			name: "empty array",
			text: `[]`,
			want: BotList{},
		},
		{
			name:    "not json",
			text:    `abc,def`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got BotList
			err := got.UnmarshalText([]byte(tt.text))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UnmarshalText() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestChannelListUnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    ChannelList
		wantErr bool
	}{
		{
			name: "string ids",
			text: `["123", "456"]`,
			want: ChannelList{"123", "456"},
		},
		{
			name: "bare snowflakes",
			text: `[123456789012345678, 456]`,
			want: ChannelList{"123456789012345678", "456"},
		},
		{
			name:    "not an array",
			text:    `"123"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ChannelList
			err := got.UnmarshalText([]byte(tt.text))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UnmarshalText() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestChannelListContains(t *testing.T) {
	list := ChannelList{"123", "456"}
	if !list.Contains("123") {
		t.Error("expected 123 to be listed")
	}
	if list.Contains("789") {
		t.Error("did not expect 789 to be listed")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.Defaults()

	if cfg.ReplyAfterMin != 10 {
		t.Errorf("ReplyAfterMin = %d, want 10", cfg.ReplyAfterMin)
	}
	if cfg.ReplyAfterMax != 15 {
		t.Errorf("ReplyAfterMax = %d, want 15", cfg.ReplyAfterMax)
	}

	cfg = Config{ReplyAfterMin: 3, ReplyAfterMax: 2}
	cfg.Defaults()
	if cfg.ReplyAfterMax != 8 {
		t.Errorf("ReplyAfterMax = %d, want 8", cfg.ReplyAfterMax)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{Bots: BotList{{Token: "abc"}}},
		},
		{
			name:    "no bots",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "empty token",
			cfg:     Config{Bots: BotList{{Token: ""}}},
			wantErr: true,
		},
		{
			name:    "negative intent",
			cfg:     Config{Bots: BotList{{Token: "abc", Intent: -1}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
