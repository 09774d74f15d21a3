package discord

import (
	"reflect"
	"testing"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantOK      bool
		wantMinutes int
		wantReason  string
	}{
		{
			name:        "basic directive",
			reply:       "You asked for it. timeout(10, being rude);",
			wantOK:      true,
			wantMinutes: 10,
			wantReason:  "being rude",
		},
		{
			name:        "empty reason uses default",
			reply:       "timeout(5, );",
			wantOK:      true,
			wantMinutes: 5,
			wantReason:  defaultTimeoutReason,
		},
		{
			name:        "spaces around comma",
			reply:       "timeout(3 , spamming );",
			wantOK:      true,
			wantMinutes: 3,
			wantReason:  "spamming",
		},
		{
			name:   "no directive",
			reply:  "just a normal reply",
			wantOK: false,
		},
		{
			name:   "zero minutes rejected",
			reply:  "timeout(0, nope);",
			wantOK: false,
		},
		{
			name:   "over discord cap rejected",
			reply:  "timeout(40321, forever);",
			wantOK: false,
		},
		{
			name:   "negative shape never matches",
			reply:  "timeout(-5, nope);",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directive, ok := parseTimeout(tt.reply)
			if ok != tt.wantOK {
				t.Fatalf("parseTimeout() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if directive.Minutes != tt.wantMinutes {
				t.Errorf("minutes = %d, want %d", directive.Minutes, tt.wantMinutes)
			}
			if directive.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", directive.Reason, tt.wantReason)
			}
		})
	}
}

func TestStripTimeouts(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "directive removed",
			reply: "Enough. timeout(10, rude); Behave.",
			want:  "Enough.  Behave.",
		},
		{
			name:  "no directive untouched",
			reply: "hello there",
			want:  "hello there",
		},
		{
			name:  "only directive leaves empty",
			reply: "timeout(10, rude);",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripTimeouts(tt.reply); got != tt.want {
				t.Errorf("stripTimeouts() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMemories(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantContents []string
		wantCleaned  string
	}{
		{
			name:         "single memory",
			reply:        "Got it! memory(ayu likes tea);",
			wantContents: []string{"ayu likes tea"},
			wantCleaned:  "Got it!",
		},
		{
			name:         "multiple memories",
			reply:        "memory(first); some text memory(second);",
			wantContents: []string{"first", "second"},
			wantCleaned:  "some text",
		},
		{
			name:         "multiline content",
			reply:        "memory(line one\nline two); done",
			wantContents: []string{"line one\nline two"},
			wantCleaned:  "done",
		},
		{
			name:        "no directive",
			reply:       "nothing to remember",
			wantCleaned: "nothing to remember",
		},
		{
			name:        "empty content skipped",
			reply:       "memory();",
			wantCleaned: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, cleaned := extractMemories(tt.reply)
			if !reflect.DeepEqual(contents, tt.wantContents) && !(len(contents) == 0 && len(tt.wantContents) == 0) {
				t.Errorf("contents = %#v, want %#v", contents, tt.wantContents)
			}
			if cleaned != tt.wantCleaned {
				t.Errorf("cleaned = %q, want %q", cleaned, tt.wantCleaned)
			}
		})
	}
}
