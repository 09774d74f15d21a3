package ai

import (
	"context"

	"github.com/tnicklin/hanabot/persona"
)

// Conversation is everything that goes into one completion request, in the
// order it is sent: priming transcript, channel memories, rolling history,
// closing transcript, then the current user turn.
type Conversation struct {
	Priming  persona.Transcript
	Memories []string
	History  []persona.Message
	Closing  persona.Transcript
	Prompt   string
	ImageURL string
}

// Client defines the interface for requesting chat completions.
type Client interface {
	Reply(ctx context.Context, conv Conversation) (string, error)
}
