package discord

import "context"

// Bot defines the interface for one connected gateway session.
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}
