package discord

import (
	"math/rand"
	"sync"
)

// replyCounter tracks per-channel message counts for random replies. Each
// channel gets a target drawn from [min, max]; Bump reports when the target
// is hit and resets the channel with a fresh target.
type replyCounter struct {
	mu       sync.Mutex
	min, max int
	randInt  func(min, max int) int
	channels map[string]*channelCount
}

type channelCount struct {
	count  int
	target int
}

func newReplyCounter(min, max int) *replyCounter {
	return &replyCounter{
		min: min,
		max: max,
		randInt: func(min, max int) int {
			return min + rand.Intn(max-min+1)
		},
		channels: make(map[string]*channelCount),
	}
}

func (rc *replyCounter) Bump(channelID string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	ch, ok := rc.channels[channelID]
	if !ok {
		ch = &channelCount{target: rc.randInt(rc.min, rc.max)}
		rc.channels[channelID] = ch
	}

	ch.count++
	if ch.count < ch.target {
		return false
	}

	ch.count = 0
	ch.target = rc.randInt(rc.min, rc.max)
	return true
}
