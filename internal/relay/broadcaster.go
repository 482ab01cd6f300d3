package relay

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
)

// Broadcaster fans one payload out to every live registry entry. Send
// failures are isolated per target: the owning session notices its own
// transport error and marks the entry stale, the broadcaster never mutates
// registry liveness itself.
type Broadcaster struct {
	registry *Registry
	limiter  *rate.Limiter
	log      *slog.Logger
}

// NewBroadcaster creates a broadcaster over registry. sendRate/sendBurst
// bound the outbound command rate so a chat flood on one instance cannot
// saturate the consoles of the others; a rate of 0 disables the limit.
func NewBroadcaster(registry *Registry, sendRate float64, sendBurst int, log *slog.Logger) *Broadcaster {
	var limiter *rate.Limiter
	if sendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(sendRate), max(sendBurst, 1))
	}
	return &Broadcaster{registry: registry, limiter: limiter, log: log}
}

// Broadcast sends payload to every live entry, skipping the one matching
// originID when excludeOrigin is set. An empty registry is a no-op.
func (b *Broadcaster) Broadcast(originID, payload string, excludeOrigin bool) {
	entries := b.registry.LiveEntries()
	if len(entries) == 0 {
		return
	}

	if b.limiter != nil {
		b.limiter.Wait(context.Background())
	}

	origin := strings.ToLower(originID)
	for _, e := range entries {
		if excludeOrigin && e.ID == origin {
			continue
		}
		if err := e.Handle.SendCommand(payload); err != nil {
			b.log.Warn("broadcast send failed", "target", e.ID, "origin", origin, "error", err)
		}
	}
}
