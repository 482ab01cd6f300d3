package session

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sketchni/chatshare/internal/console"
	"github.com/sketchni/chatshare/internal/panel"
)

// Supervisor owns the set of sessions, one per bridgeable instance, plus
// the pump that injects chat-bridge messages into every console. It is the
// only component with process-lifetime state.
type Supervisor struct {
	sessions []*Session
	deps     Deps
	log      *slog.Logger
}

// NewSupervisor builds one session per instance. Instances without an
// external identifier cannot be routed and are skipped with a warning.
func NewSupervisor(instances []panel.Instance, deps Deps) *Supervisor {
	sv := &Supervisor{deps: deps, log: deps.Log}
	for _, inst := range instances {
		if inst.ExternalID == "" {
			sv.log.Warn("instance has no external id, not bridging",
				"identifier", inst.Identifier, "name", inst.Name)
			continue
		}
		sv.sessions = append(sv.sessions, New(inst, deps))
	}
	return sv
}

// SessionCount reports how many instances are being bridged.
func (sv *Supervisor) SessionCount() int {
	return len(sv.sessions)
}

// States snapshots every session for diagnostics.
func (sv *Supervisor) States() []Status {
	states := make([]Status, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		states = append(states, s.Status())
	}
	return states
}

// Run launches all sessions and the inbound pump, then blocks until ctx is
// cancelled. A session that terminates on a permission failure is logged
// and left down; it never takes its siblings with it.
func (sv *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range sv.sessions {
		s := s
		g.Go(func() error {
			if err := s.Run(ctx); err != nil {
				sv.log.Error("session terminated",
					"instance", s.Instance().ExternalID, "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		sv.pumpInbound(ctx)
		return nil
	})

	return g.Wait()
}

// pumpInbound forwards chat-platform messages to every live console. The
// bridge's source label is the broadcast origin; no console session carries
// it, so nothing is excluded.
func (sv *Supervisor) pumpInbound(ctx context.Context) {
	inbound := sv.deps.Bridge.Inbound()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			command := console.InboundCommand(msg.Source, msg.Sender, msg.Content)
			sv.deps.Broadcaster.Broadcast(msg.Source, command, false)
			sv.log.Debug("inbound chat relayed", "source", msg.Source, "sender", msg.Sender)
		}
	}
}
