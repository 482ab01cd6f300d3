// Package bridge is the boundary to the external chat platform. The real
// chat client (Discord or otherwise) lives outside this process core; the
// relay only hands it display lines and consumes the messages it produces.
package bridge

import (
	"log/slog"

	"github.com/sketchni/chatshare/internal/console"
)

// Message is one inbound chat-platform message to inject into every
// instance console.
type Message struct {
	// Sender is the chat user's display name.
	Sender string

	// Content is the message text.
	Content string

	// Source labels the originating platform (e.g. "discord"). It is
	// used as the broadcast origin id; since no console session carries
	// it, the message reaches every live instance.
	Source string
}

// Bridge relays parsed console events out to the chat platform and
// surfaces the platform's own messages back into the relay.
type Bridge interface {
	// Relay hands one event and its rendered display line to the chat
	// platform. Best-effort: implementations log and drop on failure.
	Relay(displayLine string, ev *console.Event)

	// Inbound is the stream of chat-platform messages. A nil channel is
	// valid and means the bridge never produces inbound traffic.
	Inbound() <-chan Message
}

// LogBridge is the boundary implementation used when no chat platform is
// wired up: outbound events are logged, inbound is silent. It also serves
// as the reference for what a real bridge must provide.
type LogBridge struct {
	log *slog.Logger
}

func NewLogBridge(log *slog.Logger) *LogBridge {
	return &LogBridge{log: log}
}

func (b *LogBridge) Relay(displayLine string, ev *console.Event) {
	b.log.Info("relay", "kind", ev.Kind.String(), "instance", ev.Source, "line", displayLine)
}

func (b *LogBridge) Inbound() <-chan Message {
	return nil
}
