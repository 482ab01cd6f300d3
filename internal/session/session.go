package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sketchni/chatshare/internal/bridge"
	"github.com/sketchni/chatshare/internal/console"
	"github.com/sketchni/chatshare/internal/panel"
	"github.com/sketchni/chatshare/internal/relay"
)

// TokenSource fetches a short-lived console token for an instance.
// Satisfied by *panel.Client.
type TokenSource interface {
	WebsocketToken(ctx context.Context, identifier string) (string, error)
}

// Config carries the connection tuning shared by all sessions.
type Config struct {
	WSSURL            string
	WingsToken        string
	Origin            string
	KeepaliveInterval time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration
}

// Deps are the collaborators a session needs. One Deps value is shared by
// every session the supervisor launches.
type Deps struct {
	Tokens      TokenSource
	Parser      *console.Parser
	Registry    *relay.Registry
	Broadcaster *relay.Broadcaster
	Bridge      bridge.Bridge
	Dialer      Dialer
	Config      Config
	Log         *slog.Logger
}

// Session owns the persistent console connection for one instance: the
// auth handshake, the keep-alive pinger, inbound dispatch, and reconnect
// with backoff. The connection may be recreated arbitrarily many times;
// the Session itself lives until process shutdown.
type Session struct {
	inst panel.Instance
	deps Deps

	mu       sync.Mutex
	state    State
	failures int
	lastErr  string

	// token is only touched by the run goroutine (fetch, auth, refresh).
	token string

	// writeMu serializes all writes on the current connection: auth
	// frames, keep-alive pings, and relayed commands from other
	// sessions' broadcasts.
	writeMu sync.Mutex
}

func New(inst panel.Instance, deps Deps) *Session {
	if deps.Dialer == nil {
		deps.Dialer = WebsocketDialer{}
	}
	return &Session{
		inst:  inst,
		deps:  deps,
		state: Disconnected,
	}
}

// Instance returns the identity this session bridges.
func (s *Session) Instance() panel.Instance {
	return s.inst
}

// Status snapshots the session for diagnostics.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Instance:  strings.ToLower(s.inst.ExternalID),
		State:     s.state,
		Failures:  s.failures,
		LastError: s.lastErr,
	}
}

// Run drives the connection lifecycle until ctx is cancelled. Transport
// and transient credential failures reconnect with bounded-exponential
// backoff, indefinitely. The only error Run returns is a credential
// permission failure, which no amount of retrying can fix.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.setState(Disconnected)
			return nil
		}

		s.setState(Authenticating)
		token, err := s.deps.Tokens.WebsocketToken(ctx, s.inst.Identifier)
		if err != nil {
			if errors.Is(err, panel.ErrForbidden) {
				s.fail(err)
				return fmt.Errorf("session %s: credential fetch: %w", s.inst.ExternalID, err)
			}
			if ctx.Err() != nil {
				s.setState(Disconnected)
				return nil
			}
			s.deps.Log.Warn("credential fetch failed", "instance", s.inst.ExternalID, "error", err)
			if !s.backoff(ctx, err) {
				return nil
			}
			continue
		}
		s.token = token

		conn, err := s.deps.Dialer.Dial(ctx, s.connectionURL(), s.connectionHeader())
		if err != nil {
			if ctx.Err() != nil {
				s.setState(Disconnected)
				return nil
			}
			s.deps.Log.Warn("console dial failed", "instance", s.inst.ExternalID, "error", err)
			if !s.backoff(ctx, err) {
				return nil
			}
			continue
		}

		err = s.serve(ctx, conn)

		// The broadcaster must never pick up this handle again, no
		// matter why serve returned.
		s.deps.Registry.MarkStale(s.inst.ExternalID)

		if errors.Is(err, panel.ErrForbidden) {
			s.fail(err)
			return fmt.Errorf("session %s: token refresh: %w", s.inst.ExternalID, err)
		}
		if ctx.Err() != nil {
			s.setState(Disconnected)
			return nil
		}
		s.deps.Log.Warn("console connection lost", "instance", s.inst.ExternalID, "error", err)
		if !s.backoff(ctx, err) {
			return nil
		}
	}
}

// serve runs the read loop on one open connection until the transport
// fails or ctx is cancelled. Inbound frames are processed strictly in
// arrival order.
func (s *Session) serve(ctx context.Context, conn Conn) error {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock the read loop on shutdown; a clean remote handshake is not
	// required.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	lc := &liveConn{s: s, conn: conn, ctx: connCtx}

	// The remote expects the client to open the handshake; it will also
	// prompt with "auth required" if the first frame races the prompt.
	if err := lc.sendAuth(); err != nil {
		return err
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.deps.Log.Debug("undecodable console frame", "instance", s.inst.ExternalID, "error", err)
			continue
		}

		handler, known := frameHandlers[msg.Event]
		if !known {
			s.deps.Log.Debug("unhandled console event", "instance", s.inst.ExternalID, "event", msg.Event)
			continue
		}
		if handler == nil {
			continue
		}
		if err := handler(lc, msg); err != nil {
			return err
		}
	}
}

// liveConn is the per-connection dispatch context: one per serve call.
type liveConn struct {
	s           *Session
	conn        Conn
	ctx         context.Context
	pingStarted bool
}

// frameHandlers dispatches on the inbound message tag. Nil entries are
// recognized-and-ignored frames (periodic pushes from the remote).
var frameHandlers = map[string]func(*liveConn, wireMessage) error{
	"stats":          nil,
	"status":         nil,
	"install output": nil,
	"daemon message": nil,
	"auth required":  (*liveConn).authRequired,
	"auth success":   (*liveConn).authSuccess,
	"token expiring": (*liveConn).refreshAuth,
	"jwt error":      (*liveConn).refreshAuth,
	"console output": (*liveConn).consoleOutput,
}

func (lc *liveConn) sendAuth() error {
	return lc.s.write(lc.conn, wireMessage{Event: "auth", Args: []string{lc.s.token}})
}

func (lc *liveConn) authRequired(wireMessage) error {
	return lc.sendAuth()
}

func (lc *liveConn) authSuccess(wireMessage) error {
	s := lc.s
	s.mu.Lock()
	s.state = Connected
	s.failures = 0
	s.lastErr = ""
	s.mu.Unlock()

	s.deps.Registry.Register(s.inst.ExternalID, &consoleHandle{s: s, conn: lc.conn})

	if !lc.pingStarted {
		lc.pingStarted = true
		go s.keepAlive(lc.ctx, lc.conn)
	}

	s.deps.Log.Info("console attached", "instance", s.inst.ExternalID)
	return nil
}

// refreshAuth handles token expiry signalled by the remote: re-fetch and
// re-authenticate over the same transport. A transient fetch failure (after
// the panel client's own bounded retries) tears the connection down and
// takes the ordinary reconnect path; a permission failure propagates.
func (lc *liveConn) refreshAuth(wireMessage) error {
	s := lc.s
	s.setState(Authenticating)
	s.deps.Log.Info("console token expired, refreshing", "instance", s.inst.ExternalID)

	token, err := s.deps.Tokens.WebsocketToken(lc.ctx, s.inst.Identifier)
	if err != nil {
		return err
	}
	s.token = token
	return lc.sendAuth()
}

func (lc *liveConn) consoleOutput(msg wireMessage) error {
	s := lc.s

	// Batched multi-line payloads (history replays) are not relayed.
	if len(msg.Args) != 1 {
		return nil
	}
	line := console.StripANSI(msg.Args[0])
	if strings.ContainsAny(line, "\r\n") {
		return nil
	}

	tagged := fmt.Sprintf("[%s] %s", strings.ToLower(s.inst.ExternalID), line)
	ev, ok := s.deps.Parser.Parse(tagged, s.inst.ExternalID)
	if !ok {
		return nil
	}

	display, command := console.Format(ev)
	if command != "" {
		s.deps.Broadcaster.Broadcast(ev.Source, command, true)
	}
	s.deps.Bridge.Relay(display, ev)
	return nil
}

// keepAlive pings the remote on a fixed interval so an idle console is not
// closed. A failed ping closes the connection, which surfaces in the read
// loop as an ordinary transport error.
func (s *Session) keepAlive(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(s.deps.Config.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(conn, wireMessage{Event: "send stats"}); err != nil {
				s.deps.Log.Warn("keepalive failed", "instance", s.inst.ExternalID, "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (s *Session) write(conn Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// backoff records a failure and sleeps the bounded-exponential delay.
// Returns false when ctx was cancelled during the sleep.
func (s *Session) backoff(ctx context.Context, cause error) bool {
	s.mu.Lock()
	s.failures++
	s.state = Backoff
	if cause != nil {
		s.lastErr = cause.Error()
	}
	failures := s.failures
	s.mu.Unlock()

	delay := backoffDelay(s.deps.Config.BackoffBase, s.deps.Config.BackoffMax, failures)
	s.deps.Log.Debug("backing off", "instance", s.inst.ExternalID, "failures", failures, "delay", delay)

	select {
	case <-ctx.Done():
		s.setState(Disconnected)
		return false
	case <-time.After(delay):
		return true
	}
}

// backoffDelay grows the base delay exponentially with the consecutive
// failure count, capped at max.
func backoffDelay(base, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = Disconnected
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Session) connectionURL() string {
	return fmt.Sprintf("%s/servers/%s/ws?token=%s",
		strings.TrimRight(s.deps.Config.WSSURL, "/"), s.inst.UUID, url.QueryEscape(s.deps.Config.WingsToken))
}

func (s *Session) connectionHeader() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.deps.Config.WingsToken)
	if s.deps.Config.Origin != "" {
		header.Set("Origin", s.deps.Config.Origin)
	}
	return header
}

// consoleHandle is the registry entry for one live connection. Bound to a
// specific Conn so a handle registered before a reconnect can never write
// onto the replacement connection.
type consoleHandle struct {
	s    *Session
	conn Conn
}

func (h *consoleHandle) SendCommand(cmd string) error {
	return h.s.write(h.conn, wireMessage{Event: "send command", Args: []string{cmd}})
}
