// Package diag exposes a small local HTTP surface for inspecting the
// relay at runtime: liveness, per-session connection state, and process
// resource usage. It binds to loopback by default and is token-gated
// when a token is configured.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/sketchni/chatshare/internal/config"
	"github.com/sketchni/chatshare/internal/relay"
	"github.com/sketchni/chatshare/internal/session"
)

// StatusSource yields a point-in-time view of every console session.
type StatusSource interface {
	States() []session.Status
}

type Server struct {
	cfg      config.DiagConfig
	source   StatusSource
	registry *relay.Registry
	log      *slog.Logger
	started  time.Time
}

func NewServer(cfg config.DiagConfig, source StatusSource, registry *relay.Registry, log *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		source:   source,
		registry: registry,
		log:      log,
		started:  time.Now(),
	}
}

// Handler builds the route table. Split out from Run so tests can drive
// the endpoints without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("diagnostics listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

type processInfo struct {
	PID        int     `json:"pid"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rssBytes,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
}

type statusResponse struct {
	UptimeSeconds int64            `json:"uptimeSeconds"`
	LiveConsoles  int              `json:"liveConsoles"`
	Sessions      []session.Status `json:"sessions"`
	Process       processInfo      `json:"process"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	resp := statusResponse{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		LiveConsoles:  s.registry.LiveCount(),
		Sessions:      s.source.States(),
		Process:       s.processInfo(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) processInfo() processInfo {
	info := processInfo{
		PID:        os.Getpid(),
		Goroutines: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(info.PID))
	if err != nil {
		s.log.Debug("process lookup failed", "error", err)
		return info
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}
	return info
}

func (s *Server) authorize(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.cfg.AuthToken {
		return true
	}

	if r.Header.Get("X-Chatshare-Token") == s.cfg.AuthToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.cfg.AuthToken {
		return true
	}

	return false
}
