package diag

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sketchni/chatshare/internal/config"
	"github.com/sketchni/chatshare/internal/relay"
	"github.com/sketchni/chatshare/internal/session"
)

type staticStates []session.Status

func (s staticStates) States() []session.Status { return s }

type nopSender struct{}

func (nopSender) SendCommand(cmd string) error { return nil }

func newTestServer(t *testing.T, token string, states []session.Status) (*Server, *httptest.Server) {
	t.Helper()
	reg := relay.NewRegistry()
	reg.Register("vanilla", nopSender{})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(config.DiagConfig{AuthToken: token}, staticStates(states), reg, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHealthzIsOpen(t *testing.T) {
	_, ts := newTestServer(t, "secret", nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	_, ts := newTestServer(t, "secret", nil)

	tests := []struct {
		name   string
		mutate func(*http.Request)
		want   int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusUnauthorized},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer secret")
		}, http.StatusOK},
		{"custom header", func(r *http.Request) {
			r.Header.Set("X-Chatshare-Token", "secret")
		}, http.StatusOK},
		{"query token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", "secret")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(req)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET /status: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStatusNoTokenConfigured(t *testing.T) {
	_, ts := newTestServer(t, "", nil)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 when no token is configured", resp.StatusCode)
	}
}

func TestStatusPayload(t *testing.T) {
	states := []session.Status{
		{Instance: "vanilla", State: session.Connected},
		{Instance: "atm10", State: session.Backoff, Failures: 3, LastError: "dial tcp: connection refused"},
	}
	_, ts := newTestServer(t, "", states)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var got struct {
		UptimeSeconds int64 `json:"uptimeSeconds"`
		LiveConsoles  int   `json:"liveConsoles"`
		Sessions      []struct {
			Instance string `json:"instance"`
			State    string `json:"state"`
			Failures int    `json:"failures"`
		} `json:"sessions"`
		Process struct {
			PID        int `json:"pid"`
			Goroutines int `json:"goroutines"`
		} `json:"process"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.LiveConsoles != 1 {
		t.Errorf("live_consoles = %d, want 1", got.LiveConsoles)
	}
	if len(got.Sessions) != 2 {
		t.Fatalf("sessions count = %d, want 2", len(got.Sessions))
	}
	if got.Sessions[0].State != "connected" || got.Sessions[1].State != "backoff" {
		t.Errorf("session states = %q, %q", got.Sessions[0].State, got.Sessions[1].State)
	}
	if got.Sessions[1].Failures != 3 {
		t.Errorf("failures = %d, want 3", got.Sessions[1].Failures)
	}
	if got.Process.PID == 0 || got.Process.Goroutines == 0 {
		t.Errorf("process info not populated: %+v", got.Process)
	}
}
