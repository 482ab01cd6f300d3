package session

import "encoding/json"

// State is a session's position in its connection lifecycle.
type State int

const (
	Disconnected State = iota
	Authenticating
	Connected
	Backoff
)

var stateNames = map[State]string{
	Disconnected:   "disconnected",
	Authenticating: "authenticating",
	Connected:      "connected",
	Backoff:        "backoff",
}

var stateFromName = map[string]State{
	"disconnected":   Disconnected,
	"authenticating": Authenticating,
	"connected":      Connected,
	"backoff":        Backoff,
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}

// Status is a point-in-time snapshot of one session, surfaced through the
// diagnostics endpoint.
type Status struct {
	Instance  string `json:"instance"`
	State     State  `json:"state"`
	Failures  int    `json:"failures"`
	LastError string `json:"lastError,omitempty"`
}
