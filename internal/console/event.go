package console

import "encoding/json"

// Kind classifies a parsed console event.
type Kind int

const (
	Chat Kind = iota
	Join
	Part
	Ban
	Advancement
)

var kindNames = map[Kind]string{
	Chat:        "chat",
	Join:        "join",
	Part:        "part",
	Ban:         "ban",
	Advancement: "advancement",
}

var kindFromName = map[string]Kind{
	"chat":        Chat,
	"join":        Join,
	"part":        Part,
	"ban":         Ban,
	"advancement": Advancement,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Event is the typed outcome of parsing one console line. Events are
// immutable; they live for the duration of a single relay operation.
type Event struct {
	Kind Kind `json:"kind"`

	// Source is the lower-cased instance identifier the line came from.
	Source string `json:"source"`

	// Timestamp is the line's clock reading, normalized to a 12-hour
	// string when the raw value parsed as HH:MM:SS, otherwise the raw
	// value unchanged.
	Timestamp string `json:"timestamp"`

	// Actor is the player name, when the event has one.
	Actor string `json:"actor,omitempty"`

	// Payload is the chat text for Chat and the advancement name for
	// Advancement. Empty for the other kinds.
	Payload string `json:"payload,omitempty"`

	// Reversed marks a pardon: a Ban event that undoes a ban rather than
	// imposing one.
	Reversed bool `json:"reversed,omitempty"`

	// Raw is the original line, retained for diagnostics.
	Raw string `json:"-"`
}
