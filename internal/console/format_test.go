package console

import (
	"strings"
	"testing"
)

func TestFormatChat(t *testing.T) {
	ev := &Event{Kind: Chat, Source: "vanilla", Timestamp: "07:41PM", Actor: "Sketch", Payload: "Hello world!"}

	display, command := Format(ev)

	if display != "[vanilla] [07:41PM] <Sketch> Hello world!" {
		t.Errorf("display = %q", display)
	}
	if !strings.HasPrefix(command, "tellraw @a ") {
		t.Errorf("command %q is not a tellraw", command)
	}
	for _, want := range []string{"[vanilla] ", "<Sketch> ", "Hello world!", `"color":"red"`, `"color":"blue"`, `"color":"white"`} {
		if !strings.Contains(command, want) {
			t.Errorf("command %q missing %q", command, want)
		}
	}
	if !strings.HasSuffix(command, "\n") {
		t.Error("command is not newline-terminated")
	}
}

func TestFormatChatEscapesQuotes(t *testing.T) {
	ev := &Event{Kind: Chat, Source: "vanilla", Timestamp: "07:41PM", Actor: "Sketch", Payload: `say "hi"`}

	_, command := Format(ev)
	if !strings.Contains(command, `say \"hi\"`) {
		t.Errorf("command %q does not JSON-escape quotes", command)
	}
}

func TestFormatAdvancement(t *testing.T) {
	ev := &Event{Kind: Advancement, Source: "vanilla", Timestamp: "12:30PM", Actor: "Sketch", Payload: "Stone Age"}

	display, command := Format(ev)

	if display != "[vanilla] [12:30PM] Sketch got the advancement Stone Age!" {
		t.Errorf("display = %q", display)
	}
	for _, want := range []string{"[mc:vanilla] ", "Sketch made the advancement: ", "Stone Age", `"color":"yellow"`} {
		if !strings.Contains(command, want) {
			t.Errorf("command %q missing %q", command, want)
		}
	}
}

func TestFormatDisplayOnlyKinds(t *testing.T) {
	tests := []struct {
		name    string
		ev      *Event
		display string
	}{
		{
			name:    "join",
			ev:      &Event{Kind: Join, Source: "vanilla", Timestamp: "09:00AM", Actor: "Sketch"},
			display: "[vanilla] [09:00AM] Sketch joined the server.",
		},
		{
			name:    "part",
			ev:      &Event{Kind: Part, Source: "vanilla", Timestamp: "09:05AM", Actor: "Sketch"},
			display: "[vanilla] [09:05AM] Sketch left the server.",
		},
		{
			name:    "ban",
			ev:      &Event{Kind: Ban, Source: "vanilla", Timestamp: "10:10PM", Actor: "Griefer99"},
			display: "[vanilla] [10:10PM] Griefer99 was banned from the server.",
		},
		{
			name:    "pardon",
			ev:      &Event{Kind: Ban, Reversed: true, Source: "vanilla", Timestamp: "11:00PM", Actor: "Griefer99"},
			display: "[vanilla] [11:00PM] Griefer99 was unbanned from the server.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display, command := Format(tt.ev)
			if display != tt.display {
				t.Errorf("display = %q, want %q", display, tt.display)
			}
			// Join/Part/Ban are display-only: no console fan-out.
			if command != "" {
				t.Errorf("command = %q, want empty", command)
			}
		})
	}
}

func TestInboundCommand(t *testing.T) {
	command := InboundCommand("discord", "Sketch", "hi from chat")

	if !strings.HasPrefix(command, "tellraw @a ") {
		t.Errorf("command %q is not a tellraw", command)
	}
	for _, want := range []string{"[discord] ", "<Sketch> ", "hi from chat"} {
		if !strings.Contains(command, want) {
			t.Errorf("command %q missing %q", command, want)
		}
	}
}
