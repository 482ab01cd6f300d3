package console

import (
	"encoding/json"
	"fmt"
)

// tellrawPart is one colored text segment of a tellraw command.
type tellrawPart struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

func tellraw(parts ...tellrawPart) string {
	b, _ := json.Marshal(parts)
	return "tellraw @a " + string(b) + "\n"
}

// Format renders an event as a human-readable display line and, for the
// kinds that fan out, a console command to inject on other instances.
//
// Join/Part/Ban return an empty command: they are display-only and are not
// rebroadcast, while Chat and Advancement are. That asymmetry matches the
// observed production behavior and is kept as-is pending product review.
func Format(ev *Event) (display, command string) {
	switch ev.Kind {
	case Chat:
		display = fmt.Sprintf("[%s] [%s] <%s> %s", ev.Source, ev.Timestamp, ev.Actor, ev.Payload)
		command = tellraw(
			tellrawPart{Text: fmt.Sprintf("[%s] ", ev.Source), Color: "red"},
			tellrawPart{Text: fmt.Sprintf("<%s> ", ev.Actor), Color: "blue"},
			tellrawPart{Text: ev.Payload, Color: "white"},
		)
	case Join:
		display = fmt.Sprintf("[%s] [%s] %s joined the server.", ev.Source, ev.Timestamp, ev.Actor)
	case Part:
		display = fmt.Sprintf("[%s] [%s] %s left the server.", ev.Source, ev.Timestamp, ev.Actor)
	case Ban:
		verb := "banned"
		if ev.Reversed {
			verb = "unbanned"
		}
		display = fmt.Sprintf("[%s] [%s] %s was %s from the server.", ev.Source, ev.Timestamp, ev.Actor, verb)
	case Advancement:
		display = fmt.Sprintf("[%s] [%s] %s got the advancement %s!", ev.Source, ev.Timestamp, ev.Actor, ev.Payload)
		command = tellraw(
			tellrawPart{Text: fmt.Sprintf("[mc:%s] ", ev.Source), Color: "red"},
			tellrawPart{Text: fmt.Sprintf("%s made the advancement: ", ev.Actor), Color: "blue"},
			tellrawPart{Text: ev.Payload, Color: "yellow"},
		)
	}
	return display, command
}

// InboundCommand renders a chat-bridge message as a console command for
// every instance, as if the message had originated on a console.
func InboundCommand(source, sender, text string) string {
	return tellraw(
		tellrawPart{Text: fmt.Sprintf("[%s] ", source), Color: "red"},
		tellrawPart{Text: fmt.Sprintf("<%s> ", sender), Color: "blue"},
		tellrawPart{Text: text, Color: "white"},
	)
}
