package console

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

var ansiSGR = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes SGR color/formatting escape sequences from a console
// line. Panels pass through the server's colored output verbatim.
func StripANSI(s string) string {
	return ansiSGR.ReplaceAllString(s, "")
}

// Parser turns raw console lines into typed Events using the grammar
// registered for each instance. Stateless apart from its logger; safe for
// concurrent use by multiple sessions.
type Parser struct {
	log   *slog.Logger
	debug bool
}

func NewParser(log *slog.Logger, debug bool) *Parser {
	return &Parser{log: log, debug: debug}
}

// Parse matches line against the grammar for instanceID. It returns the
// parsed event and true on a match. A line that matches no pattern, or
// whose embedded server tag names a different instance, yields (nil, false).
// An unregistered instance is logged and skipped, never fatal.
func (p *Parser) Parse(line, instanceID string) (*Event, bool) {
	id := strings.ToLower(instanceID)
	if id == "" {
		p.log.Warn("instance has no identifier, dropping line")
		return nil, false
	}

	g := Lookup(id)
	if g == nil {
		p.log.Warn("no grammar registered for instance", "instance", id)
		return nil, false
	}

	if p.debug {
		p.log.Debug("parsing console line", "instance", id, "line", line)
	}

	for _, pat := range g.patterns {
		m := pat.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		groups := captureGroups(pat.re, m)

		// A line can structurally match another dialect's shape by
		// coincidence. The tag embedded in the line must name this
		// instance or the match is discarded.
		if !strings.EqualFold(groups["server"], id) {
			continue
		}

		ev := &Event{
			Source:    id,
			Timestamp: normalizeTime(groups["time"]),
			Actor:     groups["user"],
			Raw:       line,
		}

		switch pat.name {
		case "message":
			ev.Kind = Chat
			ev.Payload = groups["message"]
		case "join":
			ev.Kind = Join
		case "part":
			ev.Kind = Part
		case "ban":
			ev.Kind = Ban
		case "pardon":
			ev.Kind = Ban
			ev.Reversed = true
		case "advancement":
			ev.Kind = Advancement
			ev.Payload = groups["advancement"]
		default:
			p.log.Error("grammar has pattern with unknown name", "pattern", pat.name, "dialect", g.Dialect)
			continue
		}

		return ev, true
	}

	return nil, false
}

func captureGroups(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}

// normalizeTime converts a 24-hour HH:MM:SS clock reading to 12-hour with
// an AM/PM suffix. Input that does not parse is returned unchanged; a bad
// timestamp never drops the event.
func normalizeTime(s string) string {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return s
	}
	return t.Format("03:04PM")
}
