package console

import (
	"regexp"
	"strings"
)

// A pattern is one named line shape within a grammar. Patterns use named
// capture groups: server, time, user, message, advancement.
type pattern struct {
	name string
	re   *regexp.Regexp
}

// Grammar is the ordered set of patterns describing how one instance type
// formats its console lines. Patterns are tried in declaration order; the
// first structural match wins.
type Grammar struct {
	Dialect  string
	patterns []pattern
}

// grammars maps lower-cased instance identifiers to their dialect grammar.
// Adding a dialect is a data addition: declare the patterns and register
// them here, no parsing control flow changes.
var grammars = map[string]*Grammar{}

// Register installs g under the given instance identifier, replacing any
// previous registration. Identifiers match case-insensitively.
func Register(instanceID string, g *Grammar) {
	grammars[strings.ToLower(instanceID)] = g
}

// Lookup returns the grammar for an instance identifier, or nil when no
// dialect is registered for it.
func Lookup(instanceID string) *Grammar {
	return grammars[strings.ToLower(instanceID)]
}

// vanillaGrammar matches unmodded server logs:
//
//	[vanilla] [19:41:36] [Server thread/INFO]: <Sketch> Hello world!
var vanillaGrammar = &Grammar{
	Dialect: "vanilla",
	patterns: []pattern{
		{"message", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: <(?P<user>[^>]+)> (?P<message>.+)`)},
		{"join", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: (?P<user>\S+) joined the game`)},
		{"part", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: (?P<user>\S+) left the game`)},
		{"ban", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: Banned (?P<user>\S+)(?:: (?P<message>.+))?`)},
		{"pardon", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: Unbanned (?P<user>\S+)(?:: (?P<message>.+))?`)},
		{"advancement", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: (?P<user>\S+) has made the advancement \[(?P<advancement>[^\]]+)\]`)},
	},
}

// atm10Grammar matches modded server logs, which carry an extra bracketed
// thread/module tag before the payload:
//
//	[atm10] [19:41:36] [Server thread/INFO] [net.minecraft.server/]: <Sketch> hi
var atm10Grammar = &Grammar{
	Dialect: "atm10",
	patterns: []pattern{
		{"message", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\] \[[^/]+/[^\]]*\]: <(?P<user>[^>]+)> (?P<message>.+)`)},
		{"join", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\] \[[^/]+/[^\]]*\]: (?P<user>\S+) joined the game`)},
		{"part", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\] \[[^/]+/[^\]]*\]: (?P<user>\S+) left the game`)},
		{"ban", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\] \[[^/]+/[^\]]*\]: Banned (?P<user>\S+)(?:: (?P<message>.+))?`)},
		{"pardon", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\] \[[^/]+/[^\]]*\]: Unbanned (?P<user>\S+)(?:: (?P<message>.+))?`)},
		{"advancement", regexp.MustCompile(`^\[(?P<server>[^\]]+)\] \[(?P<time>\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\] \[[^/]+/[^\]]*\]: (?P<user>\S+) has made the advancement \[(?P<advancement>[^\]]+)\]`)},
	},
}

func init() {
	Register("vanilla", vanillaGrammar)
	Register("atm10", atm10Grammar)
}
