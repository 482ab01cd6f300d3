package relay

import (
	"strings"
	"sync"
)

// ConsoleSender is the opaque live-connection handle a session registers.
// Implementations send one console command to their instance.
type ConsoleSender interface {
	SendCommand(cmd string) error
}

// Entry is one live connection as seen by the broadcaster.
type Entry struct {
	ID     string
	Handle ConsoleSender
}

type entry struct {
	handle ConsoleSender
	live   bool
}

// Registry maps instance identifiers to live outbound handles. It is the
// only state shared between sessions and the broadcaster: sessions call
// Register/MarkStale from their own goroutines while the broadcaster
// snapshots live entries concurrently.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register installs handle as the live connection for id, atomically
// replacing any prior entry. Identifiers are case-insensitive.
func (r *Registry) Register(id string, handle ConsoleSender) {
	key := strings.ToLower(id)
	r.mu.Lock()
	r.entries[key] = &entry{handle: handle, live: true}
	r.mu.Unlock()
}

// MarkStale records that the connection for id is no longer usable. A stale
// entry is never handed to the broadcaster; the next Register for the same
// id replaces it.
func (r *Registry) MarkStale(id string) {
	key := strings.ToLower(id)
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		e.live = false
	}
	r.mu.Unlock()
}

// LiveEntries returns a snapshot of the currently live connections.
// Mutation after the snapshot is taken does not affect the returned slice.
func (r *Registry) LiveEntries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Entry, 0, len(r.entries))
	for id, e := range r.entries {
		if e.live {
			result = append(result, Entry{ID: id, Handle: e.handle})
		}
	}
	return result
}

// LiveCount reports the number of live connections.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.live {
			n++
		}
	}
	return n
}
