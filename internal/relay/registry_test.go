package relay

import (
	"sync"
	"testing"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendCommand(cmd string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, cmd)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestRegisterAndLiveEntries(t *testing.T) {
	reg := NewRegistry()
	a := &recordingSender{}
	b := &recordingSender{}

	reg.Register("a", a)
	reg.Register("b", b)

	entries := reg.LiveEntries()
	if len(entries) != 2 {
		t.Fatalf("LiveEntries returned %d entries, want 2", len(entries))
	}
	if reg.LiveCount() != 2 {
		t.Errorf("LiveCount = %d, want 2", reg.LiveCount())
	}
}

func TestRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	old := &recordingSender{}
	fresh := &recordingSender{}

	reg.Register("a", old)
	reg.Register("a", fresh)

	entries := reg.LiveEntries()
	if len(entries) != 1 {
		t.Fatalf("LiveEntries returned %d entries after replace, want 1", len(entries))
	}
	if entries[0].Handle != ConsoleSender(fresh) {
		t.Error("LiveEntries returned the replaced handle")
	}
}

func TestRegisterCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Alpha", &recordingSender{})
	reg.Register("ALPHA", &recordingSender{})

	if got := reg.LiveCount(); got != 1 {
		t.Errorf("LiveCount = %d, want 1 (case-insensitive key)", got)
	}
	if entries := reg.LiveEntries(); len(entries) == 1 && entries[0].ID != "alpha" {
		t.Errorf("entry id = %q, want alpha", entries[0].ID)
	}
}

func TestMarkStaleHidesEntry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &recordingSender{})
	reg.MarkStale("a")

	if got := len(reg.LiveEntries()); got != 0 {
		t.Errorf("LiveEntries returned %d entries after MarkStale, want 0", got)
	}
	if reg.LiveCount() != 0 {
		t.Errorf("LiveCount = %d, want 0", reg.LiveCount())
	}
}

func TestMarkStaleUnknownID(t *testing.T) {
	reg := NewRegistry()
	reg.MarkStale("missing") // must not panic
}

func TestRegisterAfterStale(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &recordingSender{})
	reg.MarkStale("a")
	reg.Register("a", &recordingSender{})

	if got := len(reg.LiveEntries()); got != 1 {
		t.Errorf("LiveEntries returned %d entries after re-register, want 1", got)
	}
}

func TestLiveEntriesSnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &recordingSender{})

	entries := reg.LiveEntries()
	reg.MarkStale("a")
	reg.Register("b", &recordingSender{})

	// The snapshot taken before mutation is unchanged.
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Errorf("snapshot changed under mutation: %+v", entries)
	}
}

func TestConcurrentMutation(t *testing.T) {
	reg := NewRegistry()
	ids := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				reg.Register(id, &recordingSender{})
				reg.MarkStale(id)
			}
			reg.Register(id, &recordingSender{})
		}(id)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				reg.LiveEntries()
			}
		}
	}()

	wg.Wait()
	close(done)

	if got := reg.LiveCount(); got != len(ids) {
		t.Errorf("LiveCount = %d, want %d", got, len(ids))
	}
}
