package live

import (
	"slices"
	"time"
)

// Entry is the liveness bookkeeping of one assignment.
type Entry struct {
	// LastFetchedAt is when the displayed value was last fetched.
	LastFetchedAt time.Time
	Callback      Callback
	Options       Options
	// Generation orders registry writes within the session.
	Generation int64
}

// Entry returns a copy of the registry entry for key.
func (s *Session) Entry(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.registry[key]
	if !ok {
		return Entry{}, false
	}
	cp := *e
	cp.Options.Subscribe = slices.Clone(e.Options.Subscribe)
	cp.Options.PrimaryKey = slices.Clone(e.Options.PrimaryKey)
	return cp, true
}

// commit writes the entry and the assignment for key together, so readers
// never observe one without the other.
func (s *Session) commit(key string, e Entry, r Result) Entry {
	e.Generation = s.gens.Next()

	s.mu.Lock()
	s.registry[key] = &e
	s.assigns[key] = r
	delete(s.deferred, key)
	s.mu.Unlock()

	if e.Options.AfterFetch != nil {
		e.Options.AfterFetch(r, s)
	}
	return e
}

// startInterval arms the periodic refetch of key, replacing any previous
// timer for it.
func (s *Session) startInterval(key string, d time.Duration) {
	stop := s.scheduler.SendInterval(d, Message{Signal: Refetch, Keys: []string{key}})

	s.mu.Lock()
	prev := s.intervals[key]
	s.intervals[key] = stop
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
}

func (s *Session) stopInterval(key string) {
	s.mu.Lock()
	stop := s.intervals[key]
	delete(s.intervals, key)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}
