package identity

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultHistoryCap bounds per-identity history; oldest turns are
// evicted first once the cap is reached.
const DefaultHistoryCap = 20

// Backend is the durable image of the store. Save must be atomic from
// the perspective of a concurrent reader: a crash mid-save never leaves
// a partially written record visible to the next Load.
type Backend interface {
	Load() (map[string]*Record, error)
	Save(records map[string]*Record) error
}

// Store holds every IdentityRecord behind a single coarse mutex. Each
// mutating method is one atomic resolve-mutate-persist sequence; a
// failed persist is logged and counted but never fails the mutation,
// preferring availability over durability for a single write.
type Store struct {
	mu           sync.Mutex
	records      map[string]*Record
	backend      Backend
	historyCap   int
	saveFailures atomic.Uint64
}

// NewStore loads the backend image into memory. An absent or corrupt
// backing store yields an empty store rather than a startup failure.
func NewStore(backend Backend, historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	records, err := backend.Load()
	if err != nil {
		slog.Warn("identity: backing store unreadable, starting empty", "err", err)
		records = nil
	}
	if records == nil {
		records = make(map[string]*Record)
	}
	return &Store{
		records:    records,
		backend:    backend,
		historyCap: historyCap,
	}
}

// Resolve returns a snapshot of the record for key, creating it with a
// freshly allocated id on first contact. Creation and id allocation
// happen under the same lock, so concurrent first contacts from
// distinct keys can never collide on an id.
func (s *Store) Resolve(key string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(key).Clone()
}

func (s *Store) resolveLocked(key string) *Record {
	if rec, ok := s.records[key]; ok {
		return rec
	}
	rec := &Record{
		ID:        s.nextIDLocked(),
		CallerKey: key,
		History:   []Turn{},
	}
	s.records[key] = rec
	s.persistLocked()
	return rec
}

// nextIDLocked allocates 1 + the maximum id currently present. Resets
// never free ids, so allocation stays strictly increasing.
func (s *Store) nextIDLocked() int64 {
	var max int64
	for _, rec := range s.records {
		if rec.ID > max {
			max = rec.ID
		}
	}
	return max + 1
}

// Reset clears the display name and history in place, preserving id and
// caller key. Unknown keys are a silent no-op.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return
	}
	rec.DisplayName = ""
	rec.History = []Turn{}
	s.persistLocked()
}

// SetName assigns the display name only when it is currently unset and
// reports whether the assignment occurred, along with the name now on
// record. First write wins; later attempts are informational.
func (s *Store) SetName(key, name string) (assigned bool, current string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.resolveLocked(key)
	if rec.DisplayName != "" {
		return false, rec.DisplayName
	}
	rec.DisplayName = name
	s.persistLocked()
	return true, name
}

// Append adds turns to the record's history, evicting oldest-first past
// the cap, and persists.
func (s *Store) Append(key string, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.resolveLocked(key)
	rec.History = append(rec.History, turns...)
	if over := len(rec.History) - s.historyCap; over > 0 {
		rec.History = rec.History[over:]
	}
	s.persistLocked()
}

// Count returns the number of known identities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SaveFailures returns how many persist attempts have failed since
// startup; surfaced on the health endpoint so failed saves are never
// invisible to an operator.
func (s *Store) SaveFailures() uint64 {
	return s.saveFailures.Load()
}

func (s *Store) persistLocked() {
	if err := s.backend.Save(s.records); err != nil {
		s.saveFailures.Add(1)
		slog.Error("identity: persist failed", "err", err, "records", len(s.records))
	}
}
