package store

import (
	"sync"
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// Source identifies the channel that produced the current quotes.
type Source string

const (
	SourceNone Source = ""
	SourcePull Source = "pull"
	SourcePush Source = "push"
)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Quotes    []model.Quote `json:"quotes"`
	Loading   bool          `json:"loading"`
	Error     string        `json:"error,omitempty"`
	Source    Source        `json:"source,omitempty"`
	Version   uint64        `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Get returns the quote for symbol.
func (s Snapshot) Get(symbol string) (model.Quote, bool) {
	for _, q := range s.Quotes {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return model.Quote{}, false
}

// Symbols returns the quoted symbols in store order.
func (s Snapshot) Symbols() []string {
	out := make([]string, len(s.Quotes))
	for i, q := range s.Quotes {
		out[i] = q.Symbol
	}
	return out
}

// Store is a thread-safe quote table.
type Store struct {
	mu sync.RWMutex

	// Symbols in delivery order, indexing quotes.
	order  []string
	quotes map[string]model.Quote

	loading bool
	err     string
	source  Source

	// Incremented on every mutation.
	version   uint64
	updatedAt time.Time

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		quotes: make(map[string]model.Quote),
		now:    time.Now,
	}
}

// ApplyQuotes replaces the contents with exactly the quotes in batch and
// clears the loading and error flags. A symbol repeated within a batch keeps
// its first position and the value of its last occurrence.
func (s *Store) ApplyQuotes(batch []model.Quote, source Source) {
	order := make([]string, 0, len(batch))
	quotes := make(map[string]model.Quote, len(batch))
	for _, q := range batch {
		if _, seen := quotes[q.Symbol]; !seen {
			order = append(order, q.Symbol)
		}
		quotes[q.Symbol] = q
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = order
	s.quotes = quotes
	s.loading = false
	s.err = ""
	s.source = source
	s.touchLocked()
}

// SetError records a failed delivery. Quotes are kept and loading is cleared.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = msg
	s.loading = false
	s.touchLocked()
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading == loading {
		return
	}
	s.loading = loading
	s.touchLocked()
}

// Get returns the quote for symbol (read-locked).
func (s *Store) Get(symbol string) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	return q, ok
}

// Len returns the number of quoted symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a copy of the current contents (read-locked).
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]model.Quote, 0, len(s.order))
	for _, sym := range s.order {
		quotes = append(quotes, s.quotes[sym])
	}

	return Snapshot{
		Quotes:    quotes,
		Loading:   s.loading,
		Error:     s.err,
		Source:    s.source,
		Version:   s.version,
		UpdatedAt: s.updatedAt,
	}
}

// touchLocked records a mutation (caller must hold write lock).
func (s *Store) touchLocked() {
	s.version++
	s.updatedAt = s.now()
}
