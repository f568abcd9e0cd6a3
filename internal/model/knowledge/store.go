package knowledge

import "strings"

// Store exposes keyword lookup over the knowledge table.
type Store interface {
	Lookup(query string) (Topic, bool)
	List() []Entry
}

// MemoryStore implements Store with an ordered in-memory slice. It is never
// mutated after construction, so concurrent readers need no locking.
type MemoryStore struct {
	items []Entry
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied entries.
// Keywords are lower-cased once here so Lookup only folds the query.
func NewMemoryStore(items []Entry) *MemoryStore {
	copied := make([]Entry, len(items))
	for i, item := range items {
		item.Keyword = strings.ToLower(strings.TrimSpace(item.Keyword))
		copied[i] = item
	}
	return &MemoryStore{items: copied}
}

// List returns the table in match order.
func (s *MemoryStore) List() []Entry {
	return append([]Entry(nil), s.items...)
}

// Lookup returns the topic of the first entry whose keyword occurs anywhere in
// the lower-cased query. There is no word-boundary check, so "pneumonia-like"
// matches "pneumonia".
func (s *MemoryStore) Lookup(query string) (Topic, bool) {
	lowered := strings.ToLower(query)
	for _, item := range s.items {
		if item.Keyword == "" {
			continue
		}
		if strings.Contains(lowered, item.Keyword) {
			return item.Topic, true
		}
	}
	return Topic{}, false
}
