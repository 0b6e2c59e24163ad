package crawler

import (
	"sync"

	"linkharvest/internal/model"
)

// VisitedSet is a thread-safe membership store of normalized URLs.
// Once a URL is marked, no worker fetches it again for the lifetime of the
// crawl. Entries are never removed.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisitedSet creates an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// MarkVisited marks the URL as visited and reports whether this call was the
// first to do so. The check-and-set is atomic, which gives callers an
// at-most-once processing guarantee without external locking.
func (s *VisitedSet) MarkVisited(rawURL string) bool {
	key := model.NormalizeURL(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Seen reports whether the URL has been marked, without marking it.
// Used to keep already-visited URLs out of the frontier; the authoritative
// exactly-once check is still MarkVisited at processing time.
func (s *VisitedSet) Seen(rawURL string) bool {
	key := model.NormalizeURL(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[key]
	return ok
}

// Len returns the number of distinct URLs marked.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// ResultSet is a thread-safe, deduplicated collection of discovered target
// links, keyed by normalized target URL. It owns every link after
// extraction; gateway links mutate only through Resolve.
type ResultSet struct {
	mu    sync.Mutex
	index map[string]int
	links []model.TargetLink
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{index: make(map[string]int)}
}

// Add inserts the link if its normalized target URL has not been seen and
// reports whether it was inserted. Discovery order is preserved.
func (s *ResultSet) Add(link model.TargetLink) bool {
	key := link.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.links)
	s.links = append(s.links, link)
	return true
}

// Resolve transitions a gateway link to its resolved form: the entry keyed
// by gatewayURL gets the new target URL and kind, and its source becomes the
// gateway URL so the chain stays traceable. If the resolved target collides
// with a link already in the set, the gateway entry is dropped instead
// (the set never holds two entries with the same normalized target).
//
// It reports whether the entry was found. Resolving a key that was never
// added, or one that is not a gateway link, is a no-op returning false.
func (s *ResultSet) Resolve(gatewayURL string, resolvedURL string, kind model.LinkKind) bool {
	gatewayKey := model.NormalizeURL(gatewayURL)
	resolvedKey := model.NormalizeURL(resolvedURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[gatewayKey]
	if !ok || !s.links[i].Kind.NeedsResolution() {
		return false
	}

	if resolvedKey != gatewayKey {
		if _, exists := s.index[resolvedKey]; exists {
			// The real target was already discovered elsewhere; the
			// gateway entry is redundant.
			s.removeLocked(gatewayKey, i)
			return true
		}
	}

	s.links[i] = model.TargetLink{
		SourceURL: gatewayURL,
		TargetURL: resolvedURL,
		Kind:      kind,
	}
	delete(s.index, gatewayKey)
	s.index[resolvedKey] = i
	return true
}

// removeLocked deletes the entry at index i. Caller holds the lock.
func (s *ResultSet) removeLocked(key string, i int) {
	delete(s.index, key)
	s.links = append(s.links[:i], s.links[i+1:]...)
	for k, idx := range s.index {
		if idx > i {
			s.index[k] = idx - 1
		}
	}
}

// Links returns a snapshot of the collected links in discovery order.
func (s *ResultSet) Links() []model.TargetLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TargetLink, len(s.links))
	copy(out, s.links)
	return out
}

// Unresolved returns a snapshot of the links still needing gateway
// resolution.
func (s *ResultSet) Unresolved() []model.TargetLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TargetLink, 0)
	for _, l := range s.links {
		if l.Kind.NeedsResolution() {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the number of collected links.
func (s *ResultSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}
