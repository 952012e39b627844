package deeplink

import "sync"

// ProcessedSet remembers the raw URLs already routed by one app instance,
// so duplicate platform deliveries do not navigate twice. It lives as long
// as the instance and is never reset.
type ProcessedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{urls: make(map[string]struct{})}
}

func (s *ProcessedSet) Contains(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[rawURL]
	return ok
}

// MarkIfAbsent adds rawURL and reports whether it was absent.
func (s *ProcessedSet) MarkIfAbsent(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[rawURL]; ok {
		return false
	}
	s.urls[rawURL] = struct{}{}
	return true
}

// forget undoes a mark whose dispatch failed.
func (s *ProcessedSet) forget(rawURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.urls, rawURL)
}

func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
