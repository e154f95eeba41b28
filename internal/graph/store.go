package graph

import (
	"context"
	"sync"
	"time"
)

// Store holds one graph per session id. Sessions are the JWT ids of logged-in users.
type Store struct {
	mu     sync.Mutex
	graphs map[string]*Graph
}

func NewStore() *Store {
	return &Store{graphs: map[string]*Graph{}}
}

// Session returns the graph of id, creating it on first use.
func (s *Store) Session(id string) *Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[id]
	if !ok {
		g = New()
		s.graphs[id] = g
	}
	return g
}

// Drop forgets a session, e.g. on logout.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	delete(s.graphs, id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.graphs)
}

// Expire removes graphs untouched for longer than idle.
func (s *Store) Expire(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, g := range s.graphs {
		g.mu.RLock()
		stale := g.touched.Before(cutoff)
		g.mu.RUnlock()
		if stale {
			delete(s.graphs, id)
			n++
		}
	}
	return n
}

// StartJanitor expires idle sessions every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval, idle time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Expire(idle)
			}
		}
	}()
}
