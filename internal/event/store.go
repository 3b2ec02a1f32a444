package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when an event does not exist.
var ErrNotFound = errors.New("event not found")

// Store is the document store collaborator. Implementations return copies;
// callers may not mutate what a store holds.
type Store interface {
	// ListDiscoverable returns public events starting after now.
	ListDiscoverable(ctx context.Context, now time.Time) ([]Event, error)

	// ListByMember returns every event userID has joined.
	ListByMember(ctx context.Context, userID string) ([]Event, error)

	// Get returns one event or ErrNotFound.
	Get(ctx context.Context, id string) (*Event, error)

	// Put inserts or replaces an event after validating it.
	Put(ctx context.Context, e *Event) error

	// Subscribe returns a channel that receives a value whenever the stored
	// corpus changes. Notifications coalesce; the channel closes when ctx ends.
	Subscribe(ctx context.Context) <-chan struct{}
}

// InMemoryStore is a Store backed by a map. Used for development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string]*Event
	subs   map[chan struct{}]struct{}
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string]*Event),
		subs:   make(map[chan struct{}]struct{}),
	}
}

// ListDiscoverable implements Store. Results are ordered by start date, then id.
func (s *InMemoryStore) ListDiscoverable(_ context.Context, now time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.Discoverable(now) {
			out = append(out, *e.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

// ListByMember implements Store.
func (s *InMemoryStore) ListByMember(_ context.Context, userID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.IsMember(userID) {
			out = append(out, *e.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// Put implements Store.
func (s *InMemoryStore) Put(_ context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.ID] = e.Clone()
	// Subscribers are closed under the same lock, so sending here is safe.
	for ch := range s.subs {
		notify(ch)
	}
	return nil
}

// Subscribe implements Store.
func (s *InMemoryStore) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// notify performs a non-blocking send; a pending notification already covers
// any later change.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func sortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].StartDate.Before(events[j].StartDate)
		}
		return events[i].ID < events[j].ID
	})
}
