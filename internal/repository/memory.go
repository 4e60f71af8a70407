package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/tgardela/event-manager/internal/model"
)

// MemoryStore keeps events, rosters and users in process memory. Each event
// has its own lock, so ModifyEvent serialises writers per event just like
// the row lock in EventRepository.ModifyEvent.
type MemoryStore struct {
	mu         sync.RWMutex
	events     map[string]*model.Event
	eventOrder []string
	eventLocks map[string]*sync.Mutex
	users      map[string]*model.User
	userOrder  []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[string]*model.Event),
		eventLocks: make(map[string]*sync.Mutex),
		users:      make(map[string]*model.User),
	}
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := e.Clone()
	s.events[e.ID] = stored
	s.eventOrder = append(s.eventOrder, e.ID)
	s.eventLocks[e.ID] = &sync.Mutex{}
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.present(e), nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, 0, len(s.eventOrder))
	for _, id := range s.eventOrder {
		events = append(events, *s.present(s.events[id]))
	}
	return events, nil
}

func (s *MemoryStore) ModifyEvent(_ context.Context, id string, fn MutateFunc) (*model.Event, error) {
	s.mu.RLock()
	lock, ok := s.eventLocks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	working := s.present(s.events[id])
	s.mu.RUnlock()

	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.events[id] = working.Clone()
	s.mu.Unlock()
	return working, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	stored := *u
	stored.CreatedEvents = nil
	s.users[u.ID] = &stored
	s.userOrder = append(s.userOrder, u.ID)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.presentUser(u), nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return s.presentUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		users = append(users, *s.presentUser(s.users[id]))
	}
	return users, nil
}

func (s *MemoryStore) UsersByIDs(_ context.Context, ids []string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			users = append(users, *s.presentUser(u))
		}
	}
	return users, nil
}

// present copies e and resolves the creator's username. Callers hold s.mu.
func (s *MemoryStore) present(e *model.Event) *model.Event {
	out := e.Clone()
	if u, ok := s.users[e.CreatorID]; ok {
		out.CreatedBy = u.Username
	}
	return out
}

// presentUser copies u and lists the events it created. Callers hold s.mu.
func (s *MemoryStore) presentUser(u *model.User) *model.User {
	out := *u
	out.CreatedEvents = []string{}
	for _, id := range s.eventOrder {
		if s.events[id].CreatorID == u.ID {
			out.CreatedEvents = append(out.CreatedEvents, id)
		}
	}
	return &out
}
