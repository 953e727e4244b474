package workspace

import (
	"context"
	"sync"
)

// Store holds one State per user and serializes submissions per user.
type Store interface {
	Load(ctx context.Context, userID string) (State, bool, error)
	Save(ctx context.Context, st State) error
	// Lock fails fast with ErrBusy when the workspace is already locked.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
	locked map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]State),
		locked: make(map[string]bool),
	}
}

func (m *MemoryStore) Load(ctx context.Context, userID string) (State, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[userID]
	return st.clone(), ok, nil
}

func (m *MemoryStore) Save(ctx context.Context, st State) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.UserID] = st.clone()
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context, userID string) (func(), error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[userID] {
		return nil, ErrBusy
	}
	m.locked[userID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.locked, userID)
			m.mu.Unlock()
		})
	}, nil
}
