package connection

import (
	"context"
	"sync"
)

type inMemoryStore struct {
	conns map[string]Connection
	lock  sync.RWMutex
}

func NewInMemoryStore(conns ...Connection) Store {
	store := &inMemoryStore{
		conns: make(map[string]Connection, len(conns)),
	}

	for _, conn := range conns {
		store.conns[conn.UserID] = conn
	}

	return store
}

func (s *inMemoryStore) FindConnection(_ context.Context, userID string) (Connection, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	conn, ok := s.conns[userID]

	return conn, ok, nil
}

func (s *inMemoryStore) SaveConnection(_ context.Context, conn Connection) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.conns[conn.UserID] = conn

	return nil
}

func (s *inMemoryStore) DeleteConnection(_ context.Context, userID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.conns, userID)

	return nil
}

func (s *inMemoryStore) Close() error {
	return nil
}
