package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/set-night/mindvoice/internal/domain"
)

// Memory is an in-process record store. Saves can be made to fail for tests
// of the persistence error path.
type Memory struct {
	mu      sync.Mutex
	records map[string][]byte
	saveErr error
	saves   int
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[key] = slices.Clone(data)
	return nil
}

// FailSaves makes every following Save return err; nil restores success.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns how many Save calls were made.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error {
	return nil
}
