package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/repository"
)

type recordStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

func newBadgerStore(t *testing.T) *repository.Badger {
	t.Helper()
	s, err := repository.NewBadger(repository.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordStores(t *testing.T) {
	stores := map[string]func(t *testing.T) recordStore{
		"badger": func(t *testing.T) recordStore { return newBadgerStore(t) },
		"memory": func(t *testing.T) recordStore { return repository.NewMemory() },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)

			if _, err := s.Load(ctx, "missing"); !errors.Is(err, domain.ErrRecordNotFound) {
				t.Fatalf("Load missing: got %v, want ErrRecordNotFound", err)
			}

			if err := s.Save(ctx, "k", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, "k", []byte(`{"a":2}`)); err != nil {
				t.Fatalf("Save overwrite: %v", err)
			}
			got, err := s.Load(ctx, "k")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(got) != `{"a":2}` {
				t.Fatalf("Load = %q, want overwritten value", got)
			}
		})
	}
}

func TestBadgerRequiresDir(t *testing.T) {
	if _, err := repository.NewBadger(repository.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}

func TestMemoryFailSaves(t *testing.T) {
	ctx := context.Background()
	m := repository.NewMemory()
	boom := errors.New("disk full")
	m.FailSaves(boom)
	if err := m.Save(ctx, "k", []byte("v")); !errors.Is(err, boom) {
		t.Fatalf("Save = %v, want %v", err, boom)
	}
	if _, err := m.Load(ctx, "k"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("failed save must not store: %v", err)
	}
	if m.Saves() != 1 {
		t.Fatalf("Saves = %d, want 1", m.Saves())
	}
}
