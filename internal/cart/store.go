package cart

import (
	"context"
	"fmt"
	"sync"
)

// Persister saves and loads the cart under a fixed key.
type Persister interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

type Store struct {
	mu    sync.Mutex
	state State
	p     Persister
}

func NewStore(p Persister) *Store {
	return &Store{state: Empty(), p: p}
}

// Restore loads the persisted cart. A missing entry yields an empty cart.
func Restore(ctx context.Context, p Persister) (*Store, error) {
	s := NewStore(p)
	if p == nil {
		return s, nil
	}

	var st State
	ok, err := p.Get(ctx, StorageKey, &st)
	if err != nil {
		return nil, fmt.Errorf("restore cart: %w", err)
	}
	if ok {
		// totals are derived, never trusted from storage
		s.state = recompute(sanitize(st.Cart))
	}
	return s, nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// apply swaps in the new state first, then persists it. A persist error
// leaves the in-memory state changed.
func (s *Store) apply(ctx context.Context, f func(State) State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = f(s.state)
	if s.p == nil {
		return nil
	}
	if err := s.p.Set(ctx, StorageKey, s.state); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func (s *Store) AddToCart(ctx context.Context, item Item) error {
	return s.apply(ctx, func(st State) State { return st.Add(item) })
}

func (s *Store) RemoveFromCart(ctx context.Context, id uint) error {
	return s.apply(ctx, func(st State) State { return st.Remove(id) })
}

func (s *Store) UpdateQuantity(ctx context.Context, id uint, qty int) error {
	return s.apply(ctx, func(st State) State { return st.UpdateQuantity(id, qty) })
}

func (s *Store) ClearCart(ctx context.Context) error {
	return s.apply(ctx, func(st State) State { return st.Clear() })
}
