package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// Store persists one cart per session. Load returns ErrCartNotFound for
// sessions that have no cart yet.
type Store interface {
	Load(ctx context.Context, sessionID string) (*domain.Cart, error)
	Save(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCartNotFound = errors.New("cart not found")

// MemoryStore keeps carts in process. Entries idle longer than ttl are dropped
// on access; a zero ttl keeps them forever.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	cart    domain.Cart
	savedAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		carts: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*domain.Cart, error) {
	s.mu.RLock()
	entry, ok := s.carts[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCartNotFound
	}
	if s.ttl > 0 && s.now().Sub(entry.savedAt) > s.ttl {
		s.mu.Lock()
		delete(s.carts, sessionID)
		s.mu.Unlock()
		return nil, ErrCartNotFound
	}
	cart := entry.cart.Snapshot()
	return &cart, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = memoryEntry{cart: cart.Snapshot(), savedAt: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}
