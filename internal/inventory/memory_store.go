package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
)

const (
	// KeyTTL is how long an applied idempotency key is remembered.
	KeyTTL = 24 * time.Hour

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = time.Minute
)

// MemoryStore implements Inventory over a local catalog's stock counts and
// keeps the history ledger in memory.
type MemoryStore struct {
	stock catalog.StockAdjuster

	mu      sync.Mutex
	history map[string][]domain.StockHistoryEntry // productID -> entries, oldest first
	applied map[string]time.Time                  // idempotency key -> applied at
	nextID  int64
	now     func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore(stock catalog.StockAdjuster) *MemoryStore {
	s := &MemoryStore{
		stock:       stock,
		history:     make(map[string][]domain.StockHistoryEntry),
		applied:     make(map[string]time.Time),
		nextID:      1,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireKeys()
		case <-s.stopCleanup:
			return
		}
	}
}

// expireKeys forgets idempotency keys older than KeyTTL.
func (s *MemoryStore) expireKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-KeyTTL)
	for key, at := range s.applied {
		if at.Before(cutoff) {
			delete(s.applied, key)
		}
	}
}

func (s *MemoryStore) AddStock(ctx context.Context, req domain.StockRequest) error {
	return s.apply(ctx, req, domain.StockAdd, req.Quantity)
}

func (s *MemoryStore) RemoveStock(ctx context.Context, req domain.StockRequest) error {
	return s.apply(ctx, req, domain.StockDeduct, -req.Quantity)
}

// apply adjusts stock and records history under one lock so a key is
// checked and marked atomically. Failed attempts do not consume the key.
func (s *MemoryStore) apply(ctx context.Context, req domain.StockRequest, kind domain.StockChange, delta int) error {
	if req.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		if _, done := s.applied[req.IdempotencyKey]; done {
			return nil
		}
	}

	if _, err := s.stock.AdjustStock(ctx, req.ProductID, delta); err != nil {
		return err
	}

	actor := req.Actor
	if actor == "" {
		actor = ActorSystem
	}
	now := s.now()
	s.history[req.ProductID] = append(s.history[req.ProductID], domain.StockHistoryEntry{
		ID:          s.nextID,
		ProductID:   req.ProductID,
		Type:        kind,
		Quantity:    delta,
		Date:        now,
		PerformedBy: actor,
		Notes:       req.Notes,
	})
	s.nextID++
	if req.IdempotencyKey != "" {
		s.applied[req.IdempotencyKey] = now
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, productID string) ([]domain.StockHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.StockHistoryEntry, len(s.history[productID]))
	copy(entries, s.history[productID])
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
