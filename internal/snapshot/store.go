// Package snapshot holds the latest applied price per symbol.
//
// The store is the only state mutated outside partition ownership. Writes
// are last-writer-wins per symbol, guarded by a strictly increasing
// sequence check, so stale or redelivered ticks never move a price
// backwards. Reads are safe from any partition.
package snapshot

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Entry is the latest applied price state for one symbol.
type Entry struct {
	Price     decimal.Decimal
	Sequence  uint64
	UpdatedAt time.Time
}

// Store keeps the latest price and sequence per symbol.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Apply updates the symbol's entry when the tick's sequence is strictly
// greater than the stored one. It returns false for stale ticks, which
// callers discard without error.
func (s *Store) Apply(tick schema.MarketTick) bool {
	if tick.Symbol == "" || !tick.Price.IsPositive() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[tick.Symbol]; ok && tick.Sequence <= cur.Sequence {
		return false
	}
	s.entries[tick.Symbol] = Entry{
		Price:     tick.Price,
		Sequence:  tick.Sequence,
		UpdatedAt: tick.Timestamp,
	}
	return true
}

// Price returns the latest applied entry for the symbol. ok is false when
// the symbol has never ticked.
func (s *Store) Price(symbol string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[symbol]
	return entry, ok
}

// Sequence returns the last applied sequence for the symbol, zero if none.
func (s *Store) Sequence(symbol string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[symbol].Sequence
}

// SymbolCount returns the number of symbols with an applied price.
func (s *Store) SymbolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
