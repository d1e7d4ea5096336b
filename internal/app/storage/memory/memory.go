// Package memory provides the in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is the default backing for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/exchange"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/registry"
	"github.com/R3E-Network/exchange_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	pools        map[string]registry.PoolInfo
	poolOrder    []string
	poolsByAsset map[string][]string
	exchanges    map[string][]exchange.Record
	audits       []audit.Event
}

var _ storage.PoolStore = (*Store)(nil)
var _ storage.ExchangeStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		pools:        make(map[string]registry.PoolInfo),
		poolsByAsset: make(map[string][]string),
		exchanges:    make(map[string][]exchange.Record),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// PoolStore implementation ----------------------------------------------------

func (s *Store) CreatePoolInfo(_ context.Context, info registry.PoolInfo) (registry.PoolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info.ID == "" {
		info.ID = s.nextIDLocked()
	} else if _, exists := s.pools[info.ID]; exists {
		return registry.PoolInfo{}, fmt.Errorf("pool %s already exists", info.ID)
	}

	now := time.Now().UTC()
	info.CreatedAt = now
	info.UpdatedAt = now
	info.InitialRate = copyInt(info.InitialRate)

	s.pools[info.ID] = info
	s.poolOrder = append(s.poolOrder, info.ID)
	s.poolsByAsset[info.ReserveAsset] = append(s.poolsByAsset[info.ReserveAsset], info.ID)
	return clonePoolInfo(info), nil
}

func (s *Store) UpdatePoolInfo(_ context.Context, info registry.PoolInfo) (registry.PoolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.pools[info.ID]
	if !ok {
		return registry.PoolInfo{}, fmt.Errorf("pool %s not found", info.ID)
	}

	// Immutable columns survive updates.
	info.ReserveAsset = original.ReserveAsset
	info.InitialRate = copyInt(original.InitialRate)
	info.CreatedAt = original.CreatedAt
	info.UpdatedAt = time.Now().UTC()

	s.pools[info.ID] = info
	return clonePoolInfo(info), nil
}

func (s *Store) GetPoolInfo(_ context.Context, id string) (registry.PoolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.pools[id]
	if !ok {
		return registry.PoolInfo{}, fmt.Errorf("pool %s not found", id)
	}
	return clonePoolInfo(info), nil
}

func (s *Store) ListPoolInfos(_ context.Context) ([]registry.PoolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]registry.PoolInfo, 0, len(s.poolOrder))
	for _, id := range s.poolOrder {
		result = append(result, clonePoolInfo(s.pools[id]))
	}
	return result, nil
}

func (s *Store) ListPoolInfosByReserveAsset(_ context.Context, asset string) ([]registry.PoolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.poolsByAsset[asset]
	result := make([]registry.PoolInfo, 0, len(ids))
	for _, id := range ids {
		result = append(result, clonePoolInfo(s.pools[id]))
	}
	return result, nil
}

// ExchangeStore implementation ------------------------------------------------

func (s *Store) CreateExchangeRecord(_ context.Context, rec exchange.Record) (exchange.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.AmountIn = copyInt(rec.AmountIn)
	rec.AmountOut = copyInt(rec.AmountOut)
	rec.Rate = copyInt(rec.Rate)

	s.exchanges[rec.PoolID] = append(s.exchanges[rec.PoolID], rec)
	return cloneRecord(rec), nil
}

func (s *Store) ListExchangeRecords(_ context.Context, poolID string) ([]exchange.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.exchanges[poolID]
	result := make([]exchange.Record, 0, len(recs))
	for _, rec := range recs {
		result = append(result, cloneRecord(rec))
	}
	return result, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) CreateAuditEvent(_ context.Context, evt audit.Event) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.ID == "" {
		evt.ID = s.nextIDLocked()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	evt.Params = copyMap(evt.Params)

	s.audits = append(s.audits, evt)
	return cloneEvent(evt), nil
}

func (s *Store) ListAuditEvents(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.audits
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	result := make([]audit.Event, 0, len(events))
	for _, evt := range events {
		result = append(result, cloneEvent(evt))
	}
	return result, nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePoolInfo(info registry.PoolInfo) registry.PoolInfo {
	info.InitialRate = copyInt(info.InitialRate)
	return info
}

func cloneRecord(rec exchange.Record) exchange.Record {
	rec.AmountIn = copyInt(rec.AmountIn)
	rec.AmountOut = copyInt(rec.AmountOut)
	rec.Rate = copyInt(rec.Rate)
	return rec
}

func cloneEvent(evt audit.Event) audit.Event {
	evt.Params = copyMap(evt.Params)
	return evt
}
