// Package registry manages pool lifecycle: creation, capability grants,
// enable/disable toggles, and the indexes exchange clients discover pools
// through. The registry is never on the exchange hot path.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/exchange"
	domain "github.com/R3E-Network/exchange_layer/internal/app/domain/registry"
	"github.com/R3E-Network/exchange_layer/internal/app/metrics"
	auditsvc "github.com/R3E-Network/exchange_layer/internal/app/services/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/services/pool"
	"github.com/R3E-Network/exchange_layer/internal/app/storage"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidPool     = errors.New("unknown pool")
	ErrAlreadyDisabled = errors.New("pool already disabled")
	ErrAlreadyEnabled  = errors.New("pool already enabled")
)

// Ledger is the slice of the supply authority the registry needs: the
// mint/burn capability it hands to pools, plus grant management and supply
// reads for aggregate views.
type Ledger interface {
	pool.SupplyLedger
	GrantMinter(ctx context.Context, caller, principal string) error
	RevokeMinter(ctx context.Context, caller, principal string) error
	UnitAsset() string
	TotalSupply() *big.Int
}

// Service creates, indexes, and toggles pools. Snapshot rows persist through
// the pool store; live pool state is always read from the pool itself.
type Service struct {
	admin   string
	ledger  Ledger
	assets  pool.AssetBank
	store   storage.PoolStore
	records storage.ExchangeStore
	audit   *auditsvc.Service
	log     *logger.Logger

	mu    sync.RWMutex
	pools map[string]*pool.Pool
	order []string
}

// New constructs the registry with its administrator principal.
func New(admin string, ledger Ledger, assets pool.AssetBank, store storage.PoolStore, records storage.ExchangeStore, auditSvc *auditsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		admin:   admin,
		ledger:  ledger,
		assets:  assets,
		store:   store,
		records: records,
		audit:   auditSvc,
		log:     log,
		pools:   make(map[string]*pool.Pool),
	}
}

// Admin returns the registry administrator principal.
func (s *Service) Admin() string { return s.admin }

// CreatePool constructs a pool for the reserve asset, grants it the minter
// capability, and registers it in the indexes. The grant happens before the
// pool becomes discoverable so a registered pool is always functional.
func (s *Service) CreatePool(ctx context.Context, caller, reserveAsset string, rate, minBuy, minRedeem *big.Int) (*pool.Pool, error) {
	if caller != s.admin {
		return nil, fmt.Errorf("create pool by %s: %w", caller, ErrUnauthorized)
	}
	if reserveAsset == "" {
		return nil, fmt.Errorf("reserve asset required: %w", ErrInvalidArgument)
	}
	if reserveAsset == s.ledger.UnitAsset() {
		return nil, fmt.Errorf("reserve asset equals issued unit: %w", ErrInvalidArgument)
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, fmt.Errorf("exchange rate must be positive: %w", ErrInvalidArgument)
	}

	id := uuid.NewString()
	p, err := pool.New(pool.Config{
		ID:           id,
		ReserveAsset: reserveAsset,
		UnitAsset:    s.ledger.UnitAsset(),
		Admin:        s.admin,
		ExchangeRate: rate,
		MinBuy:       minBuy,
		MinRedeem:    minRedeem,
		Ledger:       s.ledger,
		Assets:       s.assets,
		Records:      s.records,
		Audit:        s.audit,
		Log:          s.log.WithField("pool_id", id),
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledger.GrantMinter(ctx, s.admin, id); err != nil {
		return nil, fmt.Errorf("grant minter capability: %w", err)
	}

	info := domain.PoolInfo{
		ID:           id,
		ReserveAsset: reserveAsset,
		Admin:        s.admin,
		InitialRate:  new(big.Int).Set(rate),
		Active:       true,
	}
	if _, err := s.store.CreatePoolInfo(ctx, info); err != nil {
		if rerr := s.ledger.RevokeMinter(ctx, s.admin, id); rerr != nil {
			s.log.WithError(rerr).WithField("pool_id", id).
				Error("capability revoke failed after registration failure")
		}
		return nil, fmt.Errorf("register pool: %w", err)
	}

	s.mu.Lock()
	s.pools[id] = p
	s.order = append(s.order, id)
	s.mu.Unlock()

	metrics.RecordPoolCreated()
	s.log.WithField("pool_id", id).WithField("reserve_asset", reserveAsset).
		WithField("rate", rate.String()).Info("pool created")
	if s.audit != nil {
		s.audit.Record(ctx, audit.OpPoolCreate, caller, id, map[string]string{
			"reserve_asset": reserveAsset,
			"rate":          rate.String(),
		})
	}
	return p, nil
}

// GetPool returns the live pool engine for an ID.
func (s *Service) GetPool(id string) (*pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", id, ErrInvalidPool)
	}
	return p, nil
}

// DisablePool marks a pool inactive and pauses it. Disabling an inactive
// pool fails.
func (s *Service) DisablePool(ctx context.Context, caller, id string) error {
	if caller != s.admin {
		return fmt.Errorf("disable by %s: %w", caller, ErrUnauthorized)
	}
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	info, err := s.store.GetPoolInfo(ctx, id)
	if err != nil {
		return fmt.Errorf("pool %s: %w", id, ErrInvalidPool)
	}
	if !info.Active {
		return fmt.Errorf("pool %s: %w", id, ErrAlreadyDisabled)
	}

	// The pool may already be paused through its own admin surface; the
	// registry flag flip is the operation that must not be redundant. The
	// pause is issued as the pool's current admin so the kill switch still
	// works after an ownership transfer.
	if err := p.Pause(ctx, p.Admin()); err != nil && !errors.Is(err, pool.ErrAlreadyPaused) {
		return err
	}

	info.Active = false
	if _, err := s.store.UpdatePoolInfo(ctx, info); err != nil {
		return fmt.Errorf("update pool snapshot: %w", err)
	}

	s.log.WithField("pool_id", id).Warn("pool disabled")
	if s.audit != nil {
		s.audit.Record(ctx, audit.OpPoolDisable, caller, id, nil)
	}
	return nil
}

// EnablePool marks a pool active and unpauses it. Enabling an active pool
// fails.
func (s *Service) EnablePool(ctx context.Context, caller, id string) error {
	if caller != s.admin {
		return fmt.Errorf("enable by %s: %w", caller, ErrUnauthorized)
	}
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	info, err := s.store.GetPoolInfo(ctx, id)
	if err != nil {
		return fmt.Errorf("pool %s: %w", id, ErrInvalidPool)
	}
	if info.Active {
		return fmt.Errorf("pool %s: %w", id, ErrAlreadyEnabled)
	}

	if err := p.Unpause(ctx, p.Admin()); err != nil && !errors.Is(err, pool.ErrNotPaused) {
		return err
	}

	info.Active = true
	if _, err := s.store.UpdatePoolInfo(ctx, info); err != nil {
		return fmt.Errorf("update pool snapshot: %w", err)
	}

	s.log.WithField("pool_id", id).Info("pool enabled")
	if s.audit != nil {
		s.audit.Record(ctx, audit.OpPoolEnable, caller, id, nil)
	}
	return nil
}

// AddMerchantToPool delegates merchant registration to the pool.
func (s *Service) AddMerchantToPool(ctx context.Context, caller, id, merchant string) error {
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	return p.AddMerchant(ctx, caller, merchant)
}

// RemoveMerchantFromPool delegates merchant removal to the pool.
func (s *Service) RemoveMerchantFromPool(ctx context.Context, caller, id, merchant string) error {
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	return p.RemoveMerchant(ctx, caller, merchant)
}

// UpdatePoolExchangeRate delegates a rate change to the pool. The registry
// snapshot keeps only the creation-time rate; the live rate is read from the
// pool, so no second copy can drift.
func (s *Service) UpdatePoolExchangeRate(ctx context.Context, caller, id string, rate *big.Int) error {
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	return p.SetExchangeRate(ctx, caller, rate)
}

// UpdatePoolMinimums delegates a dust-floor change to the pool.
func (s *Service) UpdatePoolMinimums(ctx context.Context, caller, id string, minBuy, minRedeem *big.Int) error {
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	return p.SetMinimums(ctx, caller, minBuy, minRedeem)
}

// TransferPoolOwnership delegates an admin change to the pool and mirrors the
// new administrator into the snapshot row.
func (s *Service) TransferPoolOwnership(ctx context.Context, caller, id, newAdmin string) error {
	p, err := s.GetPool(id)
	if err != nil {
		return err
	}
	if err := p.TransferOwnership(ctx, caller, newAdmin); err != nil {
		return err
	}

	info, err := s.store.GetPoolInfo(ctx, id)
	if err != nil {
		return fmt.Errorf("pool %s: %w", id, ErrInvalidPool)
	}
	info.Admin = newAdmin
	if _, err := s.store.UpdatePoolInfo(ctx, info); err != nil {
		return fmt.Errorf("update pool snapshot: %w", err)
	}
	return nil
}

// GetPoolInfo returns the snapshot row for a pool.
func (s *Service) GetPoolInfo(ctx context.Context, id string) (domain.PoolInfo, error) {
	info, err := s.store.GetPoolInfo(ctx, id)
	if err != nil {
		return domain.PoolInfo{}, fmt.Errorf("pool %s: %w", id, ErrInvalidPool)
	}
	return info, nil
}

// GetAllPools returns every snapshot row ever created, in creation order.
func (s *Service) GetAllPools(ctx context.Context) ([]domain.PoolInfo, error) {
	return s.store.ListPoolInfos(ctx)
}

// GetPoolsByReserveAsset returns snapshot rows for pools custodying the
// asset, in creation order.
func (s *Service) GetPoolsByReserveAsset(ctx context.Context, asset string) ([]domain.PoolInfo, error) {
	return s.store.ListPoolInfosByReserveAsset(ctx, asset)
}

// ListExchangeRecords returns the exchange history of one pool in creation
// order.
func (s *Service) ListExchangeRecords(ctx context.Context, poolID string) ([]exchange.Record, error) {
	if _, err := s.GetPool(poolID); err != nil {
		return nil, err
	}
	return s.records.ListExchangeRecords(ctx, poolID)
}

// GetSystemStats aggregates supply and exchange counters across all pools.
// The active count is recomputed from snapshot flags on every call.
func (s *Service) GetSystemStats(ctx context.Context) (domain.SystemStats, error) {
	infos, err := s.store.ListPoolInfos(ctx)
	if err != nil {
		return domain.SystemStats{}, err
	}

	stats := domain.SystemStats{
		TotalPools:    len(infos),
		TotalSupply:   s.ledger.TotalSupply(),
		TotalBought:   new(big.Int),
		TotalRedeemed: new(big.Int),
	}
	for _, info := range infos {
		if info.Active {
			stats.ActivePools++
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		ps := s.pools[id].Stats()
		stats.TotalBought.Add(stats.TotalBought, ps.TotalBought)
		stats.TotalRedeemed.Add(stats.TotalRedeemed, ps.TotalRedeemed)
		stats.BuyCount += ps.BuyCount
		stats.RedeemCount += ps.RedeemCount
	}
	return stats, nil
}
