// Package pool implements the exchange engine: custody of one reserve asset
// traded against the issued unit at an administrator-set rate.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/exchange"
	"github.com/R3E-Network/exchange_layer/internal/app/metrics"
	auditsvc "github.com/R3E-Network/exchange_layer/internal/app/services/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/storage"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrBelowMinimum          = errors.New("amount below configured minimum")
	ErrZeroOutput            = errors.New("computed output rounds to zero")
	ErrInsufficientLiquidity = errors.New("insufficient reserve liquidity")
	ErrReentrantCall         = errors.New("operation already in progress")
	ErrPoolPaused            = errors.New("pool paused")
	ErrAlreadyPaused         = errors.New("pool already paused")
	ErrNotPaused             = errors.New("pool not paused")
	ErrAlreadyMerchant       = errors.New("merchant already registered")
	ErrNotMerchant           = errors.New("merchant not registered")
	ErrProtectedAsset        = errors.New("asset cannot be recovered")
)

// RateScale is the fixed-point scale of exchange rates: an exchange rate of
// 1 * RateScale means one issued unit per scaled reserve unit.
var RateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// AssetBank is the slice of the transfer primitive a pool needs: balance
// reads and atomic, allowance-gated moves.
type AssetBank interface {
	BalanceOf(asset, account string) *big.Int
	Transfer(asset, from, to string, amount *big.Int) error
	TransferFrom(asset, spender, owner, to string, amount *big.Int) error
}

// SupplyLedger is the mint/burn capability a pool holds against the supply
// authority. The pool never sees broader ledger access.
type SupplyLedger interface {
	Mint(ctx context.Context, caller, to string, amount *big.Int) error
	Burn(ctx context.Context, caller, from string, amount *big.Int) error
}

// Config carries pool construction parameters.
type Config struct {
	ID           string
	ReserveAsset string
	UnitAsset    string
	Admin        string
	ExchangeRate *big.Int
	MinBuy       *big.Int
	MinRedeem    *big.Int

	Ledger  SupplyLedger
	Assets  AssetBank
	Records storage.ExchangeStore
	Audit   *auditsvc.Service
	Log     *logger.Logger
}

// Stats is a point-in-time snapshot of a pool's accounting counters.
type Stats struct {
	TotalBought    *big.Int
	TotalRedeemed  *big.Int
	BuyCount       uint64
	RedeemCount    uint64
	ReserveBalance *big.Int
}

// Pool is an exchange engine bound to exactly one reserve asset. Exchange
// operations are serialized by an in-progress latch: any mutating call that
// overlaps another, including a reentrant call made by an asset
// implementation during a transfer, fails with ErrReentrantCall instead of
// observing intermediate state.
type Pool struct {
	id           string
	reserveAsset string
	unitAsset    string

	ledger  SupplyLedger
	assets  AssetBank
	records storage.ExchangeStore
	audit   *auditsvc.Service
	log     *logger.Logger

	inFlight atomic.Bool

	mu            sync.RWMutex
	admin         string
	rate          *big.Int
	minBuy        *big.Int
	minRedeem     *big.Int
	merchants     map[string]struct{}
	totalBought   *big.Int
	totalRedeemed *big.Int
	buyCount      uint64
	redeemCount   uint64
	paused        bool
}

// New constructs a pool in the Active state.
func New(cfg Config) (*Pool, error) {
	if cfg.ID == "" || cfg.ReserveAsset == "" || cfg.UnitAsset == "" || cfg.Admin == "" {
		return nil, fmt.Errorf("pool identity: %w", ErrInvalidArgument)
	}
	if cfg.ReserveAsset == cfg.UnitAsset {
		return nil, fmt.Errorf("reserve asset equals issued unit: %w", ErrInvalidArgument)
	}
	if cfg.ExchangeRate == nil || cfg.ExchangeRate.Sign() <= 0 {
		return nil, fmt.Errorf("exchange rate must be positive: %w", ErrInvalidArgument)
	}
	if cfg.Ledger == nil || cfg.Assets == nil {
		return nil, fmt.Errorf("pool dependencies: %w", ErrInvalidArgument)
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("pool").WithField("pool_id", cfg.ID)
	}

	minBuy := new(big.Int)
	if cfg.MinBuy != nil {
		if cfg.MinBuy.Sign() < 0 {
			return nil, fmt.Errorf("min buy: %w", ErrInvalidArgument)
		}
		minBuy.Set(cfg.MinBuy)
	}
	minRedeem := new(big.Int)
	if cfg.MinRedeem != nil {
		if cfg.MinRedeem.Sign() < 0 {
			return nil, fmt.Errorf("min redeem: %w", ErrInvalidArgument)
		}
		minRedeem.Set(cfg.MinRedeem)
	}

	return &Pool{
		id:            cfg.ID,
		reserveAsset:  cfg.ReserveAsset,
		unitAsset:     cfg.UnitAsset,
		ledger:        cfg.Ledger,
		assets:        cfg.Assets,
		records:       cfg.Records,
		audit:         cfg.Audit,
		log:           cfg.Log,
		admin:         cfg.Admin,
		rate:          new(big.Int).Set(cfg.ExchangeRate),
		minBuy:        minBuy,
		minRedeem:     minRedeem,
		merchants:     make(map[string]struct{}),
		totalBought:   new(big.Int),
		totalRedeemed: new(big.Int),
	}, nil
}

// ID returns the pool's principal identity.
func (p *Pool) ID() string { return p.id }

// ReserveAsset returns the custodied reserve asset's identity.
func (p *Pool) ReserveAsset() string { return p.reserveAsset }

// Admin returns the pool's administrator principal.
func (p *Pool) Admin() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.admin
}

// ExchangeRate returns the current rate (issued units per scaled reserve
// unit, RateScale fixed point).
func (p *Pool) ExchangeRate() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.rate)
}

// MinBuy returns the buy dust floor.
func (p *Pool) MinBuy() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.minBuy)
}

// MinRedeem returns the redeem dust floor.
func (p *Pool) MinRedeem() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.minRedeem)
}

// Paused reports whether exchange operations are rejected.
func (p *Pool) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// IsMerchant reports whether the principal may redeem through this pool.
func (p *Pool) IsMerchant(principal string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.merchants[principal]
	return ok
}

// Merchants returns the registered merchant principals.
func (p *Pool) Merchants() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.merchants))
	for m := range p.merchants {
		out = append(out, m)
	}
	return out
}

// ReserveBalance returns the reserve asset amount currently custodied.
func (p *Pool) ReserveBalance() *big.Int {
	return p.assets.BalanceOf(p.reserveAsset, p.id)
}

// Stats returns the pool's accounting counters and current reserve balance.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	stats := Stats{
		TotalBought:   new(big.Int).Set(p.totalBought),
		TotalRedeemed: new(big.Int).Set(p.totalRedeemed),
		BuyCount:      p.buyCount,
		RedeemCount:   p.redeemCount,
	}
	p.mu.RUnlock()
	stats.ReserveBalance = p.ReserveBalance()
	return stats
}

// QuoteBuy computes the issued units a buy of reserveIn would produce, using
// the same floors and rounding as Buy.
func (p *Pool) QuoteBuy(reserveIn *big.Int) (*big.Int, error) {
	if reserveIn == nil || reserveIn.Sign() <= 0 {
		return nil, ErrInvalidArgument
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return quoteBuyLocked(reserveIn, p.rate, p.minBuy)
}

// QuoteRedeem computes the reserve amount a redeem of unitsIn would release,
// using the same floors and rounding as Redeem.
func (p *Pool) QuoteRedeem(unitsIn *big.Int) (*big.Int, error) {
	if unitsIn == nil || unitsIn.Sign() <= 0 {
		return nil, ErrInvalidArgument
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return quoteRedeemLocked(unitsIn, p.rate, p.minRedeem)
}

func quoteBuyLocked(reserveIn, rate, minBuy *big.Int) (*big.Int, error) {
	if reserveIn.Cmp(minBuy) < 0 {
		return nil, fmt.Errorf("buy of %s under floor %s: %w", reserveIn, minBuy, ErrBelowMinimum)
	}
	out := new(big.Int).Mul(reserveIn, rate)
	out.Div(out, RateScale)
	if out.Sign() == 0 {
		return nil, ErrZeroOutput
	}
	return out, nil
}

func quoteRedeemLocked(unitsIn, rate, minRedeem *big.Int) (*big.Int, error) {
	if unitsIn.Cmp(minRedeem) < 0 {
		return nil, fmt.Errorf("redeem of %s under floor %s: %w", unitsIn, minRedeem, ErrBelowMinimum)
	}
	out := new(big.Int).Mul(unitsIn, RateScale)
	out.Div(out, rate)
	if out.Sign() == 0 {
		return nil, ErrZeroOutput
	}
	return out, nil
}

// Buy exchanges reserveIn of the reserve asset for freshly minted issued
// units. The caller must have approved the pool to spend reserveIn. Reserve
// custody is taken before the mint so supply never increases without a
// deposit already in hand.
func (p *Pool) Buy(ctx context.Context, caller string, reserveIn *big.Int) (*big.Int, error) {
	if caller == "" || reserveIn == nil || reserveIn.Sign() <= 0 {
		return nil, ErrInvalidArgument
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.exit()

	p.mu.RLock()
	paused := p.paused
	rate := new(big.Int).Set(p.rate)
	minBuy := new(big.Int).Set(p.minBuy)
	p.mu.RUnlock()

	if paused {
		return nil, ErrPoolPaused
	}
	unitsOut, err := quoteBuyLocked(reserveIn, rate, minBuy)
	if err != nil {
		return nil, err
	}

	if err := p.assets.TransferFrom(p.reserveAsset, p.id, caller, p.id, reserveIn); err != nil {
		return nil, fmt.Errorf("take reserve custody: %w", err)
	}
	if err := p.ledger.Mint(ctx, p.id, caller, unitsOut); err != nil {
		if rerr := p.assets.Transfer(p.reserveAsset, p.id, caller, reserveIn); rerr != nil {
			p.log.WithError(rerr).WithField("caller", caller).
				Error("reserve refund failed after mint failure")
		}
		return nil, fmt.Errorf("mint: %w", err)
	}

	p.mu.Lock()
	p.totalBought.Add(p.totalBought, unitsOut)
	p.buyCount++
	p.mu.Unlock()

	metrics.RecordBuy(p.id, unitsOut)
	p.persistRecord(ctx, exchange.KindBuy, caller, reserveIn, unitsOut, rate)
	p.recordAudit(ctx, audit.OpBuy, caller, map[string]string{
		"reserve_in": reserveIn.String(),
		"units_out":  unitsOut.String(),
		"rate":       rate.String(),
	})
	return unitsOut, nil
}

// Redeem exchanges unitsIn of the issued unit for reserve assets. Only
// registered merchants may redeem. Unit custody is taken and burned before
// any reserve asset leaves the pool.
func (p *Pool) Redeem(ctx context.Context, caller string, unitsIn *big.Int) (*big.Int, error) {
	if caller == "" || unitsIn == nil || unitsIn.Sign() <= 0 {
		return nil, ErrInvalidArgument
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.exit()

	p.mu.RLock()
	paused := p.paused
	_, merchant := p.merchants[caller]
	rate := new(big.Int).Set(p.rate)
	minRedeem := new(big.Int).Set(p.minRedeem)
	p.mu.RUnlock()

	if paused {
		return nil, ErrPoolPaused
	}
	if !merchant {
		return nil, fmt.Errorf("redeem by %s: %w", caller, ErrUnauthorized)
	}
	reserveOut, err := quoteRedeemLocked(unitsIn, rate, minRedeem)
	if err != nil {
		return nil, err
	}
	if reserveOut.Cmp(p.ReserveBalance()) > 0 {
		return nil, fmt.Errorf("redeem wants %s reserve: %w", reserveOut, ErrInsufficientLiquidity)
	}

	if err := p.assets.TransferFrom(p.unitAsset, p.id, caller, p.id, unitsIn); err != nil {
		return nil, fmt.Errorf("take unit custody: %w", err)
	}
	if err := p.ledger.Burn(ctx, p.id, p.id, unitsIn); err != nil {
		if rerr := p.assets.Transfer(p.unitAsset, p.id, caller, unitsIn); rerr != nil {
			p.log.WithError(rerr).WithField("caller", caller).
				Error("unit refund failed after burn failure")
		}
		return nil, fmt.Errorf("burn: %w", err)
	}
	if err := p.assets.Transfer(p.reserveAsset, p.id, caller, reserveOut); err != nil {
		// Supply already contracted; restore the caller's units to undo.
		if rerr := p.ledger.Mint(ctx, p.id, caller, unitsIn); rerr != nil {
			p.log.WithError(rerr).WithField("caller", caller).
				Error("unit restore failed after reserve payout failure")
		}
		return nil, fmt.Errorf("release reserve: %w", err)
	}

	p.mu.Lock()
	p.totalRedeemed.Add(p.totalRedeemed, unitsIn)
	p.redeemCount++
	p.mu.Unlock()

	metrics.RecordRedeem(p.id, unitsIn)
	p.persistRecord(ctx, exchange.KindRedeem, caller, unitsIn, reserveOut, rate)
	p.recordAudit(ctx, audit.OpRedeem, caller, map[string]string{
		"units_in":    unitsIn.String(),
		"reserve_out": reserveOut.String(),
		"rate":        rate.String(),
	})
	return reserveOut, nil
}

// Deposit moves reserve assets from the administrator into pool custody. The
// administrator must have approved the pool for the amount.
func (p *Pool) Deposit(ctx context.Context, caller string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidArgument
	}
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if err := p.assets.TransferFrom(p.reserveAsset, p.id, caller, p.id, amount); err != nil {
		return fmt.Errorf("deposit reserve: %w", err)
	}
	p.recordAudit(ctx, audit.OpDeposit, caller, map[string]string{"amount": amount.String()})
	return nil
}

// Withdraw releases reserve assets from pool custody to the given account.
// The pool never releases more than it custodies.
func (p *Pool) Withdraw(ctx context.Context, caller, to string, amount *big.Int) error {
	if to == "" || amount == nil || amount.Sign() <= 0 {
		return ErrInvalidArgument
	}
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if amount.Cmp(p.ReserveBalance()) > 0 {
		return fmt.Errorf("withdraw %s: %w", amount, ErrInsufficientLiquidity)
	}
	if err := p.assets.Transfer(p.reserveAsset, p.id, to, amount); err != nil {
		return fmt.Errorf("withdraw reserve: %w", err)
	}
	p.recordAudit(ctx, audit.OpWithdraw, caller, map[string]string{
		"to":     to,
		"amount": amount.String(),
	})
	return nil
}

// RecoverToken returns an unrelated asset accidentally sent to the pool. The
// pool's reserve asset and the issued unit are explicitly unrecoverable so
// the escape hatch cannot drain custody.
func (p *Pool) RecoverToken(ctx context.Context, caller, asset, to string, amount *big.Int) error {
	if asset == "" || to == "" || amount == nil || amount.Sign() <= 0 {
		return ErrInvalidArgument
	}
	if asset == p.reserveAsset || asset == p.unitAsset {
		return fmt.Errorf("recover %s: %w", asset, ErrProtectedAsset)
	}
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if err := p.assets.Transfer(asset, p.id, to, amount); err != nil {
		return fmt.Errorf("recover token: %w", err)
	}
	p.recordAudit(ctx, audit.OpRecover, caller, map[string]string{
		"asset":  asset,
		"to":     to,
		"amount": amount.String(),
	})
	return nil
}

func (p *Pool) enter() error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return fmt.Errorf("pool %s: %w", p.id, ErrReentrantCall)
	}
	return nil
}

func (p *Pool) exit() { p.inFlight.Store(false) }

func (p *Pool) requireAdmin(caller string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if caller != p.admin {
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	return nil
}

func (p *Pool) persistRecord(ctx context.Context, kind exchange.Kind, caller string, in, out, rate *big.Int) {
	if p.records == nil {
		return
	}
	rec := exchange.Record{
		PoolID:    p.id,
		Kind:      kind,
		Caller:    caller,
		AmountIn:  new(big.Int).Set(in),
		AmountOut: new(big.Int).Set(out),
		Rate:      new(big.Int).Set(rate),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := p.records.CreateExchangeRecord(ctx, rec); err != nil {
		p.log.WithError(err).WithField("kind", string(kind)).Warn("exchange record not persisted")
	}
}

func (p *Pool) recordAudit(ctx context.Context, op audit.Op, actor string, params map[string]string) {
	if p.audit != nil {
		p.audit.Record(ctx, op, actor, p.id, params)
	}
}
