// Package reconciler periodically verifies the supply conservation
// invariant: the ledger's outstanding supply must equal the sum of all unit
// balances held in the asset bank.
package reconciler

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/R3E-Network/exchange_layer/internal/app/bank"
	"github.com/R3E-Network/exchange_layer/internal/app/metrics"
	"github.com/R3E-Network/exchange_layer/internal/app/services/ledger"
	"github.com/R3E-Network/exchange_layer/internal/app/system"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

// Reconciler is a background checker comparing ledger supply against summed
// bank balances of the issued unit. A non-zero difference means bookkeeping
// corruption and is logged loudly; the reconciler never mutates state.
type Reconciler struct {
	ledger   *ledger.Service
	assets   *bank.Bank
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Reconciler)(nil)

// New constructs a reconciler checking at the given interval.
func New(ledgerSvc *ledger.Service, assets *bank.Bank, interval time.Duration, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("reconciler")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		ledger:   ledgerSvc,
		assets:   assets,
		interval: interval,
		log:      log,
	}
}

func (r *Reconciler) Name() string { return "supply-reconciler" }

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.Check()
			}
		}
	}()

	r.log.Info("supply reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Check performs one reconciliation pass and returns the measured drift
// (supply minus summed balances).
func (r *Reconciler) Check() *big.Int {
	supply := r.ledger.TotalSupply()
	held := r.assets.TotalBalance(r.ledger.UnitAsset())
	drift := new(big.Int).Sub(supply, held)

	metrics.SetSupplyDrift(drift)
	if drift.Sign() != 0 {
		r.log.WithField("total_supply", supply.String()).
			WithField("summed_balances", held.String()).
			WithField("drift", drift.String()).
			Error("supply conservation violated")
	}
	return drift
}
