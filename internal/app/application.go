// Package app wires the exchange layer's services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/exchange_layer/internal/app/bank"
	"github.com/R3E-Network/exchange_layer/internal/app/services/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/services/ledger"
	"github.com/R3E-Network/exchange_layer/internal/app/services/reconciler"
	registrysvc "github.com/R3E-Network/exchange_layer/internal/app/services/registry"
	"github.com/R3E-Network/exchange_layer/internal/app/storage"
	"github.com/R3E-Network/exchange_layer/internal/app/storage/memory"
	"github.com/R3E-Network/exchange_layer/internal/app/system"
	"github.com/R3E-Network/exchange_layer/internal/config"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Pools     storage.PoolStore
	Exchanges storage.ExchangeStore
	Audit     storage.AuditStore
}

// Options carries system-wide identities and tuning.
type Options struct {
	UnitAsset         string
	Admin             string
	ReconcileInterval time.Duration
}

// Application ties the exchange services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Assets     *bank.Bank
	Audit      *audit.Service
	Ledger     *ledger.Service
	Registry   *registrysvc.Service
	Reconciler *reconciler.Reconciler
}

// New builds a fully initialised application with the provided stores.
func New(opts Options, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.UnitAsset == "" {
		opts.UnitAsset = "unit"
	}
	if opts.Admin == "" {
		opts.Admin = "admin"
	}

	mem := memory.New()
	if stores.Pools == nil {
		stores.Pools = mem
	}
	if stores.Exchanges == nil {
		stores.Exchanges = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	assets := bank.New()
	auditSvc := audit.New(stores.Audit, log)
	ledgerSvc := ledger.New(assets, opts.UnitAsset, opts.Admin, auditSvc, log)
	registrySvc := registrysvc.New(opts.Admin, ledgerSvc, assets, stores.Pools, stores.Exchanges, auditSvc, log)
	recon := reconciler.New(ledgerSvc, assets, opts.ReconcileInterval, log)

	manager := system.NewManager()
	if err := manager.Register(recon); err != nil {
		return nil, fmt.Errorf("register reconciler: %w", err)
	}

	return &Application{
		manager:    manager,
		log:        log,
		Assets:     assets,
		Audit:      auditSvc,
		Ledger:     ledgerSvc,
		Registry:   registrySvc,
		Reconciler: recon,
	}, nil
}

// SeedGenesis applies a genesis definition: pre-funded balances first, then
// pools with their merchant sets.
func (a *Application) SeedGenesis(ctx context.Context, g *config.Genesis) error {
	if g == nil {
		return nil
	}

	for _, b := range g.Balances {
		if b.Asset == a.Ledger.UnitAsset() {
			return fmt.Errorf("seed balance %s/%s: issued unit enters circulation only through a mint", b.Asset, b.Account)
		}
		amount, err := config.ParseAmount(b.Amount)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			continue
		}
		if err := a.Assets.Credit(b.Asset, b.Account, amount); err != nil {
			return fmt.Errorf("seed balance %s/%s: %w", b.Asset, b.Account, err)
		}
	}

	admin := a.Registry.Admin()
	for _, gp := range g.Pools {
		rate, err := config.ParseAmount(gp.ExchangeRate)
		if err != nil {
			return err
		}
		minBuy, err := config.ParseAmount(gp.MinBuy)
		if err != nil {
			return err
		}
		minRedeem, err := config.ParseAmount(gp.MinRedeem)
		if err != nil {
			return err
		}

		p, err := a.Registry.CreatePool(ctx, admin, gp.ReserveAsset, rate, minBuy, minRedeem)
		if err != nil {
			return fmt.Errorf("seed pool for %s: %w", gp.ReserveAsset, err)
		}
		for _, m := range gp.Merchants {
			if err := p.AddMerchant(ctx, admin, m); err != nil {
				return fmt.Errorf("seed merchant %s: %w", m, err)
			}
		}
		a.log.WithField("pool_id", p.ID()).WithField("reserve_asset", gp.ReserveAsset).
			Info("genesis pool created")
	}
	return nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
