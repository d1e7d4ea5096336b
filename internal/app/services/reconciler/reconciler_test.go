package reconciler

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/R3E-Network/exchange_layer/internal/app/bank"
	"github.com/R3E-Network/exchange_layer/internal/app/services/ledger"
)

func TestReconciler_CheckDetectsDrift(t *testing.T) {
	assets := bank.New()
	led := ledger.New(assets, "unit", "admin", nil, nil)
	if err := led.GrantMinter(context.Background(), "admin", "minter"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	r := New(led, assets, time.Second, nil)

	if drift := r.Check(); drift.Sign() != 0 {
		t.Fatalf("empty system drifted: %s", drift)
	}

	if err := led.Mint(context.Background(), "minter", "alice", big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := assets.Transfer("unit", "alice", "bob", big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if drift := r.Check(); drift.Sign() != 0 {
		t.Fatalf("transfers must not drift: %s", drift)
	}

	// A raw debit outside the ledger is exactly the corruption the check
	// exists to surface.
	if err := assets.Debit("unit", "bob", big.NewInt(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if drift := r.Check(); drift.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected drift 40, got %s", drift)
	}
}

func TestReconciler_StartStop(t *testing.T) {
	assets := bank.New()
	led := ledger.New(assets, "unit", "admin", nil, nil)
	r := New(led, assets, 10*time.Millisecond, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Idempotent start.
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
