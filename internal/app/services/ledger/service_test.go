package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/R3E-Network/exchange_layer/internal/app/bank"
)

func newTestLedger() (*Service, *bank.Bank) {
	assets := bank.New()
	return New(assets, "unit", "admin", nil, nil), assets
}

func TestService_MintRequiresCapability(t *testing.T) {
	svc, assets := newTestLedger()

	err := svc.Mint(context.Background(), "stranger", "alice", big.NewInt(100))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// The administrator holds no implicit capability either.
	err = svc.Mint(context.Background(), "admin", "alice", big.NewInt(100))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("admin mint without grant: %v", err)
	}

	if err := svc.GrantMinter(context.Background(), "admin", "minter"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.Mint(context.Background(), "minter", "alice", big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := svc.TotalSupply(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("supply: %s", got)
	}
	if got := assets.BalanceOf("unit", "alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice balance: %s", got)
	}
}

func TestService_BurnChecksBalance(t *testing.T) {
	svc, _ := newTestLedger()
	if err := svc.GrantMinter(context.Background(), "admin", "minter"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.Mint(context.Background(), "minter", "alice", big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := svc.Burn(context.Background(), "minter", "alice", big.NewInt(51))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := svc.TotalSupply(); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("supply changed on failed burn: %s", got)
	}

	if err := svc.Burn(context.Background(), "minter", "alice", big.NewInt(50)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := svc.TotalSupply(); got.Sign() != 0 {
		t.Fatalf("supply not contracted: %s", got)
	}
}

func TestService_GrantRevokeExact(t *testing.T) {
	svc, _ := newTestLedger()

	if err := svc.GrantMinter(context.Background(), "stranger", "m"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("grant by stranger: %v", err)
	}
	if err := svc.GrantMinter(context.Background(), "admin", "m"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.GrantMinter(context.Background(), "admin", "m"); !errors.Is(err, ErrAlreadyAuthorized) {
		t.Fatalf("double grant: %v", err)
	}
	if !svc.IsAuthorized("m") {
		t.Fatal("capability not recorded")
	}

	if err := svc.RevokeMinter(context.Background(), "admin", "m"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.RevokeMinter(context.Background(), "admin", "m"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("double revoke: %v", err)
	}
	if svc.IsAuthorized("m") {
		t.Fatal("capability not removed")
	}
}

func TestService_PauseBlocksSupplyChanges(t *testing.T) {
	svc, assets := newTestLedger()
	if err := svc.GrantMinter(context.Background(), "admin", "minter"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.Mint(context.Background(), "minter", "alice", big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := svc.Pause(context.Background(), "admin"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := svc.Mint(context.Background(), "minter", "alice", big.NewInt(1)); !errors.Is(err, ErrPaused) {
		t.Fatalf("mint while paused: %v", err)
	}
	if err := svc.Burn(context.Background(), "minter", "alice", big.NewInt(1)); !errors.Is(err, ErrPaused) {
		t.Fatalf("burn while paused: %v", err)
	}
	// Ordinary unit transfers freeze too.
	if err := assets.Transfer("unit", "alice", "bob", big.NewInt(1)); !errors.Is(err, bank.ErrAssetPaused) {
		t.Fatalf("transfer while paused: %v", err)
	}

	if err := svc.Unpause(context.Background(), "admin"); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := svc.Mint(context.Background(), "minter", "alice", big.NewInt(1)); err != nil {
		t.Fatalf("mint after unpause: %v", err)
	}
}
