package bank

import (
	"errors"
	"math/big"
	"testing"
)

func TestBank_TransferMovesBalance(t *testing.T) {
	b := New()
	if err := b.Credit("usd", "alice", big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := b.Transfer("usd", "alice", "bob", big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.BalanceOf("usd", "alice"); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice: %s", got)
	}
	if got := b.BalanceOf("usd", "bob"); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob: %s", got)
	}
	if got := b.TotalBalance("usd"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("total: %s", got)
	}

	err := b.Transfer("usd", "alice", "bob", big.NewInt(61))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestBank_TransferFromConsumesAllowance(t *testing.T) {
	b := New()
	if err := b.Credit("usd", "alice", big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := b.Approve("usd", "alice", "pool", big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := b.TransferFrom("usd", "pool", "alice", "pool", big.NewInt(30)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := b.Allowance("usd", "alice", "pool"); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("allowance: %s", got)
	}

	err := b.TransferFrom("usd", "pool", "alice", "pool", big.NewInt(21))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	// Failed delegated transfer consumes nothing.
	if got := b.BalanceOf("usd", "alice"); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("alice: %s", got)
	}
}

func TestBank_ApproveOverwrites(t *testing.T) {
	b := New()
	if err := b.Approve("usd", "alice", "pool", big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := b.Approve("usd", "alice", "pool", big.NewInt(5)); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if got := b.Allowance("usd", "alice", "pool"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("allowance not overwritten: %s", got)
	}
}

func TestBank_PauseBlocksMoves(t *testing.T) {
	b := New()
	if err := b.Credit("usd", "alice", big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	b.SetPaused("usd", true)

	if err := b.Transfer("usd", "alice", "bob", big.NewInt(1)); !errors.Is(err, ErrAssetPaused) {
		t.Fatalf("transfer while paused: %v", err)
	}
	// Reads stay available and other assets are unaffected.
	if got := b.BalanceOf("usd", "alice"); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance read: %s", got)
	}
	if err := b.Credit("eur", "alice", big.NewInt(1)); err != nil {
		t.Fatalf("credit other asset: %v", err)
	}
	if err := b.Transfer("eur", "alice", "bob", big.NewInt(1)); err != nil {
		t.Fatalf("transfer other asset: %v", err)
	}

	b.SetPaused("usd", false)
	if err := b.Transfer("usd", "alice", "bob", big.NewInt(1)); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

func TestBank_DebitChecksBalance(t *testing.T) {
	b := New()
	if err := b.Credit("usd", "alice", big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := b.Debit("usd", "alice", big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft debit: %v", err)
	}
	if err := b.Debit("usd", "alice", big.NewInt(10)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := b.BalanceOf("usd", "alice"); got.Sign() != 0 {
		t.Fatalf("alice not emptied: %s", got)
	}
}

func TestBank_DefensiveCopies(t *testing.T) {
	b := New()
	amount := big.NewInt(100)
	if err := b.Credit("usd", "alice", amount); err != nil {
		t.Fatalf("credit: %v", err)
	}
	amount.SetInt64(1)
	if got := b.BalanceOf("usd", "alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("caller mutation leaked into balance: %s", got)
	}

	bal := b.BalanceOf("usd", "alice")
	bal.SetInt64(0)
	if got := b.BalanceOf("usd", "alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("returned balance aliases internal state: %s", got)
	}
}
