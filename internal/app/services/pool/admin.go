package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
)

// SetExchangeRate updates the exchange rate. The rate must stay positive; an
// in-flight exchange keeps the rate it started with.
func (p *Pool) SetExchangeRate(ctx context.Context, caller string, rate *big.Int) error {
	if rate == nil || rate.Sign() <= 0 {
		return fmt.Errorf("exchange rate must be positive: %w", ErrInvalidArgument)
	}

	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	old := p.rate
	p.rate = new(big.Int).Set(rate)
	p.mu.Unlock()

	p.log.WithField("old_rate", old.String()).WithField("new_rate", rate.String()).
		Info("exchange rate updated")
	p.recordAudit(ctx, audit.OpRateUpdate, caller, map[string]string{
		"old": old.String(),
		"new": rate.String(),
	})
	return nil
}

// SetMinimums updates the buy and redeem dust floors. Nil leaves a floor
// unchanged; zero clears it.
func (p *Pool) SetMinimums(ctx context.Context, caller string, minBuy, minRedeem *big.Int) error {
	if minBuy != nil && minBuy.Sign() < 0 {
		return fmt.Errorf("min buy: %w", ErrInvalidArgument)
	}
	if minRedeem != nil && minRedeem.Sign() < 0 {
		return fmt.Errorf("min redeem: %w", ErrInvalidArgument)
	}

	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	oldBuy, oldRedeem := p.minBuy, p.minRedeem
	if minBuy != nil {
		p.minBuy = new(big.Int).Set(minBuy)
	}
	if minRedeem != nil {
		p.minRedeem = new(big.Int).Set(minRedeem)
	}
	newBuy, newRedeem := p.minBuy, p.minRedeem
	p.mu.Unlock()

	p.recordAudit(ctx, audit.OpMinimumsUpdate, caller, map[string]string{
		"old_min_buy":    oldBuy.String(),
		"new_min_buy":    newBuy.String(),
		"old_min_redeem": oldRedeem.String(),
		"new_min_redeem": newRedeem.String(),
	})
	return nil
}

// AddMerchant authorizes a principal to redeem. Adding an existing merchant
// fails.
func (p *Pool) AddMerchant(ctx context.Context, caller, merchant string) error {
	if merchant == "" {
		return ErrInvalidArgument
	}

	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	if _, ok := p.merchants[merchant]; ok {
		p.mu.Unlock()
		return fmt.Errorf("merchant %s: %w", merchant, ErrAlreadyMerchant)
	}
	p.merchants[merchant] = struct{}{}
	p.mu.Unlock()

	p.log.WithField("merchant", merchant).Info("merchant added")
	p.recordAudit(ctx, audit.OpMerchantAdd, caller, map[string]string{"merchant": merchant})
	return nil
}

// RemoveMerchant revokes a principal's redeem authorization. Removing an
// unknown merchant fails.
func (p *Pool) RemoveMerchant(ctx context.Context, caller, merchant string) error {
	if merchant == "" {
		return ErrInvalidArgument
	}

	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	if _, ok := p.merchants[merchant]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("merchant %s: %w", merchant, ErrNotMerchant)
	}
	delete(p.merchants, merchant)
	p.mu.Unlock()

	p.log.WithField("merchant", merchant).Info("merchant removed")
	p.recordAudit(ctx, audit.OpMerchantRemove, caller, map[string]string{"merchant": merchant})
	return nil
}

// Pause stops buy and redeem. Pausing an already-paused pool fails;
// administrative operations remain available while paused.
func (p *Pool) Pause(ctx context.Context, caller string) error {
	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	if p.paused {
		p.mu.Unlock()
		return ErrAlreadyPaused
	}
	p.paused = true
	p.mu.Unlock()

	p.log.Warn("pool paused")
	p.recordAudit(ctx, audit.OpPoolPause, caller, nil)
	return nil
}

// Unpause re-enables buy and redeem. Unpausing an active pool fails.
func (p *Pool) Unpause(ctx context.Context, caller string) error {
	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	if !p.paused {
		p.mu.Unlock()
		return ErrNotPaused
	}
	p.paused = false
	p.mu.Unlock()

	p.log.Info("pool unpaused")
	p.recordAudit(ctx, audit.OpPoolUnpause, caller, nil)
	return nil
}

// TransferOwnership hands pool administration to a new principal.
func (p *Pool) TransferOwnership(ctx context.Context, caller, newAdmin string) error {
	if newAdmin == "" {
		return ErrInvalidArgument
	}

	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return fmt.Errorf("caller %s: %w", caller, ErrUnauthorized)
	}
	old := p.admin
	p.admin = newAdmin
	p.mu.Unlock()

	p.log.WithField("old_admin", old).WithField("new_admin", newAdmin).
		Info("pool ownership transferred")
	p.recordAudit(ctx, audit.OpOwnershipChange, caller, map[string]string{
		"old": old,
		"new": newAdmin,
	})
	return nil
}
