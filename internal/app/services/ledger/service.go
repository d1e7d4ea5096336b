// Package ledger implements the issued unit's supply authority: the total
// supply counter and the capability set deciding who may mint and burn.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/R3E-Network/exchange_layer/internal/app/bank"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/metrics"
	auditsvc "github.com/R3E-Network/exchange_layer/internal/app/services/audit"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrPaused              = errors.New("ledger paused")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyAuthorized   = errors.New("principal already authorized")
	ErrNotAuthorized       = errors.New("principal not authorized")
)

// Service owns the issued unit's total supply and the set of principals
// holding the mint/burn capability. Balances themselves live in the asset
// bank; the service is the only party that credits or debits the unit asset
// outside ordinary transfers.
//
// The service is constructed once at system initialization with an
// administrator principal and persists for the system's lifetime.
type Service struct {
	mu          sync.Mutex
	assets      *bank.Bank
	unitAsset   string
	admin       string
	minters     map[string]struct{}
	paused      bool
	totalSupply *big.Int

	audit *auditsvc.Service
	log   *logger.Logger
}

// New constructs the supply authority for the given unit asset. The minter
// set starts empty; grants are explicit.
func New(assets *bank.Bank, unitAsset, admin string, auditSvc *auditsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{
		assets:      assets,
		unitAsset:   unitAsset,
		admin:       admin,
		minters:     make(map[string]struct{}),
		totalSupply: new(big.Int),
		audit:       auditSvc,
		log:         log,
	}
}

// UnitAsset returns the bank asset ID of the issued unit.
func (s *Service) UnitAsset() string { return s.unitAsset }

// Admin returns the administrator principal.
func (s *Service) Admin() string { return s.admin }

// TotalSupply returns the current outstanding supply of the issued unit.
func (s *Service) TotalSupply() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.totalSupply)
}

// Paused reports the global pause flag.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// IsAuthorized reports whether the principal holds the minter capability.
func (s *Service) IsAuthorized(principal string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.minters[principal]
	return ok
}

// Minters returns the current capability holders.
func (s *Service) Minters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.minters))
	for m := range s.minters {
		out = append(out, m)
	}
	return out
}

// Mint increases the supply and credits the recipient. Only capability
// holders may call it.
func (s *Service) Mint(ctx context.Context, caller, to string, amount *big.Int) error {
	if to == "" || amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("mint to %q: %w", to, ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.minters[caller]; !ok {
		return fmt.Errorf("mint by %s: %w", caller, ErrUnauthorized)
	}
	if s.paused {
		return ErrPaused
	}

	if err := s.assets.Credit(s.unitAsset, to, amount); err != nil {
		return fmt.Errorf("credit unit balance: %w", err)
	}
	s.totalSupply.Add(s.totalSupply, amount)

	metrics.RecordMint(amount)
	metrics.SetTotalSupply(s.totalSupply)
	s.recordLocked(ctx, audit.OpMint, caller, map[string]string{
		"to":     to,
		"amount": amount.String(),
	})
	return nil
}

// Burn decreases the supply and debits the source account. Only capability
// holders may call it, and the source must hold at least the burned amount.
func (s *Service) Burn(ctx context.Context, caller, from string, amount *big.Int) error {
	if from == "" || amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("burn from %q: %w", from, ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.minters[caller]; !ok {
		return fmt.Errorf("burn by %s: %w", caller, ErrUnauthorized)
	}
	if s.paused {
		return ErrPaused
	}
	if s.assets.BalanceOf(s.unitAsset, from).Cmp(amount) < 0 {
		return fmt.Errorf("burn %s from %s: %w", amount, from, ErrInsufficientBalance)
	}

	if err := s.assets.Debit(s.unitAsset, from, amount); err != nil {
		return fmt.Errorf("debit unit balance: %w", err)
	}
	s.totalSupply.Sub(s.totalSupply, amount)

	metrics.RecordBurn(amount)
	metrics.SetTotalSupply(s.totalSupply)
	s.recordLocked(ctx, audit.OpBurn, caller, map[string]string{
		"from":   from,
		"amount": amount.String(),
	})
	return nil
}

// GrantMinter adds a principal to the capability set. Granting an existing
// holder fails so authorization-count invariants stay exact.
func (s *Service) GrantMinter(ctx context.Context, caller, principal string) error {
	if principal == "" {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return fmt.Errorf("grant by %s: %w", caller, ErrUnauthorized)
	}
	if _, ok := s.minters[principal]; ok {
		return fmt.Errorf("grant %s: %w", principal, ErrAlreadyAuthorized)
	}
	s.minters[principal] = struct{}{}

	s.log.WithField("principal", principal).Info("minter capability granted")
	s.recordLocked(ctx, audit.OpGrantMinter, caller, map[string]string{"principal": principal})
	return nil
}

// RevokeMinter removes a principal from the capability set. Revoking a
// non-holder fails.
func (s *Service) RevokeMinter(ctx context.Context, caller, principal string) error {
	if principal == "" {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return fmt.Errorf("revoke by %s: %w", caller, ErrUnauthorized)
	}
	if _, ok := s.minters[principal]; !ok {
		return fmt.Errorf("revoke %s: %w", principal, ErrNotAuthorized)
	}
	delete(s.minters, principal)

	s.log.WithField("principal", principal).Info("minter capability revoked")
	s.recordLocked(ctx, audit.OpRevokeMinter, caller, map[string]string{"principal": principal})
	return nil
}

// Pause engages the global kill switch. While paused, mint, burn and unit
// transfers are rejected; administrative operations remain available.
func (s *Service) Pause(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return fmt.Errorf("pause by %s: %w", caller, ErrUnauthorized)
	}
	s.paused = true
	s.assets.SetPaused(s.unitAsset, true)

	s.log.Warn("ledger paused")
	s.recordLocked(ctx, audit.OpLedgerPause, caller, nil)
	return nil
}

// Unpause releases the global kill switch.
func (s *Service) Unpause(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return fmt.Errorf("unpause by %s: %w", caller, ErrUnauthorized)
	}
	s.paused = false
	s.assets.SetPaused(s.unitAsset, false)

	s.log.Info("ledger unpaused")
	s.recordLocked(ctx, audit.OpLedgerUnpause, caller, nil)
	return nil
}

func (s *Service) recordLocked(ctx context.Context, op audit.Op, actor string, params map[string]string) {
	if s.audit != nil {
		s.audit.Record(ctx, op, actor, "", params)
	}
}
