package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/R3E-Network/exchange_layer/internal/app/bank"
	"github.com/R3E-Network/exchange_layer/internal/app/services/ledger"
	"github.com/R3E-Network/exchange_layer/internal/app/services/pool"
	"github.com/R3E-Network/exchange_layer/internal/app/services/registry"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	return v, nil
}

func parsePositiveAmount(s string) (*big.Int, error) {
	v, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return v, nil
}

func parseOptionalAmount(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	return parseAmount(*s)
}

// serviceErrorClass maps every sentinel the services expose to an HTTP status
// and a stable machine-readable kind, so clients can distinguish failure
// causes without parsing messages.
var serviceErrorClasses = []struct {
	err    error
	status int
	kind   string
}{
	{pool.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{ledger.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{registry.ErrUnauthorized, http.StatusForbidden, "unauthorized"},

	{registry.ErrInvalidPool, http.StatusNotFound, "unknown_pool"},

	{pool.ErrBelowMinimum, http.StatusBadRequest, "below_minimum"},
	{pool.ErrZeroOutput, http.StatusBadRequest, "zero_output"},
	{pool.ErrProtectedAsset, http.StatusBadRequest, "protected_asset"},
	{pool.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{ledger.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{registry.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{bank.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},

	{pool.ErrInsufficientLiquidity, http.StatusConflict, "insufficient_liquidity"},
	{pool.ErrReentrantCall, http.StatusConflict, "reentrant_call"},
	{pool.ErrPoolPaused, http.StatusConflict, "pool_paused"},
	{pool.ErrAlreadyPaused, http.StatusConflict, "already_paused"},
	{pool.ErrNotPaused, http.StatusConflict, "not_paused"},
	{pool.ErrAlreadyMerchant, http.StatusConflict, "already_merchant"},
	{pool.ErrNotMerchant, http.StatusConflict, "not_merchant"},
	{ledger.ErrPaused, http.StatusConflict, "supply_paused"},
	{ledger.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{ledger.ErrAlreadyAuthorized, http.StatusConflict, "already_authorized"},
	{ledger.ErrNotAuthorized, http.StatusConflict, "not_authorized"},
	{registry.ErrAlreadyDisabled, http.StatusConflict, "already_disabled"},
	{registry.ErrAlreadyEnabled, http.StatusConflict, "already_enabled"},
	{bank.ErrAssetPaused, http.StatusConflict, "asset_paused"},
	{bank.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{bank.ErrInsufficientAllowance, http.StatusConflict, "insufficient_allowance"},
}

func writeServiceError(w http.ResponseWriter, err error) {
	for _, class := range serviceErrorClasses {
		if errors.Is(err, class.err) {
			writeJSON(w, class.status, map[string]string{
				"error": err.Error(),
				"kind":  class.kind,
			})
			return
		}
	}
	writeError(w, http.StatusInternalServerError, err)
}
