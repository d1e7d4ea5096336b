package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Pool administration and supply authority endpoints. Every mutating call
// carries the caller principal in the request body; authorization is enforced
// by the services, not the transport.

func (h *handler) addMerchant(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller   string `json:"caller"`
		Merchant string `json:"merchant"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Registry.AddMerchantToPool(r.Context(), payload.Caller, mux.Vars(r)["id"], payload.Merchant); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"merchant": payload.Merchant})
}

func (h *handler) removeMerchant(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vars := mux.Vars(r)
	if err := h.app.Registry.RemoveMerchantFromPool(r.Context(), payload.Caller, vars["id"], vars["merchant"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) updateRate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller       string `json:"caller"`
		ExchangeRate string `json:"exchange_rate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := parsePositiveAmount(payload.ExchangeRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Registry.UpdatePoolExchangeRate(r.Context(), payload.Caller, mux.Vars(r)["id"], rate); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"exchange_rate": rate.String()})
}

func (h *handler) updateMinimums(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller    string  `json:"caller"`
		MinBuy    *string `json:"min_buy"`
		MinRedeem *string `json:"min_redeem"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minBuy, err := parseOptionalAmount(payload.MinBuy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minRedeem, err := parseOptionalAmount(payload.MinRedeem)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Registry.UpdatePoolMinimums(r.Context(), payload.Caller, mux.Vars(r)["id"], minBuy, minRedeem); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller   string `json:"caller"`
		NewAdmin string `json:"new_admin"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Registry.TransferPoolOwnership(r.Context(), payload.Caller, mux.Vars(r)["id"], payload.NewAdmin); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"admin": payload.NewAdmin})
}

func (h *handler) disablePool(w http.ResponseWriter, r *http.Request) {
	h.togglePool(w, r, h.app.Registry.DisablePool)
}

func (h *handler) enablePool(w http.ResponseWriter, r *http.Request) {
	h.togglePool(w, r, h.app.Registry.EnablePool)
}

func (h *handler) togglePool(w http.ResponseWriter, r *http.Request, toggle func(ctx context.Context, caller, id string) error) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := toggle(r.Context(), payload.Caller, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.livePool(w, r)
	if !ok {
		return
	}
	var payload struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parsePositiveAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := p.Deposit(r.Context(), payload.Caller, amount); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reserve_balance": p.ReserveBalance().String()})
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := h.livePool(w, r)
	if !ok {
		return
	}
	var payload struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parsePositiveAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := p.Withdraw(r.Context(), payload.Caller, payload.To, amount); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reserve_balance": p.ReserveBalance().String()})
}

func (h *handler) recoverToken(w http.ResponseWriter, r *http.Request) {
	p, ok := h.livePool(w, r)
	if !ok {
		return
	}
	var payload struct {
		Caller string `json:"caller"`
		Asset  string `json:"asset"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parsePositiveAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := p.RecoverToken(r.Context(), payload.Caller, payload.Asset, payload.To, amount); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- supply authority -------------------------------------------------------

func (h *handler) getSupply(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"unit_asset":   h.app.Ledger.UnitAsset(),
		"admin":        h.app.Ledger.Admin(),
		"total_supply": h.app.Ledger.TotalSupply().String(),
		"paused":       h.app.Ledger.Paused(),
	})
}

func (h *handler) pauseSupply(w http.ResponseWriter, r *http.Request) {
	h.toggleSupply(w, r, h.app.Ledger.Pause)
}

func (h *handler) unpauseSupply(w http.ResponseWriter, r *http.Request) {
	h.toggleSupply(w, r, h.app.Ledger.Unpause)
}

func (h *handler) toggleSupply(w http.ResponseWriter, r *http.Request, toggle func(ctx context.Context, caller string) error) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := toggle(r.Context(), payload.Caller); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": h.app.Ledger.Paused()})
}

func (h *handler) listMinters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"minters": h.app.Ledger.Minters()})
}

func (h *handler) grantMinter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller    string `json:"caller"`
		Principal string `json:"principal"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Ledger.GrantMinter(r.Context(), payload.Caller, payload.Principal); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"principal": payload.Principal})
}

func (h *handler) revokeMinter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Ledger.RevokeMinter(r.Context(), payload.Caller, mux.Vars(r)["principal"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Registry.GetSystemStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_pools":    stats.TotalPools,
		"active_pools":   stats.ActivePools,
		"total_supply":   stats.TotalSupply.String(),
		"total_bought":   stats.TotalBought.String(),
		"total_redeemed": stats.TotalRedeemed.String(),
		"buy_count":      stats.BuyCount,
		"redeem_count":   stats.RedeemCount,
	})
}
