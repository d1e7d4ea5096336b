// Package httpapi exposes the exchange layer's REST API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/exchange_layer/internal/app"
	domain "github.com/R3E-Network/exchange_layer/internal/app/domain/registry"
	"github.com/R3E-Network/exchange_layer/internal/app/services/pool"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	upgrader wsUpgrader
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application, upgrader: newUpgrader()}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	r.HandleFunc("/pools", h.createPool).Methods(http.MethodPost)
	r.HandleFunc("/pools", h.listPools).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}", h.getPool).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/buy", h.buy).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/redeem", h.redeem).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/quote/buy", h.quoteBuy).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/quote/redeem", h.quoteRedeem).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/merchants", h.addMerchant).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/merchants/{merchant}", h.removeMerchant).Methods(http.MethodDelete)
	r.HandleFunc("/pools/{id}/rate", h.updateRate).Methods(http.MethodPut)
	r.HandleFunc("/pools/{id}/minimums", h.updateMinimums).Methods(http.MethodPut)
	r.HandleFunc("/pools/{id}/owner", h.transferOwnership).Methods(http.MethodPut)
	r.HandleFunc("/pools/{id}/disable", h.disablePool).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/enable", h.enablePool).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/deposit", h.deposit).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/withdraw", h.withdraw).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/recover", h.recoverToken).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/records", h.listRecords).Methods(http.MethodGet)

	r.HandleFunc("/supply", h.getSupply).Methods(http.MethodGet)
	r.HandleFunc("/supply/pause", h.pauseSupply).Methods(http.MethodPost)
	r.HandleFunc("/supply/unpause", h.unpauseSupply).Methods(http.MethodPost)
	r.HandleFunc("/minters", h.listMinters).Methods(http.MethodGet)
	r.HandleFunc("/minters", h.grantMinter).Methods(http.MethodPost)
	r.HandleFunc("/minters/{principal}", h.revokeMinter).Methods(http.MethodDelete)
	r.HandleFunc("/stats", h.getStats).Methods(http.MethodGet)

	r.HandleFunc("/assets/{asset}/balances/{account}", h.getBalance).Methods(http.MethodGet)
	r.HandleFunc("/assets/{asset}/transfer", h.transferAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets/{asset}/approve", h.approveAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets/{asset}/credit", h.creditAsset).Methods(http.MethodPost)

	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)
	r.HandleFunc("/audit/stream", h.streamAudit).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "exchange-layer",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- pools ------------------------------------------------------------------

type poolResponse struct {
	ID             string    `json:"id"`
	ReserveAsset   string    `json:"reserve_asset"`
	Admin          string    `json:"admin"`
	ExchangeRate   string    `json:"exchange_rate"`
	InitialRate    string    `json:"initial_rate,omitempty"`
	MinBuy         string    `json:"min_buy"`
	MinRedeem      string    `json:"min_redeem"`
	Paused         bool      `json:"paused"`
	Active         bool      `json:"active"`
	TotalBought    string    `json:"total_bought"`
	TotalRedeemed  string    `json:"total_redeemed"`
	BuyCount       uint64    `json:"buy_count"`
	RedeemCount    uint64    `json:"redeem_count"`
	ReserveBalance string    `json:"reserve_balance"`
	Merchants      []string  `json:"merchants"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *handler) poolResponse(p *pool.Pool, info domain.PoolInfo) poolResponse {
	stats := p.Stats()
	resp := poolResponse{
		ID:             p.ID(),
		ReserveAsset:   p.ReserveAsset(),
		Admin:          p.Admin(),
		ExchangeRate:   p.ExchangeRate().String(),
		MinBuy:         p.MinBuy().String(),
		MinRedeem:      p.MinRedeem().String(),
		Paused:         p.Paused(),
		Active:         info.Active,
		TotalBought:    stats.TotalBought.String(),
		TotalRedeemed:  stats.TotalRedeemed.String(),
		BuyCount:       stats.BuyCount,
		RedeemCount:    stats.RedeemCount,
		ReserveBalance: stats.ReserveBalance.String(),
		Merchants:      p.Merchants(),
		CreatedAt:      info.CreatedAt,
	}
	if info.InitialRate != nil {
		resp.InitialRate = info.InitialRate.String()
	}
	return resp
}

func (h *handler) createPool(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller       string `json:"caller"`
		ReserveAsset string `json:"reserve_asset"`
		ExchangeRate string `json:"exchange_rate"`
		MinBuy       string `json:"min_buy"`
		MinRedeem    string `json:"min_redeem"`
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
	minBuy, err := parseAmount(payload.MinBuy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minRedeem, err := parseAmount(payload.MinRedeem)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.app.Registry.CreatePool(r.Context(), payload.Caller, payload.ReserveAsset, rate, minBuy, minRedeem)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	info, err := h.app.Registry.GetPoolInfo(r.Context(), p.ID())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.poolResponse(p, info))
}

func (h *handler) listPools(w http.ResponseWriter, r *http.Request) {
	var (
		infos []domain.PoolInfo
		err   error
	)
	if asset := r.URL.Query().Get("reserve_asset"); asset != "" {
		infos, err = h.app.Registry.GetPoolsByReserveAsset(r.Context(), asset)
	} else {
		infos, err = h.app.Registry.GetAllPools(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := make([]poolResponse, 0, len(infos))
	for _, info := range infos {
		p, err := h.app.Registry.GetPool(info.ID)
		if err != nil {
			continue
		}
		resp = append(resp, h.poolResponse(p, info))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getPool(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.app.Registry.GetPool(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	info, err := h.app.Registry.GetPoolInfo(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.poolResponse(p, info))
}

// --- exchange ---------------------------------------------------------------

func (h *handler) buy(w http.ResponseWriter, r *http.Request) {
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

	unitsOut, err := p.Buy(r.Context(), payload.Caller, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"reserve_in": amount.String(),
		"units_out":  unitsOut.String(),
	})
}

func (h *handler) redeem(w http.ResponseWriter, r *http.Request) {
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

	reserveOut, err := p.Redeem(r.Context(), payload.Caller, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"units_in":    amount.String(),
		"reserve_out": reserveOut.String(),
	})
}

func (h *handler) quoteBuy(w http.ResponseWriter, r *http.Request) {
	p, ok := h.livePool(w, r)
	if !ok {
		return
	}
	amount, err := parsePositiveAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := p.QuoteBuy(amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"reserve_in": amount.String(),
		"units_out":  out.String(),
	})
}

func (h *handler) quoteRedeem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.livePool(w, r)
	if !ok {
		return
	}
	amount, err := parsePositiveAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := p.QuoteRedeem(amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"units_in":    amount.String(),
		"reserve_out": out.String(),
	})
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.app.Registry.GetPool(id); err != nil {
		writeServiceError(w, err)
		return
	}
	recs, err := h.app.Registry.ListExchangeRecords(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type recordResponse struct {
		ID        string    `json:"id"`
		Kind      string    `json:"kind"`
		Caller    string    `json:"caller"`
		AmountIn  string    `json:"amount_in"`
		AmountOut string    `json:"amount_out"`
		Rate      string    `json:"rate"`
		CreatedAt time.Time `json:"created_at"`
	}
	resp := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, recordResponse{
			ID:        rec.ID,
			Kind:      string(rec.Kind),
			Caller:    rec.Caller,
			AmountIn:  rec.AmountIn.String(),
			AmountOut: rec.AmountOut.String(),
			Rate:      rec.Rate.String(),
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) livePool(w http.ResponseWriter, r *http.Request) (*pool.Pool, bool) {
	p, err := h.app.Registry.GetPool(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return p, true
}
