package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Asset bank endpoints. These exist for operations and testing: production
// reserve movement happens through pool buy/redeem.

func (h *handler) getBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   vars["asset"],
		"account": vars["account"],
		"balance": h.app.Assets.BalanceOf(vars["asset"], vars["account"]).String(),
	})
}

func (h *handler) transferAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From   string `json:"from"`
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
	asset := mux.Vars(r)["asset"]
	if err := h.app.Assets.Transfer(asset, payload.From, payload.To, amount); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"from_balance": h.app.Assets.BalanceOf(asset, payload.From).String(),
		"to_balance":   h.app.Assets.BalanceOf(asset, payload.To).String(),
	})
}

func (h *handler) approveAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset := mux.Vars(r)["asset"]
	if err := h.app.Assets.Approve(asset, payload.Owner, payload.Spender, amount); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"allowance": h.app.Assets.Allowance(asset, payload.Owner, payload.Spender).String(),
	})
}

func (h *handler) creditAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Account string `json:"account"`
		Amount  string `json:"amount"`
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
	asset := mux.Vars(r)["asset"]
	// The issued unit only enters circulation through a mint; a faucet credit
	// would break supply conservation.
	if asset == h.app.Ledger.UnitAsset() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "issued unit cannot be credited directly",
			"kind":  "protected_asset",
		})
		return
	}
	if err := h.app.Assets.Credit(asset, payload.Account, amount); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"balance": h.app.Assets.BalanceOf(asset, payload.Account).String(),
	})
}
