package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/R3E-Network/exchange_layer/internal/app"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(app.Options{UnitAsset: "unit", Admin: "admin"}, app.Stores{}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	return NewHandler(application)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestHandler_PoolLifecycle(t *testing.T) {
	h := newTestHandler(t)

	// Create a pool at rate 10.
	rec, created := doJSON(t, h, http.MethodPost, "/pools", map[string]string{
		"caller":        "admin",
		"reserve_asset": "usd",
		"exchange_rate": "10000000000000000000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pool: %d %s", rec.Code, rec.Body)
	}
	poolID, _ := created["id"].(string)
	if poolID == "" {
		t.Fatalf("no pool id in response: %v", created)
	}

	// Fund and approve the buyer through the asset endpoints.
	rec, _ = doJSON(t, h, http.MethodPost, "/assets/usd/credit", map[string]string{
		"account": "alice",
		"amount":  "100000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("credit: %d %s", rec.Code, rec.Body)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/assets/usd/approve", map[string]string{
		"owner":   "alice",
		"spender": poolID,
		"amount":  "100000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body)
	}

	// Quote matches execution.
	rec, quote := doJSON(t, h, http.MethodGet,
		fmt.Sprintf("/pools/%s/quote/buy?amount=100000000000000000000", poolID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote: %d %s", rec.Code, rec.Body)
	}
	rec, bought := doJSON(t, h, http.MethodPost, "/pools/"+poolID+"/buy", map[string]string{
		"caller": "alice",
		"amount": "100000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: %d %s", rec.Code, rec.Body)
	}
	if quote["units_out"] != bought["units_out"] {
		t.Fatalf("quote %v != executed %v", quote["units_out"], bought["units_out"])
	}
	if bought["units_out"] != "1000000000000000000000" {
		t.Fatalf("unexpected units out: %v", bought["units_out"])
	}

	// Register a merchant and redeem half the units.
	rec, _ = doJSON(t, h, http.MethodPost, "/pools/"+poolID+"/merchants", map[string]string{
		"caller":   "admin",
		"merchant": "alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add merchant: %d %s", rec.Code, rec.Body)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/assets/unit/approve", map[string]string{
		"owner":   "alice",
		"spender": poolID,
		"amount":  "500000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve units: %d %s", rec.Code, rec.Body)
	}
	rec, redeemed := doJSON(t, h, http.MethodPost, "/pools/"+poolID+"/redeem", map[string]string{
		"caller": "alice",
		"amount": "500000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem: %d %s", rec.Code, rec.Body)
	}
	if redeemed["reserve_out"] != "50000000000000000000" {
		t.Fatalf("unexpected reserve out: %v", redeemed["reserve_out"])
	}

	// Records and stats reflect both legs.
	req := httptest.NewRequest(http.MethodGet, "/pools/"+poolID+"/records", nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("records: %d %s", rec2.Code, rec2.Body)
	}
	var records []map[string]any
	if err := json.Unmarshal(rec2.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	rec, stats := doJSON(t, h, http.MethodGet, "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rec.Code, rec.Body)
	}
	if stats["total_supply"] != "500000000000000000000" {
		t.Fatalf("unexpected supply: %v", stats["total_supply"])
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	h := newTestHandler(t)

	// Unknown pool is 404.
	rec, body := doJSON(t, h, http.MethodGet, "/pools/missing", nil)
	if rec.Code != http.StatusNotFound || body["kind"] != "unknown_pool" {
		t.Fatalf("unknown pool: %d %v", rec.Code, body)
	}

	// Unauthorized create is 403.
	rec, body = doJSON(t, h, http.MethodPost, "/pools", map[string]string{
		"caller":        "stranger",
		"reserve_asset": "usd",
		"exchange_rate": "1000000000000000000",
	})
	if rec.Code != http.StatusForbidden || body["kind"] != "unauthorized" {
		t.Fatalf("unauthorized create: %d %v", rec.Code, body)
	}

	// Malformed amount is 400.
	rec, _ = doJSON(t, h, http.MethodPost, "/pools", map[string]string{
		"caller":        "admin",
		"reserve_asset": "usd",
		"exchange_rate": "not-a-number",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed rate: %d", rec.Code)
	}

	// Non-merchant redeem surfaces as 403 with its own kind.
	rec, created := doJSON(t, h, http.MethodPost, "/pools", map[string]string{
		"caller":        "admin",
		"reserve_asset": "usd",
		"exchange_rate": "1000000000000000000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	poolID := created["id"].(string)
	rec, body = doJSON(t, h, http.MethodPost, "/pools/"+poolID+"/redeem", map[string]string{
		"caller": "alice",
		"amount": "1000000000000000000",
	})
	if rec.Code != http.StatusForbidden || body["kind"] != "unauthorized" {
		t.Fatalf("non-merchant redeem: %d %v", rec.Code, body)
	}
}

func TestHandler_CreditProtectsIssuedUnit(t *testing.T) {
	application, err := app.New(app.Options{UnitAsset: "unit", Admin: "admin"}, app.Stores{}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	h := NewHandler(application)

	// The issued unit must only enter circulation through a mint.
	rec, body := doJSON(t, h, http.MethodPost, "/assets/unit/credit", map[string]string{
		"account": "mallory",
		"amount":  "1000000000000000000",
	})
	if rec.Code != http.StatusBadRequest || body["kind"] != "protected_asset" {
		t.Fatalf("credit of issued unit: %d %v", rec.Code, body)
	}
	if got := application.Assets.BalanceOf("unit", "mallory"); got.Sign() != 0 {
		t.Fatalf("unit balance created without a mint: %s", got)
	}
	if drift := application.Reconciler.Check(); drift.Sign() != 0 {
		t.Fatalf("supply conservation broken: drift %s", drift)
	}

	// Reserve assets remain creditable.
	rec, _ = doJSON(t, h, http.MethodPost, "/assets/usd/credit", map[string]string{
		"account": "mallory",
		"amount":  "1000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("credit of reserve asset: %d %s", rec.Code, rec.Body)
	}
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(t)
	rec, body := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", rec.Code, body)
	}
}

func TestWrapWithAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// No tokens configured: authentication disabled.
	open := WrapWithAuth(inner, nil)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pools", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("open handler: %d", rec.Code)
	}

	guarded := WrapWithAuth(inner, []string{"secret"})

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pools", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/pools", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/pools", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: %d", rec.Code)
	}

	// Probes stay open.
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("healthz should bypass auth: %d", rec.Code)
	}

	// Exchange traffic stays open; merchant and minter checks live in the core.
	for _, path := range []string{
		"/pools/p1/buy",
		"/pools/p1/redeem",
		"/pools/p1/quote/buy",
		"/pools/p1/quote/redeem",
	} {
		rec = httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s should bypass auth: %d", path, rec.Code)
		}
	}

	// Pool administration remains gated.
	for _, path := range []string{
		"/pools",
		"/pools/p1/merchants",
		"/pools/p1/disable",
		"/assets/usd/credit",
	} {
		rec = httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s should require a token: %d", path, rec.Code)
		}
	}
}
