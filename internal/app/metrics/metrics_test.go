package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestRecordMintBurnVolume(t *testing.T) {
	mintCountBefore := testutil.ToFloat64(mints)
	burnCountBefore := testutil.ToFloat64(burns)
	mintVolBefore := testutil.ToFloat64(mintVolume)
	burnVolBefore := testutil.ToFloat64(burnVolume)

	RecordMint(scaled(5))
	RecordBurn(scaled(2))

	if got := testutil.ToFloat64(mints) - mintCountBefore; got != 1 {
		t.Fatalf("mint count delta: %v", got)
	}
	if got := testutil.ToFloat64(burns) - burnCountBefore; got != 1 {
		t.Fatalf("burn count delta: %v", got)
	}
	if got := testutil.ToFloat64(mintVolume) - mintVolBefore; got != 5 {
		t.Fatalf("mint volume delta: %v", got)
	}
	if got := testutil.ToFloat64(burnVolume) - burnVolBefore; got != 2 {
		t.Fatalf("burn volume delta: %v", got)
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/":                          "/",
		"/pools":                     "/pools",
		"/pools/abc":                 "/pools/:pool",
		"/pools/abc/buy":             "/pools/:pool/buy",
		"/pools/abc/merchants/bob":   "/pools/:pool/merchants/:merchant",
		"/assets/usd/balances/alice": "/assets/:asset/balances/:account",
		"/minters/pool-1":            "/minters/:principal",
		"/healthz":                   "/healthz",
	}
	for raw, want := range cases {
		if got := canonicalPath(raw); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", raw, got, want)
		}
	}
}
