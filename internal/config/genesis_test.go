package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGenesis(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func TestLoadGenesis(t *testing.T) {
	path := writeGenesis(t, `
balances:
  - asset: usd
    account: alice
    amount: "100000000000000000000"
pools:
  - reserve_asset: usd
    exchange_rate: "10000000000000000000"
    min_buy: "1000000000000000000"
    merchants:
      - bob
`)
	g, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	if len(g.Balances) != 1 || g.Balances[0].Account != "alice" {
		t.Fatalf("balances: %+v", g.Balances)
	}
	if len(g.Pools) != 1 || g.Pools[0].Merchants[0] != "bob" {
		t.Fatalf("pools: %+v", g.Pools)
	}
}

func TestLoadGenesisValidation(t *testing.T) {
	cases := map[string]string{
		"missing account": `
balances:
  - asset: usd
    amount: "1"
`,
		"malformed amount": `
balances:
  - asset: usd
    account: alice
    amount: "1.5"
`,
		"missing reserve asset": `
pools:
  - exchange_rate: "1"
`,
		"zero rate": `
pools:
  - reserve_asset: usd
    exchange_rate: "0"
`,
	}
	for name, content := range cases {
		if _, err := LoadGenesis(writeGenesis(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := LoadGenesis(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file: expected error")
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := ParseAmount(""); err != nil || v.Sign() != 0 {
		t.Fatalf("empty amount: %v %v", v, err)
	}
	if v, err := ParseAmount("12345"); err != nil || v.Int64() != 12345 {
		t.Fatalf("plain amount: %v %v", v, err)
	}
	for _, bad := range []string{"-1", "1.5", "abc", "0x10"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestConfigAdminTokens(t *testing.T) {
	var cfg Config
	cfg.Auth.AdminTokens = " tok1, tok2 ,,tok3"
	tokens := cfg.AdminTokens()
	if len(tokens) != 3 || tokens[0] != "tok1" || tokens[2] != "tok3" {
		t.Fatalf("tokens: %v", tokens)
	}

	cfg.Auth.AdminTokens = ""
	if got := cfg.AdminTokens(); len(got) != 0 {
		t.Fatalf("empty token list: %v", got)
	}
}
