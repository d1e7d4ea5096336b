package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// Genesis describes initial state seeded at startup: pre-funded reserve
// balances and pools to create before the API accepts traffic.
type Genesis struct {
	Balances []GenesisBalance `yaml:"balances"`
	Pools    []GenesisPool    `yaml:"pools"`
}

// GenesisBalance pre-funds one account with a reserve asset.
type GenesisBalance struct {
	Asset   string `yaml:"asset"`
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

// GenesisPool describes one pool to create at startup. Amounts and rates are
// 1e18-scaled decimal strings.
type GenesisPool struct {
	ReserveAsset string   `yaml:"reserve_asset"`
	ExchangeRate string   `yaml:"exchange_rate"`
	MinBuy       string   `yaml:"min_buy"`
	MinRedeem    string   `yaml:"min_redeem"`
	Merchants    []string `yaml:"merchants"`
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}

	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}

	for i, b := range g.Balances {
		if b.Asset == "" || b.Account == "" {
			return nil, fmt.Errorf("genesis balance %d: asset and account are required", i)
		}
		if _, err := ParseAmount(b.Amount); err != nil {
			return nil, fmt.Errorf("genesis balance %d: %w", i, err)
		}
	}
	for i, p := range g.Pools {
		if p.ReserveAsset == "" {
			return nil, fmt.Errorf("genesis pool %d: reserve_asset is required", i)
		}
		rate, err := ParseAmount(p.ExchangeRate)
		if err != nil {
			return nil, fmt.Errorf("genesis pool %d: %w", i, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("genesis pool %d: exchange_rate must be positive", i)
		}
	}
	return &g, nil
}

// ParseAmount parses a non-negative decimal string amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	return v, nil
}
