package registry

import (
	"math/big"
	"time"
)

// PoolInfo is the registry's denormalized snapshot of a pool taken at
// creation time. Entries are append-only; disabling a pool flips Active and
// never deletes the row, so the full audit history persists.
//
// InitialRate is the exchange rate at creation. The live rate is always read
// from the pool itself and never cached here.
type PoolInfo struct {
	ID           string
	ReserveAsset string
	Admin        string
	InitialRate  *big.Int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SystemStats aggregates registry-wide counters. ActivePools is recomputed
// from the snapshot rows on every call rather than cached.
type SystemStats struct {
	TotalPools    int
	ActivePools   int
	TotalSupply   *big.Int
	TotalBought   *big.Int
	TotalRedeemed *big.Int
	BuyCount      uint64
	RedeemCount   uint64
}
