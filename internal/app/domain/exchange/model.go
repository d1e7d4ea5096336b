package exchange

import (
	"math/big"
	"time"
)

// Kind distinguishes the two exchange directions.
type Kind string

const (
	KindBuy    Kind = "buy"
	KindRedeem Kind = "redeem"
)

// Record captures one completed buy or redeem through a pool.
type Record struct {
	ID        string
	PoolID    string
	Kind      Kind
	Caller    string
	AmountIn  *big.Int
	AmountOut *big.Int
	Rate      *big.Int
	CreatedAt time.Time
}
