package audit

import "time"

// Op identifies the mutating operation an audit event describes.
type Op string

const (
	OpMint            Op = "mint"
	OpBurn            Op = "burn"
	OpGrantMinter     Op = "grant_minter"
	OpRevokeMinter    Op = "revoke_minter"
	OpLedgerPause     Op = "ledger_pause"
	OpLedgerUnpause   Op = "ledger_unpause"
	OpBuy             Op = "buy"
	OpRedeem          Op = "redeem"
	OpMerchantAdd     Op = "merchant_add"
	OpMerchantRemove  Op = "merchant_remove"
	OpRateUpdate      Op = "rate_update"
	OpMinimumsUpdate  Op = "minimums_update"
	OpOwnershipChange Op = "ownership_change"
	OpPoolPause       Op = "pool_pause"
	OpPoolUnpause     Op = "pool_unpause"
	OpPoolCreate      Op = "pool_create"
	OpPoolDisable     Op = "pool_disable"
	OpPoolEnable      Op = "pool_enable"
	OpDeposit         Op = "deposit"
	OpWithdraw        Op = "withdraw"
	OpRecover         Op = "recover"
)

// Event is one entry in the audit stream. Every mutating operation on the
// ledger, a pool, or the registry produces exactly one event carrying the
// operation's key parameters and a UTC timestamp.
type Event struct {
	ID        string            `json:"id"`
	Op        Op                `json:"op"`
	Actor     string            `json:"actor"`
	PoolID    string            `json:"pool_id,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
