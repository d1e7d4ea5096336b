package storage

import (
	"context"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/exchange"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/registry"
)

// PoolStore persists registry pool snapshots. Rows are append-only; updates
// only flip flags, never remove history.
type PoolStore interface {
	CreatePoolInfo(ctx context.Context, info registry.PoolInfo) (registry.PoolInfo, error)
	UpdatePoolInfo(ctx context.Context, info registry.PoolInfo) (registry.PoolInfo, error)
	GetPoolInfo(ctx context.Context, id string) (registry.PoolInfo, error)
	ListPoolInfos(ctx context.Context) ([]registry.PoolInfo, error)
	ListPoolInfosByReserveAsset(ctx context.Context, asset string) ([]registry.PoolInfo, error)
}

// ExchangeStore persists completed buy and redeem records.
type ExchangeStore interface {
	CreateExchangeRecord(ctx context.Context, rec exchange.Record) (exchange.Record, error)
	ListExchangeRecords(ctx context.Context, poolID string) ([]exchange.Record, error)
}

// AuditStore persists the audit event stream.
type AuditStore interface {
	CreateAuditEvent(ctx context.Context, evt audit.Event) (audit.Event, error)
	ListAuditEvents(ctx context.Context, limit int) ([]audit.Event, error)
}
