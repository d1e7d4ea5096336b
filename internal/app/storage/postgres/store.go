// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/exchange"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/registry"
	"github.com/R3E-Network/exchange_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Amounts are
// stored as NUMERIC(78,0) and travel as decimal strings.
type Store struct {
	db *sql.DB
}

var _ storage.PoolStore = (*Store)(nil)
var _ storage.ExchangeStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- PoolStore --------------------------------------------------------------

func (s *Store) CreatePoolInfo(ctx context.Context, info registry.PoolInfo) (registry.PoolInfo, error) {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	info.CreatedAt = now
	info.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_pools (id, reserve_asset, admin, initial_rate, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, info.ID, info.ReserveAsset, info.Admin, numeric(info.InitialRate), info.Active, info.CreatedAt, info.UpdatedAt)
	if err != nil {
		return registry.PoolInfo{}, err
	}
	return info, nil
}

func (s *Store) UpdatePoolInfo(ctx context.Context, info registry.PoolInfo) (registry.PoolInfo, error) {
	existing, err := s.GetPoolInfo(ctx, info.ID)
	if err != nil {
		return registry.PoolInfo{}, err
	}

	// Immutable columns survive updates.
	info.ReserveAsset = existing.ReserveAsset
	info.InitialRate = existing.InitialRate
	info.CreatedAt = existing.CreatedAt
	info.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE exchange_pools
		SET admin = $2, active = $3, updated_at = $4
		WHERE id = $1
	`, info.ID, info.Admin, info.Active, info.UpdatedAt)
	if err != nil {
		return registry.PoolInfo{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return registry.PoolInfo{}, sql.ErrNoRows
	}
	return info, nil
}

func (s *Store) GetPoolInfo(ctx context.Context, id string) (registry.PoolInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reserve_asset, admin, initial_rate, active, created_at, updated_at
		FROM exchange_pools
		WHERE id = $1
	`, id)
	return scanPoolInfo(row)
}

func (s *Store) ListPoolInfos(ctx context.Context) ([]registry.PoolInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reserve_asset, admin, initial_rate, active, created_at, updated_at
		FROM exchange_pools
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoolInfos(rows)
}

func (s *Store) ListPoolInfosByReserveAsset(ctx context.Context, asset string) ([]registry.PoolInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reserve_asset, admin, initial_rate, active, created_at, updated_at
		FROM exchange_pools
		WHERE reserve_asset = $1
		ORDER BY created_at
	`, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoolInfos(rows)
}

// --- ExchangeStore ----------------------------------------------------------

func (s *Store) CreateExchangeRecord(ctx context.Context, rec exchange.Record) (exchange.Record, error) {
	if rec.PoolID == "" {
		return exchange.Record{}, fmt.Errorf("pool_id required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_records (id, pool_id, kind, caller, amount_in, amount_out, rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.PoolID, string(rec.Kind), rec.Caller, numeric(rec.AmountIn), numeric(rec.AmountOut), numeric(rec.Rate), rec.CreatedAt)
	if err != nil {
		return exchange.Record{}, err
	}
	return rec, nil
}

func (s *Store) ListExchangeRecords(ctx context.Context, poolID string) ([]exchange.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pool_id, kind, caller, amount_in, amount_out, rate, created_at
		FROM exchange_records
		WHERE pool_id = $1
		ORDER BY created_at
	`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []exchange.Record
	for rows.Next() {
		var (
			rec                       exchange.Record
			kind                      string
			amountIn, amountOut, rate string
		)
		if err := rows.Scan(&rec.ID, &rec.PoolID, &kind, &rec.Caller, &amountIn, &amountOut, &rate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = exchange.Kind(kind)
		if rec.AmountIn, err = parseNumeric(amountIn); err != nil {
			return nil, err
		}
		if rec.AmountOut, err = parseNumeric(amountOut); err != nil {
			return nil, err
		}
		if rec.Rate, err = parseNumeric(rate); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) CreateAuditEvent(ctx context.Context, evt audit.Event) (audit.Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	paramsJSON, err := json.Marshal(evt.Params)
	if err != nil {
		return audit.Event{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, op, actor, pool_id, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.ID, string(evt.Op), evt.Actor, evt.PoolID, paramsJSON, evt.CreatedAt)
	if err != nil {
		return audit.Event{}, err
	}
	return evt, nil
}

func (s *Store) ListAuditEvents(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op, actor, pool_id, params, created_at
		FROM (
			SELECT id, op, actor, pool_id, params, created_at
			FROM audit_events
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Event
	for rows.Next() {
		var (
			evt       audit.Event
			op        string
			paramsRaw []byte
		)
		if err := rows.Scan(&evt.ID, &op, &evt.Actor, &evt.PoolID, &paramsRaw, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.Op = audit.Op(op)
		if len(paramsRaw) > 0 {
			_ = json.Unmarshal(paramsRaw, &evt.Params)
		}
		result = append(result, evt)
	}
	return result, rows.Err()
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric %q", s)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoolInfo(row rowScanner) (registry.PoolInfo, error) {
	var (
		info registry.PoolInfo
		rate string
	)
	if err := row.Scan(&info.ID, &info.ReserveAsset, &info.Admin, &rate, &info.Active, &info.CreatedAt, &info.UpdatedAt); err != nil {
		return registry.PoolInfo{}, err
	}
	parsed, err := parseNumeric(rate)
	if err != nil {
		return registry.PoolInfo{}, err
	}
	info.InitialRate = parsed
	return info, nil
}

func collectPoolInfos(rows *sql.Rows) ([]registry.PoolInfo, error) {
	var result []registry.PoolInfo
	for rows.Next() {
		info, err := scanPoolInfo(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	return result, rows.Err()
}
