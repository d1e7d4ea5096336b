package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/exchange"
	"github.com/R3E-Network/exchange_layer/internal/app/domain/registry"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStore_CreatePoolInfo(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO exchange_pools`).
		WithArgs("p1", "usd", "admin", "10", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreatePoolInfo(context.Background(), registry.PoolInfo{
		ID:           "p1",
		ReserveAsset: "usd",
		Admin:        "admin",
		InitialRate:  big.NewInt(10),
		Active:       true,
	})
	require.NoError(t, err)
	require.Equal(t, "p1", created.ID)
	require.False(t, created.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreatePoolInfoAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO exchange_pools`).
		WithArgs(sqlmock.AnyArg(), "usd", "admin", "0", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreatePoolInfo(context.Background(), registry.PoolInfo{
		ReserveAsset: "usd",
		Admin:        "admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetPoolInfo(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "reserve_asset", "admin", "initial_rate", "active", "created_at", "updated_at"}).
		AddRow("p1", "usd", "admin", "10000000000000000000", true, now, now)
	mock.ExpectQuery(`SELECT .+ FROM exchange_pools`).WithArgs("p1").WillReturnRows(rows)

	info, err := store.GetPoolInfo(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "usd", info.ReserveAsset)

	want, _ := new(big.Int).SetString("10000000000000000000", 10)
	require.Zero(t, info.InitialRate.Cmp(want))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdatePoolInfoKeepsImmutableColumns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "reserve_asset", "admin", "initial_rate", "active", "created_at", "updated_at"}).
		AddRow("p1", "usd", "admin", "10", true, now, now)
	mock.ExpectQuery(`SELECT .+ FROM exchange_pools`).WithArgs("p1").WillReturnRows(rows)
	mock.ExpectExec(`UPDATE exchange_pools`).
		WithArgs("p1", "new-admin", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := store.UpdatePoolInfo(context.Background(), registry.PoolInfo{
		ID:           "p1",
		ReserveAsset: "tampered",
		Admin:        "new-admin",
		InitialRate:  big.NewInt(999),
		Active:       false,
	})
	require.NoError(t, err)
	require.Equal(t, "usd", updated.ReserveAsset)
	require.Zero(t, updated.InitialRate.Cmp(big.NewInt(10)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExchangeRecordRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO exchange_records`).
		WithArgs(sqlmock.AnyArg(), "p1", "buy", "alice", "100", "1000", "10", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.CreateExchangeRecord(context.Background(), exchange.Record{
		PoolID:    "p1",
		Kind:      exchange.KindBuy,
		Caller:    "alice",
		AmountIn:  big.NewInt(100),
		AmountOut: big.NewInt(1000),
		Rate:      big.NewInt(10),
	})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "pool_id", "kind", "caller", "amount_in", "amount_out", "rate", "created_at"}).
		AddRow("r1", "p1", "buy", "alice", "100", "1000", "10", now)
	mock.ExpectQuery(`SELECT .+ FROM exchange_records`).WithArgs("p1").WillReturnRows(rows)

	recs, err := store.ListExchangeRecords(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, exchange.KindBuy, recs[0].Kind)
	require.Zero(t, recs[0].AmountOut.Cmp(big.NewInt(1000)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateExchangeRecordRequiresPool(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.CreateExchangeRecord(context.Background(), exchange.Record{})
	require.Error(t, err)
}
