package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/signal-trader/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{conn: sqlDB}, mock
}

var signalRowColumns = []string{
	"id", "user_id", "rule_id", "symbol", "signal_type", "price_at_signal", "bb_upper", "bb_lower",
	"bb_middle", "vwap", "volume", "executed", "bar_time", "triggered_at",
}

func testSignal(barTime time.Time) *models.Signal {
	return &models.Signal{
		ID:            "sig-new",
		UserID:        "user-1",
		RuleID:        "rule-1",
		Symbol:        "AAPL",
		SignalType:    models.SignalBBBreakoutUp,
		PriceAtSignal: decimal.NewFromInt(150),
		BBUpper:       decimal.RequireFromString("144.86"),
		BBLower:       decimal.RequireFromString("136.14"),
		BBMiddle:      decimal.RequireFromString("140.5"),
		Volume:        1000,
		BarTime:       barTime,
		TriggeredAt:   barTime,
	}
}

func TestClaimSignal(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE signals SET executed = TRUE").
			WithArgs("sig-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.BeginTx(ctx)
		require.NoError(t, err)
		claimed, err := tx.ClaimSignal(ctx, "sig-1")
		require.NoError(t, err)
		assert.True(t, claimed)
		require.NoError(t, tx.Commit())
		assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows means already claimed", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE signals SET executed = TRUE").
			WithArgs("sig-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := db.BeginTx(ctx)
		require.NoError(t, err)
		claimed, err := tx.ClaimSignal(ctx, "sig-1")
		require.NoError(t, err)
		assert.False(t, claimed)
		require.NoError(t, tx.Rollback())

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE signals").WillReturnError(errors.New("deadlock detected"))

		tx, err := db.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx.ClaimSignal(ctx, "sig-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to claim signal")
	})

	t.Run("begin failure is reported", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		_, err := db.BeginTx(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestClosePositionTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	closedAt := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE positions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	ok, err := tx.ClosePosition(ctx, &models.Position{ID: "pos-1", ClosedAt: &closedAt, CloseReason: models.CloseReasonManual})
	require.NoError(t, err)
	assert.False(t, ok, "a closed position is not closed again")
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSignal(t *testing.T) {
	ctx := context.Background()
	barTime := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	t.Run("new signal is created", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO signals").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sig-new"))

		stored, created, err := db.InsertSignal(ctx, testSignal(barTime))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "sig-new", stored.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate returns the existing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO signals").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("SELECT (.+) FROM signals").
			WithArgs("rule-1", "AAPL", "bb_breakout_up", barTime).
			WillReturnRows(sqlmock.NewRows(signalRowColumns).AddRow(
				"sig-old", "user-1", "rule-1", "AAPL", "bb_breakout_up", "150.000000", "144.860000", "136.140000",
				"140.500000", nil, int64(1000), true, barTime, barTime,
			))

		stored, created, err := db.InsertSignal(ctx, testSignal(barTime))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "sig-old", stored.ID)
		assert.True(t, stored.Executed)
		assert.False(t, stored.VWAP.Valid)
		assert.True(t, stored.PriceAtSignal.Equal(decimal.NewFromInt(150)))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert errors are wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO signals").WillReturnError(errors.New("foreign key violation"))

		_, _, err := db.InsertSignal(ctx, testSignal(barTime))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert signal")
	})
}

func TestUpdateOrderStatusByBrokerID(t *testing.T) {
	ctx := context.Background()

	t.Run("valid transition updates", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WithArgs("paper-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("submitted"))
		mock.ExpectExec("UPDATE orders SET status").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := db.UpdateOrderStatusByBrokerID(ctx, "paper-1", models.OrderStatusFilled)
		require.NoError(t, err)
		assert.True(t, changed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repeated status is a no-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("filled"))
		mock.ExpectRollback()

		changed, err := db.UpdateOrderStatusByBrokerID(ctx, "paper-1", models.OrderStatusFilled)
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backward transition is refused", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("filled"))
		mock.ExpectRollback()

		_, err := db.UpdateOrderStatusByBrokerID(ctx, "paper-1", models.OrderStatusSubmitted)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown broker id is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		_, err := db.UpdateOrderStatusByBrokerID(ctx, "missing", models.OrderStatusFilled)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdatePositionMarks(t *testing.T) {
	ctx := context.Background()

	t.Run("closed positions are not updated", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE positions").WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.UpdatePositionMarks(ctx, &models.Position{ID: "pos-1"})
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("open position is updated", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE positions").WillReturnResult(sqlmock.NewResult(0, 1))

		err := db.UpdatePositionMarks(ctx, &models.Position{
			ID:                "pos-1",
			CurrentPrice:      decimal.NewNullDecimal(decimal.NewFromInt(110)),
			TrailingStopPrice: decimal.NewNullDecimal(decimal.RequireFromString("104.5")),
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCountOrdersSince(t *testing.T) {
	db, mock := newMockDB(t)
	since := time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := db.CountOrdersSince(context.Background(), "user-1", since)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
