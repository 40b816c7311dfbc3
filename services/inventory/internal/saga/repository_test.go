package saga_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/saga"
)

// setupMockDB создаёт GORM поверх sqlmock, чтобы проверить точный SQL,
// формируемый GORM, без поднятия реальной MySQL.
//
// Аргументы UPDATE, построенного из map[string]any (как в ReserveAndEmit и
// Release), здесь намеренно не проверяются позиционно: порядок итерации по
// map в Go не детерминирован, так что сверяются только сам SQL (через regex)
// и число затронутых строк.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dialector := mysqldriver.New(mysqldriver.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func newReply(orderID string) *outboxpkg.Outbox {
	return &outboxpkg.Outbox{
		ID:            "event-1",
		AggregateType: "inventory",
		AggregateID:   orderID,
		EventType:     "inventory.reserved",
		RoutingKey:    "inventory.reserved",
		Payload:       []byte(`{}`),
		Status:        outboxpkg.StatusPending,
		CreatedAt:     time.Now(),
	}
}

// TestReserveAndEmit_CASConditionInWhereClause verifies the conditional
// UPDATE carries the version and availability guard (DB-enforced CAS, not
// non-atomic read-then-write).
func TestReserveAndEmit_CASConditionInWhereClause(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := saga.NewCommandRepository(db)

	reservation := domain.NewActiveReservation("order-1", "corr-1", []domain.ReservationItem{
		{ProductID: "prod-1", Quantity: 2},
	})
	reservation.ID = "res-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `products` SET") + `.*WHERE.*id = \?.*version = \?.*available_quantity >= \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `reservations`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `outbox`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReserveAndEmit(context.Background(), reservation, []saga.ProductReservation{
		{ProductID: "prod-1", Quantity: 2, OldVersion: 0},
	}, newReply("order-1"))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestReserveAndEmit_StaleVersionRollsBack verifies that a concurrent winner
// (RowsAffected=0 because another transaction already bumped the version or
// exhausted the stock) surfaces as saga.ErrStaleVersion and the transaction rolls
// back without inserting a Reservation or an outbox row.
func TestReserveAndEmit_StaleVersionRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := saga.NewCommandRepository(db)

	reservation := domain.NewActiveReservation("order-2", "corr-2", []domain.ReservationItem{
		{ProductID: "prod-1", Quantity: 5},
	})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `products` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReserveAndEmit(context.Background(), reservation, []saga.ProductReservation{
		{ProductID: "prod-1", Quantity: 5, OldVersion: 3},
	}, newReply("order-2"))

	assert.ErrorIs(t, err, saga.ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRelease_IdempotentAppliesCreditBackAndMarksReleased exercises the
// unconditional credit-back UPDATE plus the status-guarded Reservation
// transition (releasing is idempotent).
func TestRelease_IdempotentAppliesCreditBackAndMarksReleased(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := saga.NewCommandRepository(db)

	reservation := domain.NewActiveReservation("order-3", "corr-3", nil)
	reservation.ID = "res-3"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `products` SET") + `.*WHERE.*id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `reservations` SET") + `.*WHERE.*id = \?.*status = \?`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "res-3", string(domain.ReservationStatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Release(context.Background(), reservation, []saga.ProductReservation{
		{ProductID: "prod-1", Quantity: 2},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
