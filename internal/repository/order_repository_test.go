package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/fulfillment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOrderRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "school_id", "school_name", "status", "scheduled_date", "estimated_duration_hours", "queued_at",
		"total_students", "total_garments", "total_dark_garments", "total_light_garments",
		"submitted_total_students", "submitted_total_garments", "submitted_total_dark_garments", "submitted_total_light_garments",
		"created_at", "updated_at",
	}).AddRow("ord-1", "sch-1", "SMA 4", "SUBMITTED", nil, nil, nil, 10, 100, 40, 60, 10, 100, 40, 60, now, now)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs("ord-1").
		WillReturnRows(rows)

	order, err := repo.FindByID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusSubmitted, order.Status)
	assert.Equal(t, 100, order.TotalGarments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryUpdateStatusGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.UpdateStatus(context.Background(), "ord-1",
		[]models.OrderStatus{models.OrderStatusSubmitted}, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryUpdateStatusStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	// Source status no longer matches: zero rows, no error.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.UpdateStatus(context.Background(), "ord-1",
		[]models.OrderStatus{models.OrderStatusSubmitted}, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryQueueAtomicWrite(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectExec(`UPDATE orders\s+SET status = \$1, scheduled_date = \$2, estimated_duration_hours = \$3, queued_at = \$4, updated_at = \$4\s+WHERE id = \$5 AND status = ANY\(\$6\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	queued, err := repo.Queue(context.Background(), "ord-1",
		[]models.OrderStatus{models.OrderStatusConfirmed},
		time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC), 30)
	require.NoError(t, err)
	assert.True(t, queued)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateWithRosterRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO classes").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	order := &models.Order{SchoolID: "sch-1", SchoolName: "SMA 4", Status: models.OrderStatusSubmitted}
	err := repo.CreateWithRoster(context.Background(), order,
		[]models.Class{{ID: "cls-1", Name: "1A"}}, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateWithRosterCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO classes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := &models.Order{SchoolID: "sch-1", SchoolName: "SMA 4", Status: models.OrderStatusSubmitted}
	err := repo.CreateWithRoster(context.Background(), order,
		[]models.Class{{ID: "cls-1", Name: "1A"}},
		[]models.Student{{ID: "stu-1", ClassID: "cls-1", FullName: "Alda"}})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID, "ID assigned on insert")
	require.NoError(t, mock.ExpectationsWereMet())
}
