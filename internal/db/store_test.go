package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

const (
	userID       = "6f1c2d3e-4a5b-4c6d-8e7f-901234567890"
	employeeID   = "0b7e4a52-1d3c-4f8e-9a6b-2c5d7e8f9a01"
	projectID    = "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"
	allocationID = "3a2b1c0d-9e8f-4a7b-8c6d-5e4f3a2b1c0d"
	webhookID    = "7c6b5a49-3827-4615-a4b3-c2d1e0f9a8b7"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewWithPool(mock), mock
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(pgx.ErrNoRows), sentinel.ErrNotFound)
	assert.ErrorIs(t, translateError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "allocations_employee_project_key"}), sentinel.ErrDuplicate)
	assert.ErrorIs(t, translateError(&pgconn.PgError{Code: foreignKeyViolationCode}), sentinel.ErrReference)
	assert.ErrorIs(t, translateError(&pgconn.PgError{Code: invalidTextCode, Message: "invalid input syntax for type uuid"}), sentinel.ErrReference)

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))
}

func TestCreateWebhookDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	w := &models.Webhook{ID: "w1", URL: "https://example.com/hook", Secret: "s", IsActive: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO webhooks")).
		WithArgs("w1", w.URL, []string{}, "s", true, "", w.LastTriggered, int64(0), int64(0), now, now).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "webhooks_pkey"})

	err := store.CreateWebhook(context.Background(), w)
	assert.ErrorIs(t, err, sentinel.ErrDuplicate)
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM webhooks WHERE id = $1")).
		WithArgs(webhookID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, store.DeleteWebhook(context.Background(), webhookID), sentinel.ErrNotFound)
}

func TestDeleteAllocation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM allocations WHERE id = $1")).
		WithArgs(allocationID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, store.DeleteAllocation(context.Background(), allocationID))
}

func TestGetUserNoRows(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetUserByID(context.Background(), userID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAllocationExists(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(employeeID, projectID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.AllocationExists(context.Background(), employeeID, projectID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListAllocationsBuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)
	boom := errors.New("boom")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.start_date <= $1 AND a.end_date >= $2 AND a.employee_id = $3")).
		WithArgs(end, start, employeeID).
		WillReturnError(boom)

	_, err := store.ListAllocations(context.Background(), models.AllocationFilter{Start: &start, End: &end, EmployeeID: employeeID})
	assert.ErrorIs(t, err, boom)
}

func TestUpdateAllocationConflictsRunsInTx(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allocations SET conflicts = $2 WHERE id = $1")).
		WithArgs("a1", []byte("[]")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.UpdateAllocationConflicts(context.Background(), map[string][]models.AllocationConflict{"a1": nil})
	assert.NoError(t, err)
}

func TestUpdateAllocationConflictsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allocations SET conflicts")).
		WithArgs("a1", []byte("[]")).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})
	mock.ExpectRollback()

	err := store.UpdateAllocationConflicts(context.Background(), map[string][]models.AllocationConflict{"a1": {}})
	assert.ErrorIs(t, err, sentinel.ErrReference)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "a.id, a.name", prefixed("a", "id, name"))
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	store, _ := newMockStore(t)
	ctx := context.Background()

	_, err := store.GetAllocation(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.GetEmployee(ctx, "42")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.GetProject(ctx, "titan")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, store.DeleteProject(ctx, "titan"), sentinel.ErrNotFound)
	assert.ErrorIs(t, store.DeleteEmployee(ctx, "42"), sentinel.ErrNotFound)
	assert.ErrorIs(t, store.DeleteAllocation(ctx, "a1"), sentinel.ErrNotFound)

	exists, err := store.AllocationExists(ctx, employeeID, "titan")
	require.NoError(t, err)
	assert.False(t, exists)

	list, err := store.ListAllocations(ctx, models.AllocationFilter{ProjectID: "titan"})
	require.NoError(t, err)
	assert.Empty(t, list)
}
