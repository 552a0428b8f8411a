package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admin_audit_log")).
		WithArgs(sqlmock.AnyArg(), at, "alice", "admin", "admin_delete", "deleted station", "station", "3",
			"svartberget", `{}`, DigestJSON([]byte(`{}`)), "10.0.0.1", "curl").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewRepository(db)
	err = repo.Log(context.Background(), Entry{
		Timestamp:    at,
		AdminUser:    "alice",
		Role:         "admin",
		Action:       "admin_delete",
		Description:  "deleted station",
		ResourceType: "station",
		ResourceID:   "3",
		Station:      "svartberget",
		IP:           "10.0.0.1",
		UserAgent:    "curl",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCountSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	oldest := since.Add(30 * time.Second)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), MIN(timestamp)")).
		WithArgs("alice", "admin_delete", since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min"}).AddRow(4, oldest))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), MIN(timestamp)")).
		WithArgs("bob", "admin_delete", since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min"}).AddRow(0, nil))

	repo := NewRepository(db)
	count, first, err := repo.CountSince(context.Background(), "alice", "admin_delete", since)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.True(t, first.Equal(oldest))

	count, first, err = repo.CountSince(context.Background(), "bob", "admin_delete", since)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.True(t, first.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
