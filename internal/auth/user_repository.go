package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultUsersTable = "users"

// DBTX is the subset of *sql.DB used by the user repository.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresUserRepository stores accounts in Postgres.
type PostgresUserRepository struct {
	db    DBTX
	table string
}

// NewPostgresUserRepository constructs a repository.
func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, table: defaultUsersTable}
}

// FindUser loads an active or inactive user with its station scope.
func (r *PostgresUserRepository) FindUser(ctx context.Context, username string) (*User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT u.id, u.username, u.password_hash, u.role, COALESCE(u.station_id, 0),
	COALESCE(s.acronym, ''), COALESCE(s.normalized_name, ''), u.active, u.created_at
FROM %s u
LEFT JOIN stations s ON s.id = u.station_id
WHERE u.username = $1
LIMIT 1`, r.table)

	var user User
	var role string
	if err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&role,
		&user.StationID,
		&user.StationAcronym,
		&user.StationNormalizedName,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.Role = Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// CreateUser inserts a user.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if user == nil {
		return errors.New("user repo: nil user")
	}
	if err := user.Validate(); err != nil {
		return err
	}
	var stationID any
	if user.StationID > 0 {
		stationID = user.StationID
	}
	query := fmt.Sprintf(`
INSERT INTO %s (username, password_hash, role, station_id, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`, r.table)
	if err := r.db.QueryRowContext(ctx, query, user.Username, user.PasswordHash, string(user.Role), stationID, user.Active).
		Scan(&user.ID, &user.CreatedAt); err != nil {
		return err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	return nil
}
