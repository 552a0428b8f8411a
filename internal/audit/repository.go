package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository writes audit logs to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	prepare(&entry)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO admin_audit_log (
	id, timestamp, admin_user, role, action, description, resource_type, resource_id,
	station, metadata, payload_digest, ip, user_agent
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, entry.ID, entry.Timestamp, entry.AdminUser, entry.Role, entry.Action, entry.Description, entry.ResourceType,
		entry.ResourceID, entry.Station, string(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent)
	return err
}

// CountSince counts entries in the trailing window.
func (r *Repository) CountSince(ctx context.Context, adminUser, action string, since time.Time) (int, time.Time, error) {
	if r == nil || r.db == nil {
		return 0, time.Time{}, errors.New("audit repo: nil db")
	}
	var (
		count  int
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), MIN(timestamp)
FROM admin_audit_log
WHERE admin_user = $1 AND action = $2 AND timestamp > $3`, adminUser, action, since).Scan(&count, &oldest)
	if err != nil {
		return 0, time.Time{}, err
	}
	if !oldest.Valid {
		return count, time.Time{}, nil
	}
	return count, oldest.Time.UTC(), nil
}
