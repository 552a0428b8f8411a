package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry represents an admin audit log entry.
type Entry struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	AdminUser     string          `json:"admin_user"`
	Role          string          `json:"role"`
	Action        string          `json:"action"`
	Description   string          `json:"description"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	Station       string          `json:"station"`
	Metadata      json.RawMessage `json:"metadata"`
	PayloadDigest string          `json:"payload_digest"`
	IP            string          `json:"ip"`
	UserAgent     string          `json:"user_agent"`
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Counter answers sliding-window questions about past entries.
type Counter interface {
	// CountSince counts entries of adminUser and action strictly after since,
	// and returns the oldest of them.
	CountSince(ctx context.Context, adminUser, action string, since time.Time) (int, time.Time, error)
}

// Store is an append-only audit log that can also be counted.
type Store interface {
	Logger
	Counter
}

// NewID generates a random audit id.
func NewID() string {
	return uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ActionForMethod names the admin action of an HTTP method, e.g. admin_delete.
func ActionForMethod(method string) string {
	return "admin_" + strings.ToLower(method)
}

func prepare(entry *Entry) {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = json.RawMessage(`{}`)
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
}
