package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"sites-spectral/internal/observability/metrics"
)

// Recorder writes audit entries without ever failing the caller. Entries
// that cannot be persisted are written to the process log instead.
type Recorder struct {
	logger Logger
	log    *logrus.Logger
	now    func() time.Time
}

// NewRecorder constructs a recorder. A nil logger records to the process log only.
func NewRecorder(logger Logger, log *logrus.Logger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{logger: logger, log: log, now: time.Now}
}

// WithClock overrides the timestamp source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Record stamps and writes an entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	prepare(&entry)
	if r.logger == nil {
		r.fallback(entry, nil)
		return
	}
	if err := r.logger.Log(ctx, entry); err != nil {
		metrics.IncAuditWriteFailure()
		r.fallback(entry, err)
	}
}

// Describe marshals metadata for an entry, ignoring values that cannot be encoded.
func Describe(metadata map[string]any) json.RawMessage {
	if len(metadata) == 0 {
		return nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return data
}

func (r *Recorder) fallback(entry Entry, err error) {
	fields := logrus.Fields{
		"audit_id":      entry.ID,
		"timestamp":     entry.Timestamp.Format(time.RFC3339Nano),
		"admin_user":    entry.AdminUser,
		"action":        entry.Action,
		"description":   entry.Description,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
		"metadata":      string(entry.Metadata),
	}
	if err != nil {
		r.log.WithFields(fields).WithError(err).Warn("audit write failed, entry kept in process log")
		return
	}
	r.log.WithFields(fields).Info("audit")
}
