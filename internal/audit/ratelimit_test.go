package audit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiterDeleteWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepository()
	recorder := NewRecorder(repo, nil).WithClock(clock.Now)
	limiter := NewRateLimiter(repo, DefaultLimits(), nil).WithClock(clock.Now)

	for i := 0; i < 10; i++ {
		if d := limiter.Check(ctx, "alice", http.MethodDelete); d.Exceeded {
			t.Fatalf("delete %d rejected: %+v", i+1, d)
		}
		recorder.Record(ctx, Entry{AdminUser: "alice", Action: ActionForMethod(http.MethodDelete)})
		clock.Advance(10 * time.Second)
	}

	d := limiter.Check(ctx, "alice", http.MethodDelete)
	if !d.Exceeded || d.CurrentCount != 10 || d.Limit != 10 {
		t.Fatalf("expected 11th delete rejected with 10/10, got %+v", d)
	}
	if d.RetryAfterSeconds != 200 {
		t.Fatalf("expected retry after 200s, got %d", d.RetryAfterSeconds)
	}
	var rlErr *RateLimitError
	if err := limiter.Enforce(ctx, "alice", http.MethodDelete); !errors.As(err, &rlErr) || rlErr.CurrentCount != 10 {
		t.Fatalf("expected RateLimitError, got %v", err)
	}

	if d := limiter.Check(ctx, "bob", http.MethodDelete); d.Exceeded {
		t.Fatalf("other admin limited: %+v", d)
	}
	if d := limiter.Check(ctx, "alice", http.MethodPut); d.Exceeded || d.Limit != 50 {
		t.Fatalf("updates counted against deletes: %+v", d)
	}
	if d := limiter.Check(ctx, "alice", http.MethodGet); d.Exceeded || d.Limit != 0 {
		t.Fatalf("reads limited: %+v", d)
	}

	clock.Advance(5 * time.Minute)
	if d := limiter.Check(ctx, "alice", http.MethodDelete); d.Exceeded || d.CurrentCount != 0 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
}

type failingStore struct{}

func (failingStore) Log(context.Context, Entry) error { return errors.New("db down") }

func (failingStore) CountSince(context.Context, string, string, time.Time) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("db down")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	limiter := NewRateLimiter(failingStore{}, DefaultLimits(), logger)

	d := limiter.Check(context.Background(), "alice", http.MethodDelete)
	if d.Exceeded {
		t.Fatalf("expected fail-open, got %+v", d)
	}
	if hook.LastEntry() == nil || hook.LastEntry().Data["action"] != "admin_delete" {
		t.Fatalf("expected fail-open warning to be logged")
	}
}

func TestRecorderFallsBackToProcessLog(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	recorder := NewRecorder(failingStore{}, logger)

	recorder.Record(context.Background(), Entry{
		AdminUser:   "alice",
		Action:      "admin_delete",
		Description: "deleted station 3",
		Metadata:    Describe(map[string]any{"force_cascade": true}),
	})

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected fallback log entry")
	}
	if entry.Data["admin_user"] != "alice" || entry.Data["metadata"] != `{"force_cascade":true}` {
		t.Fatalf("unexpected fallback fields %v", entry.Data)
	}
}

func TestMemoryRepositoryWindowIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_ = repo.Log(ctx, Entry{AdminUser: "alice", Action: "admin_post", Timestamp: at})
	_ = repo.Log(ctx, Entry{AdminUser: "alice", Action: "admin_post", Timestamp: at.Add(time.Minute)})

	count, oldest, err := repo.CountSince(ctx, "alice", "admin_post", at)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 || !oldest.Equal(at.Add(time.Minute)) {
		t.Fatalf("unexpected count %d oldest %v", count, oldest)
	}
	if len(repo.Entries()) != 2 || repo.Entries()[0].ID == "" {
		t.Fatalf("expected ids assigned")
	}
}
