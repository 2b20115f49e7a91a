// Package audit keeps the append-only log of offering tier transitions.
package audit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"shift-coverage/internal/models"
	"shift-coverage/internal/telemetry"
)

// Sink durably mirrors audit entries outside the document, e.g. a database table.
type Sink interface {
	AppendAudit(ctx context.Context, entry models.AuditLogEntry) error
}

// History reads mirrored entries back from durable storage. It outlives
// Clear on the in-document log.
type History interface {
	ListAudit(ctx context.Context, vacancyID string) ([]models.AuditLogEntry, error)
}

// Filter narrows a query. Zero fields match everything.
type Filter struct {
	VacancyID string
	// Date is a calendar day (YYYY-MM-DD) compared against the entry timestamp in Location.
	Date     string
	Location *time.Location
}

// Trail is an append-only sequence of audit entries. Entries are never edited;
// Clear wipes the whole log for housekeeping.
type Trail struct {
	mu      sync.RWMutex
	entries []models.AuditLogEntry
	mirror  chan models.AuditLogEntry
}

// New seeds a trail with previously persisted entries.
func New(entries []models.AuditLogEntry) *Trail {
	out := make([]models.AuditLogEntry, len(entries))
	copy(out, entries)
	return &Trail{entries: out}
}

// Append records e, filling ID and Timestamp when unset, and returns the stored entry.
func (t *Trail) Append(e models.AuditLogEntry) models.AuditLogEntry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Actor == "" {
		e.Actor = models.ActorSystem
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	if t.mirror != nil {
		select {
		case t.mirror <- e:
		default:
			telemetry.PersistFailures.WithLabelValues("audit_mirror").Inc()
			log.Printf("audit: mirror backlog full, dropped entry=%s vacancy=%s", e.ID, e.VacancyID)
		}
	}
	return e
}

// Entries returns a copy of every entry in append order.
func (t *Trail) Entries() []models.AuditLogEntry {
	return t.Query(Filter{})
}

// Query returns the entries matching f in append order.
func (t *Trail) Query(f Filter) []models.AuditLogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.AuditLogEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Match reports whether e passes the filter.
func (f Filter) Match(e models.AuditLogEntry) bool {
	if f.VacancyID != "" && e.VacancyID != f.VacancyID {
		return false
	}
	if f.Date == "" {
		return true
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return e.Timestamp.In(loc).Format(models.DateLayout) == f.Date
}

// Len returns the number of entries.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear wipes the log.
func (t *Trail) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

// StartMirror forwards every subsequent Append to sink in order. The returned
// stop detaches the mirror and writes out whatever is still buffered, giving
// up on the remainder once ctx ends.
func (t *Trail) StartMirror(sink Sink) (stop func(ctx context.Context)) {
	ch := make(chan models.AuditLogEntry, 256)
	done := make(chan struct{})
	base, abandon := context.WithCancel(context.Background())
	t.mu.Lock()
	t.mirror = ch
	t.mu.Unlock()

	go func() {
		defer close(done)
		for e := range ch {
			if base.Err() != nil {
				telemetry.PersistFailures.WithLabelValues("audit_mirror").Inc()
				log.Printf("audit: mirror stopped, dropped entry=%s vacancy=%s", e.ID, e.VacancyID)
				continue
			}
			writeCtx, cancel := context.WithTimeout(base, 5*time.Second)
			if err := sink.AppendAudit(writeCtx, e); err != nil {
				telemetry.PersistFailures.WithLabelValues("audit_mirror").Inc()
				log.Printf("audit: mirror entry=%s: %v", e.ID, err)
			}
			cancel()
		}
	}()

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			t.mu.Lock()
			if t.mirror == ch {
				t.mirror = nil
			}
			close(ch)
			t.mu.Unlock()
		})
		select {
		case <-done:
		case <-ctx.Done():
			abandon()
			<-done
		}
		abandon()
	}
}
