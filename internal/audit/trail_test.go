package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"shift-coverage/internal/models"
)

func TestAppendFillsDefaults(t *testing.T) {
	tr := New(nil)
	e := tr.Append(models.AuditLogEntry{VacancyID: "v1", From: models.TierCasuals, To: models.TierOTFullTime, Reason: models.ReasonAutoProgress})
	if e.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if e.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be assigned")
	}
	if e.Actor != models.ActorSystem {
		t.Fatalf("expected system actor, got %q", e.Actor)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tr.Len())
	}
}

func TestQueryByVacancyAndDate(t *testing.T) {
	day1 := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2026, 5, 2, 1, 0, 0, 0, time.UTC)
	tr := New([]models.AuditLogEntry{
		{ID: "a", VacancyID: "v1", Timestamp: day1},
		{ID: "b", VacancyID: "v2", Timestamp: day1},
		{ID: "c", VacancyID: "v1", Timestamp: day2},
	})

	if got := tr.Query(Filter{VacancyID: "v1"}); len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected vacancy filter result: %+v", got)
	}
	if got := tr.Query(Filter{Date: "2026-05-01"}); len(got) != 2 {
		t.Fatalf("expected 2 entries on 2026-05-01, got %d", len(got))
	}
	// In UTC-5 both day1 and day2 fall on May 1st.
	loc := time.FixedZone("EST", -5*3600)
	if got := tr.Query(Filter{Date: "2026-05-01", Location: loc}); len(got) != 3 {
		t.Fatalf("expected 3 entries on local 2026-05-01, got %d", len(got))
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	tr := New(nil)
	tr.Append(models.AuditLogEntry{VacancyID: "v1", Note: "original"})
	got := tr.Entries()
	got[0].Note = "mutated"
	if tr.Entries()[0].Note != "original" {
		t.Fatalf("trail entries must not be mutable through a query result")
	}
}

func TestClear(t *testing.T) {
	tr := New([]models.AuditLogEntry{{ID: "a"}, {ID: "b"}})
	tr.Clear()
	if tr.Len() != 0 {
		t.Fatalf("expected empty trail after clear, got %d", tr.Len())
	}
}

type recordingSink struct {
	mu  sync.Mutex
	ids []string
	got chan struct{}
}

func (s *recordingSink) AppendAudit(_ context.Context, e models.AuditLogEntry) error {
	s.mu.Lock()
	s.ids = append(s.ids, e.ID)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func TestMirrorForwardsInOrder(t *testing.T) {
	sink := &recordingSink{got: make(chan struct{}, 3)}
	tr := New(nil)
	stop := tr.StartMirror(sink)
	defer stop(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		tr.Append(models.AuditLogEntry{ID: id, VacancyID: "v1"})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-sink.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for mirrored entry %d", i)
		}
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.ids) != 3 || sink.ids[0] != "a" || sink.ids[2] != "c" {
		t.Fatalf("unexpected mirrored order: %v", sink.ids)
	}
}

func TestMirrorStopWritesBufferedEntries(t *testing.T) {
	release := make(chan struct{})
	sink := &blockingSink{release: release}
	tr := New(nil)
	stop := tr.StartMirror(sink)

	for _, id := range []string{"a", "b", "c", "d"} {
		tr.Append(models.AuditLogEntry{ID: id, VacancyID: "v1"})
	}
	close(release)
	stop(context.Background())

	sink.mu.Lock()
	got := append([]string(nil), sink.ids...)
	sink.mu.Unlock()
	if len(got) != 4 || got[0] != "a" || got[3] != "d" {
		t.Fatalf("expected every buffered entry written before stop returns, got %v", got)
	}

	tr.Append(models.AuditLogEntry{ID: "e", VacancyID: "v1"})
	if tr.Len() != 5 {
		t.Fatalf("append after stop must still record locally, got %d", tr.Len())
	}
}

func TestMirrorStopGivesUpWhenContextEnds(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	tr := New(nil)
	stop := tr.StartMirror(sink)
	tr.Append(models.AuditLogEntry{ID: "a", VacancyID: "v1"})
	tr.Append(models.AuditLogEntry{ID: "b", VacancyID: "v1"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	finished := make(chan struct{})
	go func() {
		stop(ctx)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return after its context ended")
	}
}

// blockingSink holds each write until release is closed or the write context ends.
type blockingSink struct {
	mu      sync.Mutex
	ids     []string
	release chan struct{}
}

func (s *blockingSink) AppendAudit(ctx context.Context, e models.AuditLogEntry) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.ids = append(s.ids, e.ID)
	s.mu.Unlock()
	return nil
}
