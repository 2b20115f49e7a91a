package document

import (
	"errors"
	"testing"
	"time"

	"shift-coverage/internal/models"
)

func TestArchiveResponsesMovesAndIsIdempotent(t *testing.T) {
	doc := New(models.DefaultSettings())
	doc.Responses = []models.Response{
		{ID: "r1", VacancyID: "v1"},
		{ID: "r2", VacancyID: "v2"},
		{ID: "r3", VacancyID: "v1"},
	}

	if moved := ArchiveResponses(&doc, "v1"); moved != 2 {
		t.Fatalf("expected 2 moved, got %d", moved)
	}
	if moved := ArchiveResponses(&doc, "v1"); moved != 0 {
		t.Fatalf("expected second archive to move nothing, got %d", moved)
	}
	if len(doc.Responses) != 1 || doc.Responses[0].ID != "r2" {
		t.Fatalf("unexpected live responses %+v", doc.Responses)
	}
	if got := doc.ArchivedResponses["v1"]; len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r3" {
		t.Fatalf("unexpected archive %+v", got)
	}
}

func TestArchiveResponsesSkipsAlreadyArchived(t *testing.T) {
	doc := New(models.DefaultSettings())
	doc.ArchivedResponses["v1"] = []models.Response{{ID: "r1", VacancyID: "v1"}}
	doc.Responses = []models.Response{{ID: "r1", VacancyID: "v1"}}

	ArchiveResponses(&doc, "v1")
	if got := doc.ArchivedResponses["v1"]; len(got) != 1 {
		t.Fatalf("expected no duplicate archive entry, got %d", len(got))
	}
	if len(doc.Responses) != 0 {
		t.Fatalf("expected live list emptied")
	}
}

func TestExpandAbsence(t *testing.T) {
	known := time.Date(2026, 6, 1, 5, 0, 0, 0, time.UTC)
	a := models.Absence{
		ID:             "abs-1",
		Classification: models.ClassLPN,
		Unit:           "West",
		StartDate:      "2026-06-30",
		EndDate:        "2026-07-02",
		ShiftStart:     "07:00",
		ShiftEnd:       "15:00",
		KnownAt:        known,
	}
	vs, err := ExpandAbsence(a, models.DefaultSettings())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(vs) != 3 {
		t.Fatalf("expected 3 vacancies, got %d", len(vs))
	}
	wantDates := []string{"2026-06-30", "2026-07-01", "2026-07-02"}
	for i, v := range vs {
		if v.ShiftDate != wantDates[i] {
			t.Errorf("vacancy %d: expected %s, got %s", i, wantDates[i], v.ShiftDate)
		}
		if v.OriginRef != "abs-1" || v.Status != models.StatusOpen || v.OfferingTier != models.TierCasuals {
			t.Errorf("vacancy %d: unexpected defaults %+v", i, v)
		}
		if v.OfferingRoundMinutes != models.DefaultRoundMinutes || !v.OfferingAutoProgress {
			t.Errorf("vacancy %d: expected settings defaults, got %d %v", i, v.OfferingRoundMinutes, v.OfferingAutoProgress)
		}
		if v.ID == "" {
			t.Errorf("vacancy %d: expected an id", i)
		}
	}
}

func TestExpandAbsenceRejectsReversedRange(t *testing.T) {
	a := models.Absence{ID: "abs", Classification: models.ClassRN, StartDate: "2026-06-05", EndDate: "2026-06-01", ShiftStart: "07:00"}
	if _, err := ExpandAbsence(a, models.DefaultSettings()); err == nil {
		t.Fatalf("expected error for reversed range")
	}
}

func TestNewResponseSnapshotsEmployee(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	doc := New(models.DefaultSettings())
	doc.Vacancies = []models.Vacancy{{ID: "v1", Status: models.StatusOpen}}
	doc.Employees = []models.Employee{{ID: "e1", Classification: models.ClassRN, EmploymentStatus: "casual"}}

	r, err := NewResponse(&doc, "v1", "e1", "can stay late", now)
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	doc.Employees[0].Classification = models.ClassLPN
	if r.Classification != models.ClassRN || r.EmploymentStatus != "casual" || !r.SubmittedAt.Equal(now) {
		t.Fatalf("unexpected snapshot %+v", r)
	}

	if _, err := NewResponse(&doc, "missing", "e1", "", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for vacancy, got %v", err)
	}
	if _, err := NewResponse(&doc, "v1", "ghost", "", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for employee, got %v", err)
	}
	doc.Vacancies[0].Status = models.StatusAwarded
	if _, err := NewResponse(&doc, "v1", "e1", "", now); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestEncodeDecodeKeepsTierNames(t *testing.T) {
	doc := New(models.DefaultSettings())
	doc.Vacancies = []models.Vacancy{{ID: "v1", OfferingTier: models.TierOTCasuals, Status: models.StatusOpen}}
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Vacancies[0].OfferingTier != models.TierOTCasuals {
		t.Fatalf("expected OT_CASUALS, got %s", got.Vacancies[0].OfferingTier)
	}
}
