package award

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"shift-coverage/internal/document"
	"shift-coverage/internal/models"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func bundleDoc() models.Document {
	doc := document.New(models.DefaultSettings())
	doc.Employees = []models.Employee{
		{ID: "rn1", Classification: models.ClassRN, SeniorityRank: 1, Active: true},
		{ID: "rn2", Classification: models.ClassRN, SeniorityRank: 2, Active: true},
		{ID: "lpn1", Classification: models.ClassLPN, SeniorityRank: 1, Active: true},
	}
	for _, d := range []struct{ id, date string }{{"d1", "2026-06-10"}, {"d2", "2026-06-11"}, {"d3", "2026-06-12"}} {
		doc.Vacancies = append(doc.Vacancies, models.Vacancy{
			ID: d.id, Classification: models.ClassRN, ShiftDate: d.date, Status: models.StatusOpen,
			BundleID: "b1", BundleMode: models.BundleOnePerson,
		})
	}
	doc.Vacancies = append(doc.Vacancies, models.Vacancy{ID: "solo", Classification: models.ClassRN, ShiftDate: "2026-06-20", Status: models.StatusOpen})
	doc.Responses = []models.Response{
		{ID: "r1", VacancyID: "d2", EmployeeID: "rn2"},
		{ID: "r2", VacancyID: "solo", EmployeeID: "rn1"},
	}
	return doc
}

func encode(t *testing.T, doc models.Document) []byte {
	t.Helper()
	b, err := document.Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func TestAwardBundleCoversEverySibling(t *testing.T) {
	doc := bundleDoc()
	res, err := Apply(&doc, "d2", Request{EmployeeID: "rn1"}, now)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if len(res.VacancyIDs) != 3 {
		t.Fatalf("expected 3 vacancies awarded, got %v", res.VacancyIDs)
	}
	for _, v := range doc.Vacancies[:3] {
		if v.Status != models.StatusAwarded || v.AwardedTo != "rn1" || v.AwardedAt == nil || !v.AwardedAt.Equal(now) {
			t.Errorf("sibling %s not awarded identically: %+v", v.ID, v)
		}
	}
	if doc.Vacancies[3].Status != models.StatusOpen {
		t.Errorf("unrelated vacancy must stay open")
	}
	if res.Archived != 1 || len(doc.ArchivedResponses["d2"]) != 1 {
		t.Errorf("expected the d2 response to be archived, got %d", res.Archived)
	}
	if len(doc.Responses) != 1 || doc.Responses[0].ID != "r2" {
		t.Errorf("expected only solo response live, got %+v", doc.Responses)
	}
}

func TestAwardByBundleID(t *testing.T) {
	doc := bundleDoc()
	res, err := Apply(&doc, "b1", Request{EmployeeID: "rn2"}, now)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if len(res.VacancyIDs) != 3 {
		t.Fatalf("expected whole bundle, got %v", res.VacancyIDs)
	}
}

func TestClassificationMismatchBlocksWithoutMutation(t *testing.T) {
	doc := bundleDoc()
	before := encode(t, doc)

	_, err := Apply(&doc, "d1", Request{EmployeeID: "lpn1"}, now)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Kind != KindClassificationMismatch || !ce.Blocked || ce.NeedsConfirmation() {
		t.Fatalf("unexpected conflict %+v", ce)
	}
	if len(ce.Conflicts) != 3 {
		t.Fatalf("expected every sibling reported, got %d", len(ce.Conflicts))
	}
	if !bytes.Equal(before, encode(t, doc)) {
		t.Fatalf("document changed after a blocked award")
	}
}

func TestOverrideRequiresReason(t *testing.T) {
	doc := bundleDoc()
	before := encode(t, doc)
	if _, err := Apply(&doc, "solo", Request{EmployeeID: "lpn1", OverrideUsed: true}, now); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if !bytes.Equal(before, encode(t, doc)) {
		t.Fatalf("document changed after a rejected override")
	}

	res, err := Apply(&doc, "solo", Request{EmployeeID: "lpn1", OverrideUsed: true, Reason: "no RN available"}, now)
	if err != nil {
		t.Fatalf("override award: %v", err)
	}
	v := doc.Vacancies[3]
	if !res.OverrideUsed || !v.OverrideUsed || v.AwardReason != "no RN available" {
		t.Fatalf("expected override recorded, got %+v", v)
	}
}

func TestSameDayBookingNeedsConfirmation(t *testing.T) {
	doc := bundleDoc()
	doc.Vacancies = append(doc.Vacancies, models.Vacancy{
		ID: "other", Classification: models.ClassRN, ShiftDate: "2026-06-20", Status: models.StatusAwarded, AwardedTo: "rn1",
	})
	before := encode(t, doc)

	_, err := Apply(&doc, "solo", Request{EmployeeID: "rn1"}, now)
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Kind != KindSameDayBooking || !ce.NeedsConfirmation() {
		t.Fatalf("expected confirmable same-day conflict, got %v", err)
	}
	if !bytes.Equal(before, encode(t, doc)) {
		t.Fatalf("document changed while awaiting confirmation")
	}

	if _, err := Apply(&doc, "solo", Request{EmployeeID: "rn1", Confirmed: true}, now); err != nil {
		t.Fatalf("confirmed award: %v", err)
	}
	if doc.Vacancies[3].AwardedTo != "rn1" {
		t.Fatalf("expected solo awarded to rn1")
	}
}

func TestImplicitCandidateUsesRecommendation(t *testing.T) {
	doc := bundleDoc()
	res, err := Apply(&doc, "solo", Request{}, now)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.EmployeeID != "rn1" {
		t.Fatalf("expected recommended rn1, got %s", res.EmployeeID)
	}
}

func TestImplicitCandidateMissing(t *testing.T) {
	doc := bundleDoc()
	doc.Responses = nil
	if _, err := Apply(&doc, "solo", Request{}, now); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}

func TestNotFoundAndAlreadyAwarded(t *testing.T) {
	doc := bundleDoc()
	if _, err := Apply(&doc, "nope", Request{EmployeeID: "rn1"}, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := Apply(&doc, "solo", Request{EmployeeID: "ghost"}, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown employee, got %v", err)
	}
	if _, err := Apply(&doc, "solo", Request{EmployeeID: "rn1"}, now); err != nil {
		t.Fatalf("award: %v", err)
	}
	if _, err := Apply(&doc, "solo", Request{EmployeeID: "rn1"}, now); !errors.Is(err, ErrAlreadyAwarded) {
		t.Fatalf("expected ErrAlreadyAwarded, got %v", err)
	}
}

func TestPendingAwardIsAwardable(t *testing.T) {
	doc := bundleDoc()
	doc.Vacancies[3].Status = models.StatusPendingAward
	if _, err := Apply(&doc, "solo", Request{EmployeeID: "rn1"}, now); err != nil {
		t.Fatalf("award pending vacancy: %v", err)
	}
}
