package bundle

import (
	"fmt"
	"testing"

	"shift-coverage/internal/models"
)

func withSequentialIDs(t *testing.T) {
	t.Helper()
	prev := NewID
	n := 0
	NewID = func() string {
		n++
		return fmt.Sprintf("bundle-%d", n)
	}
	t.Cleanup(func() { NewID = prev })
}

func vac(id, date string) models.Vacancy {
	return models.Vacancy{ID: id, OriginRef: "abs-1", ShiftDate: date, Status: models.StatusOpen}
}

func TestFormBundlesConsecutiveDates(t *testing.T) {
	withSequentialIDs(t)
	vs := []models.Vacancy{
		vac("d3", "2026-06-03"),
		vac("d1", "2026-06-01"),
		vac("d2", "2026-06-02"),
		vac("d6", "2026-06-06"),
	}
	n, err := FormAll(vs)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 bundle, got %d", n)
	}
	for _, v := range vs[:3] {
		if v.BundleID != "bundle-1" || v.BundleMode != models.BundleOnePerson {
			t.Errorf("expected %s in bundle-1 one-person, got %q %q", v.ID, v.BundleID, v.BundleMode)
		}
	}
	if vs[3].BundleID != "" || vs[3].BundleMode != "" {
		t.Errorf("expected gap vacancy to stay unbundled, got %q", vs[3].BundleID)
	}
}

func TestFormIsIdempotent(t *testing.T) {
	withSequentialIDs(t)
	vs := []models.Vacancy{vac("d1", "2026-06-01"), vac("d2", "2026-06-02")}
	if _, err := FormAll(vs); err != nil {
		t.Fatalf("form: %v", err)
	}
	if _, err := FormAll(vs); err != nil {
		t.Fatalf("form again: %v", err)
	}
	if vs[0].BundleID != "bundle-1" || vs[1].BundleID != "bundle-1" {
		t.Fatalf("expected stable id bundle-1, got %q %q", vs[0].BundleID, vs[1].BundleID)
	}
}

func TestFormReusesPartialTag(t *testing.T) {
	withSequentialIDs(t)
	vs := []models.Vacancy{vac("d1", "2026-06-01"), vac("d2", "2026-06-02"), vac("d3", "2026-06-03")}
	vs[1].BundleID = "existing"
	if _, err := FormAll(vs); err != nil {
		t.Fatalf("form: %v", err)
	}
	for _, v := range vs {
		if v.BundleID != "existing" {
			t.Fatalf("expected existing id reused, got %q on %s", v.BundleID, v.ID)
		}
	}
}

func TestFormSplitRunGetsDistinctIDs(t *testing.T) {
	withSequentialIDs(t)
	// A former four-day bundle whose middle day moved away.
	vs := []models.Vacancy{
		vac("d1", "2026-06-01"), vac("d2", "2026-06-02"),
		vac("d5", "2026-06-05"), vac("d6", "2026-06-06"),
	}
	for i := range vs {
		vs[i].BundleID = "old"
	}
	if _, err := FormAll(vs); err != nil {
		t.Fatalf("form: %v", err)
	}
	if vs[0].BundleID != "old" || vs[1].BundleID != "old" {
		t.Fatalf("expected first run to keep old id")
	}
	if vs[2].BundleID == "old" || vs[2].BundleID != vs[3].BundleID {
		t.Fatalf("expected second run to get one new id, got %q %q", vs[2].BundleID, vs[3].BundleID)
	}
}

func TestFormClearsStaleSingleton(t *testing.T) {
	vs := []models.Vacancy{vac("d1", "2026-06-01")}
	vs[0].BundleID = "stale"
	vs[0].BundleMode = models.BundleOnePerson
	if _, err := FormAll(vs); err != nil {
		t.Fatalf("form: %v", err)
	}
	if vs[0].BundleID != "" || vs[0].BundleMode != "" {
		t.Fatalf("expected stale tag cleared, got %q", vs[0].BundleID)
	}
}

func TestFormKeepsOriginsApart(t *testing.T) {
	withSequentialIDs(t)
	a := vac("a1", "2026-06-01")
	b := vac("b1", "2026-06-02")
	b.OriginRef = "abs-2"
	vs := []models.Vacancy{a, b}
	n, err := FormAll(vs)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if n != 0 || vs[0].Bundled() || vs[1].Bundled() {
		t.Fatalf("different origins must not bundle together")
	}
}

func TestFormSkipsIDsOwnedByOtherOrigins(t *testing.T) {
	withSequentialIDs(t)
	a1 := vac("a1", "2026-06-01")
	a2 := vac("a2", "2026-06-02")
	a1.BundleID, a2.BundleID = "shared", "shared"
	moved := vac("a3", "2026-06-03")
	moved.OriginRef = "abs-2"
	moved.BundleID = "shared"
	b := vac("b1", "2026-06-04")
	b.OriginRef = "abs-2"
	vs := []models.Vacancy{a1, a2, moved, b}

	n, err := FormReserving([]*models.Vacancy{&vs[2], &vs[3]}, ReservedOutside(vs, "abs-2"))
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if n != 1 || vs[2].BundleID != "bundle-1" || vs[3].BundleID != "bundle-1" {
		t.Fatalf("expected fresh id for abs-2 run, got %q %q", vs[2].BundleID, vs[3].BundleID)
	}
	if vs[0].BundleID != "shared" {
		t.Fatalf("abs-1 run must keep its id, got %q", vs[0].BundleID)
	}
}

func TestFormRejectsBadDate(t *testing.T) {
	vs := []models.Vacancy{vac("d1", "not-a-date"), vac("d2", "2026-06-02")}
	if _, err := FormAll(vs); err == nil {
		t.Fatalf("expected an error for a malformed date")
	}
}

func TestSiblings(t *testing.T) {
	vs := []models.Vacancy{{ID: "a", BundleID: "b1"}, {ID: "b"}, {ID: "c", BundleID: "b1"}}
	got := Siblings(vs, "b1")
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("unexpected siblings %v", got)
	}
	if Siblings(vs, "") != nil {
		t.Fatalf("empty bundle id has no siblings")
	}
}
