package deadline

import (
	"testing"
	"time"

	"shift-coverage/internal/models"
)

func TestWindowMinutesBuckets(t *testing.T) {
	w := models.DefaultResponseWindows()
	cases := map[float64]int{
		-3:   7,
		0:    7,
		1.99: 7,
		2:    15,
		3.5:  15,
		4:    30,
		23.9: 30,
		24:   120,
		71:   120,
		72:   1440,
		500:  1440,
	}
	for hours, want := range cases {
		if got := WindowMinutes(hours, w); got != want {
			t.Errorf("WindowMinutes(%v) = %d, want %d", hours, got, want)
		}
	}
}

func TestWindowMinutesUsesConfiguredBuckets(t *testing.T) {
	w := models.ResponseWindows{LessThan2h: 1, From2To4h: 2, From4To24h: 3, From24To72h: 4, Over72h: 5}
	if got := WindowMinutes(10, w); got != 3 {
		t.Fatalf("expected configured bucket 3, got %d", got)
	}
}

func TestDeadline(t *testing.T) {
	known := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	v := models.Vacancy{ID: "v1", ShiftDate: "2026-03-02", ShiftStart: "09:00", KnownAt: known}

	got, err := Deadline(v, models.DefaultResponseWindows(), time.UTC)
	if err != nil {
		t.Fatalf("deadline: %v", err)
	}
	want := known.Add(15 * time.Minute)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDeadlineRespectsLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	known := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // 07:00 local
	v := models.Vacancy{ID: "v1", ShiftDate: "2026-03-02", ShiftStart: "08:00", KnownAt: known}

	got, err := Deadline(v, models.DefaultResponseWindows(), loc)
	if err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if want := known.Add(7 * time.Minute); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
