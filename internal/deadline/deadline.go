// Package deadline maps shift urgency to a response window.
//
// Callers must pass well-formed vacancies: Deadline does not validate the
// shift date or start time beyond what parsing requires.
package deadline

import (
	"time"

	"shift-coverage/internal/models"
)

// WindowMinutes buckets the hours remaining until a shift into a response window.
func WindowMinutes(hoursUntilShift float64, w models.ResponseWindows) int {
	switch {
	case hoursUntilShift < 2:
		return w.LessThan2h
	case hoursUntilShift < 4:
		return w.From2To4h
	case hoursUntilShift < 24:
		return w.From4To24h
	case hoursUntilShift < 72:
		return w.From24To72h
	default:
		return w.Over72h
	}
}

// Deadline returns knownAt plus the window for the gap between knownAt and the
// shift start.
func Deadline(v models.Vacancy, w models.ResponseWindows, loc *time.Location) (time.Time, error) {
	start, err := v.ShiftStartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	hours := start.Sub(v.KnownAt).Hours()
	return v.KnownAt.Add(time.Duration(WindowMinutes(hours, w)) * time.Minute), nil
}
