package models

import (
	"fmt"
	"time"
)

// Status enumerates vacancy lifecycle states persisted in the document.
type Status string

const (
	StatusOpen         Status = "Open"
	StatusPendingAward Status = "PendingAward"
	StatusAwarded      Status = "Awarded"
)

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPendingAward, StatusAwarded:
		return true
	}
	return false
}

// Classification is the role a worker holds and a vacancy requires.
type Classification string

const (
	ClassRCA Classification = "RCA"
	ClassLPN Classification = "LPN"
	ClassRN  Classification = "RN"
)

// Valid reports whether c is one of the known classifications.
func (c Classification) Valid() bool {
	switch c {
	case ClassRCA, ClassLPN, ClassRN:
		return true
	}
	return false
}

// BundleMode describes how a bundle is awarded.
type BundleMode string

// BundleOnePerson means one award decision covers every sibling.
const BundleOnePerson BundleMode = "one-person"

const (
	MinRoundMinutes     = 1
	MaxRoundMinutes     = 1440
	DefaultRoundMinutes = 120

	// DateLayout is the calendar-date format used for shift dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the local time-of-day format used for shift start/end.
	ClockLayout = "15:04"
)

// ClampRoundMinutes pins n into [MinRoundMinutes, MaxRoundMinutes].
func ClampRoundMinutes(n int) int {
	if n < MinRoundMinutes {
		return MinRoundMinutes
	}
	if n > MaxRoundMinutes {
		return MaxRoundMinutes
	}
	return n
}

// Vacancy is one shift slot needing coverage.
type Vacancy struct {
	ID             string         `json:"id"`
	OriginRef      string         `json:"origin_ref,omitempty"`
	Classification Classification `json:"classification"`
	Unit           string         `json:"unit,omitempty"`
	ShiftDate      string         `json:"shift_date"`
	ShiftStart     string         `json:"shift_start"`
	ShiftEnd       string         `json:"shift_end"`
	KnownAt        time.Time      `json:"known_at"`

	OfferingTier           Tier      `json:"offering_tier"`
	OfferingRoundStartedAt time.Time `json:"offering_round_started_at"`
	OfferingRoundMinutes   int       `json:"offering_round_minutes"`
	OfferingAutoProgress   bool      `json:"offering_auto_progress"`

	Status     Status     `json:"status"`
	BundleID   string     `json:"bundle_id,omitempty"`
	BundleMode BundleMode `json:"bundle_mode,omitempty"`

	AwardedTo    string     `json:"awarded_to,omitempty"`
	AwardedAt    *time.Time `json:"awarded_at,omitempty"`
	AwardReason  string     `json:"award_reason,omitempty"`
	OverrideUsed bool       `json:"override_used,omitempty"`
}

// Date parses ShiftDate as a calendar day at UTC midnight.
func (v *Vacancy) Date() (time.Time, error) {
	d, err := time.Parse(DateLayout, v.ShiftDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("vacancy %s: shift date: %w", v.ID, err)
	}
	return d, nil
}

// ShiftStartAt combines ShiftDate and ShiftStart in loc.
func (v *Vacancy) ShiftStartAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, v.ShiftDate+" "+v.ShiftStart, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("vacancy %s: shift start: %w", v.ID, err)
	}
	return t, nil
}

// Bundled reports whether v belongs to a bundle.
func (v *Vacancy) Bundled() bool {
	return v.BundleID != ""
}
