// Package award applies an award to one vacancy or a whole bundle.
//
// Prepare validates without touching the document; Commit cannot fail. Every
// failure therefore leaves every record unchanged, and a bundle is awarded as
// a unit or not at all.
package award

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shift-coverage/internal/bundle"
	"shift-coverage/internal/document"
	"shift-coverage/internal/models"
	"shift-coverage/internal/recommend"
)

var (
	ErrNotFound       = errors.New("no such vacancy or bundle")
	ErrAlreadyAwarded = errors.New("already awarded")
	ErrNoCandidate    = errors.New("no eligible responder to award")
	ErrReasonRequired = errors.New("classification override requires a reason")
)

// ConflictKind distinguishes a blocked award from one awaiting confirmation.
type ConflictKind string

const (
	KindClassificationMismatch ConflictKind = "classification-mismatch"
	KindSameDayBooking         ConflictKind = "same-day-booking"
)

// Conflict is one offending vacancy.
type Conflict struct {
	VacancyID string `json:"vacancy_id"`
	Detail    string `json:"detail"`
}

// ConflictError reports why an award did not go through. Blocked conflicts
// need an override; the rest need the caller to re-invoke with consent.
type ConflictError struct {
	Kind       ConflictKind `json:"kind"`
	Blocked    bool         `json:"blocked"`
	EmployeeID string       `json:"employee_id"`
	Conflicts  []Conflict   `json:"conflicts"`
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.VacancyID+": "+c.Detail)
	}
	return fmt.Sprintf("award %s for %s: %s", e.Kind, e.EmployeeID, strings.Join(parts, "; "))
}

// NeedsConfirmation reports whether re-invoking with Confirmed would proceed.
func (e *ConflictError) NeedsConfirmation() bool {
	return !e.Blocked
}

// Request describes an award. An empty EmployeeID awards the recommended
// candidate for the target.
type Request struct {
	EmployeeID   string `json:"employee_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	OverrideUsed bool   `json:"override_used,omitempty"`
	// Confirmed is the caller's consent to a same-day double booking.
	Confirmed bool `json:"confirmed,omitempty"`
}

// Plan is a validated award ready to commit.
type Plan struct {
	Indexes      []int
	VacancyIDs   []string
	Employee     models.Employee
	Reason       string
	OverrideUsed bool
}

// Result describes a committed award.
type Result struct {
	VacancyIDs   []string  `json:"vacancy_ids"`
	EmployeeID   string    `json:"employee_id"`
	AwardedAt    time.Time `json:"awarded_at"`
	Reason       string    `json:"reason,omitempty"`
	OverrideUsed bool      `json:"override_used"`
	Archived     int       `json:"archived_responses"`
}

// Scope resolves target, a vacancy id or a bundle id, to the indexes of the
// vacancies an award would cover.
func Scope(doc *models.Document, target string) ([]int, error) {
	bundleID := target
	if i := doc.FindVacancy(target); i >= 0 {
		v := doc.Vacancies[i]
		if !v.Bundled() {
			if v.Status == models.StatusAwarded {
				return nil, fmt.Errorf("vacancy %s: %w", target, ErrAlreadyAwarded)
			}
			return []int{i}, nil
		}
		bundleID = v.BundleID
	}
	siblings := bundle.Siblings(doc.Vacancies, bundleID)
	if len(siblings) == 0 {
		return nil, fmt.Errorf("%s: %w", target, ErrNotFound)
	}
	var open []int
	for _, i := range siblings {
		if doc.Vacancies[i].Status != models.StatusAwarded {
			open = append(open, i)
		}
	}
	if len(open) == 0 {
		return nil, fmt.Errorf("bundle %s: %w", bundleID, ErrAlreadyAwarded)
	}
	return open, nil
}

// Prepare runs every check for awarding target without mutating doc.
func Prepare(doc *models.Document, target string, req Request) (*Plan, error) {
	scope, err := Scope(doc, target)
	if err != nil {
		return nil, err
	}

	employeeID := req.EmployeeID
	if employeeID == "" {
		lead := doc.Vacancies[scope[0]]
		if i := doc.FindVacancy(target); i >= 0 {
			lead = doc.Vacancies[i]
		}
		best := recommend.Best(lead, doc.Responses, doc.Employees)
		if best.Candidate == nil {
			return nil, fmt.Errorf("%s: %w", target, ErrNoCandidate)
		}
		employeeID = best.Candidate.Employee.ID
	}
	emp, ok := doc.FindEmployee(employeeID)
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", employeeID, ErrNotFound)
	}

	var mismatches []Conflict
	for _, i := range scope {
		v := doc.Vacancies[i]
		if v.Classification != emp.Classification {
			mismatches = append(mismatches, Conflict{
				VacancyID: v.ID,
				Detail:    fmt.Sprintf("requires %s, employee is %s", v.Classification, emp.Classification),
			})
		}
	}
	if len(mismatches) > 0 {
		if !req.OverrideUsed {
			return nil, &ConflictError{Kind: KindClassificationMismatch, Blocked: true, EmployeeID: emp.ID, Conflicts: mismatches}
		}
		if strings.TrimSpace(req.Reason) == "" {
			return nil, ErrReasonRequired
		}
	}

	inScope := make(map[int]bool, len(scope))
	for _, i := range scope {
		inScope[i] = true
	}
	var bookings []Conflict
	for _, i := range scope {
		v := doc.Vacancies[i]
		for j, other := range doc.Vacancies {
			if inScope[j] || other.Status != models.StatusAwarded || other.AwardedTo != emp.ID {
				continue
			}
			if other.ShiftDate == v.ShiftDate {
				bookings = append(bookings, Conflict{
					VacancyID: v.ID,
					Detail:    fmt.Sprintf("already awarded %s on %s", other.ID, other.ShiftDate),
				})
			}
		}
	}
	if len(bookings) > 0 && !req.Confirmed {
		return nil, &ConflictError{Kind: KindSameDayBooking, Blocked: false, EmployeeID: emp.ID, Conflicts: bookings}
	}

	plan := &Plan{
		Indexes:      scope,
		Employee:     emp,
		Reason:       req.Reason,
		OverrideUsed: req.OverrideUsed && len(mismatches) > 0,
	}
	for _, i := range scope {
		plan.VacancyIDs = append(plan.VacancyIDs, doc.Vacancies[i].ID)
	}
	return plan, nil
}

// Commit applies a plan produced by Prepare against the same, unmodified document.
func Commit(doc *models.Document, plan *Plan, now time.Time) Result {
	res := Result{
		VacancyIDs:   plan.VacancyIDs,
		EmployeeID:   plan.Employee.ID,
		AwardedAt:    now,
		Reason:       plan.Reason,
		OverrideUsed: plan.OverrideUsed,
	}
	for _, i := range plan.Indexes {
		at := now
		v := &doc.Vacancies[i]
		v.Status = models.StatusAwarded
		v.AwardedTo = plan.Employee.ID
		v.AwardedAt = &at
		v.AwardReason = plan.Reason
		v.OverrideUsed = plan.OverrideUsed
	}
	for _, id := range plan.VacancyIDs {
		res.Archived += document.ArchiveResponses(doc, id)
	}
	return res
}

// Apply prepares and commits in one step.
func Apply(doc *models.Document, target string, req Request, now time.Time) (Result, error) {
	plan, err := Prepare(doc, target, req)
	if err != nil {
		return Result{}, err
	}
	return Commit(doc, plan, now), nil
}
