// Package document holds the pure load/transform functions over the persisted
// document. The host persists whatever these return verbatim.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shift-coverage/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("vacancy is no longer open for responses")
)

// New returns an empty document at the current schema version.
func New(settings models.Settings) models.Document {
	return models.Document{
		SchemaVersion:     CurrentSchema,
		Employees:         []models.Employee{},
		Vacancies:         []models.Vacancy{},
		Responses:         []models.Response{},
		ArchivedResponses: map[string][]models.Response{},
		Settings:          settings,
		AuditLog:          []models.AuditLogEntry{},
	}
}

// Decode parses a stored document.
func Decode(data []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Encode serializes a document for the store.
func Encode(doc models.Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// ApplyDefaults fills the offering fields a new vacancy leaves unset.
func ApplyDefaults(v *models.Vacancy, s models.Settings) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.Status == "" {
		v.Status = models.StatusOpen
	}
	if v.OfferingRoundMinutes == 0 {
		v.OfferingRoundMinutes = s.DefaultRoundMinutes
	}
	v.OfferingRoundMinutes = models.ClampRoundMinutes(v.OfferingRoundMinutes)
	if !v.OfferingTier.Valid() {
		v.OfferingTier = models.TierCasuals
	}
}

// ExpandAbsence creates one open vacancy per calendar day of a, all carrying
// the absence id as their origin reference.
func ExpandAbsence(a models.Absence, s models.Settings) ([]models.Vacancy, error) {
	if !a.Classification.Valid() {
		return nil, fmt.Errorf("absence %s: unknown classification %q", a.ID, a.Classification)
	}
	start, err := time.Parse(models.DateLayout, a.StartDate)
	if err != nil {
		return nil, fmt.Errorf("absence %s: start date: %w", a.ID, err)
	}
	end := start
	if a.EndDate != "" {
		if end, err = time.Parse(models.DateLayout, a.EndDate); err != nil {
			return nil, fmt.Errorf("absence %s: end date: %w", a.ID, err)
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("absence %s: end date %s before start %s", a.ID, a.EndDate, a.StartDate)
	}
	if _, err := time.Parse(models.ClockLayout, a.ShiftStart); err != nil {
		return nil, fmt.Errorf("absence %s: shift start: %w", a.ID, err)
	}

	ref := a.ID
	if ref == "" {
		ref = uuid.New().String()
	}
	var out []models.Vacancy
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		v := models.Vacancy{
			OriginRef:            ref,
			Classification:       a.Classification,
			Unit:                 a.Unit,
			ShiftDate:            d.Format(models.DateLayout),
			ShiftStart:           a.ShiftStart,
			ShiftEnd:             a.ShiftEnd,
			KnownAt:              a.KnownAt,
			OfferingAutoProgress: s.DefaultAutoProgress,
		}
		ApplyDefaults(&v, s)
		out = append(out, v)
	}
	return out, nil
}

// NewResponse snapshots the employee's classification and employment status
// onto a response for an open vacancy.
func NewResponse(doc *models.Document, vacancyID, employeeID, note string, now time.Time) (models.Response, error) {
	i := doc.FindVacancy(vacancyID)
	if i < 0 {
		return models.Response{}, fmt.Errorf("vacancy %s: %w", vacancyID, ErrNotFound)
	}
	if doc.Vacancies[i].Status == models.StatusAwarded {
		return models.Response{}, fmt.Errorf("vacancy %s: %w", vacancyID, ErrClosed)
	}
	emp, ok := doc.FindEmployee(employeeID)
	if !ok {
		return models.Response{}, fmt.Errorf("employee %s: %w", employeeID, ErrNotFound)
	}
	return models.Response{
		ID:               uuid.New().String(),
		VacancyID:        vacancyID,
		EmployeeID:       employeeID,
		Classification:   emp.Classification,
		EmploymentStatus: emp.EmploymentStatus,
		SubmittedAt:      now,
		Note:             note,
	}, nil
}

// ArchiveResponses moves every live response for vacancyID into the archive.
// Calling it again is a no-op. It returns how many responses moved.
func ArchiveResponses(doc *models.Document, vacancyID string) int {
	if doc.ArchivedResponses == nil {
		doc.ArchivedResponses = map[string][]models.Response{}
	}
	archived := doc.ArchivedResponses[vacancyID]
	seen := make(map[string]bool, len(archived))
	for _, r := range archived {
		seen[r.ID] = true
	}

	live := doc.Responses[:0]
	moved := 0
	for _, r := range doc.Responses {
		if r.VacancyID != vacancyID {
			live = append(live, r)
			continue
		}
		moved++
		if r.ID != "" && seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		archived = append(archived, r)
	}
	doc.Responses = live
	if len(archived) > 0 {
		doc.ArchivedResponses[vacancyID] = archived
	}
	return moved
}
