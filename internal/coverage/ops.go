package coverage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"shift-coverage/internal/audit"
	"shift-coverage/internal/award"
	"shift-coverage/internal/document"
	"shift-coverage/internal/models"
	"shift-coverage/internal/notify"
	"shift-coverage/internal/offering"
	"shift-coverage/internal/recommend"
	"shift-coverage/internal/telemetry"
)

// machine returns the running machine for an open vacancy.
func (s *Service) machine(id string) (*offering.Machine, error) {
	if m, ok := s.sched.Get(id); ok {
		return m, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("vacancy %s is %s: %w", id, s.doc.Vacancies[i].Status, ErrNotOpen)
}

// ChangeTier moves a vacancy to tier on behalf of actor. Confirmation for the
// terminal tier is the caller's policy; see models.RequiresConfirmation.
func (s *Service) ChangeTier(id string, tier models.Tier, actor, note string) (OfferingView, error) {
	if !tier.Valid() {
		return OfferingView{}, fmt.Errorf("%w: tier %s", ErrInvalid, tier)
	}
	m, err := s.machine(id)
	if err != nil {
		return OfferingView{}, err
	}
	m.ChangeTier(tier, actor, note)
	return s.view(m.Snapshot()), nil
}

// ResetRound restarts the current round.
func (s *Service) ResetRound(id string) (OfferingView, error) {
	m, err := s.machine(id)
	if err != nil {
		return OfferingView{}, err
	}
	m.ResetRound()
	return s.view(m.Snapshot()), nil
}

// SetAutoProgress toggles automatic escalation.
func (s *Service) SetAutoProgress(id string, enabled bool) (OfferingView, error) {
	m, err := s.machine(id)
	if err != nil {
		return OfferingView{}, err
	}
	m.SetAutoProgress(enabled)
	return s.view(m.Snapshot()), nil
}

// SetRoundMinutes changes the round length. Non-finite input is ignored and
// reported through the returned bool.
func (s *Service) SetRoundMinutes(id string, minutes float64) (OfferingView, bool, error) {
	m, err := s.machine(id)
	if err != nil {
		return OfferingView{}, false, err
	}
	ok := m.SetRoundMinutes(minutes)
	return s.view(m.Snapshot()), ok, nil
}

// SubmitResponse records a worker's interest in a vacancy.
func (s *Service) SubmitResponse(vacancyID, employeeID, note string) (models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := document.NewResponse(&s.doc, vacancyID, employeeID, note, s.clock.Now())
	switch {
	case errors.Is(err, document.ErrNotFound):
		return models.Response{}, fmt.Errorf("%v: %w", err, ErrNotFound)
	case errors.Is(err, document.ErrClosed):
		return models.Response{}, fmt.Errorf("%v: %w", err, ErrNotOpen)
	case err != nil:
		return models.Response{}, err
	}
	s.doc.Responses = append(s.doc.Responses, r)
	telemetry.ResponsesSubmitted.Inc()
	s.markDirty()
	return r, nil
}

// Responses returns the live responses for a vacancy in submission order.
func (s *Service) Responses(vacancyID string) ([]models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.vacancyIndexLocked(vacancyID); err != nil {
		return nil, err
	}
	var out []models.Response
	for _, r := range s.doc.Responses {
		if r.VacancyID == vacancyID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Recommend ranks the current responses for a vacancy.
func (s *Service) Recommend(vacancyID string) (recommend.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(vacancyID)
	if err != nil {
		return recommend.Result{}, err
	}
	return recommend.Best(s.doc.Vacancies[i], s.doc.Responses, s.doc.Employees), nil
}

// Award awards a vacancy, or every open sibling of its bundle, in one step.
// Validation failures leave the document untouched. The award notice is sent
// afterwards; its failure does not undo the award.
func (s *Service) Award(target string, req award.Request) (award.Result, error) {
	s.mu.Lock()
	plan, err := award.Prepare(&s.doc, target, req)
	if err != nil {
		s.mu.Unlock()
		telemetry.AwardRejections.WithLabelValues(rejectionKind(err)).Inc()
		return award.Result{}, err
	}
	for _, i := range plan.Indexes {
		s.stopMachineLocked(i)
	}
	res := award.Commit(&s.doc, plan, s.clock.Now())
	s.mu.Unlock()

	s.markDirty()
	telemetry.Awards.Add(float64(len(res.VacancyIDs)))
	log.Printf("coverage: awarded vacancies=%s employee=%s override=%v archived=%d",
		strings.Join(res.VacancyIDs, ","), res.EmployeeID, res.OverrideUsed, res.Archived)

	notice := notify.Notice{
		VacancyIDs:   res.VacancyIDs,
		EmployeeID:   res.EmployeeID,
		Reason:       res.Reason,
		OverrideUsed: res.OverrideUsed,
		AwardedAt:    res.AwardedAt,
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.NotifyAward(ctx, notice); err != nil {
			telemetry.NotifyFailures.Inc()
			log.Printf("coverage: notify award employee=%s: %v", notice.EmployeeID, err)
		}
	}()
	return res, nil
}

func rejectionKind(err error) string {
	var conflict *award.ConflictError
	switch {
	case errors.As(err, &conflict):
		return string(conflict.Kind)
	case errors.Is(err, award.ErrNotFound):
		return "not-found"
	case errors.Is(err, award.ErrAlreadyAwarded):
		return "already-awarded"
	case errors.Is(err, award.ErrNoCandidate):
		return "no-candidate"
	case errors.Is(err, award.ErrReasonRequired):
		return "reason-required"
	}
	return "other"
}

// Audit queries the trail. A nil filter location means the service zone.
func (s *Service) Audit(f audit.Filter) []models.AuditLogEntry {
	if f.Location == nil {
		f.Location = s.loc
	}
	return s.trail.Query(f)
}

// AuditHistory reads the durable audit mirror when the store keeps one, so
// entries survive ClearAudit. Without one it falls back to the in-document
// log and reports durable=false.
func (s *Service) AuditHistory(ctx context.Context, f audit.Filter) (entries []models.AuditLogEntry, durable bool, err error) {
	if f.Location == nil {
		f.Location = s.loc
	}
	h, ok := s.store.(audit.History)
	if !ok {
		return s.trail.Query(f), false, nil
	}
	all, err := h.ListAudit(ctx, f.VacancyID)
	if err != nil {
		return nil, true, fmt.Errorf("coverage: audit history: %w", err)
	}
	entries = make([]models.AuditLogEntry, 0, len(all))
	for _, e := range all {
		if f.Match(e) {
			entries = append(entries, e)
		}
	}
	return entries, true, nil
}

// ClearAudit wipes the audit log. Housekeeping only.
func (s *Service) ClearAudit() {
	s.trail.Clear()
	s.markDirty()
	log.Printf("coverage: audit log cleared")
}

// Employees returns the directory.
func (s *Service) Employees() []models.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Employee(nil), s.doc.Employees...)
}

// UpsertEmployee adds or replaces a directory entry. Existing responses keep
// the classification captured when they were submitted.
func (s *Service) UpsertEmployee(e models.Employee) (models.Employee, error) {
	if strings.TrimSpace(e.ID) == "" {
		return models.Employee{}, fmt.Errorf("%w: employee id required", ErrInvalid)
	}
	if !e.Classification.Valid() {
		return models.Employee{}, fmt.Errorf("%w: classification %q", ErrInvalid, e.Classification)
	}
	if e.SeniorityRank < 1 {
		return models.Employee{}, fmt.Errorf("%w: seniority rank must be >= 1", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.doc.Employees {
		if s.doc.Employees[i].ID == e.ID {
			s.doc.Employees[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Employees = append(s.doc.Employees, e)
	}
	s.markDirty()
	return e, nil
}
