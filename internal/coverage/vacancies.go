package coverage

import (
	"fmt"
	"log"
	"math"
	"time"

	"shift-coverage/internal/bundle"
	"shift-coverage/internal/deadline"
	"shift-coverage/internal/document"
	"shift-coverage/internal/models"
	"shift-coverage/internal/offering"
)

// Vacancies returns every vacancy with live offering state.
func (s *Service) Vacancies() []models.Vacancy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Vacancy, len(s.doc.Vacancies))
	for i, v := range s.doc.Vacancies {
		out[i] = s.mergedLocked(v)
	}
	return out
}

// Vacancy returns one vacancy with live offering state.
func (s *Service) Vacancy(id string) (models.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(id)
	if err != nil {
		return models.Vacancy{}, err
	}
	return s.mergedLocked(s.doc.Vacancies[i]), nil
}

// CreateVacancy adds an open vacancy, regroups its origin's bundles and starts
// its offering machine. The caller decides OfferingAutoProgress.
func (s *Service) CreateVacancy(v models.Vacancy) (models.Vacancy, error) {
	if err := validateVacancy(v); err != nil {
		return models.Vacancy{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID != "" && s.doc.FindVacancy(v.ID) >= 0 {
		return models.Vacancy{}, fmt.Errorf("vacancy %s: %w", v.ID, ErrExists)
	}
	now := s.clock.Now()
	v.Status = models.StatusOpen
	v.AwardedTo, v.AwardedAt, v.AwardReason, v.OverrideUsed = "", nil, "", false
	v.BundleID, v.BundleMode = "", ""
	if v.KnownAt.IsZero() {
		v.KnownAt = now
	}
	if v.OfferingRoundStartedAt.IsZero() {
		v.OfferingRoundStartedAt = now
	}
	document.ApplyDefaults(&v, s.doc.Settings)

	s.doc.Vacancies = append(s.doc.Vacancies, v)
	if err := s.regroupLocked(v.OriginRef); err != nil {
		s.doc.Vacancies = s.doc.Vacancies[:len(s.doc.Vacancies)-1]
		return models.Vacancy{}, err
	}
	s.sched.Ensure(v)
	s.markDirty()
	log.Printf("coverage: created vacancy=%s class=%s date=%s", v.ID, v.Classification, v.ShiftDate)
	return s.mergedLocked(s.doc.Vacancies[s.doc.FindVacancy(v.ID)]), nil
}

// ExpandAbsence creates one vacancy per day of a multi-day absence and bundles
// the contiguous runs.
func (s *Service) ExpandAbsence(a models.Absence) ([]models.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID != "" {
		for _, v := range s.doc.Vacancies {
			if v.OriginRef == a.ID {
				return nil, fmt.Errorf("absence %s: %w", a.ID, ErrExists)
			}
		}
	}
	now := s.clock.Now()
	if a.KnownAt.IsZero() {
		a.KnownAt = now
	}
	created, err := document.ExpandAbsence(a, s.doc.Settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	n := len(s.doc.Vacancies)
	for i := range created {
		created[i].OfferingRoundStartedAt = now
		s.doc.Vacancies = append(s.doc.Vacancies, created[i])
	}
	if err := s.regroupLocked(created[0].OriginRef); err != nil {
		s.doc.Vacancies = s.doc.Vacancies[:n]
		return nil, err
	}
	out := make([]models.Vacancy, 0, len(created))
	for _, v := range s.doc.Vacancies[n:] {
		s.sched.Ensure(v)
		out = append(out, s.mergedLocked(v))
	}
	s.markDirty()
	log.Printf("coverage: expanded absence origin=%s into %d vacancies", created[0].OriginRef, len(out))
	return out, nil
}

// ReplaceVacancy swaps in a refreshed copy of an unawarded vacancy. The old
// machine is disposed before its successor starts. Offering state carries
// over; tier changes only happen through the machine so they are audited.
func (s *Service) ReplaceVacancy(v models.Vacancy) (models.Vacancy, error) {
	if err := validateVacancy(v); err != nil {
		return models.Vacancy{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(v.ID)
	if err != nil {
		return models.Vacancy{}, err
	}
	old := s.mergedLocked(s.doc.Vacancies[i])
	if old.Status == models.StatusAwarded {
		return models.Vacancy{}, fmt.Errorf("vacancy %s: %w", v.ID, ErrNotOpen)
	}
	v.Status = old.Status
	v.BundleID, v.BundleMode = old.BundleID, old.BundleMode
	if v.OriginRef != old.OriginRef {
		v.BundleID, v.BundleMode = "", ""
	}
	v.AwardedTo, v.AwardedAt, v.AwardReason, v.OverrideUsed = "", nil, "", false
	if v.KnownAt.IsZero() {
		v.KnownAt = old.KnownAt
	}
	v.OfferingTier = old.OfferingTier
	v.OfferingRoundStartedAt = old.OfferingRoundStartedAt
	v.OfferingRoundMinutes = old.OfferingRoundMinutes
	v.OfferingAutoProgress = old.OfferingAutoProgress

	s.doc.Vacancies[i] = v
	for _, ref := range []string{old.OriginRef, v.OriginRef} {
		if err := s.regroupLocked(ref); err != nil {
			s.doc.Vacancies[i] = old
			return models.Vacancy{}, err
		}
	}
	if v.Status == models.StatusOpen {
		s.sched.Replace(s.doc.Vacancies[i])
	}
	s.markDirty()
	return s.mergedLocked(s.doc.Vacancies[i]), nil
}

// HoldForAward parks an open vacancy while an award decision is pending. Its
// machine stops; the offering state is kept.
func (s *Service) HoldForAward(id string) (models.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(id)
	if err != nil {
		return models.Vacancy{}, err
	}
	if s.doc.Vacancies[i].Status != models.StatusOpen {
		return models.Vacancy{}, fmt.Errorf("vacancy %s is %s: %w", id, s.doc.Vacancies[i].Status, ErrNotOpen)
	}
	s.stopMachineLocked(i)
	s.doc.Vacancies[i].Status = models.StatusPendingAward
	s.markDirty()
	return s.doc.Vacancies[i], nil
}

// Reopen returns a held vacancy to offering with a fresh round in its tier.
func (s *Service) Reopen(id string) (models.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(id)
	if err != nil {
		return models.Vacancy{}, err
	}
	v := &s.doc.Vacancies[i]
	if v.Status != models.StatusPendingAward {
		return models.Vacancy{}, fmt.Errorf("vacancy %s is %s: %w", id, v.Status, ErrInvalid)
	}
	v.Status = models.StatusOpen
	v.OfferingRoundStartedAt = s.clock.Now()
	s.sched.Ensure(*v)
	s.markDirty()
	return s.mergedLocked(*v), nil
}

// DeadlineView is the response deadline of a vacancy.
type DeadlineView struct {
	VacancyID        string    `json:"vacancy_id"`
	Deadline         time.Time `json:"deadline"`
	WindowMinutes    int       `json:"window_minutes"`
	RemainingMinutes int       `json:"remaining_minutes"`
}

// Deadline computes when responses for a vacancy are due.
func (s *Service) Deadline(id string) (DeadlineView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(id)
	if err != nil {
		return DeadlineView{}, err
	}
	v := s.doc.Vacancies[i]
	due, err := deadline.Deadline(v, s.doc.Settings.ResponseWindows, s.loc)
	if err != nil {
		return DeadlineView{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	left := due.Sub(s.clock.Now())
	if left < 0 {
		left = 0
	}
	return DeadlineView{
		VacancyID:        v.ID,
		Deadline:         due,
		WindowMinutes:    int(due.Sub(v.KnownAt) / time.Minute),
		RemainingMinutes: int(math.Ceil(left.Minutes())),
	}, nil
}

// OfferingView is the live offering state of a vacancy.
type OfferingView struct {
	VacancyID            string      `json:"vacancy_id"`
	Tier                 models.Tier `json:"tier"`
	RoundStartedAt       time.Time   `json:"round_started_at"`
	RoundMinutes         int         `json:"round_minutes"`
	AutoProgress         bool        `json:"auto_progress"`
	Running              bool        `json:"running"`
	Idle                 bool        `json:"idle"`
	RemainingSeconds     int         `json:"remaining_seconds"`
	RequiresConfirmation bool        `json:"next_requires_confirmation"`
}

// Offering reports the offering state of any vacancy; only open vacancies
// have a running machine.
func (s *Service) Offering(id string) (OfferingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.vacancyIndexLocked(id)
	if err != nil {
		return OfferingView{}, err
	}
	v := s.doc.Vacancies[i]
	st := offering.State{
		VacancyID:      v.ID,
		Tier:           v.OfferingTier,
		RoundStartedAt: v.OfferingRoundStartedAt,
		RoundMinutes:   v.OfferingRoundMinutes,
		AutoProgress:   v.OfferingAutoProgress,
		Stopped:        true,
	}
	if m, ok := s.sched.Get(id); ok {
		st = m.Snapshot()
	}
	return s.view(st), nil
}

func (s *Service) view(st offering.State) OfferingView {
	next, ok := st.Tier.Next()
	return OfferingView{
		VacancyID:            st.VacancyID,
		Tier:                 st.Tier,
		RoundStartedAt:       st.RoundStartedAt,
		RoundMinutes:         st.RoundMinutes,
		AutoProgress:         st.AutoProgress,
		Running:              !st.Stopped,
		Idle:                 st.Idle,
		RemainingSeconds:     int(st.Remaining(s.clock.Now()) / time.Second),
		RequiresConfirmation: ok && models.RequiresConfirmation(next),
	}
}

// regroupLocked re-runs bundle formation over one origin reference.
func (s *Service) regroupLocked(originRef string) error {
	if originRef == "" {
		return nil
	}
	var group []*models.Vacancy
	for i := range s.doc.Vacancies {
		if s.doc.Vacancies[i].OriginRef == originRef {
			group = append(group, &s.doc.Vacancies[i])
		}
	}
	reserved := bundle.ReservedOutside(s.doc.Vacancies, originRef)
	if _, err := bundle.FormReserving(group, reserved); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func validateVacancy(v models.Vacancy) error {
	if !v.Classification.Valid() {
		return fmt.Errorf("%w: classification %q", ErrInvalid, v.Classification)
	}
	if _, err := time.Parse(models.DateLayout, v.ShiftDate); err != nil {
		return fmt.Errorf("%w: shift date %q", ErrInvalid, v.ShiftDate)
	}
	if _, err := time.Parse(models.ClockLayout, v.ShiftStart); err != nil {
		return fmt.Errorf("%w: shift start %q", ErrInvalid, v.ShiftStart)
	}
	if v.ShiftEnd != "" {
		if _, err := time.Parse(models.ClockLayout, v.ShiftEnd); err != nil {
			return fmt.Errorf("%w: shift end %q", ErrInvalid, v.ShiftEnd)
		}
	}
	return nil
}
