// Package coverage is the single in-process authority over the coverage
// document. It owns one offering machine per open vacancy, the audit trail,
// and persistence of the document through a host store.
//
// Lock order is service, then machine, then trail. Machines never call back
// into the service except through a non-blocking dirty signal, so the service
// may halt or dispose machines while holding its own lock.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"shift-coverage/internal/audit"
	"shift-coverage/internal/document"
	"shift-coverage/internal/models"
	"shift-coverage/internal/notify"
	"shift-coverage/internal/offering"
	"shift-coverage/internal/store"
	"shift-coverage/internal/telemetry"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
	ErrNotOpen  = errors.New("vacancy is not open")
	ErrInvalid  = errors.New("invalid input")
)

// Options wire a Service to its collaborators. Only Store is required.
type Options struct {
	Store    store.DocumentStore
	Key      string
	Notifier notify.Notifier
	Clock    offering.Clock
	Location *time.Location
	// TickInterval drives per-machine tickers. Zero leaves ticking to Tick.
	TickInterval time.Duration
	// PersistInterval coalesces bursts of changes into one store write.
	PersistInterval time.Duration
	// Settings seed a document that does not exist yet.
	Settings   models.Settings
	Migrations []document.Migration
}

// Service is the coverage authority.
type Service struct {
	mu       sync.Mutex
	doc      models.Document
	trail    *audit.Trail
	sched    *offering.Scheduler
	store    store.DocumentStore
	key      string
	notifier notify.Notifier
	clock    offering.Clock
	loc      *time.Location

	saveMu          sync.Mutex
	persistInterval time.Duration
	dirty           chan struct{}
	stop            chan struct{}
	done            chan struct{}
	stopMirror      func(context.Context)
	notifyWG        sync.WaitGroup
	closeOnce       sync.Once
}

// Open loads (or creates) the document, migrates it, and starts a machine for
// every open vacancy.
func Open(ctx context.Context, opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("coverage: store is required")
	}
	if opts.Key == "" {
		opts.Key = "coverage:document"
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = offering.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Settings == (models.Settings{}) {
		opts.Settings = models.DefaultSettings()
	}

	data, found, err := opts.Store.Load(ctx, opts.Key)
	if err != nil {
		return nil, fmt.Errorf("coverage: load document: %w", err)
	}
	doc := document.New(opts.Settings)
	if found {
		if doc, err = document.Decode(data); err != nil {
			return nil, err
		}
	}
	if err := document.Migrate(&doc, opts.Migrations...); err != nil {
		return nil, fmt.Errorf("coverage: migrate: %w", err)
	}

	s := &Service{
		doc:             doc,
		trail:           audit.New(doc.AuditLog),
		store:           opts.Store,
		key:             opts.Key,
		notifier:        opts.Notifier,
		clock:           opts.Clock,
		loc:             opts.Location,
		persistInterval: opts.PersistInterval,
		dirty:           make(chan struct{}, 1),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	if sink, ok := opts.Store.(audit.Sink); ok {
		s.stopMirror = s.trail.StartMirror(sink)
	}
	s.sched = offering.NewScheduler(offering.Options{
		Clock:        opts.Clock,
		Recorder:     s.trail,
		TickInterval: opts.TickInterval,
		OnChange:     func(offering.State) { s.markDirty() },
	})
	for _, v := range s.doc.Vacancies {
		if v.Status == models.StatusOpen {
			s.sched.Ensure(v)
		}
	}
	go s.persistLoop()
	log.Printf("coverage: opened document key=%s vacancies=%d machines=%d", s.key, len(s.doc.Vacancies), s.sched.Len())
	return s, nil
}

// Close stops every machine, waits for pending notifications, and writes the
// document one last time.
func (s *Service) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		for i := range s.doc.Vacancies {
			if m, ok := s.sched.Get(s.doc.Vacancies[i].ID); ok {
				applyState(&s.doc.Vacancies[i], m.Halt())
			}
		}
		s.mu.Unlock()
		s.sched.Close()
		close(s.stop)
		<-s.done
		s.notifyWG.Wait()
		err = s.Flush(ctx)
		if s.stopMirror != nil {
			s.stopMirror(ctx)
		}
	})
	return err
}

// Tick advances every machine once. Hosts that run without per-machine
// tickers call it on their own cadence.
func (s *Service) Tick() int {
	return s.sched.TickAll()
}

// Snapshot returns a copy of the document with live machine state merged in.
func (s *Service) Snapshot() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Settings returns the document's settings.
func (s *Service) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings
}

// Location is the zone used for shift dates and audit date queries.
func (s *Service) Location() *time.Location { return s.loc }

// Flush writes the current document to the store.
func (s *Service) Flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	doc := s.Snapshot()
	data, err := document.Encode(doc)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		telemetry.PersistFailures.WithLabelValues("document").Inc()
		return fmt.Errorf("coverage: save document: %w", err)
	}
	return nil
}

func (s *Service) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Service) persistLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.dirty:
		}
		if s.persistInterval > 0 {
			select {
			case <-s.stop:
				return
			case <-time.After(s.persistInterval):
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.Flush(ctx); err != nil {
			log.Printf("coverage: persist: %v", err)
		}
		cancel()
	}
}

func (s *Service) snapshotLocked() models.Document {
	doc := s.doc
	doc.Employees = append([]models.Employee(nil), s.doc.Employees...)
	doc.Vacancies = make([]models.Vacancy, len(s.doc.Vacancies))
	for i, v := range s.doc.Vacancies {
		doc.Vacancies[i] = s.mergedLocked(v)
	}
	doc.Responses = append([]models.Response(nil), s.doc.Responses...)
	doc.ArchivedResponses = make(map[string][]models.Response, len(s.doc.ArchivedResponses))
	for k, rs := range s.doc.ArchivedResponses {
		doc.ArchivedResponses[k] = append([]models.Response(nil), rs...)
	}
	doc.AuditLog = s.trail.Entries()
	return doc
}

// mergedLocked overlays the live machine state on a stored vacancy.
func (s *Service) mergedLocked(v models.Vacancy) models.Vacancy {
	if m, ok := s.sched.Get(v.ID); ok {
		applyState(&v, m.Snapshot())
	}
	return v
}

func applyState(v *models.Vacancy, st offering.State) {
	v.OfferingTier = st.Tier
	v.OfferingRoundStartedAt = st.RoundStartedAt
	v.OfferingRoundMinutes = st.RoundMinutes
	v.OfferingAutoProgress = st.AutoProgress
}

// stopMachineLocked disposes the machine for doc.Vacancies[i], if any, and
// folds its final state into the stored vacancy.
func (s *Service) stopMachineLocked(i int) {
	if st, ok := s.sched.Remove(s.doc.Vacancies[i].ID); ok {
		applyState(&s.doc.Vacancies[i], st)
	}
}

func (s *Service) vacancyIndexLocked(id string) (int, error) {
	i := s.doc.FindVacancy(id)
	if i < 0 {
		return -1, fmt.Errorf("vacancy %s: %w", id, ErrNotFound)
	}
	return i, nil
}
