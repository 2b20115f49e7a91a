// Package offering drives each open vacancy through the offering tiers on its
// own clock.
//
// A Machine serializes every operation on its vacancy behind one mutex, so a
// tick racing a manual change can never produce two audit entries for one
// logical transition. The audit entry for a transition is appended while that
// mutex is held and before the new tier is visible through Snapshot.
package offering

import (
	"log"
	"math"
	"sync"
	"time"

	"shift-coverage/internal/models"
	"shift-coverage/internal/telemetry"
)

// Clock supplies the current time. Tests drive machines with a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Recorder receives audit entries. *audit.Trail satisfies it.
type Recorder interface {
	Append(e models.AuditLogEntry) models.AuditLogEntry
}

// State is a point-in-time view of a machine.
type State struct {
	VacancyID      string
	Tier           models.Tier
	RoundStartedAt time.Time
	RoundMinutes   int
	AutoProgress   bool
	// Idle means the round elapsed with nowhere to go (auto-progress off or
	// terminal tier). Elapsed time is kept; a reset or re-enable resumes.
	Idle bool
	// Stopped means the machine was halted or disposed and will never transition again.
	Stopped bool
}

// RoundEndsAt is when the current round expires.
func (s State) RoundEndsAt() time.Time {
	return s.RoundStartedAt.Add(time.Duration(s.RoundMinutes) * time.Minute)
}

// Remaining is the time left in the round at now; never negative.
func (s State) Remaining(now time.Time) time.Duration {
	left := s.RoundEndsAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Options configure machines created directly or through a Scheduler.
type Options struct {
	Clock    Clock
	Recorder Recorder
	// TickInterval is the ticker cadence. Zero or negative means the caller
	// drives Tick itself and Start launches nothing.
	TickInterval time.Duration
	// OnChange is invoked with the machine mutex held after every state change.
	// It must not block or call back into the machine.
	OnChange func(State)
}

// Machine is the offering state machine for one vacancy.
type Machine struct {
	mu       sync.Mutex
	state    State
	clock    Clock
	recorder Recorder
	onChange func(State)
	interval time.Duration

	started  bool
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMachine seeds a machine from the vacancy's offering fields. A zero round
// start begins the round now; an out-of-range round length is clamped.
func NewMachine(v models.Vacancy, opts Options) *Machine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	start := v.OfferingRoundStartedAt
	if start.IsZero() {
		start = clock.Now()
	}
	minutes := v.OfferingRoundMinutes
	if minutes == 0 {
		minutes = models.DefaultRoundMinutes
	}
	tier := v.OfferingTier
	if !tier.Valid() {
		tier = models.TierCasuals
	}
	return &Machine{
		state: State{
			VacancyID:      v.ID,
			Tier:           tier,
			RoundStartedAt: start,
			RoundMinutes:   models.ClampRoundMinutes(minutes),
			AutoProgress:   v.OfferingAutoProgress,
		},
		clock:    clock,
		recorder: opts.Recorder,
		onChange: opts.OnChange,
		interval: opts.TickInterval,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticking goroutine. It is a no-op when already started,
// stopped, or when no tick interval was configured.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.state.Stopped || m.interval <= 0 {
		return
	}
	m.started = true
	go m.run()
}

func (m *Machine) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Tick()
			if !m.parked() {
				continue
			}
			ticker.Stop()
			select {
			case <-m.stop:
				return
			case <-m.wake:
			}
			ticker.Reset(m.interval)
		}
	}
}

func (m *Machine) parked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Idle || m.state.Stopped
}

// Tick escalates when the round has elapsed, auto-progress is on and a next
// tier exists. It reports whether a transition happened. Ticking early is a no-op.
func (m *Machine) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Stopped || m.state.Idle {
		return false
	}
	now := m.clock.Now()
	if now.Before(m.state.RoundEndsAt()) {
		return false
	}
	next, ok := m.state.Tier.Next()
	if !m.state.AutoProgress || !ok {
		m.state.Idle = true
		m.changedLocked()
		return false
	}
	m.transitionLocked(next, models.ReasonAutoProgress, models.ActorSystem, "", now)
	return true
}

// ChangeTier moves to tier immediately, in either direction, and restarts the
// round. Requesting the current tier only restarts the round. It reports
// whether the tier changed.
func (m *Machine) ChangeTier(tier models.Tier, actor, note string) bool {
	if !tier.Valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Stopped {
		return false
	}
	now := m.clock.Now()
	if tier == m.state.Tier {
		m.state.RoundStartedAt = now
		m.wakeLocked()
		m.changedLocked()
		return false
	}
	if actor == "" {
		actor = models.ActorSystem
	}
	m.transitionLocked(tier, models.ReasonManual, actor, note, now)
	return true
}

// ResetRound restarts the clock for the current tier and resumes ticking if idle.
func (m *Machine) ResetRound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Stopped {
		return
	}
	m.state.RoundStartedAt = m.clock.Now()
	m.wakeLocked()
	m.changedLocked()
}

// SetAutoProgress flips auto-progress. Enabling it resumes an idle machine from
// the elapsed baseline; it never changes the tier by itself.
func (m *Machine) SetAutoProgress(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Stopped {
		return
	}
	m.state.AutoProgress = enabled
	if enabled {
		m.wakeLocked()
	}
	m.changedLocked()
}

// SetRoundMinutes clamps minutes into [1,1440]. Non-finite input leaves the
// state unchanged and reports false.
func (m *Machine) SetRoundMinutes(minutes float64) bool {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return false
	}
	var n int
	switch {
	case minutes < models.MinRoundMinutes:
		n = models.MinRoundMinutes
	case minutes > models.MaxRoundMinutes:
		n = models.MaxRoundMinutes
	default:
		n = models.ClampRoundMinutes(int(math.Round(minutes)))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Stopped {
		return false
	}
	m.state.RoundMinutes = n
	m.changedLocked()
	return true
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Halt stops all further transitions without waiting for the ticking
// goroutine, and returns the final state.
func (m *Machine) Halt() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Stopped {
		m.state.Stopped = true
		m.changedLocked()
	}
	return m.state
}

// Dispose halts the machine and waits for its goroutine to exit. It must be
// called before a machine is discarded or replaced.
func (m *Machine) Dispose() State {
	final := m.Halt()
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
	return final
}

func (m *Machine) transitionLocked(to models.Tier, reason models.AuditReason, actor, note string, now time.Time) {
	from := m.state.Tier
	if m.recorder != nil {
		m.recorder.Append(models.AuditLogEntry{
			Timestamp: now,
			Actor:     actor,
			VacancyID: m.state.VacancyID,
			From:      from,
			To:        to,
			Reason:    reason,
			Note:      note,
		})
	}
	m.state.Tier = to
	m.state.RoundStartedAt = now
	m.wakeLocked()
	telemetry.TierTransitions.WithLabelValues(string(reason)).Inc()
	log.Printf("offering: vacancy=%s tier %s -> %s reason=%s actor=%s", m.state.VacancyID, from, to, reason, actor)
	m.changedLocked()
}

func (m *Machine) wakeLocked() {
	if !m.state.Idle {
		return
	}
	m.state.Idle = false
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Machine) changedLocked() {
	if m.onChange != nil {
		m.onChange(m.state)
	}
}
