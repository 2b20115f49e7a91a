package offering

import (
	"sync"

	"shift-coverage/internal/models"
	"shift-coverage/internal/telemetry"
)

// Scheduler owns one machine per open vacancy. The registry lock only guards
// the map; machines share no mutable state.
type Scheduler struct {
	mu       sync.Mutex
	machines map[string]*Machine
	opts     Options
}

// NewScheduler creates an empty scheduler whose machines use opts.
func NewScheduler(opts Options) *Scheduler {
	return &Scheduler{
		machines: make(map[string]*Machine),
		opts:     opts,
	}
}

// Ensure returns the machine for v, creating and starting one if needed.
func (s *Scheduler) Ensure(v models.Vacancy) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.machines[v.ID]; ok {
		return m
	}
	return s.addLocked(v)
}

// Replace disposes any existing machine for v before creating its successor,
// so two clocks never drive the same vacancy.
func (s *Scheduler) Replace(v models.Vacancy) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.machines[v.ID]; ok {
		old.Dispose()
		delete(s.machines, v.ID)
		telemetry.ActiveMachines.Dec()
	}
	return s.addLocked(v)
}

func (s *Scheduler) addLocked(v models.Vacancy) *Machine {
	m := NewMachine(v, s.opts)
	s.machines[v.ID] = m
	telemetry.ActiveMachines.Inc()
	m.Start()
	return m
}

// Get returns the machine for a vacancy id.
func (s *Scheduler) Get(id string) (*Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[id]
	return m, ok
}

// Remove disposes and forgets the machine for id, returning its final state.
func (s *Scheduler) Remove(id string) (State, bool) {
	s.mu.Lock()
	m, ok := s.machines[id]
	if ok {
		delete(s.machines, id)
		telemetry.ActiveMachines.Dec()
	}
	s.mu.Unlock()
	if !ok {
		return State{}, false
	}
	return m.Dispose(), true
}

// Len returns the number of owned machines.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.machines)
}

// TickAll ticks every machine once and returns how many transitioned. Useful
// when the host drives time itself instead of per-machine tickers.
func (s *Scheduler) TickAll() int {
	s.mu.Lock()
	ms := make([]*Machine, 0, len(s.machines))
	for _, m := range s.machines {
		ms = append(ms, m)
	}
	s.mu.Unlock()

	n := 0
	for _, m := range ms {
		if m.Tick() {
			n++
		}
	}
	return n
}

// Close disposes every machine.
func (s *Scheduler) Close() {
	s.mu.Lock()
	ms := s.machines
	s.machines = make(map[string]*Machine)
	s.mu.Unlock()
	for _, m := range ms {
		m.Dispose()
		telemetry.ActiveMachines.Dec()
	}
}
