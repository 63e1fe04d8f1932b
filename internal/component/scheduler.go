package component

import (
	"cmp"
	"slices"
	"sync"
)

// ClassScheduler is the class of the built-in scheduler.
const ClassScheduler = "Scheduler.AllAlphabetically"

var schedulerChannels = []ChannelSpec{
	{ID: "cycleTime", Type: TypeInteger, Unit: "ms", Config: true, Default: float64(1000)},
}

// Scheduler orders the controllers it executes.
type Scheduler struct {
	*Base

	mu          sync.RWMutex
	controllers []Controller
}

// NewScheduler creates a scheduler with config applied.
func NewScheduler(id string, config map[string]any) (*Scheduler, error) {
	base, err := NewBase(id, ClassScheduler, []string{"Scheduler"}, schedulerChannels, config)
	if err != nil {
		return nil, err
	}
	return &Scheduler{Base: base}, nil
}

// AddController adds c, replacing any controller with the same id.
func (s *Scheduler) AddController(c Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers = slices.DeleteFunc(s.controllers, func(x Controller) bool { return x.ID() == c.ID() })
	s.controllers = append(s.controllers, c)
}

// RemoveController removes a controller and reports whether it was present.
func (s *Scheduler) RemoveController(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.controllers)
	s.controllers = slices.DeleteFunc(s.controllers, func(x Controller) bool { return x.ID() == id })
	return len(s.controllers) != before
}

// Controllers returns the controllers in execution order: priority
// descending, then id.
func (s *Scheduler) Controllers() []Controller {
	s.mu.RLock()
	out := slices.Clone(s.controllers)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Controller) int {
		if c := cmp.Compare(b.Priority(), a.Priority()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// Describe serialises the scheduler configuration and its controller ids.
func (s *Scheduler) Describe() map[string]any {
	out := Describe(s)
	ids := []string{}
	for _, c := range s.Controllers() {
		ids = append(ids, c.ID())
	}
	out["controllers"] = ids
	return out
}
