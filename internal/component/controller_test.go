package component

import (
	"errors"
	"testing"
)

func TestStaticFactory_NewController(t *testing.T) {
	f := DefaultControllerFactory()

	c, err := f.NewController("limit0", "Controller.Ess.LimitTotalDischarge", map[string]any{"ess": "ess0", "priority": 70})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	if c.Priority() != 70 {
		t.Errorf("Priority() = %d, want 70", c.Priority())
	}
	if c.Config()["minSoc"] != float64(10) {
		t.Errorf("minSoc default = %v", c.Config()["minSoc"])
	}
	if caps := c.Capabilities(); len(caps) != 1 || caps[0] != "Controller" {
		t.Errorf("Capabilities() = %v", caps)
	}

	if _, err := f.NewController("x", "Controller.Unknown", nil); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("unknown class error = %v, want ErrUnknownClass", err)
	}
	if _, err := f.NewController("x", "Controller.Ess.Balancing", map[string]any{"ess": "ess0"}); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("missing meter error = %v, want ErrMissingConfig", err)
	}
}

func TestStaticFactory_Available(t *testing.T) {
	f := DefaultControllerFactory()
	got := f.Available()
	if len(got) != len(builtinControllers) {
		t.Fatalf("Available() = %d classes, want %d", len(got), len(builtinControllers))
	}
	if got[0].Class != "Controller.Debug.Log" {
		t.Errorf("first class = %s, want registration order", got[0].Class)
	}

	got[0].Channels[0].ID = "mutated"
	if f.Available()[0].Channels[0].ID == "mutated" {
		t.Error("Available() should not expose internal slices")
	}
}

func TestScheduler_Ordering(t *testing.T) {
	f := DefaultControllerFactory()
	s, err := NewScheduler("scheduler0", nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	mk := func(id string, prio int) Controller {
		c, err := f.NewController(id, "Controller.Debug.Log", map[string]any{"priority": prio})
		if err != nil {
			t.Fatalf("NewController(%s) error = %v", id, err)
		}
		return c
	}
	s.AddController(mk("b", 10))
	s.AddController(mk("a", 10))
	s.AddController(mk("c", 90))
	s.AddController(mk("b", 20)) // replaces b

	var ids []string
	for _, c := range s.Controllers() {
		ids = append(ids, c.ID())
	}
	want := []string{"c", "b", "a"}
	if len(ids) != len(want) {
		t.Fatalf("Controllers() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Controllers() = %v, want %v", ids, want)
		}
	}

	if !s.RemoveController("b") || s.RemoveController("b") {
		t.Error("RemoveController should report presence once")
	}

	d := s.Describe()
	if d["class"] != ClassScheduler || d["cycleTime"] != float64(1000) {
		t.Errorf("Describe() = %v", d)
	}
	if ctrls, ok := d["controllers"].([]string); !ok || len(ctrls) != 2 {
		t.Errorf("Describe()[controllers] = %v", d["controllers"])
	}
}
