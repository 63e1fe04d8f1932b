package edge

import (
	"testing"
	"time"
)

func TestEdge_Setters(t *testing.T) {
	e := newEdge(State{ID: "edge0", Name: "Edge 0"})
	if e.IsDirty() {
		t.Fatal("new edge should be clean")
	}
	if _, ok := e.Soc(); ok {
		t.Error("Soc() reported before any value was set")
	}

	e.SetSoc(42)
	if soc, ok := e.Soc(); !ok || soc != 42 {
		t.Errorf("Soc() = %d, %v; want 42, true", soc, ok)
	}
	e.SetIPv4("10.0.0.5")
	if e.IPv4() != "10.0.0.5" {
		t.Errorf("IPv4() = %q", e.IPv4())
	}
	e.SetVersion("2024.1.0")
	if e.Version() != "2024.1.0" {
		t.Errorf("Version() = %q", e.Version())
	}
	if !e.IsDirty() {
		t.Error("edge should be dirty after setters")
	}
}

func TestEdge_UnchangedValueStaysClean(t *testing.T) {
	soc := 50
	e := newEdge(State{ID: "edge0", Soc: &soc, IPv4: "10.0.0.1", Version: "1"})

	e.SetSoc(50)
	e.SetIPv4("10.0.0.1")
	e.SetVersion("1")
	if e.IsDirty() {
		t.Error("setting identical values should not mark the edge dirty")
	}
}

func TestEdge_SetConfigReplaces(t *testing.T) {
	e := newEdge(State{ID: "edge0", Config: map[string]any{"a": 1.0}})
	e.SetConfig(map[string]any{"b": 2.0})

	cfg := e.Config()
	if _, ok := cfg["a"]; ok {
		t.Error("SetConfig should replace, not merge")
	}
	if cfg["b"] != 2.0 {
		t.Errorf("Config()[b] = %v, want 2", cfg["b"])
	}

	cfg["c"] = 3.0
	if _, ok := e.Config()["c"]; ok {
		t.Error("Config() should return a copy")
	}

	e.SetConfig(nil)
	if e.Config() == nil {
		t.Error("Config() should never be nil")
	}
}

func TestEdge_SetLastUpdateTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newEdge(State{ID: "edge0"})
	e.now = func() time.Time { return fixed }

	if !e.LastUpdate().IsZero() {
		t.Error("LastUpdate() should be zero initially")
	}
	e.SetLastUpdateTimestamp()
	if !e.LastUpdate().Equal(fixed) {
		t.Errorf("LastUpdate() = %v, want %v", e.LastUpdate(), fixed)
	}
	if s := e.Snapshot(); s.LastUpdate == nil || !s.LastUpdate.Equal(fixed) {
		t.Errorf("Snapshot().LastUpdate = %v", s.LastUpdate)
	}
}

func TestEdge_TakeDirty(t *testing.T) {
	e := newEdge(State{ID: "edge0"})
	if _, dirty := e.takeDirty(); dirty {
		t.Fatal("clean edge reported dirty")
	}

	e.SetSoc(10)
	s, dirty := e.takeDirty()
	if !dirty || s.Soc == nil || *s.Soc != 10 {
		t.Errorf("takeDirty() = %+v, %v", s, dirty)
	}
	if e.IsDirty() {
		t.Error("takeDirty should clear the flag")
	}

	e.markDirty()
	if !e.IsDirty() {
		t.Error("markDirty should set the flag")
	}
}
