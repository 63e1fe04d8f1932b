package component

import (
	"errors"
	"slices"
	"testing"
)

// newTestRegistry loads the default document plus the internal components.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(DefaultControllerFactory())
	if err := r.Load(DefaultDocument()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	meta, err := NewDevice(MetaID, ClassMeta, nil)
	if err != nil {
		t.Fatalf("NewDevice(_meta) error = %v", err)
	}
	if err := r.Add(meta); err != nil {
		t.Fatalf("Add(_meta) error = %v", err)
	}
	return r
}

// ─── Resolution ────────────────────────────────────────────────────

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t)

	ch, err := r.Resolve(ChannelAddress{"ess0", "Soc"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ch.Address().String() != "ess0/Soc" {
		t.Errorf("Address() = %s", ch.Address())
	}

	if _, err := r.Resolve(ChannelAddress{"ess9", "Soc"}); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("Resolve(unknown component) error = %v", err)
	}
	if _, err := r.Resolve(ChannelAddress{"ess0", "Nope"}); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("Resolve(unknown channel) error = %v", err)
	}

	if _, ok := r.ChannelValue(ChannelAddress{"ess9", "Soc"}); ok {
		t.Error("ChannelValue(unknown) reported ok")
	}
	if v, ok := r.ChannelValue(ChannelAddress{"ess0", "enabled"}); !ok || v != true {
		t.Errorf("ChannelValue(ess0/enabled) = %v, %v", v, ok)
	}

	chs, ok := r.ComponentChannels("meter0")
	if !ok || len(chs) == 0 {
		t.Errorf("ComponentChannels(meter0) = %d, %v", len(chs), ok)
	}
	if _, ok := r.ComponentChannels("nothing"); ok {
		t.Error("ComponentChannels(unknown) reported ok")
	}
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	dup, err := NewDevice("ess0", ClassMeterSymmetric, nil)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	if err := r.Add(dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add(duplicate) error = %v, want ErrDuplicateID", err)
	}
}

// ─── Controller lifecycle ──────────────────────────────────────────

func TestRegistry_CreateController(t *testing.T) {
	r := newTestRegistry(t)
	extra, err := NewScheduler("scheduler1", nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := r.Add(extra); err != nil {
		t.Fatalf("Add(scheduler1) error = %v", err)
	}

	c, err := r.CreateController(map[string]any{"id": "ctrl1", "class": "Controller.Debug.Log", "priority": 60})
	if err != nil {
		t.Fatalf("CreateController() error = %v", err)
	}
	if c.Priority() != 60 {
		t.Errorf("Priority() = %d", c.Priority())
	}
	for _, s := range r.Schedulers() {
		if !slices.ContainsFunc(s.Controllers(), func(x Controller) bool { return x.ID() == "ctrl1" }) {
			t.Errorf("scheduler %s does not contain ctrl1", s.ID())
		}
	}
	if len(r.Controllers()) != 1 {
		t.Errorf("Controllers() = %d, want 1 distinct", len(r.Controllers()))
	}
}

func TestRegistry_CreateController_Errors(t *testing.T) {
	tests := []struct {
		name   string
		object map[string]any
		want   error
	}{
		{"reserved id", map[string]any{"id": "_ctrl", "class": "Controller.Debug.Log"}, ErrReservedID},
		{"missing id", map[string]any{"class": "Controller.Debug.Log"}, ErrMissingConfig},
		{"missing class", map[string]any{"id": "ctrl2"}, ErrMissingConfig},
		{"duplicate", map[string]any{"id": "ess0", "class": "Controller.Debug.Log"}, ErrDuplicateID},
		{"unknown class", map[string]any{"id": "ctrl3", "class": "Controller.Unknown"}, ErrUnknownClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			before := len(r.Components())
			_, err := r.CreateController(tt.object)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateController() error = %v, want %v", err, tt.want)
			}
			if len(r.Components()) != before {
				t.Error("failed create registered a component")
			}
			if len(r.Controllers()) != 0 {
				t.Error("failed create reached a scheduler")
			}
		})
	}
}

func TestRegistry_RemoveThing(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.CreateController(map[string]any{"id": "ctrl1", "class": "Controller.Debug.Log"}); err != nil {
		t.Fatalf("CreateController() error = %v", err)
	}

	removed, err := r.RemoveThing("ctrl1")
	if err != nil || !removed {
		t.Fatalf("RemoveThing() = %v, %v", removed, err)
	}
	if _, ok := r.Component("ctrl1"); ok {
		t.Error("ctrl1 still registered")
	}
	if len(r.Controllers()) != 0 {
		t.Error("ctrl1 still in a scheduler")
	}

	removed, err = r.RemoveThing("ctrl1")
	if err != nil || removed {
		t.Errorf("RemoveThing(missing) = %v, %v; want false, nil", removed, err)
	}

	if _, err := r.RemoveThing(MetaID); !errors.Is(err, ErrReservedID) {
		t.Errorf("RemoveThing(_meta) error = %v, want ErrReservedID", err)
	}
	if _, ok := r.Component(MetaID); !ok {
		t.Error("_meta removed")
	}
}

func TestRegistry_RemoveScheduler(t *testing.T) {
	r := newTestRegistry(t)
	if removed, err := r.RemoveThing("scheduler0"); err != nil || !removed {
		t.Fatalf("RemoveThing(scheduler0) = %v, %v", removed, err)
	}
	if len(r.Schedulers()) != 0 {
		t.Errorf("Schedulers() = %d, want 0", len(r.Schedulers()))
	}
}

// ─── Introspection ─────────────────────────────────────────────────

func TestRegistry_Snapshot(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.CreateController(map[string]any{"id": "ctrl1", "class": "Controller.Debug.Log"}); err != nil {
		t.Fatalf("CreateController() error = %v", err)
	}

	snap := r.Snapshot()

	things, ok := snap["things"].(map[string]any)
	if !ok {
		t.Fatalf("things = %T", snap["things"])
	}
	ess, ok := things["ess0"].(map[string]any)
	if !ok || ess["class"] != ClassEssAsymmetric || ess["capacity"] != float64(10000) {
		t.Errorf("things[ess0] = %v", things["ess0"])
	}

	controllers, _ := snap["controllers"].(map[string]any) //nolint:errcheck // checked via lookup
	if _, ok := controllers["ctrl1"]; !ok {
		t.Errorf("controllers = %v, want ctrl1", controllers)
	}
	if _, ok := things["ctrl1"]; ok {
		t.Error("controller listed under things")
	}

	schedulers, _ := snap["schedulers"].([]any) //nolint:errcheck // checked via len
	if len(schedulers) != 1 {
		t.Errorf("schedulers = %v", snap["schedulers"])
	}

	caps, _ := snap["_componentCapabilities"].(map[string][]string) //nolint:errcheck // checked via lookup
	if !slices.Contains(caps["meter0"], "SymmetricMeter") {
		t.Errorf("_componentCapabilities[meter0] = %v", caps["meter0"])
	}
	if !slices.Contains(caps[MetaID], "Meta") {
		t.Errorf("_componentCapabilities[_meta] = %v", caps[MetaID])
	}

	available, _ := snap["_availableControllers"].([]any) //nolint:errcheck // checked via len
	if len(available) != len(builtinControllers) {
		t.Errorf("_availableControllers = %d entries", len(available))
	}
}
