package component

import (
	"fmt"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the live components, schedulers and controllers and
// resolves channel addresses against them.
//
// All public methods are thread-safe.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
	order      []string
	schedulers []*Scheduler

	factory ControllerFactory
	store   Store
	logger  Logger

	// persistMu spans snapshot and save so saves land in snapshot order.
	persistMu sync.Mutex
}

// NewRegistry creates an empty registry that builds controllers with factory.
func NewRegistry(factory ControllerFactory) *Registry {
	return &Registry{
		components: make(map[string]Component),
		factory:    factory,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStore sets where Persist writes the configuration document.
func (r *Registry) SetStore(store Store) {
	r.store = store
}

// Add registers a component. Reserved ids are allowed here; they are only
// refused for runtime creation.
func (r *Registry) Add(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(c)
}

func (r *Registry) addLocked(c Component) error {
	if _, exists := r.components[c.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID())
	}
	r.components[c.ID()] = c
	r.order = append(r.order, c.ID())
	if s, ok := c.(*Scheduler); ok {
		r.schedulers = append(r.schedulers, s)
	}
	return nil
}

// Component returns the component with id.
func (r *Registry) Component(id string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	return c, ok
}

// Components returns all components in registration order.
func (r *Registry) Components() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.components[id])
	}
	return out
}

// Resolve returns the channel at addr, or ErrComponentNotFound /
// ErrChannelNotFound.
func (r *Registry) Resolve(addr ChannelAddress) (*Channel, error) {
	c, ok := r.Component(addr.Component)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, addr.Component)
	}
	ch, ok := c.Channel(addr.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, addr)
	}
	return ch, nil
}

// ChannelValue returns the value at addr. ok is false when the address
// does not resolve.
func (r *Registry) ChannelValue(addr ChannelAddress) (value any, ok bool) {
	ch, err := r.Resolve(addr)
	if err != nil {
		return nil, false
	}
	return ch.Value(), true
}

// ComponentChannels returns every channel of a component.
func (r *Registry) ComponentChannels(id string) ([]*Channel, bool) {
	c, ok := r.Component(id)
	if !ok {
		return nil, false
	}
	return c.Channels(), true
}

// Schedulers returns the registered schedulers.
func (r *Registry) Schedulers() []*Scheduler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.schedulers)
}

// Controllers returns every controller known to any scheduler, each once.
func (r *Registry) Controllers() []Controller {
	seen := make(map[string]bool)
	var out []Controller
	for _, s := range r.Schedulers() {
		for _, c := range s.Controllers() {
			if !seen[c.ID()] {
				seen[c.ID()] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// CreateController builds a controller from an object document carrying
// at least "id" and "class", registers it and adds it to every scheduler.
func (r *Registry) CreateController(object map[string]any) (Controller, error) {
	id, _ := object["id"].(string)       //nolint:errcheck // validated below
	class, _ := object["class"].(string) //nolint:errcheck // validated below
	if id == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingConfig)
	}
	if IsReservedID(id) {
		return nil, fmt.Errorf("%w: %s", ErrReservedID, id)
	}
	if class == "" {
		return nil, fmt.Errorf("%w: class", ErrMissingConfig)
	}

	config := make(map[string]any, len(object))
	for k, v := range object {
		if k != "id" && k != "class" {
			config[k] = v
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	c, err := r.factory.NewController(id, class, config)
	if err != nil {
		return nil, err
	}
	if err := r.addLocked(c); err != nil {
		return nil, err
	}
	for _, s := range r.schedulers {
		s.AddController(c)
	}

	r.logger.Info("controller created", "id", id, "class", class)
	return c, nil
}

// RemoveThing removes a component and detaches it from every scheduler.
// It reports whether anything was removed; a missing id is not an error.
func (r *Registry) RemoveThing(id string) (bool, error) {
	if IsReservedID(id) {
		return false, fmt.Errorf("%w: %s", ErrReservedID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[id]
	if !ok {
		return false, nil
	}
	delete(r.components, id)
	r.order = slices.DeleteFunc(r.order, func(x string) bool { return x == id })
	if s, isScheduler := c.(*Scheduler); isScheduler {
		r.schedulers = slices.DeleteFunc(r.schedulers, func(x *Scheduler) bool { return x == s })
	}
	for _, s := range r.schedulers {
		s.RemoveController(id)
	}

	r.logger.Info("component removed", "id", id)
	return true, nil
}

// Capabilities maps every component id to its capability tags.
func (r *Registry) Capabilities() map[string][]string {
	out := make(map[string][]string)
	for _, c := range r.Components() {
		out[c.ID()] = c.Capabilities()
	}
	return out
}

// AvailableControllers describes the controller classes that can be created.
func (r *Registry) AvailableControllers() []ControllerDescription {
	return r.factory.Available()
}

// Snapshot returns the configuration document sent to clients on login.
func (r *Registry) Snapshot() map[string]any {
	things := make(map[string]any)
	controllers := make(map[string]any)
	schedulers := []any{}

	for _, c := range r.Components() {
		switch x := c.(type) {
		case *Scheduler:
			schedulers = append(schedulers, x.Describe())
		case Controller:
			controllers[x.ID()] = Describe(x)
		default:
			things[x.ID()] = Describe(x)
		}
	}

	available := []any{}
	for _, d := range r.AvailableControllers() {
		available = append(available, d)
	}

	return map[string]any{
		"things":                 things,
		"controllers":            controllers,
		"schedulers":             schedulers,
		"_componentCapabilities": r.Capabilities(),
		"_availableControllers":  available,
	}
}
