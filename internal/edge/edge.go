package edge

import (
	"maps"
	"sync"
	"time"
)

// State is a point-in-time copy of an edge's metadata.
type State struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Config     map[string]any `json:"config"`
	Soc        *int           `json:"soc,omitempty"`
	IPv4       string         `json:"ipv4,omitempty"`
	Version    string         `json:"version,omitempty"`
	LastUpdate *time.Time     `json:"last_update,omitempty"`
}

// Edge is the live, shared record for one edge controller. All methods
// are safe for concurrent use.
type Edge struct {
	id   string
	name string

	mu         sync.RWMutex
	config     map[string]any
	soc        *int
	ipv4       string
	version    string
	lastUpdate time.Time
	dirty      bool

	now func() time.Time
}

// newEdge builds a clean Edge from persisted state.
func newEdge(s State) *Edge {
	e := &Edge{
		id:      s.ID,
		name:    s.Name,
		config:  s.Config,
		ipv4:    s.IPv4,
		version: s.Version,
		now:     time.Now,
	}
	if e.config == nil {
		e.config = map[string]any{}
	}
	if s.Soc != nil {
		v := *s.Soc
		e.soc = &v
	}
	if s.LastUpdate != nil {
		e.lastUpdate = *s.LastUpdate
	}
	return e
}

// ID returns the edge identifier.
func (e *Edge) ID() string { return e.id }

// Name returns the display name.
func (e *Edge) Name() string { return e.name }

// SetConfig replaces the configuration document wholesale.
func (e *Edge) SetConfig(config map[string]any) {
	if config == nil {
		config = map[string]any{}
	}
	e.mu.Lock()
	e.config = config
	e.dirty = true
	e.mu.Unlock()
}

// Config returns a shallow copy of the configuration document.
func (e *Edge) Config() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.config)
}

// SetSoc records the state of charge in percent.
func (e *Edge) SetSoc(soc int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.soc != nil && *e.soc == soc {
		return
	}
	e.soc = &soc
	e.dirty = true
}

// Soc returns the state of charge and whether one has been reported.
func (e *Edge) Soc() (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.soc == nil {
		return 0, false
	}
	return *e.soc, true
}

// SetIPv4 records the edge's primary IPv4 address.
func (e *Edge) SetIPv4(ip string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ipv4 == ip {
		return
	}
	e.ipv4 = ip
	e.dirty = true
}

// IPv4 returns the last reported address.
func (e *Edge) IPv4() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ipv4
}

// SetVersion records the edge software version.
func (e *Edge) SetVersion(version string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.version == version {
		return
	}
	e.version = version
	e.dirty = true
}

// Version returns the last reported software version.
func (e *Edge) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// SetLastUpdateTimestamp stamps the edge as having reported power data now.
func (e *Edge) SetLastUpdateTimestamp() {
	e.mu.Lock()
	e.lastUpdate = e.now().UTC()
	e.dirty = true
	e.mu.Unlock()
}

// LastUpdate returns the time of the last power reading, zero if never.
func (e *Edge) LastUpdate() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastUpdate
}

// Snapshot returns a copy of the current state.
func (e *Edge) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Edge) snapshotLocked() State {
	s := State{
		ID:      e.id,
		Name:    e.name,
		Config:  maps.Clone(e.config),
		IPv4:    e.ipv4,
		Version: e.version,
	}
	if e.soc != nil {
		v := *e.soc
		s.Soc = &v
	}
	if !e.lastUpdate.IsZero() {
		t := e.lastUpdate
		s.LastUpdate = &t
	}
	return s
}

// IsDirty reports whether there are changes not yet written back.
func (e *Edge) IsDirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty
}

// takeDirty returns a snapshot and clears the dirty flag if set.
func (e *Edge) takeDirty() (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return State{}, false
	}
	e.dirty = false
	return e.snapshotLocked(), true
}

// markDirty re-flags the edge after a failed write-back.
func (e *Edge) markDirty() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}
