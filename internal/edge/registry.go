package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/edgelink-core/internal/infrastructure/mqtt"
)

// flushTimeout bounds the final write-back when Run is stopped.
const flushTimeout = 5 * time.Second

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

// StatusPublisher announces flushed edge state. *mqtt.Client satisfies it.
type StatusPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Registry caches live Edge records and writes their changes back.
//
// Lookups return the shared *Edge so that setters called by one connection
// are visible to every reader. All public methods are thread-safe.
type Registry struct {
	repo      Repository
	mu        sync.RWMutex
	edges     map[string]*Edge
	publisher StatusPublisher
	logger    Logger
}

// NewRegistry creates an edge registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		edges:  make(map[string]*Edge),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetPublisher enables status announcements on every flush.
func (r *Registry) SetPublisher(p StatusPublisher) {
	r.publisher = p
}

// RefreshCache loads every stored edge. Edges already cached keep their
// in-memory record so that unflushed changes are not lost.
func (r *Registry) RefreshCache(ctx context.Context) error {
	states, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading edges: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range states {
		if _, ok := r.edges[s.ID]; !ok {
			r.edges[s.ID] = newEdge(s)
		}
	}

	r.logger.Info("edge cache refreshed", "count", len(states))
	return nil
}

// GetEdgeOrError returns the live record for id, loading it from the
// repository on a cache miss. Returns ErrEdgeNotFound if no such edge.
func (r *Registry) GetEdgeOrError(ctx context.Context, id string) (*Edge, error) {
	r.mu.RLock()
	e, ok := r.edges[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have loaded it meanwhile.
	if e, ok := r.edges[id]; ok {
		return e, nil
	}
	e = newEdge(*s)
	r.edges[id] = e
	return e, nil
}

// Count returns the number of cached edges.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.edges)
}

// Flush writes every dirty edge back to the repository. Failed edges stay
// dirty for the next attempt; their errors are joined.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.RLock()
	edges := make([]*Edge, 0, len(r.edges))
	for _, e := range r.edges {
		edges = append(edges, e)
	}
	r.mu.RUnlock()

	var errs []error
	flushed := 0
	for _, e := range edges {
		s, dirty := e.takeDirty()
		if !dirty {
			continue
		}
		if err := r.repo.SaveState(ctx, s); err != nil {
			e.markDirty()
			errs = append(errs, fmt.Errorf("edge %s: %w", s.ID, err))
			continue
		}
		flushed++
		r.publishStatus(s)
	}

	if flushed > 0 {
		r.logger.Debug("edges flushed", "count", flushed)
	}
	return errors.Join(errs...)
}

func (r *Registry) publishStatus(s State) {
	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("encoding edge status failed", "edge_id", s.ID, "error", err)
		return
	}
	if err := r.publisher.PublishRetained(mqtt.Topics{}.EdgeStatus(s.ID), payload); err != nil {
		r.logger.Warn("publishing edge status failed", "edge_id", s.ID, "error", err)
	}
}

// Run flushes dirty edges every interval until ctx is cancelled, then
// performs a final flush.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			if err := r.Flush(flushCtx); err != nil {
				r.logger.Error("final edge flush failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Warn("edge flush failed", "error", err)
			}
		}
	}
}
