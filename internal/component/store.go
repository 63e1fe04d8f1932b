package component

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Document is the persisted component configuration.
type Document struct {
	Things      []ThingConfig `yaml:"things"`
	Schedulers  []ThingConfig `yaml:"schedulers"`
	Controllers []ThingConfig `yaml:"controllers"`
}

// ThingConfig is one persisted component.
type ThingConfig struct {
	ID     string         `yaml:"id"`
	Class  string         `yaml:"class"`
	Config map[string]any `yaml:"config,omitempty"`
}

// DefaultDocument is written when no configuration exists yet.
func DefaultDocument() *Document {
	return &Document{
		Things: []ThingConfig{
			{ID: "ess0", Class: ClassEssAsymmetric, Config: map[string]any{"capacity": 10000, "maxApparentPower": 5000}},
			{ID: "meter0", Class: ClassMeterSymmetric, Config: map[string]any{"type": "grid"}},
			{ID: SystemID, Class: ClassSystem},
		},
		Schedulers: []ThingConfig{
			{ID: "scheduler0", Class: ClassScheduler},
		},
	}
}

// Store loads and saves the configuration document.
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

// FileStore keeps the document in a YAML file. Saves are atomic.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the document. A missing file yields an error matching
// fs.ErrNotExist.
func (s *FileStore) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading component config: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing component config: %w", err)
	}
	return &doc, nil
}

// LoadOrDefault reads the document, falling back to DefaultDocument when
// the file does not exist yet.
func (s *FileStore) LoadOrDefault() (*Document, bool, error) {
	doc, err := s.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultDocument(), true, nil
	}
	return doc, false, err
}

// Save writes the document via a temp file and rename.
func (s *FileStore) Save(doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding component config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".components-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("writing component config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing component config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing component config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing component config: %w", err)
	}
	return nil
}

// Load builds components from doc. Every controller is added to every
// scheduler.
func (r *Registry) Load(doc *Document) error {
	for _, t := range doc.Things {
		if IsReservedID(t.ID) {
			return fmt.Errorf("thing %s: %w", t.ID, ErrReservedID)
		}
		c, err := NewDevice(t.ID, t.Class, t.Config)
		if err != nil {
			return fmt.Errorf("thing %s: %w", t.ID, err)
		}
		if err := r.Add(c); err != nil {
			return err
		}
	}
	for _, t := range doc.Schedulers {
		s, err := NewScheduler(t.ID, t.Config)
		if err != nil {
			return fmt.Errorf("scheduler %s: %w", t.ID, err)
		}
		if err := r.Add(s); err != nil {
			return err
		}
	}
	for _, t := range doc.Controllers {
		object := map[string]any{"id": t.ID, "class": t.Class}
		for k, v := range t.Config {
			object[k] = v
		}
		if _, err := r.CreateController(object); err != nil {
			return fmt.Errorf("controller %s: %w", t.ID, err)
		}
	}
	r.logger.Info("components loaded",
		"things", len(doc.Things), "schedulers", len(doc.Schedulers), "controllers", len(doc.Controllers))
	return nil
}

// Document captures the current configuration. Internal components are
// not persisted.
func (r *Registry) Document() *Document {
	doc := &Document{}
	for _, c := range r.Components() {
		if IsReservedID(c.ID()) {
			continue
		}
		tc := ThingConfig{ID: c.ID(), Class: c.Class(), Config: c.Config()}
		switch c.(type) {
		case *Scheduler:
			doc.Schedulers = append(doc.Schedulers, tc)
		case Controller:
			doc.Controllers = append(doc.Controllers, tc)
		default:
			doc.Things = append(doc.Things, tc)
		}
	}
	return doc
}

// Persist writes the current configuration to the store, if one is set.
// Concurrent calls are serialised from snapshot to save, so the stored
// document never goes back to an older state.
func (r *Registry) Persist() error {
	if r.store == nil {
		return nil
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if err := r.store.Save(r.Document()); err != nil {
		return err
	}
	r.logger.Debug("component configuration persisted")
	return nil
}
