package edge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines edge persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*State, error)
	List(ctx context.Context) ([]State, error)
	Create(ctx context.Context, id, name string) error
	SaveState(ctx context.Context, s State) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed edge repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const edgeColumns = "id, name, config, soc, ipv4, version, last_update"

// GetByID retrieves one edge. Returns ErrEdgeNotFound if absent.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*State, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+edgeColumns+" FROM edges WHERE id = ?", id)
	s, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEdgeNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all edges ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]State, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+edgeColumns+" FROM edges ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	edges := []State{}
	for rows.Next() {
		s, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges: %w", err)
	}
	return edges, nil
}

// Create provisions a new edge with an empty configuration.
func (r *SQLiteRepository) Create(ctx context.Context, id, name string) error {
	if id == "" {
		return fmt.Errorf("creating edge: id is required")
	}
	if name == "" {
		name = id
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO edges (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrEdgeExists, id)
		}
		return fmt.Errorf("creating edge: %w", err)
	}
	return nil
}

// SaveState writes the mutable metadata of an existing edge.
func (r *SQLiteRepository) SaveState(ctx context.Context, s State) error {
	config := s.Config
	if config == nil {
		config = map[string]any{}
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshalling edge config: %w", err)
	}

	var soc sql.NullInt64
	if s.Soc != nil {
		soc = sql.NullInt64{Int64: int64(*s.Soc), Valid: true}
	}
	var lastUpdate sql.NullString
	if s.LastUpdate != nil {
		lastUpdate = sql.NullString{String: s.LastUpdate.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE edges SET config = ?, soc = ?, ipv4 = ?, version = ?, last_update = ?, updated_at = ?
		 WHERE id = ?`,
		string(configJSON), soc, nullString(s.IPv4), nullString(s.Version), lastUpdate,
		time.Now().UTC().Format(time.RFC3339), s.ID,
	)
	if err != nil {
		return fmt.Errorf("saving edge %s: %w", s.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEdge(row scanner) (*State, error) {
	var (
		s           State
		configJSON  string
		soc         sql.NullInt64
		ipv4, ver   sql.NullString
		lastUpdated sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Name, &configJSON, &soc, &ipv4, &ver, &lastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning edge: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &s.Config); err != nil {
		return nil, fmt.Errorf("edge %s: decoding config: %w", s.ID, err)
	}
	if soc.Valid {
		v := int(soc.Int64)
		s.Soc = &v
	}
	s.IPv4 = ipv4.String
	s.Version = ver.String
	if lastUpdated.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastUpdated.String)
		if err != nil {
			return nil, fmt.Errorf("edge %s: parsing last_update %q: %w", s.ID, lastUpdated.String, err)
		}
		s.LastUpdate = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
