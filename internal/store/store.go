// Package store persists published rule documents in Postgres so a
// restarted server can rebuild its validators from the last publication.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no publication exists for a validator name.
var ErrNotFound = errors.New("publication not found")

const schema = `
CREATE TABLE IF NOT EXISTS publications (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    source TEXT NOT NULL,
    rule_count INT NOT NULL,
    published_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS publications_name_published_at
    ON publications (name, published_at DESC)
`

// Publication is one published rule set revision. Source holds the YAML
// document exactly as published, so a revision can be replayed through the
// loader without a lossy round trip.
type Publication struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RuleCount   int       `json:"rule_count"`
	PublishedAt time.Time `json:"published_at"`
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the publications table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// RunMigrations executes all SQL files in the given directory in
// lexicographic order. Each file may contain multiple statements
// separated by ';'.
func (s *Store) RunMigrations(ctx context.Context, dir string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", p, err)
		}
		for _, stmt := range splitStatements(string(b)) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", p, err)
			}
		}
	}
	return nil
}

func splitStatements(sqlText string) []string {
	var out []string
	for _, c := range strings.Split(sqlText, ";") {
		if stmt := strings.TrimSpace(c); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// SavePublication records a new revision of the named rule set.
func (s *Store) SavePublication(ctx context.Context, name string, source []byte, ruleCount int) (Publication, error) {
	p := Publication{
		ID:          uuid.NewString(),
		Name:        name,
		RuleCount:   ruleCount,
		PublishedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publications(id, name, source, rule_count, published_at) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, string(source), p.RuleCount, p.PublishedAt,
	)
	if err != nil {
		return Publication{}, fmt.Errorf("save publication: %w", err)
	}
	return p, nil
}

// LatestPublication returns the newest revision of the named rule set
// together with its published YAML source.
func (s *Store) LatestPublication(ctx context.Context, name string) (Publication, []byte, error) {
	var (
		p      Publication
		source string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, rule_count, published_at FROM publications
         WHERE name = $1 ORDER BY published_at DESC LIMIT 1`, name,
	).Scan(&p.ID, &p.Name, &source, &p.RuleCount, &p.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Publication{}, nil, ErrNotFound
	}
	if err != nil {
		return Publication{}, nil, fmt.Errorf("latest publication: %w", err)
	}
	return p, []byte(source), nil
}

// LatestPublications returns the newest revision per validator name.
func (s *Store) LatestPublications(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ON (name) name, source FROM publications
         ORDER BY name, published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest publications: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var name, source string
		if err := rows.Scan(&name, &source); err != nil {
			return nil, err
		}
		out[name] = []byte(source)
	}
	return out, rows.Err()
}

// ListPublications returns recent revisions across all names, newest first.
func (s *Store) ListPublications(ctx context.Context, limit int) ([]Publication, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rule_count, published_at FROM publications
         ORDER BY published_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()
	out := []Publication{}
	for rows.Next() {
		var p Publication
		if err := rows.Scan(&p.ID, &p.Name, &p.RuleCount, &p.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
