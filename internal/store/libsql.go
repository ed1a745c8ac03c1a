package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hassviz/hassviz/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. render log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Themes ---

func (s *LibSQLStore) SaveTheme(ctx context.Context, theme *Theme) error {
	colors, err := json.Marshal(theme.Colors)
	if err != nil {
		return fmt.Errorf("marshal theme colors: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO themes (name, colors, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET colors=excluded.colors, updated_at=CURRENT_TIMESTAMP`,
		theme.Name, string(colors), boolInt(theme.IsDefault), timeOrNow(theme.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTheme(ctx context.Context, name string) (*Theme, error) {
	t := &Theme{}
	var colors string
	var isDefault int
	err := s.db.QueryRowContext(ctx,
		`SELECT name, colors, is_default, created_at, updated_at FROM themes WHERE name = ?`, name,
	).Scan(&t.Name, &colors, &isDefault, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("theme", name)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(colors), &t.Colors); err != nil {
		return nil, fmt.Errorf("unmarshal theme colors: %w", err)
	}
	t.IsDefault = isDefault != 0
	return t, nil
}

func (s *LibSQLStore) ListThemes(ctx context.Context) ([]*Theme, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, colors, is_default, created_at, updated_at FROM themes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []*Theme
	for rows.Next() {
		t := &Theme{}
		var colors string
		var isDefault int
		if err := rows.Scan(&t.Name, &colors, &isDefault, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(colors), &t.Colors); err != nil {
			return nil, fmt.Errorf("unmarshal theme colors: %w", err)
		}
		t.IsDefault = isDefault != 0
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

func (s *LibSQLStore) DeleteTheme(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM themes WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "theme", name)
}

// SetDefaultTheme marks one theme as default, clearing the flag elsewhere.
func (s *LibSQLStore) SetDefaultTheme(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE themes SET is_default = 1 WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "theme", name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE themes SET is_default = 0 WHERE name != ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Annotations ---

func (s *LibSQLStore) SaveAnnotation(ctx context.Context, a *Annotation) error {
	if a.AutomationID == "" {
		return schema.NewError(schema.ErrCodeValidation, "annotation requires an automation id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (automation_id, node_id, body, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(automation_id, node_id) DO UPDATE SET body=excluded.body, updated_at=CURRENT_TIMESTAMP`,
		a.AutomationID, a.NodeID, a.Body,
	)
	return err
}

func (s *LibSQLStore) GetAnnotation(ctx context.Context, automationID, nodeID string) (*Annotation, error) {
	a := &Annotation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT automation_id, node_id, body, updated_at FROM annotations
		 WHERE automation_id = ? AND node_id = ?`, automationID, nodeID,
	).Scan(&a.AutomationID, &a.NodeID, &a.Body, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("annotation", automationID+"/"+nodeID)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *LibSQLStore) ListAnnotations(ctx context.Context, automationID string) ([]*Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT automation_id, node_id, body, updated_at FROM annotations
		 WHERE automation_id = ? ORDER BY node_id`, automationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var annotations []*Annotation
	for rows.Next() {
		a := &Annotation{}
		if err := rows.Scan(&a.AutomationID, &a.NodeID, &a.Body, &a.UpdatedAt); err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

func (s *LibSQLStore) DeleteAnnotation(ctx context.Context, automationID, nodeID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM annotations WHERE automation_id = ? AND node_id = ?`, automationID, nodeID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "annotation", automationID+"/"+nodeID)
}

// --- Render log ---

func (s *LibSQLStore) ListRenders(ctx context.Context, filter RenderFilter) ([]*RenderRecord, error) {
	var where []string
	var args []any

	if filter.AutomationID != "" {
		where = append(where, "automation_id = ?")
		args = append(args, filter.AutomationID)
	}
	if filter.Format != "" {
		where = append(where, "format = ?")
		args = append(args, filter.Format)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since)
	}

	query := `SELECT id, automation_id, sequence, format, node_count, edge_count, duration_ms, error, created_at FROM renders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RenderRecord
	for rows.Next() {
		r := &RenderRecord{}
		var renderErr sql.NullString
		if err := rows.Scan(&r.ID, &r.AutomationID, &r.Sequence, &r.Format,
			&r.NodeCount, &r.EdgeCount, &r.DurationMs, &renderErr, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Error = renderErr.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.VizError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
