package store

import (
	"context"
	"fmt"
	"time"
)

// AppendRender appends a render record with a monotonically increasing
// per-automation sequence. Uses a write-intent statement inside the
// transaction so concurrent writers cannot interleave sequence reads and
// writes in WAL mode.
func (s *LibSQLStore) AppendRender(ctx context.Context, rec *RenderRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// BeginTx alone may start a deferred transaction; force the write lock
	// before reading the current sequence.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM renders WHERE automation_id = ?`, rec.AutomationID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	rec.Sequence = seq

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO renders (automation_id, sequence, format, node_count, edge_count, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AutomationID, seq, rec.Format, rec.NodeCount, rec.EdgeCount, rec.DurationMs,
		nullStr(rec.Error), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert render: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit render: %w", err)
	}
	return nil
}
