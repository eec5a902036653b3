package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"listvault/internal/client/models"
	"listvault/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, m *models.PendingMutation) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO mutation_queue (id, action, key, data, ts) VALUES (?, ?, ?, ?, ?)`,
		m.ID, string(m.Action), m.Key, m.Data, m.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append mutation: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get mutation seq: %w", err)
	}
	m.Seq = seq
	return nil
}

func (r *SQLiteRepository) Replace(ctx context.Context, m models.PendingMutation) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mutation_queue SET id = ?, action = ?, key = ?, data = ?, ts = ? WHERE seq = ?`,
		m.ID, string(m.Action), m.Key, m.Data, m.Timestamp.UTC().Format(time.RFC3339Nano), m.Seq)
	if err != nil {
		return fmt.Errorf("failed to replace mutation: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *SQLiteRepository) GetByKey(ctx context.Context, key string) (*models.PendingMutation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT seq, id, action, key, data, ts FROM mutation_queue WHERE key = ? ORDER BY seq LIMIT 1`, key)

	m, err := scanMutation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued mutation: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.PendingMutation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, action, key, data, ts FROM mutation_queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to select mutations: %w", err)
	}
	defer rows.Close()

	var result []models.PendingMutation
	for rows.Next() {
		m, err := scanMutation(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) RemoveBySeq(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to remove mutation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveByKey(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove mutation by key: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RekeyEntries(ctx context.Context, oldKey, newKey string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE mutation_queue SET key = ? WHERE key = ?`, newKey, oldKey); err != nil {
		return fmt.Errorf("failed to rekey mutations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mutations: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mutation_queue`); err != nil {
		return fmt.Errorf("failed to clear mutation queue: %w", err)
	}
	return nil
}

func scanMutation(scan func(dest ...any) error) (*models.PendingMutation, error) {
	var m models.PendingMutation
	var action, ts string
	var data sql.NullString
	if err := scan(&m.Seq, &m.ID, &action, &m.Key, &data, &ts); err != nil {
		return nil, err
	}

	m.Action = models.MutationAction(action)
	m.Data = data.String

	var err error
	if m.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("failed to parse mutation timestamp: %w", err)
	}
	return &m, nil
}
