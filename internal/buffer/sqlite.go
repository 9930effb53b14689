package buffer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/model"
)

// Buffer spools batches the store refused so a later cycle can replay them.
type Buffer interface {
	Store(ctx context.Context, batch *model.Batch) error
	Pending(ctx context.Context, limit int) ([]*model.Batch, error)
	Delete(ctx context.Context, ids []string) error
	Cleanup(ctx context.Context, maxAge time.Duration) (int64, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

type SQLiteBuffer struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteBuffer(log *slog.Logger, dbPath string) (*SQLiteBuffer, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	buf := &SQLiteBuffer{
		log: log,
		db:  db,
	}

	if err := buf.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return buf, nil
}

func (b *SQLiteBuffer) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS spool (
			id TEXT PRIMARY KEY,
			measurement TEXT NOT NULL,
			point_count INTEGER NOT NULL,
			points_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_spool_created_at ON spool(created_at);
	`
	_, err := b.db.Exec(query)
	return err
}

// storedPoint keeps field values split by type; a plain JSON round trip
// would turn every integer field into a float.
type storedPoint struct {
	Tags    map[string]string  `json:"tags,omitempty"`
	Ints    map[string]int64   `json:"ints,omitempty"`
	Floats  map[string]float64 `json:"floats,omitempty"`
	Strings map[string]string  `json:"strings,omitempty"`
	Time    int64              `json:"time"`
}

func encodePoints(points []model.Point) ([]byte, error) {
	stored := make([]storedPoint, 0, len(points))
	for _, p := range points {
		sp := storedPoint{Tags: p.Tags, Time: p.Time.UnixNano()}
		for k, v := range p.Fields {
			switch val := v.(type) {
			case int64:
				if sp.Ints == nil {
					sp.Ints = make(map[string]int64)
				}
				sp.Ints[k] = val
			case float64:
				if sp.Floats == nil {
					sp.Floats = make(map[string]float64)
				}
				sp.Floats[k] = val
			case string:
				if sp.Strings == nil {
					sp.Strings = make(map[string]string)
				}
				sp.Strings[k] = val
			default:
				return nil, fmt.Errorf("unsupported field type %T for %q", v, k)
			}
		}
		stored = append(stored, sp)
	}
	return json.Marshal(stored)
}

func decodePoints(measurement string, data []byte) ([]model.Point, error) {
	var stored []storedPoint
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	points := make([]model.Point, 0, len(stored))
	for _, sp := range stored {
		p := model.NewPoint(measurement, time.Unix(0, sp.Time).UTC())
		for k, v := range sp.Tags {
			p = p.Tag(k, v)
		}
		for k, v := range sp.Ints {
			p = p.Int(k, v)
		}
		for k, v := range sp.Floats {
			p = p.Float(k, v)
		}
		for k, v := range sp.Strings {
			p = p.Text(k, v)
		}
		points = append(points, p)
	}
	return points, nil
}

func (b *SQLiteBuffer) Store(ctx context.Context, batch *model.Batch) error {
	pointsJSON, err := encodePoints(batch.Points)
	if err != nil {
		return fmt.Errorf("failed to marshal points: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO spool (id, measurement, point_count, points_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		batch.ID,
		batch.Measurement,
		batch.Len(),
		string(pointsJSON),
		batch.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	b.log.Debug("batch stored in buffer",
		slog.String("id", batch.ID),
		slog.String("measurement", batch.Measurement),
		slog.Int("points", batch.Len()),
	)
	return nil
}

// Pending returns up to limit batches, oldest first. Rows that can no
// longer be decoded are deleted so they cannot block the queue.
func (b *SQLiteBuffer) Pending(ctx context.Context, limit int) ([]*model.Batch, error) {
	for {
		batches, corrupt, err := b.pendingPage(ctx, limit)
		if err != nil {
			return nil, err
		}
		if len(corrupt) == 0 {
			return batches, nil
		}

		if err := b.Delete(ctx, corrupt); err != nil {
			return nil, fmt.Errorf("failed to drop corrupt batches: %w", err)
		}
		b.log.Warn("dropped corrupt batches from buffer", slog.Int("count", len(corrupt)))

		if len(batches) > 0 {
			return batches, nil
		}
	}
}

func (b *SQLiteBuffer) pendingPage(ctx context.Context, limit int) ([]*model.Batch, []string, error) {
	query := `
		SELECT id, measurement, points_json, created_at
		FROM spool
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`

	rows, err := b.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query pending batches: %w", err)
	}
	defer rows.Close()

	var (
		batches []*model.Batch
		corrupt []string
	)
	for rows.Next() {
		var id, measurement, pointsJSON, createdAtStr string

		if err := rows.Scan(&id, &measurement, &pointsJSON, &createdAtStr); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			b.log.Error("failed to parse created_at", slog.String("id", id), sl.Err(err))
			corrupt = append(corrupt, id)
			continue
		}

		points, err := decodePoints(measurement, []byte(pointsJSON))
		if err != nil {
			b.log.Error("failed to unmarshal points", slog.String("id", id), sl.Err(err))
			corrupt = append(corrupt, id)
			continue
		}

		batches = append(batches, &model.Batch{
			ID:          id,
			Measurement: measurement,
			Points:      points,
			CreatedAt:   createdAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return batches, corrupt, nil
}

func (b *SQLiteBuffer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM spool WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete batch %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	b.log.Debug("deleted replayed batches", slog.Int("count", len(ids)))
	return nil
}

func (b *SQLiteBuffer) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	result, err := b.db.ExecContext(ctx, "DELETE FROM spool WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old batches: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		b.log.Info("cleaned up old buffer entries", slog.Int64("deleted", deleted))
	}

	return deleted, nil
}

func (b *SQLiteBuffer) Count(ctx context.Context) (int64, error) {
	var count int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spool").Scan(&count)
	return count, err
}

func (b *SQLiteBuffer) Close() error {
	return b.db.Close()
}
