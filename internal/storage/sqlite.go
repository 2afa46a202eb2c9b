// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mcp-health-profile/internal/models"
)

// ErrNotFound is returned when a characteristic or authorization has never been recorded.
var ErrNotFound = errors.New("not found")

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping reports whether the database still answers.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS samples (
        uuid TEXT PRIMARY KEY,
        type TEXT NOT NULL,
        value REAL NOT NULL,
        unit TEXT NOT NULL,
        start_ns INTEGER NOT NULL,
        end_ns INTEGER NOT NULL,
        source TEXT NOT NULL,
        created_ns INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS characteristics (
        type TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_ns INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS authorizations (
        type TEXT PRIMARY KEY,
        read_status INTEGER NOT NULL,
        share_status INTEGER NOT NULL,
        updated_ns INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_samples_type_end ON samples(type, end_ns);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SaveSample(ctx context.Context, sample *models.Sample) error {
	query := `
        INSERT INTO samples (uuid, type, value, unit, start_ns, end_ns, source, created_ns)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		sample.UUID, string(sample.Type), sample.Quantity.Value, sample.Quantity.Unit.Symbol,
		sample.Start.UnixNano(), sample.End.UnixNano(), sample.Source, sample.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	return nil
}

// QuerySamples returns matching samples, newest end time first.
func (s *SQLiteStorage) QuerySamples(ctx context.Context, q models.SampleQuery) ([]*models.Sample, error) {
	query := `
        SELECT uuid, type, value, unit, start_ns, end_ns, source, created_ns
        FROM samples
        WHERE type = ?
    `
	args := []interface{}{string(q.Type)}

	// Samples overlapping the start boundary count; StrictEnd additionally
	// requires the sample to have finished by the end boundary.
	if !q.Start.IsZero() {
		query += " AND end_ns >= ?"
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		if q.StrictEnd {
			query += " AND end_ns <= ?"
		} else {
			query += " AND start_ns <= ?"
		}
		args = append(args, q.End.UnixNano())
	}

	query += " ORDER BY end_ns DESC, created_ns DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.Sample
	for rows.Next() {
		sample := &models.Sample{}
		var typ, unit string
		var startNs, endNs, createdNs int64

		err := rows.Scan(
			&sample.UUID, &typ, &sample.Quantity.Value, &unit,
			&startNs, &endNs, &sample.Source, &createdNs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		sample.Type = models.ObjectType(typ)
		if sample.Quantity.Unit, err = models.ParseUnit(unit); err != nil {
			return nil, fmt.Errorf("failed to parse unit of sample %s: %w", sample.UUID, err)
		}
		sample.Start = time.Unix(0, startNs).UTC()
		sample.End = time.Unix(0, endNs).UTC()
		sample.CreatedAt = time.Unix(0, createdNs).UTC()

		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}

	return samples, nil
}

func (s *SQLiteStorage) SetCharacteristic(ctx context.Context, typ models.ObjectType, value string) error {
	query := `
        INSERT INTO characteristics (type, value, updated_ns)
        VALUES (?, ?, ?)
        ON CONFLICT(type) DO UPDATE SET value = excluded.value, updated_ns = excluded.updated_ns
    `
	if _, err := s.db.ExecContext(ctx, query, string(typ), value, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to store characteristic %s: %w", typ, err)
	}
	return nil
}

func (s *SQLiteStorage) GetCharacteristic(ctx context.Context, typ models.ObjectType) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM characteristics WHERE type = ?`, string(typ)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read characteristic %s: %w", typ, err)
	}
	return value, nil
}

func (s *SQLiteStorage) SaveAuthorizations(ctx context.Context, auths []models.Authorization) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO authorizations (type, read_status, share_status, updated_ns)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(type) DO UPDATE SET
            read_status = CASE WHEN excluded.read_status != 0 THEN excluded.read_status ELSE authorizations.read_status END,
            share_status = CASE WHEN excluded.share_status != 0 THEN excluded.share_status ELSE authorizations.share_status END,
            updated_ns = excluded.updated_ns
    `
	now := time.Now().UnixNano()
	for _, auth := range auths {
		if _, err := tx.ExecContext(ctx, query, string(auth.Type), int(auth.Read), int(auth.Share), now); err != nil {
			return fmt.Errorf("failed to store authorization for %s: %w", auth.Type, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) GetAuthorization(ctx context.Context, typ models.ObjectType) (models.Authorization, error) {
	auth := models.Authorization{Type: typ}
	var read, share int
	err := s.db.QueryRowContext(ctx,
		`SELECT read_status, share_status FROM authorizations WHERE type = ?`, string(typ)).Scan(&read, &share)
	if errors.Is(err, sql.ErrNoRows) {
		return auth, ErrNotFound
	}
	if err != nil {
		return auth, fmt.Errorf("failed to read authorization for %s: %w", typ, err)
	}
	auth.Read = models.AuthorizationStatus(read)
	auth.Share = models.AuthorizationStatus(share)
	return auth, nil
}
