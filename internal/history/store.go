package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/netpanel/internal/infrastructure/database"
)

// defaultRecentLimit caps Recent queries when the caller passes no limit.
const defaultRecentLimit = 100

// maxRecentLimit is the hard ceiling for a single Recent query.
const maxRecentLimit = 1000

// Sample is one recorded poll of a router API endpoint.
type Sample struct {
	ID        string          `json:"id"`
	Endpoint  string          `json:"endpoint"`
	Success   bool            `json:"success"`
	ErrorCode string          `json:"error_code,omitempty"`
	LatencyMS int64           `json:"latency_ms"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SampledAt time.Time       `json:"sampled_at"`
}

// Store persists status samples in SQLite.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the database layer
//     serialises writers.
type Store struct {
	db *database.DB
}

// NewStore creates a store over an open database. The status_samples
// schema must already be migrated.
func NewStore(db *database.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("history: database is required")
	}
	return &Store{db: db}, nil
}

// Insert records a sample. A missing ID or timestamp is filled in.
func (s *Store) Insert(ctx context.Context, sample Sample) (Sample, error) {
	if sample.Endpoint == "" {
		return Sample{}, errors.New("history: sample endpoint is required")
	}
	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	if sample.SampledAt.IsZero() {
		sample.SampledAt = time.Now().UTC()
	}

	var payload any
	if len(sample.Payload) > 0 {
		payload = string(sample.Payload)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_samples (id, endpoint, success, error_code, latency_ms, payload, sampled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sample.ID,
		sample.Endpoint,
		sample.Success,
		sample.ErrorCode,
		sample.LatencyMS,
		payload,
		sample.SampledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Sample{}, fmt.Errorf("inserting status sample: %w", err)
	}
	return sample, nil
}

// Recent returns the newest samples, newest first. limit <= 0 uses the
// default; a limit above the ceiling is clamped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, success, error_code, latency_ms, payload, sampled_at
		FROM status_samples
		ORDER BY sampled_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying status samples: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	return scanSamples(rows)
}

// LatestByEndpoint returns the most recent sample for each polled
// endpoint, keyed by endpoint path.
func (s *Store) LatestByEndpoint(ctx context.Context) (map[string]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, success, error_code, latency_ms, payload, max(sampled_at)
		FROM status_samples
		GROUP BY endpoint`)
	if err != nil {
		return nil, fmt.Errorf("querying latest samples: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	samples, err := scanSamples(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]Sample, len(samples))
	for _, sample := range samples {
		latest[sample.Endpoint] = sample
	}
	return latest, nil
}

// scanSamples converts result rows into samples.
func scanSamples(rows *sql.Rows) ([]Sample, error) {
	var samples []Sample
	for rows.Next() {
		var (
			sample    Sample
			payload   sql.NullString
			sampledAt string
		)
		if err := rows.Scan(
			&sample.ID,
			&sample.Endpoint,
			&sample.Success,
			&sample.ErrorCode,
			&sample.LatencyMS,
			&payload,
			&sampledAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		if payload.Valid {
			sample.Payload = json.RawMessage(payload.String)
		}
		ts, err := time.Parse(time.RFC3339Nano, sampledAt)
		if err != nil {
			return nil, fmt.Errorf("parsing sample timestamp: %w", err)
		}
		sample.SampledAt = ts
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sample rows: %w", err)
	}
	return samples, nil
}
