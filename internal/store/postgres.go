package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shift-coverage/internal/models"
)

// PostgresStore wraps pgxpool. Documents go in a JSONB column; audit entries
// are mirrored row by row so they can be queried outside the document.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a pooled connection to Postgres.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE key = $1`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query document: %w", err)
	}
	return body, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (key, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`, key, data)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// AppendAudit adds an audit row. Replays of the same entry are ignored.
func (s *PostgresStore) AppendAudit(ctx context.Context, e models.AuditLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, ts, actor, vacancy_id, from_tier, to_tier, reason, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Timestamp, e.Actor, e.VacancyID, e.From.String(), e.To.String(), string(e.Reason), e.Note)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListAudit returns mirrored entries for a vacancy, oldest first. An empty
// vacancyID lists everything.
func (s *PostgresStore) ListAudit(ctx context.Context, vacancyID string) ([]models.AuditLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, ts, actor, vacancy_id, from_tier, to_tier, reason, note
		FROM audit_logs
		WHERE $1 = '' OR vacancy_id = $1
		ORDER BY ts, id
	`, vacancyID)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []models.AuditLogEntry
	for rows.Next() {
		var (
			e        models.AuditLogEntry
			from, to string
			reason   string
			ts       time.Time
		)
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.VacancyID, &from, &to, &reason, &e.Note); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if e.From, err = models.ParseTier(from); err != nil {
			return nil, err
		}
		if e.To, err = models.ParseTier(to); err != nil {
			return nil, err
		}
		e.Timestamp = ts.UTC()
		e.Reason = models.AuditReason(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}
