package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists sessions in the screening_sessions table so that
// several server replicas can share interview state. Expiry is evaluated in
// SQL against updated_at.
type PostgresStore[T any] struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

func NewPostgresStore[T any](db *sqlx.DB, ttl time.Duration) *PostgresStore[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore[T]{db: db, ttl: ttl, now: time.Now}
}

type sessionRow struct {
	Data      []byte    `db:"data"`
	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *PostgresStore[T]) Get(ctx context.Context, id string) (Entry[T], error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT data, version, created_at, updated_at
		   FROM screening_sessions
		  WHERE id = $1 AND updated_at > $2`,
		id, s.cutoff())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry[T]{}, nil
		}
		return Entry[T]{}, fmt.Errorf("load session: %w", err)
	}

	var data T
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &data); err != nil {
			return Entry[T]{}, fmt.Errorf("failed to unmarshal session data: %w", err)
		}
	}

	return Entry[T]{
		Data:      data,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *PostgresStore[T]) Save(ctx context.Context, id string, e Entry[T]) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}

	now := s.now()
	var res sql.Result
	if e.Version == 1 {
		// Fresh session: insert, or take over a row that has already expired.
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO screening_sessions (id, data, version, created_at, updated_at)
			VALUES ($1, $2, 1, $3, $3)
			ON CONFLICT (id) DO UPDATE SET
				data = EXCLUDED.data,
				version = 1,
				created_at = EXCLUDED.created_at,
				updated_at = EXCLUDED.updated_at
			WHERE screening_sessions.updated_at <= $4`,
			id, string(dataJSON), now, s.cutoff())
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE screening_sessions
			   SET data = $2, version = $3, updated_at = $4
			 WHERE id = $1 AND version = $5 AND updated_at > $6`,
			id, string(dataJSON), e.Version, now, e.Version-1, s.cutoff())
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore[T]) Clear(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM screening_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows past the idle timeout and returns how many were removed.
func (s *PostgresStore[T]) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM screening_sessions WHERE updated_at <= $1`, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore[T]) cutoff() time.Time {
	return s.now().Add(-s.ttl)
}
