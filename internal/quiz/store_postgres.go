package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed SessionStore. Questions and answers
// are kept as JSONB on the quiz_sessions row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answers := s.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	var version int
	err = p.pool.QueryRow(ctx,
		`INSERT INTO quiz_sessions (id, player, state, score, current_index, questions, answers, started_at, ended_at, version)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10 + 1)
		 ON CONFLICT (id) DO UPDATE SET
		   player = EXCLUDED.player,
		   state = EXCLUDED.state,
		   score = EXCLUDED.score,
		   current_index = EXCLUDED.current_index,
		   questions = EXCLUDED.questions,
		   answers = EXCLUDED.answers,
		   ended_at = EXCLUDED.ended_at,
		   version = quiz_sessions.version + 1
		 WHERE quiz_sessions.version = $10
		 RETURNING version`,
		s.ID,
		s.Player,
		string(s.State),
		s.Score,
		s.CurrentIndex,
		string(questions),
		string(answersJSON),
		s.StartedAt,
		s.EndedAt,
		s.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s at version %d", ErrSessionConflict, s.ID, s.Version)
		}
		return fmt.Errorf("save session: %w", err)
	}
	s.Version = version
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	s := &Session{}
	var state string
	var questions, answers []byte

	err := p.pool.QueryRow(ctx,
		`SELECT id::text, player, state, score, current_index, questions, answers, started_at, ended_at, version
		 FROM quiz_sessions
		 WHERE id = $1::uuid`,
		id,
	).Scan(
		&s.ID,
		&s.Player,
		&state,
		&s.Score,
		&s.CurrentIndex,
		&questions,
		&answers,
		&s.StartedAt,
		&s.EndedAt,
		&s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.State = SessionState(state)
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	return s, nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := p.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
