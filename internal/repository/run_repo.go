package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailtriage/internal/model"
	"mailtriage/pkg/otel"
)

var (
	ErrNotFound    = errors.New("run not found")
	ErrRunExists   = errors.New("another run already exists for this email")
	ErrRunFinished = errors.New("run already finished")
)

// RunRepository 保存 RunState，每封邮件只有一条记录
type RunRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts the first state of a run. It claims the email: a second
// run for the same email is rejected with ErrRunExists.
func (r *RunRepository) Create(ctx context.Context, st *model.RunState, email model.Email) error {
	stateJSON, emailJSON, err := encodeRun(st, email)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO run_states (run_id, email_id, status, current_node, route, state, email, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (email_id) DO NOTHING
    `
	var affected int64
	err = otel.DBCall(ctx, "insert", "run_states", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query,
			st.RunID,
			st.EmailID,
			string(st.Status),
			st.CurrentNode,
			string(st.Route),
			stateJSON,
			emailJSON,
			st.CreatedAt,
			st.UpdatedAt,
		)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("create run %s: %w", st.RunID, err)
	}
	if affected == 0 {
		return ErrRunExists
	}
	return nil
}

// Save upserts the run. A different run for the same email is rejected
// with ErrRunExists, a finished run is never overwritten (ErrRunFinished).
func (r *RunRepository) Save(ctx context.Context, st *model.RunState, email model.Email) error {
	stateJSON, emailJSON, err := encodeRun(st, email)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO run_states (run_id, email_id, status, current_node, route, state, email, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (email_id) DO UPDATE
        SET status = EXCLUDED.status,
            current_node = EXCLUDED.current_node,
            route = EXCLUDED.route,
            state = EXCLUDED.state,
            updated_at = EXCLUDED.updated_at
        WHERE run_states.run_id = EXCLUDED.run_id
          AND run_states.status NOT IN ('COMPLETED', 'FAILED')
    `
	var affected int64
	err = otel.DBCall(ctx, "upsert", "run_states", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query,
			st.RunID,
			st.EmailID,
			string(st.Status),
			st.CurrentNode,
			string(st.Route),
			stateJSON,
			emailJSON,
			st.CreatedAt,
			st.UpdatedAt,
		)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", st.RunID, err)
	}
	if affected > 0 {
		return nil
	}

	// 区分两种冲突
	existing, _, err := r.GetByEmail(ctx, st.EmailID)
	if err != nil {
		return fmt.Errorf("save run %s: %w", st.RunID, err)
	}
	if existing.RunID != st.RunID {
		return ErrRunExists
	}
	return ErrRunFinished
}

func encodeRun(st *model.RunState, email model.Email) ([]byte, []byte, error) {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return nil, nil, err
	}
	emailJSON, err := json.Marshal(email)
	if err != nil {
		return nil, nil, err
	}
	return stateJSON, emailJSON, nil
}

// Get returns a run and its email by run id.
func (r *RunRepository) Get(ctx context.Context, runID string) (*model.RunState, model.Email, error) {
	return r.find(ctx, `SELECT state, email FROM run_states WHERE run_id = $1`, runID)
}

// GetByEmail returns the run for an email.
func (r *RunRepository) GetByEmail(ctx context.Context, emailID string) (*model.RunState, model.Email, error) {
	return r.find(ctx, `SELECT state, email FROM run_states WHERE email_id = $1`, emailID)
}

// ListByStatus returns runs in the given status, oldest update first.
func (r *RunRepository) ListByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.RunState, error) {
	query := `
        SELECT state
        FROM run_states
        WHERE status = $1
        ORDER BY updated_at ASC
        LIMIT $2
    `
	var out []*model.RunState
	err := otel.DBCall(ctx, "select", "run_states", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, string(status), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			var st model.RunState
			if err := json.Unmarshal(raw, &st); err != nil {
				return err
			}
			out = append(out, &st)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RunRepository) find(ctx context.Context, query string, arg string) (*model.RunState, model.Email, error) {
	var stateJSON, emailJSON []byte
	err := otel.DBCall(ctx, "select", "run_states", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, arg).Scan(&stateJSON, &emailJSON)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.Email{}, ErrNotFound
	}
	if err != nil {
		return nil, model.Email{}, err
	}

	var st model.RunState
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		return nil, model.Email{}, fmt.Errorf("decode run state: %w", err)
	}
	var email model.Email
	if err := json.Unmarshal(emailJSON, &email); err != nil {
		return nil, model.Email{}, fmt.Errorf("decode email: %w", err)
	}
	return &st, email, nil
}
