package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/model"
	"mailtriage/pkg/mq"
	"mailtriage/pkg/otel"
	"mailtriage/pkg/outbox"
	"mailtriage/pkg/trace"
)

var ErrDraftNotPassed = errors.New("only PASSED drafts can be saved")

// DraftRepository 发件存储。草稿和 draft.saved 事件在同一事务中写入
type DraftRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
}

func NewDraftRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository) *DraftRepository {
	return &DraftRepository{db: db, outbox: outboxRepo}
}

func (r *DraftRepository) SaveDraft(ctx context.Context, d model.DraftReply) error {
	if d.GuardrailStatus != model.GuardrailPassed {
		return ErrDraftNotPassed
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin draft tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO outbound_drafts (email_id, kind, body, calendar_link, guardrail_status, version)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `
	var (
		id        int64
		createdAt time.Time
	)
	err = otel.DBCall(ctx, "insert", "outbound_drafts", func(ctx context.Context) error {
		return tx.QueryRow(ctx, query,
			d.EmailID,
			string(d.Kind),
			d.Body,
			d.CalendarLink,
			string(d.GuardrailStatus),
			d.Version,
		).Scan(&id, &createdAt)
	})
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}

	payload := mqcontracts.DraftSavedPayload{
		DraftID:      id,
		EmailID:      d.EmailID,
		Kind:         string(d.Kind),
		Version:      d.Version,
		CalendarLink: d.CalendarLink,
		SavedAt:      createdAt,
		TraceID:      trace.FromContext(ctx),
	}
	if err := r.outbox.Enqueue(ctx, tx, "draft", d.EmailID, mq.RoutingDraftSaved, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit draft tx: %w", err)
	}
	return nil
}
