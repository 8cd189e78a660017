package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-panelworks-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type outboxRepo struct {
	db *pgxpool.Pool

	// grace delays sweepability of fresh entries so the in-request send
	// attempt always goes first.
	grace time.Duration
}

func NewOutboxRepository(db *pgxpool.Pool, grace time.Duration) domain.OutboxRepository {
	if grace <= 0 {
		grace = time.Minute
	}
	return &outboxRepo{db: db, grace: grace}
}

// submissionPayload is the stored JSON shape. Kept separate from the domain
// struct so attachments round-trip through the database (base64 in JSONB)
// without leaking into the HTTP binding tags.
type submissionPayload struct {
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Phone       string              `json:"phone"`
	VehicleReg  string              `json:"vehicle_reg"`
	Service     string              `json:"service"`
	Message     string              `json:"message"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
}

type attachmentPayload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

func toPayload(sub domain.ContactSubmission) submissionPayload {
	p := submissionPayload{
		Name:       sub.Name,
		Email:      sub.Email,
		Phone:      sub.Phone,
		VehicleReg: sub.VehicleReg,
		Service:    sub.Service,
		Message:    sub.Message,
	}
	for _, att := range sub.Attachments {
		p.Attachments = append(p.Attachments, attachmentPayload{Filename: att.Filename, Data: att.Data})
	}
	return p
}

func (p submissionPayload) toDomain() domain.ContactSubmission {
	sub := domain.ContactSubmission{
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
		VehicleReg: p.VehicleReg,
		Service:    p.Service,
		Message:    p.Message,
	}
	for _, att := range p.Attachments {
		sub.Attachments = append(sub.Attachments, domain.Attachment{Filename: att.Filename, Data: att.Data})
	}
	return sub
}

func (r *outboxRepo) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	payload, err := json.Marshal(toPayload(entry.Submission))
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	nextAttempt := time.Now().Add(r.grace)

	query := `INSERT INTO contact_outbox (id, payload, status, attempts, next_attempt_at, created_at, updated_at)
              VALUES ($1, $2, $3, 0, $4, now(), now())`
	_, err = r.db.Exec(ctx, query, entry.ID, payload, domain.OutboxPending, nextAttempt)
	return err
}

func (r *outboxRepo) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE contact_outbox SET status = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, domain.OutboxSent, id)
	return err
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id string, sendErr string, nextAttempt time.Time) error {
	query := `UPDATE contact_outbox
              SET status = $1, attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = now()
              WHERE id = $4`
	_, err := r.db.Exec(ctx, query, domain.OutboxFailed, sendErr, nextAttempt, id)
	return err
}

func (r *outboxRepo) FetchDue(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxEntry, error) {
	query := `SELECT id, payload, status, attempts, COALESCE(last_error, ''), next_attempt_at, created_at, updated_at
              FROM contact_outbox
              WHERE status IN ($1, $2) AND next_attempt_at <= now() AND attempts < $3
              ORDER BY next_attempt_at ASC
              LIMIT $4`

	rows, err := r.db.Query(ctx, query, domain.OutboxPending, domain.OutboxFailed, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.OutboxEntry
	for rows.Next() {
		var entry domain.OutboxEntry
		var raw []byte
		if err := rows.Scan(&entry.ID, &raw, &entry.Status, &entry.Attempts,
			&entry.LastError, &entry.NextAttemptAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		var payload submissionPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload %s: %w", entry.ID, err)
		}
		entry.Submission = payload.toDomain()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
