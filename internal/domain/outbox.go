package domain

import (
	"context"
	"time"
)

// Outbox entry states.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a persisted submission awaiting (or done with) dispatch.
// Only present when the durable outbox is enabled; the default deployment is
// fire-and-forget with no persistence.
type OutboxEntry struct {
	ID            string
	Submission    ContactSubmission
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OutboxRepository persists submissions before dispatch so a relay failure
// is not permanent data loss.
type OutboxRepository interface {
	Create(ctx context.Context, entry *OutboxEntry) error
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, sendErr string, nextAttempt time.Time) error
	// FetchDue returns failed/pending entries whose next attempt time has
	// passed and which are still under the attempt cap.
	FetchDue(ctx context.Context, limit, maxAttempts int) ([]OutboxEntry, error)
}
