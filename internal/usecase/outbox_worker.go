package usecase

import (
	"context"
	"time"

	"go-panelworks-backend/config"
	"go-panelworks-backend/internal/domain"
	"go-panelworks-backend/pkg/email"
	"go-panelworks-backend/pkg/logger"
)

// OutboxWorker drains failed submissions from the outbox and retries their
// dispatch. Only runs when the durable outbox is enabled; in fire-and-forget
// mode a failed send is simply lost, matching the original contract.
type OutboxWorker struct {
	repo        domain.OutboxRepository
	sender      email.Sender
	router      domain.ContactUsecase
	interval    time.Duration
	maxAttempts int
	batchSize   int
}

func NewOutboxWorker(repo domain.OutboxRepository, sender email.Sender, router domain.ContactUsecase, cfg *config.Config) *OutboxWorker {
	return &OutboxWorker{
		repo:        repo,
		sender:      sender,
		router:      router,
		interval:    time.Duration(cfg.OutboxRetrySeconds) * time.Second,
		maxAttempts: cfg.OutboxMaxAttempts,
		batchSize:   cfg.OutboxRetryBatchSize,
	}
}

// Run blocks until ctx is cancelled, sweeping the outbox on each tick.
func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OutboxWorker) sweep(ctx context.Context) {
	entries, err := w.repo.FetchDue(ctx, w.batchSize, w.maxAttempts)
	if err != nil {
		logger.Log.Error("outbox sweep failed", "error", err)
		return
	}

	for _, entry := range entries {
		decision := w.router.Route(entry.Submission.Service)
		msg, err := buildMessage(&entry.Submission, decision)
		if err != nil {
			logger.Log.Error("outbox entry cannot be composed", "id", entry.ID, "error", err)
			continue
		}

		if err := w.sender.Send(ctx, msg); err != nil {
			// Linear backoff: each attempt pushes the next one out further.
			next := time.Now().Add(w.interval * time.Duration(entry.Attempts+1))
			if mErr := w.repo.MarkFailed(ctx, entry.ID, err.Error(), next); mErr != nil {
				logger.Log.Error("failed to update outbox entry", "id", entry.ID, "error", mErr)
			}
			logger.Log.Warn("outbox retry failed",
				"id", entry.ID, "attempts", entry.Attempts+1, "error", err)
			continue
		}

		if err := w.repo.MarkSent(ctx, entry.ID); err != nil {
			logger.Log.Error("failed to mark outbox entry sent", "id", entry.ID, "error", err)
			continue
		}
		logger.Log.Info("outbox entry dispatched on retry", "id", entry.ID, "attempts", entry.Attempts+1)
	}
}
