// Package worker runs the background jobs: email delivery from the Redis job
// queue and the periodic refund settlement and temp avatar cleanup.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/notify"
	"github.com/conreg/backend/pkg/queue"
)

// JobSource is the Redis job queue as seen by the consumer.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailLogStore records delivery outcomes.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EmailProcessor delivers email jobs through a Mailer and logs each outcome.
type EmailProcessor struct {
	jobs    JobSource
	logs    EmailLogStore
	mailer  notify.Mailer
	from    string
	poll    time.Duration
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor. from is the sender header.
func NewEmailProcessor(jobs JobSource, logs EmailLogStore, mailer notify.Mailer, from string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		jobs:    jobs,
		logs:    logs,
		mailer:  mailer,
		from:    from,
		poll:    5 * time.Second,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// logID keeps one email_logs row per job across retries.
func logID(job *queue.Job) uuid.UUID {
	if id, err := uuid.Parse(job.ID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(job.ID))
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	entry := &models.EmailLog{
		ID:             logID(job),
		ConventionID:   payload.ConventionID,
		RegistrationID: payload.RegistrationID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	err := p.mailer.Send(ctx, notify.Message{
		From:    p.from,
		To:      payload.RecipientEmail,
		Subject: payload.Subject,
		Body:    payload.Body,
	})
	if err != nil {
		if mErr := p.logs.MarkFailed(ctx, entry.ID, err.Error()); mErr != nil {
			p.logger.Error("mark email failed", zap.Error(mErr), zap.String("email_log_id", entry.ID.String()))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, entry.ID, p.now()); err != nil {
		// Already delivered; a retry would send it twice.
		p.logger.Error("mark email sent", zap.Error(err), zap.String("email_log_id", entry.ID.String()))
	}
	p.logger.Info("email sent", zap.String("email_type", payload.EmailType), zap.String("job_id", job.ID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
