package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/pkg/jobs"
)

// QueuedMailer wraps another Mailer with a background queue so request
// handlers never wait on the mail transport. Delivery failures are retried
// by the queue and logged, never surfaced to the enqueuing caller.
type QueuedMailer struct {
	queue *jobs.Queue
}

// NewQueuedMailer builds a queued wrapper around base.
func NewQueuedMailer(base Mailer, workers int, logger *zap.Logger) *QueuedMailer {
	q := jobs.NewQueue("mail", func(ctx context.Context, task jobs.Task) error {
		msg, ok := task.Payload.(Message)
		if !ok {
			return fmt.Errorf("unexpected mail payload %T", task.Payload)
		}
		return base.Send(ctx, msg)
	}, jobs.Config{Workers: workers, Logger: logger})
	return &QueuedMailer{queue: q}
}

// Start launches the delivery workers.
func (m *QueuedMailer) Start(ctx context.Context) {
	m.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (m *QueuedMailer) Stop() {
	m.queue.Stop()
}

// Send enqueues the message for background delivery. The error reports
// enqueueing problems only; delivery outcomes are handled by the queue.
func (m *QueuedMailer) Send(ctx context.Context, msg Message) error {
	return m.queue.Enqueue(jobs.Task{
		ID:      uuid.NewString(),
		Kind:    "outbound_mail",
		Payload: msg,
	})
}
