package mail

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	done chan struct{}
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func TestQueuedMailerDeliversInBackground(t *testing.T) {
	base := &recordingMailer{done: make(chan struct{}, 1)}
	mailer := NewQueuedMailer(base, 1, zap.NewNop())
	mailer.Start(context.Background())
	defer mailer.Stop()

	msg := Message{ToEmail: "alex@example.com", Subject: "Welcome"}
	require.NoError(t, mailer.Send(context.Background(), msg))

	select {
	case <-base.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}

	base.mu.Lock()
	defer base.mu.Unlock()
	require.Len(t, base.sent, 1)
	assert.Equal(t, "alex@example.com", base.sent[0].ToEmail)
	assert.Equal(t, "Welcome", base.sent[0].Subject)
}

func TestQueuedMailerRejectsSendBeforeStart(t *testing.T) {
	base := &recordingMailer{done: make(chan struct{}, 1)}
	mailer := NewQueuedMailer(base, 1, zap.NewNop())

	err := mailer.Send(context.Background(), Message{ToEmail: "alex@example.com"})
	require.Error(t, err)
}
