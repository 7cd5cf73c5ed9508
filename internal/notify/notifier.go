package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unihorario/registration-api/pkg/jobs"
)

// Message is a schedule lifecycle event pushed to the notifications webhook.
type Message struct {
	Event      string    `json:"event"`
	StudentID  string    `json:"student_id"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	DraftID    string    `json:"draft_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config configures the webhook notifier.
type Config struct {
	URL            string
	RequestTimeout time.Duration
	Workers        int
	MaxRetries     int
}

// Notifier delivers schedule events to an external webhook through a retrying
// worker queue. With no URL configured it drops events silently.
type Notifier struct {
	url        string
	httpClient *http.Client
	queue      *jobs.Queue[Message]
	logger     *zap.Logger
}

// New builds a Notifier. Call Start before publishing.
func New(cfg Config, logger *zap.Logger) *Notifier {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Notifier{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
	n.queue = jobs.NewQueue[Message]("notifications", n.deliver, jobs.Config{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// Publish enqueues an event for asynchronous delivery.
func (n *Notifier) Publish(_ context.Context, msg Message) error {
	if n.url == "" {
		return nil
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	return n.queue.Enqueue(jobs.Job[Message]{ID: uuid.NewString(), Payload: msg})
}

func (n *Notifier) deliver(ctx context.Context, job jobs.Job[Message]) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	n.logger.Sugar().Debugw("notification delivered", "event", job.Payload.Event, "student_id", job.Payload.StudentID)
	return nil
}
