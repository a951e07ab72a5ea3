// Package notify delivers "new message" events to downstream consumers:
// a push stream for connected clients and outbound webhook calls for
// registered plugins.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/mailfeed/internal/models"
	"github.com/yourusername/mailfeed/internal/retry"
)

// Matcher decides which consumers are told about a message.
type Matcher interface {
	FindMatching(msg *models.Message) []models.Consumer
}

// DeadLetter records one consumer delivery that exhausted its retries.
type DeadLetter struct {
	ID         string
	ConsumerID string
	MessageID  int64
	FailedAt   time.Time
	Reason     string
}

// deadLetterKeep bounds the in-memory dead-letter ring.
const deadLetterKeep = 256

// Dispatcher fans one persisted-message event out to the push stream and
// to every matching webhook consumer. Delivery never blocks or fails the
// ingest path.
type Dispatcher struct {
	hub     *Hub
	matcher Matcher
	client  *WebhookClient
	logger  *slog.Logger

	bodyLimit int
	retryCfg  retry.Config

	mu   sync.Mutex
	dead []DeadLetter
	wg   sync.WaitGroup
}

// DispatcherConfig carries delivery tuning; zero values fall back to a 5s
// timeout and a 100-rune body limit.
type DispatcherConfig struct {
	WebhookTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	BodyLimit      int
}

func NewDispatcher(hub *Hub, matcher Matcher, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}
	if cfg.InitialBackoff > 0 {
		retryCfg.InitialBackoff = cfg.InitialBackoff
	}
	retryCfg.IsRetryable = func(err error) bool { return !IsPermanent(err) }

	return &Dispatcher{
		hub:       hub,
		matcher:   matcher,
		client:    NewWebhookClient(cfg.WebhookTimeout),
		logger:    logger,
		bodyLimit: cfg.BodyLimit,
		retryCfg:  retryCfg,
	}
}

// Dispatch announces one persisted message. The push-stream broadcast is
// synchronous and cheap; webhook calls run in their own goroutines, one
// per matching consumer, so a slow consumer never delays another or the
// accept path.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *models.Message) {
	d.hub.Broadcast(msg.ID)

	email := Sanitize(msg, d.bodyLimit)
	for _, consumer := range d.matcher.FindMatching(msg) {
		consumer := consumer
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(ctx, consumer, msg.ID, email)
		}()
	}
}

// Wait blocks until in-flight webhook deliveries finish. Used on
// shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// DeadLetters returns a copy of the recorded exhausted deliveries.
func (d *Dispatcher) DeadLetters() []DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetter, len(d.dead))
	copy(out, d.dead)
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, consumer models.Consumer, messageID int64, email WebhookEmail) {
	payload := WebhookPayload{
		EmailID:   messageID,
		PluginID:  consumer.ID,
		EmailData: email,
	}

	err := retry.Do(ctx, d.retryCfg, func(ctx context.Context) error {
		return d.client.Send(ctx, consumer.WebhookURL, payload)
	})
	if err == nil {
		d.logger.Info("webhook delivered",
			"consumer", consumer.ID, "message_id", messageID)
		return
	}

	d.logger.Error("webhook delivery failed",
		"consumer", consumer.ID, "message_id", messageID, "error", err)
	d.record(DeadLetter{
		ID:         uuid.New().String(),
		ConsumerID: consumer.ID,
		MessageID:  messageID,
		FailedAt:   time.Now(),
		Reason:     err.Error(),
	})
}

func (d *Dispatcher) record(dl DeadLetter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dead = append(d.dead, dl)
	if len(d.dead) > deadLetterKeep {
		d.dead = d.dead[len(d.dead)-deadLetterKeep:]
	}
}
