package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/config"
	"github.com/spec-kit/ticket-premerge/internal/events"
)

// Outbox accepts events for asynchronous webhook delivery. Enqueue must not
// block; it reports false when the event was dropped.
type Outbox interface {
	Enqueue(event events.Event) bool
}

// NotificationService reports run events to the log and an optional webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	httpClient *http.Client
	outbox     Outbox
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseOutbox routes webhook deliveries through outbox instead of sending
// them from the publishing goroutine.
func (n *NotificationService) UseOutbox(outbox Outbox) {
	n.outbox = outbox
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRunCompleted, n.handleRunCompleted)
	n.dispatcher.Subscribe(events.EventRunFailed, n.handleRunFailed)
	n.dispatcher.Subscribe(events.EventGroupRejected, n.handleGroupRejected)
	n.dispatcher.Subscribe(events.EventTagFailed, n.handleTagFailed)
}

func (n *NotificationService) handleRunCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("RunCompleted", zap.String("run_id", event.RunID), zap.Any("payload", event.Payload))
	return n.deliver(ctx, event)
}

func (n *NotificationService) handleRunFailed(ctx context.Context, event events.Event) error {
	n.logger.Error("RunFailed", zap.String("run_id", event.RunID), zap.Any("payload", event.Payload))
	return n.deliver(ctx, event)
}

func (n *NotificationService) handleGroupRejected(_ context.Context, event events.Event) error {
	n.logger.Info("GroupRejected", zap.String("run_id", event.RunID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTagFailed(_ context.Context, event events.Event) error {
	n.logger.Warn("TagFailed", zap.String("run_id", event.RunID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) error {
	if !n.WebhookEnabled() {
		return nil
	}
	if n.outbox == nil {
		return n.SendWebhook(ctx, event)
	}
	if !n.outbox.Enqueue(event) {
		return fmt.Errorf("webhook queue full; dropped %s event", event.Type)
	}
	return nil
}

// WebhookEnabled reports whether a webhook URL is configured.
func (n *NotificationService) WebhookEnabled() bool {
	return strings.TrimSpace(n.cfg.WebhookURL) != ""
}

// SendWebhook POSTs event as JSON to the configured URL. It is a no-op
// without a URL.
func (n *NotificationService) SendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	n.logger.Debug("webhook delivered",
		zap.String("run_id", event.RunID),
		zap.String("event_type", string(event.Type)))
	return nil
}
