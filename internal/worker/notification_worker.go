package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/events"
	"github.com/spec-kit/ticket-premerge/internal/service"
)

const defaultQueueSize = 64

// NotificationWorker delivers run webhooks from a bounded queue so that a
// slow endpoint never holds up the run that published the event.
type NotificationWorker struct {
	service *service.NotificationService
	queue   chan events.Event
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// StartNotificationWorker registers the notification handlers and routes
// their webhook deliveries through the returned worker. The caller runs
// Start and calls Stop when no more runs will publish.
func StartNotificationWorker(notificationService *service.NotificationService, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &NotificationWorker{
		service: notificationService,
		queue:   make(chan events.Event, queueSize),
		logger:  logger,
	}
	if notificationService == nil {
		return w
	}
	notificationService.UseOutbox(w)
	notificationService.RegisterHandlers()
	return w
}

// Enqueue adds event to the queue without blocking. It returns false when
// the queue is full or stopped.
func (w *NotificationWorker) Enqueue(event events.Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- event:
		return true
	default:
		return false
	}
}

// Stop closes the queue. Events already queued are still delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
}

// Start delivers queued events until Stop is called and the queue is
// drained. Delivery failures are logged.
func (w *NotificationWorker) Start(ctx context.Context) error {
	for event := range w.queue {
		if w.service == nil {
			continue
		}
		if err := w.service.SendWebhook(ctx, event); err != nil {
			w.logger.Warn("webhook delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("run_id", event.RunID),
				zap.Error(err))
		}
	}
	return nil
}
