package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-premerge/internal/config"
	"github.com/spec-kit/ticket-premerge/internal/events"
	"github.com/spec-kit/ticket-premerge/internal/service"
)

func TestNotificationWorker_DeliversQueuedEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event events.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err == nil {
			mu.Lock()
			received = append(received, event.RunID)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := events.NewInMemoryDispatcher(nil)
	notifications := service.NewNotificationService(dispatcher, nil, config.NotificationConfig{WebhookURL: server.URL})
	w := StartNotificationWorker(notifications, 4, nil)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventRunCompleted, RunID: "r1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventGroupRejected, RunID: "r1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventRunFailed, RunID: "r2"}))

	w.Stop()
	require.NoError(t, w.Start(ctx))

	assert.Equal(t, []string{"r1", "r2"}, received)
}

func TestNotificationWorker_EnqueueNeverBlocks(t *testing.T) {
	w := StartNotificationWorker(nil, 1, nil)

	assert.True(t, w.Enqueue(events.Event{RunID: "a"}))
	assert.False(t, w.Enqueue(events.Event{RunID: "b"}))

	w.Stop()
	w.Stop()
	assert.False(t, w.Enqueue(events.Event{RunID: "c"}))
	assert.NoError(t, w.Start(context.Background()))
}
