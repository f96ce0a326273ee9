package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcher_PublishesInOrderAndSurvivesErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	var calls []string
	d.Subscribe(EventRunCompleted, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("webhook down")
	})
	d.Subscribe(EventRunCompleted, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventRunStarted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventRunCompleted, RunID: "r1"})

	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	entries := logs.FilterMessage("event handler failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "r1", entries[0].ContextMap()["run_id"])
	}
}

func TestDispatcher_RecoversHandlerPanic(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	reached := false
	d.Subscribe(EventTagFailed, func(context.Context, Event) error {
		panic("nil payload")
	})
	d.Subscribe(EventTagFailed, func(context.Context, Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTagFailed, RunID: "r2"}))
	})
	assert.True(t, reached)
	entries := logs.FilterMessage("event handler failed").All()
	if assert.Len(t, entries, 1) {
		assert.Contains(t, entries[0].ContextMap()["error"], "nil payload")
	}
}
