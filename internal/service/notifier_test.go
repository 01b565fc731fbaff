package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement/internal/model"
)

func TestNotifier_DropsWhenQueueFull(t *testing.T) {
	e := newEnv(t)
	n := NewNotifier(e.notes, 1, e.clock.Now)

	assert.True(t, n.Enqueue(NotificationEvent{Type: model.NotificationFollow, ToUID: "a", FromUID: "b"}))
	assert.False(t, n.Enqueue(NotificationEvent{Type: model.NotificationFollow, ToUID: "a", FromUID: "c"}))
	assert.Equal(t, 1, n.QueueLen())
}

func TestNotifier_StopDrainsQueue(t *testing.T) {
	e := newEnv(t)
	n := NewNotifier(e.notes, 100, e.clock.Now)
	for i := 0; i < 20; i++ {
		require.True(t, n.Enqueue(NotificationEvent{Type: model.NotificationFollow, ToUID: "a", FromUID: "b"}))
	}
	stop := n.Start(2)
	require.NoError(t, stop(context.Background()))

	list, err := e.notes.ListByRecipient(context.Background(), "a", 100)
	require.NoError(t, err)
	assert.Len(t, list, 20)
	assert.Zero(t, n.QueueLen())
}

func TestNotifier_InvalidEventIsCountedNotRetried(t *testing.T) {
	e := newEnv(t)
	n := NewNotifier(e.notes, 10, e.clock.Now)
	require.True(t, n.Enqueue(NotificationEvent{Type: "poke", ToUID: "a", FromUID: "b"}))
	stop := n.Start(1)
	require.NoError(t, stop(context.Background()))

	list, err := e.notes.ListByRecipient(context.Background(), "a", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotifier_RejectsAfterStop(t *testing.T) {
	e := newEnv(t)
	n := NewNotifier(e.notes, 10, e.clock.Now)
	stop := n.Start(1)
	require.NoError(t, stop(context.Background()))

	assert.False(t, n.Enqueue(NotificationEvent{Type: model.NotificationFollow, ToUID: "a", FromUID: "b"}))
	assert.Zero(t, n.QueueLen())
}
