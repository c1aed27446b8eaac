package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/social-backbone/shared/broker"
)

func connect(t *testing.T, b *Broker) *Handle {
	t.Helper()
	h, err := b.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func receive(t *testing.T, ch <-chan broker.Delivery) broker.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return broker.Delivery{}
}

func TestHandle_EnqueueConsumeAck(t *testing.T) {
	b := New()
	h := connect(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.Enqueue(ctx, "user.addUserToDB", broker.Message{Body: []byte(`{"id":"u1"}`)}))
	assert.Equal(t, 1, b.Len("user.addUserToDB"))

	deliveries, err := h.Consume(ctx, "user.addUserToDB", 1)
	require.NoError(t, err)

	d := receive(t, deliveries)
	assert.NotEmpty(t, d.ID)
	assert.False(t, d.Timestamp.IsZero())
	assert.Equal(t, 1, d.Attempt)
	assert.JSONEq(t, `{"id":"u1"}`, string(d.Body))
	require.NoError(t, d.Ack())

	assert.Equal(t, 0, b.Len("user.addUserToDB"))
	assert.Empty(t, b.DeadLetters("user.addUserToDB"))
}

func TestHandle_PrefetchBoundsUnsettled(t *testing.T) {
	b := New()
	h := connect(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Enqueue(ctx, "post.addPostToDB", broker.Message{}))
	}

	deliveries, err := h.Consume(ctx, "post.addPostToDB", 2)
	require.NoError(t, err)

	first := receive(t, deliveries)
	receive(t, deliveries)

	select {
	case <-deliveries:
		t.Fatal("third delivery arrived before a slot was settled")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Ack())
	receive(t, deliveries)
}

func TestHandle_NackRedeliversUntilLimit(t *testing.T) {
	b := New(WithMaxDeliveries(2))
	h := connect(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.Enqueue(ctx, "chat.addChatMessageToDB", broker.Message{ID: "m1"}))
	deliveries, err := h.Consume(ctx, "chat.addChatMessageToDB", 1)
	require.NoError(t, err)

	d := receive(t, deliveries)
	require.NoError(t, d.Nack(true))

	d = receive(t, deliveries)
	assert.Equal(t, 2, d.Attempt)
	require.NoError(t, d.Nack(true))

	require.Eventually(t, func() bool {
		return len(b.DeadLetters("chat.addChatMessageToDB")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "m1", b.DeadLetters("chat.addChatMessageToDB")[0].ID)
}

func TestHandle_NackWithoutRequeueDeadLetters(t *testing.T) {
	b := New()
	h := connect(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.Enqueue(ctx, "email.notificationEmail", broker.Message{ID: "bad"}))
	deliveries, err := h.Consume(ctx, "email.notificationEmail", 1)
	require.NoError(t, err)

	require.NoError(t, receive(t, deliveries).Nack(false))
	assert.Len(t, b.DeadLetters("email.notificationEmail"), 1)
}

func TestHandle_CancelledConsumerReturnsMessage(t *testing.T) {
	b := New()
	h := connect(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	deliveries, err := h.Consume(ctx, "image.addImageToDB", 1)
	require.NoError(t, err)
	cancel()

	for range deliveries {
	}

	require.NoError(t, h.Enqueue(context.Background(), "image.addImageToDB", broker.Message{}))
	assert.Equal(t, 1, b.Len("image.addImageToDB"))
}

func TestHandle_PublishSubscribe(t *testing.T) {
	b := New()
	pub := connect(t, b)
	dup, err := pub.Duplicate(context.Background())
	require.NoError(t, err)
	defer dup.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := dup.Subscribe(ctx, "gateway")
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "gateway", []byte("hello")))
	require.NoError(t, pub.Publish(ctx, "other", []byte("ignored")))

	select {
	case m := <-msgs:
		assert.Equal(t, "hello", string(m))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-msgs
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestBroker_Outage(t *testing.T) {
	b := New()
	h := connect(t, b)
	ctx := context.Background()

	msgs, err := h.Subscribe(ctx, "gateway")
	require.NoError(t, err)
	deliveries, err := h.Consume(ctx, "user.addUserToDB", 1)
	require.NoError(t, err)

	b.SetAvailable(false)

	assert.False(t, h.Connected())
	assert.ErrorIs(t, h.Enqueue(ctx, "user.addUserToDB", broker.Message{}), ErrUnavailable)
	assert.ErrorIs(t, h.Publish(ctx, "gateway", nil), ErrUnavailable)

	_, err = b.Connect(ctx)
	var connErr *broker.ConnectionError
	assert.True(t, errors.As(err, &connErr))

	require.Eventually(t, func() bool {
		_, ok := <-msgs
		return !ok
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := <-deliveries
		return !ok
	}, time.Second, 10*time.Millisecond)

	b.SetAvailable(true)
	assert.True(t, h.Connected())
	assert.NoError(t, h.Enqueue(ctx, "user.addUserToDB", broker.Message{}))
}

func TestHandle_Close(t *testing.T) {
	b := New()
	h, err := b.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.ErrorIs(t, h.Enqueue(context.Background(), "q", broker.Message{}), broker.ErrClosed)
	_, err = h.Duplicate(context.Background())
	assert.ErrorIs(t, err, broker.ErrClosed)
}
