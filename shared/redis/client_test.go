package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/social-backbone/shared/broker"
	"github.com/cuongbtq/social-backbone/shared/logger"
)

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), &Config{URL: "http://localhost"}, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis url")
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Connect(ctx, &Config{URL: "redis://127.0.0.1:1/0", DialTimeout: 200 * time.Millisecond}, logger.Nop())
	require.Error(t, err)

	var connErr *broker.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "redis", connErr.Driver)
	assert.Equal(t, "127.0.0.1:1", connErr.Addr)
}

func TestPump_ForwardsMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan *redis.Message, 1)
	out := make(chan []byte, 1)
	done := make(chan error, 1)

	go func() {
		done <- pump(ctx, msgs, out, time.Hour, func(context.Context) error { return nil })
	}()

	msgs <- &redis.Message{Channel: "gateway.broadcast", Payload: `{"event":"add post"}`}
	select {
	case got := <-out:
		assert.Equal(t, `{"event":"add post"}`, string(got))
	case <-time.After(time.Second):
		t.Fatal("message not forwarded")
	}

	cancel()
	assert.NoError(t, <-done)
	_, open := <-out
	assert.False(t, open)
}

func TestPump_FailedPingEndsSubscription(t *testing.T) {
	out := make(chan []byte, 1)
	done := make(chan error, 1)

	go func() {
		done <- pump(context.Background(), make(chan *redis.Message), out, 10*time.Millisecond, func(context.Context) error {
			return errors.New("connection refused")
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ping failed")
	case <-time.After(time.Second):
		t.Fatal("subscription survived a failed ping")
	}
	_, open := <-out
	assert.False(t, open)
}

func TestPump_ClosedMessageChannel(t *testing.T) {
	msgs := make(chan *redis.Message)
	close(msgs)
	out := make(chan []byte)

	err := pump(context.Background(), msgs, out, time.Hour, func(context.Context) error { return nil })
	assert.Error(t, err)
}
