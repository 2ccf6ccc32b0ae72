package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func TestEnqueueConsumeRoundTrip(t *testing.T) {
	client := newTestQueue(t)
	producer := NewProducer(client, "test:submissions", zerolog.Nop())
	consumer := NewConsumer(client, "test:submissions", zerolog.Nop())

	require.NoError(t, producer.Enqueue(context.Background(), 42))

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan uint, 1)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(ctx context.Context, submissionID uint) error {
			received <- submissionID
			cancel()
			return nil
		})
	}()

	select {
	case id := <-received:
		require.Equal(t, uint(42), id)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not consumed in time")
	}

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

func TestEnqueueOrderIsFIFO(t *testing.T) {
	client := newTestQueue(t)
	producer := NewProducer(client, "test:submissions", zerolog.Nop())
	consumer := NewConsumer(client, "test:submissions", zerolog.Nop())

	for _, id := range []uint{1, 2, 3} {
		require.NoError(t, producer.Enqueue(context.Background(), id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var got []uint

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(ctx context.Context, submissionID uint) error {
			got = append(got, submissionID)
			if len(got) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}

	require.Equal(t, []uint{1, 2, 3}, got)
}

func TestConsumeMovesUndecodablePayloadToDeadLetter(t *testing.T) {
	client := newTestQueue(t)
	consumer := NewConsumer(client, "test:submissions", zerolog.Nop())

	require.NoError(t, client.LPush(context.Background(), "test:submissions", "not json").Err())
	require.NoError(t, client.LPush(context.Background(), "test:submissions", `{"submission_id":0}`).Err())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = consumer.Consume(ctx, func(ctx context.Context, submissionID uint) error {
		t.Fatalf("handler should not run for undecodable payloads, got %d", submissionID)
		return nil
	})

	dead, err := client.LRange(context.Background(), "test:submissions"+deadLetterSuffix, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, dead, 2)
	require.Contains(t, dead, "not json")
}

func TestConsumeSurvivesHandlerError(t *testing.T) {
	client := newTestQueue(t)
	producer := NewProducer(client, "test:submissions", zerolog.Nop())
	consumer := NewConsumer(client, "test:submissions", zerolog.Nop())

	require.NoError(t, producer.Enqueue(context.Background(), 1))
	require.NoError(t, producer.Enqueue(context.Background(), 2))

	ctx, cancel := context.WithCancel(context.Background())
	var got []uint

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(ctx context.Context, submissionID uint) error {
			got = append(got, submissionID)
			if len(got) == 2 {
				cancel()
				return nil
			}
			return context.DeadlineExceeded
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}

	require.Equal(t, []uint{1, 2}, got)
}
