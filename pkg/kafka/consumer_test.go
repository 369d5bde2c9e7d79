package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/logger"
)

// fakeReader replays msgs and then reports io.EOF, as a closed reader does.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func eventMessage(t *testing.T, offset int64, aggregate string) kafka.Message {
	t.Helper()
	event, err := NewEvent("storefront.cart_changed", aggregate, "replica-b", nil)
	require.NoError(t, err)
	b, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "t", Offset: offset, Value: b}
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		eventMessage(t, 1, "sess-1"),
		{Topic: "t", Offset: 2, Value: []byte("garbage")},
		eventMessage(t, 3, "sess-2"),
	}}

	var seen []string
	c := newConsumer(r, "t", "g", func(ctx context.Context, e *Event) error {
		seen = append(seen, e.AggregateID)
		return nil
	}, logger.Discard())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []string{"sess-1", "sess-2"}, seen)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumer_RetriesThenSkips(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{eventMessage(t, 7, "sess-1")}}

	calls := 0
	c := newConsumer(r, "t", "g", func(ctx context.Context, e *Event) error {
		calls++
		return errors.New("transient")
	}, logger.Discard())
	c.backoff = time.Millisecond

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, maxHandlerRetries, calls)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumer_CloseIsIdempotent(t *testing.T) {
	r := &fakeReader{}
	c := newConsumer(r, "t", "g", nil, logger.Discard())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}
