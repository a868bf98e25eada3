package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "clover.records", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	err := p.Publish(context.Background(), Event{
		Key:     "p2",
		Headers: map[string]string{"tenant_id": "t1", "event_type": "record.merged"},
		Payload: map[string]any{"loser_id": "p2"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "clover.records", msg.Topic)
	assert.Equal(t, []byte("p2"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "tenant_id", msg.Headers[1].Key)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "p2", payload["loser_id"])
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, "clover.records", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	err := p.Publish(context.Background(), Event{Key: "k", Payload: 1})
	assert.ErrorContains(t, err, "leader not available")
}
