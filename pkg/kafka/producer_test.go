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

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	writer := &recordingWriter{}
	p := NewProducerWithWriter(writer, "fescue.profile-events", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	err := p.Publish(context.Background(), &Event{
		EventType: "profile.packages.sync_requested",
		Key:       "profile-1",
		Data:      json.RawMessage(`{"stable_hash_id":"h1"}`),
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "fescue.profile-events", msg.Topic)
	assert.Equal(t, "profile-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "profile.packages.sync_requested", event.EventType)
	assert.False(t, event.Timestamp.IsZero())
}

func TestProducer_PublishError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker unavailable")}
	p := NewProducerWithWriter(writer, "topic", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	err := p.Publish(context.Background(), &Event{EventType: "x", Key: "k"})
	assert.Error(t, err)
}
