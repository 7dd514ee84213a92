package packagesync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	events []*kafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event *kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestSyncer_SyncPackages(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSyncer(pub, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	require.NoError(t, s.SyncPackages(context.Background(), "profile-1", "hash-1", "crm-1"))
	require.Len(t, pub.events, 1)

	event := pub.events[0]
	assert.Equal(t, EventSyncRequested, event.EventType)
	assert.Equal(t, "profile-1", event.Key)

	var req SyncRequest
	require.NoError(t, json.Unmarshal(event.Data, &req))
	assert.Equal(t, SyncRequest{ProfileID: "profile-1", StableHashID: "hash-1", CRMCustomerID: "crm-1"}, req)
}

func TestSyncer_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	s := NewSyncer(pub, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	assert.Error(t, s.SyncPackages(context.Background(), "profile-1", "hash-1", "crm-1"))
}
