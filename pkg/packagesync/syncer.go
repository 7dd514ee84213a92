// Package packagesync asks the package service to re-link a profile's packages
// after its stable customer identity changes.
package packagesync

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/kafka"
	"github.com/Ramsey-B/fescue/pkg/metrics"
	"github.com/Ramsey-B/fescue/pkg/tracing"
)

const EventSyncRequested = "profile.packages.sync_requested"

type Publisher interface {
	Publish(ctx context.Context, event *kafka.Event) error
}

type SyncRequest struct {
	ProfileID     string `json:"profile_id"`
	StableHashID  string `json:"stable_hash_id"`
	CRMCustomerID string `json:"crm_customer_id"`
}

type Syncer struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewSyncer(publisher Publisher, logger ectologger.Logger) *Syncer {
	return &Syncer{publisher: publisher, logger: logger}
}

// SyncPackages publishes a sync request keyed by profile id.
func (s *Syncer) SyncPackages(ctx context.Context, profileID, stableHashID, crmCustomerID string) error {
	ctx, span := tracing.StartSpan(ctx, "packagesync.Syncer.SyncPackages")
	defer span.End()

	data, err := json.Marshal(SyncRequest{
		ProfileID:     profileID,
		StableHashID:  stableHashID,
		CRMCustomerID: crmCustomerID,
	})
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, &kafka.Event{
		EventType: EventSyncRequested,
		Key:       profileID,
		Data:      data,
	}); err != nil {
		metrics.PackageSyncEventsTotal.WithLabelValues("failed").Inc()
		return err
	}

	metrics.PackageSyncEventsTotal.WithLabelValues("published").Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"profile_id":     profileID,
		"stable_hash_id": stableHashID,
	}).Info("Requested package sync")
	return nil
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) SyncPackages(context.Context, string, string, string) error { return nil }
