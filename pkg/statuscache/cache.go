// Package statuscache caches projected VIP statuses per profile. Entries expire after
// a TTL and are invalidated explicitly whenever the profile's mapping is written.
package statuscache

import (
	"context"
	"time"

	"github.com/Ramsey-B/fescue/pkg/models"
)

type Cache interface {
	Get(ctx context.Context, profileID string) (*models.StatusResult, bool, error)
	Set(ctx context.Context, profileID string, status *models.StatusResult) error
	Invalidate(ctx context.Context, profileID string) error
}

type Config struct {
	MaxSize int
	TTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSize: 10000,
		TTL:     5 * time.Minute,
	}
}

// Noop disables caching.
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.StatusResult, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, *models.StatusResult) error         { return nil }
func (Noop) Invalidate(context.Context, string) error                        { return nil }
