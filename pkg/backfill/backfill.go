// Package backfill links existing profiles in id order. A run is resumable: it reports the
// last profile it finished and can be restarted after it, and profiles that already hold a
// valid match are skipped.
package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/metrics"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/redis"
	"github.com/Ramsey-B/fescue/pkg/tracing"
)

const (
	// DefaultBatchSize is the number of profiles loaded per page
	DefaultBatchSize = 100

	// DefaultBatchPause is the pause between pages
	DefaultBatchPause = time.Second

	// DefaultLockTTL bounds how long a crashed run can block the next one
	DefaultLockTTL = 30 * time.Minute

	// LockKey is the key held for the duration of a run
	LockKey = "backfill"
)

// ErrAlreadyRunning is returned when another run holds the backfill lock
var ErrAlreadyRunning = errors.New("backfill already running")

type ProfileLister interface {
	ListProfiles(ctx context.Context, afterID string, limit int) ([]models.Profile, error)
}

type MappingReader interface {
	GetAuthoritativeMapping(ctx context.Context, profileID string) (*models.IdentityMapping, error)
}

type Matcher interface {
	MatchProfile(ctx context.Context, profileID string, opts models.MatchOptions) (*models.MatchResult, error)
}

// CustomerSource is read once per batch and shared by the batch's matches.
type CustomerSource interface {
	ListCustomers(ctx context.Context) ([]models.ExternalCustomer, error)
}

// Locker guards against concurrent runs. Acquire returns the release func.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Config holds configuration for a backfill run
type Config struct {
	// BatchSize is the number of profiles per page
	BatchSize int

	// BatchPause is how long to sleep between pages
	BatchPause time.Duration

	// After resumes the run after this profile id
	After string

	// Limit stops the run after this many profiles (0 = no limit)
	Limit int

	// LockTTL is how long the run lock is held
	LockTTL time.Duration
}

// DefaultConfig returns the default backfill configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:  DefaultBatchSize,
		BatchPause: DefaultBatchPause,
		LockTTL:    DefaultLockTTL,
	}
}

// Stats summarizes a run.
type Stats struct {
	Processed     int    `json:"processed"`
	Skipped       int    `json:"skipped"`
	Matched       int    `json:"matched"`
	Unmatched     int    `json:"unmatched"`
	NoData        int    `json:"no_data"`
	Failed        int    `json:"failed"`
	LastProfileID string `json:"last_profile_id,omitempty"`
}

// Job runs the backfill.
type Job struct {
	profiles  ProfileLister
	mappings  MappingReader
	matcher   Matcher
	customers CustomerSource
	locker    Locker
	config    Config
	logger    ectologger.Logger
}

// NewJob creates a backfill job. customers and locker are optional; without customers
// every match fetches the CRM list itself.
func NewJob(
	profiles ProfileLister,
	mappings MappingReader,
	matcher Matcher,
	customers CustomerSource,
	locker Locker,
	config Config,
	logger ectologger.Logger,
) *Job {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchPause < 0 {
		config.BatchPause = 0
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Job{
		profiles:  profiles,
		mappings:  mappings,
		matcher:   matcher,
		customers: customers,
		locker:    locker,
		config:    config,
		logger:    logger,
	}
}

// Run pages through profiles until none are left, the limit is reached or ctx is done.
// Store and CRM failures stop the run; the returned stats are valid either way and
// LastProfileID is the cursor to resume from.
func (j *Job) Run(ctx context.Context) (*Stats, error) {
	ctx, span := tracing.StartSpan(ctx, "backfill.Job.Run")
	defer span.End()

	log := j.logger.WithContext(ctx)

	if j.locker != nil {
		release, err := j.locker.Acquire(ctx, LockKey, j.config.LockTTL)
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return nil, errors.Join(ErrAlreadyRunning, err)
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release backfill lock")
			}
		}()
	}

	stats := &Stats{LastProfileID: j.config.After}
	cursor := j.config.After

	log.WithFields(map[string]any{
		"after":      cursor,
		"batch_size": j.config.BatchSize,
		"limit":      j.config.Limit,
	}).Info("Starting backfill")

	for {
		batchSize := j.config.BatchSize
		if j.config.Limit > 0 {
			remaining := j.config.Limit - stats.Processed
			if remaining <= 0 {
				break
			}
			if remaining < batchSize {
				batchSize = remaining
			}
		}

		profiles, err := j.profiles.ListProfiles(ctx, cursor, batchSize)
		if err != nil {
			return stats, err
		}
		if len(profiles) == 0 {
			break
		}

		batch := &customerSnapshot{source: j.customers}
		for i := range profiles {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := j.processProfile(ctx, &profiles[i], batch, stats); err != nil {
				log.WithError(err).WithField("last_profile_id", stats.LastProfileID).Error("Backfill stopped")
				return stats, err
			}
			cursor = profiles[i].ID
		}

		log.WithFields(map[string]any{
			"processed": stats.Processed,
			"matched":   stats.Matched,
			"skipped":   stats.Skipped,
			"failed":    stats.Failed,
			"cursor":    cursor,
		}).Info("Backfill batch complete")

		if len(profiles) < batchSize {
			break
		}
		if err := sleep(ctx, j.config.BatchPause); err != nil {
			return stats, err
		}
	}

	log.WithFields(map[string]any{
		"processed":       stats.Processed,
		"matched":         stats.Matched,
		"unmatched":       stats.Unmatched,
		"skipped":         stats.Skipped,
		"no_data":         stats.NoData,
		"failed":          stats.Failed,
		"last_profile_id": stats.LastProfileID,
	}).Info("Backfill finished")

	return stats, nil
}

// processProfile returns an error only for failures that should stop the run.
func (j *Job) processProfile(ctx context.Context, profile *models.Profile, batch *customerSnapshot, stats *Stats) error {
	log := j.logger.WithContext(ctx).WithField("profile_id", profile.ID)

	existing, err := j.mappings.GetAuthoritativeMapping(ctx, profile.ID)
	if err != nil {
		return err
	}

	result := "skipped"
	if existing == nil {
		customers, err := batch.get(ctx)
		if err != nil {
			return err
		}
		match, err := j.matcher.MatchProfile(ctx, profile.ID, models.MatchOptions{
			ForceRefresh: true,
			Method:       models.MatchMethodSyncScript,
			Customers:    customers,
		})
		switch {
		case err == nil && match == nil:
			result = "no_data"
		case err == nil && match.Matched:
			result = "matched"
		case err == nil:
			result = "unmatched"
		case apperrors.IsStoreError(err), apperrors.IsExternalFetchError(err), ctx.Err() != nil:
			return err
		default:
			log.WithError(err).Warn("Failed to match profile")
			result = "failed"
		}
	}

	switch result {
	case "skipped":
		stats.Skipped++
	case "no_data":
		stats.NoData++
	case "matched":
		stats.Matched++
	case "unmatched":
		stats.Unmatched++
	case "failed":
		stats.Failed++
	}
	stats.Processed++
	stats.LastProfileID = profile.ID
	metrics.BackfillProfilesTotal.WithLabelValues(result).Inc()

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// customerSnapshot loads the CRM customer list on first use within a batch.
type customerSnapshot struct {
	source    CustomerSource
	customers []models.ExternalCustomer
	loaded    bool
}

func (c *customerSnapshot) get(ctx context.Context) ([]models.ExternalCustomer, error) {
	if c.source == nil || c.loaded {
		return c.customers, nil
	}

	customers, err := c.source.ListCustomers(ctx)
	if err != nil {
		if !apperrors.IsExternalFetchError(err) {
			err = apperrors.NewExternalFetchError("crm", err)
		}
		return nil, err
	}
	if customers == nil {
		customers = []models.ExternalCustomer{}
	}
	c.customers = customers
	c.loaded = true
	return customers, nil
}
