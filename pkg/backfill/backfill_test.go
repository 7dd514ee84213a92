package backfill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/redis"
)

type fakeProfiles struct {
	ids   []string
	pages int
	err   error
}

func (f *fakeProfiles) ListProfiles(_ context.Context, afterID string, limit int) ([]models.Profile, error) {
	f.pages++
	if f.err != nil {
		return nil, f.err
	}
	start := sort.SearchStrings(f.ids, afterID)
	if start < len(f.ids) && f.ids[start] == afterID {
		start++
	}
	var out []models.Profile
	for i := start; i < len(f.ids) && len(out) < limit; i++ {
		out = append(out, models.Profile{ID: f.ids[i]})
	}
	return out, nil
}

type fakeMappings struct {
	valid map[string]bool
}

func (f *fakeMappings) GetAuthoritativeMapping(_ context.Context, profileID string) (*models.IdentityMapping, error) {
	if f.valid[profileID] {
		return &models.IdentityMapping{ProfileID: profileID, IsMatched: true}, nil
	}
	return nil, nil
}

type fakeMatcher struct {
	results map[string]*models.MatchResult
	errs    map[string]error
	calls   []string
	opts    []models.MatchOptions
}

func (f *fakeMatcher) MatchProfile(_ context.Context, profileID string, opts models.MatchOptions) (*models.MatchResult, error) {
	f.calls = append(f.calls, profileID)
	f.opts = append(f.opts, opts)
	if err := f.errs[profileID]; err != nil {
		return nil, err
	}
	if r, ok := f.results[profileID]; ok {
		return r, nil
	}
	return &models.MatchResult{Matched: true, Confidence: 1}, nil
}

type fakeLocker struct {
	held     bool
	released bool
	err      error
}

type fakeCustomers struct {
	customers []models.ExternalCustomer
	err       error
	calls     int
}

func (f *fakeCustomers) ListCustomers(context.Context) ([]models.ExternalCustomer, error) {
	f.calls++
	return f.customers, f.err
}

func (f *fakeLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held {
		return nil, redis.ErrLockNotAcquired
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.released = true
		return nil
	}, nil
}

func profileIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%03d", i+1)
	}
	return ids
}

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newJob(profiles *fakeProfiles, mappings *fakeMappings, matcher *fakeMatcher, locker Locker, cfg Config) *Job {
	return NewJob(profiles, mappings, matcher, nil, locker, cfg, silentLogger())
}

func TestRun_ProcessesAllPages(t *testing.T) {
	profiles := &fakeProfiles{ids: profileIDs(5)}
	mappings := &fakeMappings{valid: map[string]bool{"p002": true}}
	matcher := &fakeMatcher{results: map[string]*models.MatchResult{
		"p003": {Matched: false, Confidence: 0.5},
		"p004": nil,
	}}
	locker := &fakeLocker{}

	job := newJob(profiles, mappings, matcher, locker, Config{BatchSize: 2})
	stats, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 1, stats.NoData)
	assert.Equal(t, "p005", stats.LastProfileID)
	assert.Equal(t, []string{"p001", "p003", "p004", "p005"}, matcher.calls)
	assert.Equal(t, 3, profiles.pages)

	for _, opts := range matcher.opts {
		assert.True(t, opts.ForceRefresh)
		assert.Equal(t, models.MatchMethodSyncScript, opts.Method)
	}
	assert.True(t, locker.released)
}

func TestRun_ResumesAfterCursor(t *testing.T) {
	matcher := &fakeMatcher{}
	job := newJob(&fakeProfiles{ids: profileIDs(5)}, &fakeMappings{}, matcher, nil, Config{BatchSize: 10, After: "p003"})

	stats, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p004", "p005"}, matcher.calls)
	assert.Equal(t, 2, stats.Processed)
}

func TestRun_Limit(t *testing.T) {
	matcher := &fakeMatcher{}
	job := newJob(&fakeProfiles{ids: profileIDs(10)}, &fakeMappings{}, matcher, nil, Config{BatchSize: 3, Limit: 4})

	stats, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, "p004", stats.LastProfileID)
}

func TestRun_ProfileErrorsAreCounted(t *testing.T) {
	matcher := &fakeMatcher{errs: map[string]error{
		"p002": apperrors.ErrAlreadyLinkedElsewhere,
	}}
	job := newJob(&fakeProfiles{ids: profileIDs(3)}, &fakeMappings{}, matcher, nil, DefaultConfig())

	stats, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Matched)
}

func TestRun_StopsOnCRMFailure(t *testing.T) {
	matcher := &fakeMatcher{errs: map[string]error{
		"p003": apperrors.NewExternalFetchError("crm_api", errors.New("timeout")),
	}}
	job := newJob(&fakeProfiles{ids: profileIDs(5)}, &fakeMappings{}, matcher, nil, DefaultConfig())

	stats, err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsExternalFetchError(err))
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, "p002", stats.LastProfileID)
}

func TestRun_ListFailure(t *testing.T) {
	job := newJob(&fakeProfiles{err: errors.New("db down")}, &fakeMappings{}, &fakeMatcher{}, nil, DefaultConfig())

	stats, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, stats.Processed)
}

func TestRun_AlreadyRunning(t *testing.T) {
	locker := &fakeLocker{held: true}
	job := newJob(&fakeProfiles{ids: profileIDs(1)}, &fakeMappings{}, &fakeMatcher{}, locker, DefaultConfig())

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRun_LockErrorIsNotAlreadyRunning(t *testing.T) {
	connErr := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	locker := &fakeLocker{err: connErr}
	matcher := &fakeMatcher{}
	job := newJob(&fakeProfiles{ids: profileIDs(1)}, &fakeMappings{}, matcher, locker, DefaultConfig())

	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, connErr)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, matcher.calls)
}

func TestRun_LoadsCustomersOncePerBatch(t *testing.T) {
	customers := &fakeCustomers{customers: []models.ExternalCustomer{{ID: "c1", Name: "Somchai Jaidee"}}}
	mappings := &fakeMappings{valid: map[string]bool{"p005": true}}
	matcher := &fakeMatcher{}
	job := NewJob(&fakeProfiles{ids: profileIDs(5)}, mappings, matcher, customers, nil, Config{BatchSize: 2}, silentLogger())

	stats, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Processed)

	// p005 is skipped, so the third batch never loads the list
	assert.Equal(t, 2, customers.calls)
	require.Len(t, matcher.opts, 4)
	for _, opts := range matcher.opts {
		assert.Equal(t, customers.customers, opts.Customers)
	}
}

func TestRun_CustomerLoadFailureStops(t *testing.T) {
	customers := &fakeCustomers{err: errors.New("503 service unavailable")}
	matcher := &fakeMatcher{}
	job := NewJob(&fakeProfiles{ids: profileIDs(3)}, &fakeMappings{}, matcher, customers, nil, DefaultConfig(), silentLogger())

	stats, err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsExternalFetchError(err))
	assert.Equal(t, 0, stats.Processed)
	assert.Empty(t, matcher.calls)
}

func TestRun_EmptyCRMIsSharedNotRefetched(t *testing.T) {
	customers := &fakeCustomers{}
	matcher := &fakeMatcher{}
	job := NewJob(&fakeProfiles{ids: profileIDs(3)}, &fakeMappings{}, matcher, customers, nil, DefaultConfig(), silentLogger())

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, customers.calls)
	for _, opts := range matcher.opts {
		assert.NotNil(t, opts.Customers)
		assert.Empty(t, opts.Customers)
	}
}

func TestRun_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	matcher := &fakeMatcher{}
	job := newJob(&fakeProfiles{ids: profileIDs(4)}, &fakeMappings{}, matcher, nil, Config{BatchSize: 2, BatchPause: time.Hour})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	stats, err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, "p002", stats.LastProfileID)
}
