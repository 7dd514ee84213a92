package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/metrics"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/normalizers"
	"github.com/Ramsey-B/fescue/pkg/statuscache"
	"github.com/Ramsey-B/fescue/pkg/tracing"
	"github.com/Ramsey-B/fescue/pkg/vipstatus"
)

// Config contains configuration for the matcher service.
type Config struct {
	Threshold       float64       // Minimum confidence for a match (default: 0.6)
	Weights         Weights       // Per-field bonuses
	PackageSyncWait time.Duration // Timeout for the background package sync call (default: 10s)
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:       0.6,
		Weights:         DefaultWeights(),
		PackageSyncWait: 10 * time.Second,
	}
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
}

type CustomerSource interface {
	ListCustomers(ctx context.Context) ([]models.ExternalCustomer, error)
}

type MappingStore interface {
	GetAuthoritativeMapping(ctx context.Context, profileID string) (*models.IdentityMapping, error)
	GetLatestMapping(ctx context.Context, profileID string) (*models.IdentityMapping, error)
	Upsert(ctx context.Context, m *models.IdentityMapping) error
	FindProfileLinkedTo(ctx context.Context, customerID, stableHashID, exceptProfileID string) (string, error)
	HasVipData(ctx context.Context, profileID string) (bool, error)
}

type PackageSyncer interface {
	SyncPackages(ctx context.Context, profileID, stableHashID, crmCustomerID string) error
}

type AuditLogger interface {
	Record(ctx context.Context, entry *models.MatchAuditEntry) error
}

// Match outcomes used as metric labels.
const (
	outcomeCached          = "cached"
	outcomeMatched         = "matched"
	outcomeUnmatched       = "unmatched"
	outcomeNoCandidate     = "no_candidate"
	outcomeNoData          = "no_data"
	outcomeLinkedElsewhere = "linked_elsewhere"
	outcomeError           = "error"
)

// Service links profiles to CRM customers and reports their VIP status.
type Service struct {
	log       ectologger.Logger
	profiles  ProfileStore
	customers CustomerSource
	mappings  MappingStore
	packages  PackageSyncer
	audit     AuditLogger
	cache     statuscache.Cache
	scorer    *Scorer
	cfg       Config
	pending   sync.WaitGroup
}

// NewService creates a new matcher service. packages, audit and cache are optional.
func NewService(
	log ectologger.Logger,
	profiles ProfileStore,
	customers CustomerSource,
	mappings MappingStore,
	packages PackageSyncer,
	audit AuditLogger,
	cache statuscache.Cache,
	cfg Config,
) *Service {
	if cache == nil {
		cache = statuscache.Noop{}
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.PackageSyncWait <= 0 {
		cfg.PackageSyncWait = DefaultConfig().PackageSyncWait
	}
	return &Service{
		log:       log,
		profiles:  profiles,
		customers: customers,
		mappings:  mappings,
		packages:  packages,
		audit:     audit,
		cache:     cache,
		scorer:    NewScorer(cfg.Weights),
		cfg:       cfg,
	}
}

// Threshold is the confidence at or above which a candidate is matched.
func (s *Service) Threshold() float64 {
	return s.cfg.Threshold
}

// MatchProfile links the profile to its best CRM candidate.
//
// Unless ForceRefresh is set, an existing authoritative match is returned without any
// writes. A profile without any matchable field yields (nil, nil). Otherwise every CRM
// customer is scored and the best one is recorded, matched when its confidence reaches
// the threshold.
func (s *Service) MatchProfile(ctx context.Context, profileID string, opts models.MatchOptions) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.MatchProfile")
	defer span.End()

	start := time.Now()
	method := opts.Method
	if method == "" {
		method = models.MatchMethodAuto
	}

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"profile_id":    profileID,
		"force_refresh": opts.ForceRefresh,
		"method":        method,
	})

	if !opts.ForceRefresh {
		existing, err := s.mappings.GetAuthoritativeMapping(ctx, profileID)
		if err != nil {
			log.WithError(err).Error("Failed to load authoritative mapping")
			s.observe(outcomeError, method, start)
			return nil, err
		}
		if existing != nil && existing.IsMatched {
			s.observe(outcomeCached, method, start)
			return resultFromMapping(existing), nil
		}
	}

	profile, err := s.profiles.GetProfile(ctx, profileID)
	if err != nil {
		s.observe(outcomeError, method, start)
		return nil, err
	}
	if profile == nil {
		s.observe(outcomeError, method, start)
		return nil, apperrors.ErrProfileNotFound
	}

	if !profile.HasMatchableData() && normalizers.NormalizePhone(opts.PhoneNumberOverride) == "" {
		log.Debug("Profile has nothing to match on")
		s.observe(outcomeNoData, method, start)
		return nil, nil
	}

	customers := opts.Customers
	if customers == nil {
		customers, err = s.customers.ListCustomers(ctx)
	}
	if err != nil {
		log.WithError(err).Error("Failed to fetch CRM customers")
		s.observe(outcomeError, method, start)
		if !apperrors.IsExternalFetchError(err) {
			err = apperrors.NewExternalFetchError("crm", err)
		}
		return nil, err
	}
	metrics.CandidatesScanned.Observe(float64(len(customers)))

	best := FindBestMatch(s.scorer, NewSubject(profile, opts.PhoneNumberOverride), customers)
	if best == nil || best.Confidence <= 0 {
		log.WithField("candidates", len(customers)).Info("No CRM candidate found")
		s.recordAudit(ctx, &models.MatchAuditEntry{
			ProfileID: profileID,
			Action:    models.AuditActionNoCandidate,
		})
		s.observe(outcomeNoCandidate, method, start)
		return &models.MatchResult{Matched: false, Confidence: 0}, nil
	}
	metrics.MatchConfidence.Observe(best.Confidence)

	customerID := best.Customer.ID
	log = log.WithFields(map[string]any{
		"crm_customer_id": customerID,
		"confidence":      best.Confidence,
		"reasons":         best.Reasons,
	})

	matched := best.Confidence >= s.cfg.Threshold
	if matched {
		other, err := s.mappings.FindProfileLinkedTo(ctx, customerID, best.Customer.StableHash(), profileID)
		if err != nil {
			log.WithError(err).Error("Failed to check existing links for CRM customer")
			s.observe(outcomeError, method, start)
			return nil, err
		}
		if other != "" {
			log.WithField("linked_profile_id", other).Warn("CRM customer is already linked to another profile")
			s.recordAudit(ctx, &models.MatchAuditEntry{
				ProfileID:     profileID,
				CRMCustomerID: &customerID,
				Action:        models.AuditActionRejected,
				Confidence:    best.Confidence,
				Reasons:       best.Reasons,
			})
			s.observe(outcomeLinkedElsewhere, method, start)
			return nil, apperrors.ErrAlreadyLinkedElsewhere
		}
	}

	mapping := &models.IdentityMapping{
		ProfileID:          profileID,
		ExternalCustomerID: customerID,
		StableHashID:       best.Customer.StableHashID,
		IsMatched:          matched,
		MatchMethod:        MethodTag(method, best.Reasons),
		MatchConfidence:    best.Confidence,
		MatchReasons:       best.Reasons,
		CustomerSnapshot:   best.Customer.Data,
	}
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		log.WithError(err).Error("Failed to persist mapping")
		s.observe(outcomeError, method, start)
		return nil, err
	}
	s.invalidateStatus(ctx, profileID)

	result := &models.MatchResult{
		Matched:       matched,
		Confidence:    best.Confidence,
		CRMCustomerID: &customerID,
		Reasons:       best.Reasons,
		MatchMethod:   mapping.MatchMethod,
	}

	if !matched {
		log.Info("Best CRM candidate is below the match threshold")
		s.recordAudit(ctx, &models.MatchAuditEntry{
			ProfileID:     profileID,
			CRMCustomerID: &customerID,
			Action:        models.AuditActionUnmatched,
			Confidence:    best.Confidence,
			Reasons:       best.Reasons,
		})
		s.observe(outcomeUnmatched, method, start)
		return result, nil
	}

	result.StableHashID = best.Customer.StableHashID
	log.Info("Matched profile to CRM customer")
	s.recordAudit(ctx, &models.MatchAuditEntry{
		ProfileID:     profileID,
		CRMCustomerID: &customerID,
		Action:        models.AuditActionMatched,
		Confidence:    best.Confidence,
		Reasons:       best.Reasons,
	})
	s.syncPackages(ctx, profileID, best.Customer.StableHash(), customerID)
	s.observe(outcomeMatched, method, start)

	return result, nil
}

// GetStatus projects the profile's VIP status, served from the cache when fresh.
func (s *Service) GetStatus(ctx context.Context, profileID string) (*models.StatusResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.GetStatus")
	defer span.End()

	log := s.log.WithContext(ctx).WithField("profile_id", profileID)

	cached, found, err := s.cache.Get(ctx, profileID)
	if err != nil {
		log.WithError(err).Warn("Failed to read VIP status cache")
		metrics.BestEffortFailures.WithLabelValues("status_cache_get").Inc()
	} else if found {
		return cached, nil
	}

	authoritative, err := s.mappings.GetAuthoritativeMapping(ctx, profileID)
	if err != nil {
		return nil, err
	}

	hasVipData, err := s.mappings.HasVipData(ctx, profileID)
	if err != nil {
		return nil, err
	}

	var status *models.StatusResult
	if authoritative != nil {
		status = vipstatus.Result(authoritative, true, hasVipData)
	} else {
		// nothing valid; any matched mapping left over is stale
		latest, err := s.mappings.GetLatestMapping(ctx, profileID)
		if err != nil {
			return nil, err
		}
		status = vipstatus.Result(latest, false, hasVipData)
	}

	if err := s.cache.Set(ctx, profileID, status); err != nil {
		log.WithError(err).Warn("Failed to write VIP status cache")
		metrics.BestEffortFailures.WithLabelValues("status_cache_set").Inc()
	}

	return status, nil
}

// LinkByPhone re-matches the profile using phone in place of its stored phone number.
// On a match the phone is saved to the profile and the fresh status is returned;
// otherwise apperrors.ErrNoMatchFound.
func (s *Service) LinkByPhone(ctx context.Context, profileID, phone string) (*models.StatusResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.LinkByPhone")
	defer span.End()

	log := s.log.WithContext(ctx).WithField("profile_id", profileID)

	if normalizers.NormalizePhone(phone) == "" {
		return nil, apperrors.ErrNoMatchFound
	}

	result, err := s.MatchProfile(ctx, profileID, models.MatchOptions{
		ForceRefresh:        true,
		PhoneNumberOverride: phone,
		Method:              models.MatchMethodManual,
	})
	if err != nil {
		return nil, err
	}
	if result == nil || !result.Matched {
		log.Info("Link by phone found no match")
		return nil, apperrors.ErrNoMatchFound
	}

	if err := s.profiles.UpdateProfile(ctx, profileID, models.ProfileUpdate{PhoneNumber: &phone}); err != nil {
		log.WithError(err).Warn("Failed to save linked phone number to profile")
		metrics.BestEffortFailures.WithLabelValues("profile_phone_update").Inc()
	}

	return s.GetStatus(ctx, profileID)
}

// Wait blocks until background package syncs have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// MethodTag appends the field that drove a decision to the method prefix,
// e.g. "auto_phone" or "manual_full_name".
func MethodTag(method string, reasons []string) string {
	has := func(reason string) bool {
		for _, r := range reasons {
			if r == reason {
				return true
			}
		}
		return false
	}

	var field string
	switch {
	case has(ReasonExactPhone):
		field = "phone"
	case has(ReasonExactEmail):
		field = "email"
	case has(ReasonExactFirstName) && has(ReasonExactLastName):
		field = "full_name"
	case has(ReasonExactFirstName):
		field = "first_name"
	case has(ReasonExactLastName):
		field = "last_name"
	default:
		field = "partial"
	}
	return fmt.Sprintf("%s_%s", method, field)
}

func resultFromMapping(m *models.IdentityMapping) *models.MatchResult {
	customerID := m.ExternalCustomerID
	return &models.MatchResult{
		Matched:       true,
		Confidence:    m.MatchConfidence,
		CRMCustomerID: &customerID,
		StableHashID:  m.StableHashID,
		Reasons:       m.MatchReasons,
		MatchMethod:   m.MatchMethod,
		FromCache:     true,
	}
}

// syncPackages runs in the background; failures are logged and never reach the caller.
func (s *Service) syncPackages(ctx context.Context, profileID, stableHashID, customerID string) {
	if s.packages == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PackageSyncWait)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()

		if err := s.packages.SyncPackages(syncCtx, profileID, stableHashID, customerID); err != nil {
			s.log.WithContext(syncCtx).WithError(err).WithField("profile_id", profileID).Warn("Package sync failed")
			metrics.BestEffortFailures.WithLabelValues("package_sync").Inc()
		}
	}()
}

func (s *Service) recordAudit(ctx context.Context, entry *models.MatchAuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("profile_id", entry.ProfileID).Warn("Failed to record match audit entry")
		metrics.BestEffortFailures.WithLabelValues("match_audit").Inc()
	}
}

func (s *Service) invalidateStatus(ctx context.Context, profileID string) {
	if err := s.cache.Invalidate(ctx, profileID); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("profile_id", profileID).Warn("Failed to invalidate VIP status cache")
		metrics.BestEffortFailures.WithLabelValues("status_cache_invalidate").Inc()
	}
}

func (s *Service) observe(outcome, method string, start time.Time) {
	metrics.MatchAttemptsTotal.WithLabelValues(outcome, method).Inc()
	metrics.MatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
