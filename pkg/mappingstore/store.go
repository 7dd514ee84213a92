// Package mappingstore persists profile to CRM customer mappings across the legacy
// mapping table and the current profile links, and decides which one is authoritative.
package mappingstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/tracing"
)

// ErrMappingNotFound is returned by SetMatched when the pair was never recorded.
var ErrMappingNotFound = errors.New("mapping not found")

// LegacyRepository is the crm_customer_mapping table.
type LegacyRepository interface {
	Upsert(ctx context.Context, m *models.IdentityMapping) error
	DemoteOthers(ctx context.Context, profileID, keepCustomerID string) error
	GetMatched(ctx context.Context, profileID string) (*models.IdentityMapping, error)
	GetLatest(ctx context.Context, profileID string) (*models.IdentityMapping, error)
	SetMatched(ctx context.Context, profileID, customerID, stableHashID string) (*models.IdentityMapping, error)
	FindMatchedProfile(ctx context.Context, customerID, stableHashID, exceptProfileID string) (string, error)
}

// LinkRepository is the crm_profile_links and vip_customer_data tables.
type LinkRepository interface {
	GetLink(ctx context.Context, profileID string) (*models.IdentityMapping, error)
	EnsureVipCustomerData(ctx context.Context, data *models.VipCustomerData) (string, error)
	UpsertLink(ctx context.Context, m *models.IdentityMapping) error
	UnlinkIfTarget(ctx context.Context, profileID, customerID, stableHashID string) (bool, error)
	FindLinkedProfile(ctx context.Context, stableHashID, exceptProfileID string) (string, error)
	HasPlaceholderData(ctx context.Context, profileID string) (bool, error)
}

// CustomerLookup checks whether a CRM customer still resolves.
type CustomerLookup interface {
	CustomerExistsByID(ctx context.Context, id string) (bool, error)
	CustomerExistsByStableHash(ctx context.Context, stableHashID string) (bool, error)
}

type Transactor interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

type Store struct {
	tx        Transactor
	legacy    LegacyRepository
	links     LinkRepository
	customers CustomerLookup
	logger    ectologger.Logger
}

func NewStore(tx Transactor, legacy LegacyRepository, links LinkRepository, customers CustomerLookup, logger ectologger.Logger) *Store {
	return &Store{
		tx:        tx,
		legacy:    legacy,
		links:     links,
		customers: customers,
		logger:    logger,
	}
}

// GetAuthoritativeMapping returns the profile link if its customer still resolves, else the
// legacy matched row if its customer still resolves, else nil. Stale mappings are never returned.
func (s *Store) GetAuthoritativeMapping(ctx context.Context, profileID string) (*models.IdentityMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.Store.GetAuthoritativeMapping")
	defer span.End()

	link, err := s.links.GetLink(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if link != nil {
		valid, err := s.CustomerExists(ctx, link)
		if err != nil {
			return nil, err
		}
		if valid {
			return link, nil
		}
		s.logStale(ctx, link)
	}

	legacy, err := s.legacy.GetMatched(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if legacy != nil {
		valid, err := s.CustomerExists(ctx, legacy)
		if err != nil {
			return nil, err
		}
		if valid {
			return legacy, nil
		}
		s.logStale(ctx, legacy)
	}

	return nil, nil
}

// GetLatestMapping returns the newest mapping in any state without validating it.
func (s *Store) GetLatestMapping(ctx context.Context, profileID string) (*models.IdentityMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.Store.GetLatestMapping")
	defer span.End()

	link, err := s.links.GetLink(ctx, profileID)
	if err != nil || link != nil {
		return link, err
	}
	return s.legacy.GetLatest(ctx, profileID)
}

// CustomerExists re-validates a mapping's target, by stable hash first since it
// survives CRM re-imports, then by CRM id.
func (s *Store) CustomerExists(ctx context.Context, m *models.IdentityMapping) (bool, error) {
	if hash := m.StableHash(); hash != "" {
		exists, err := s.customers.CustomerExistsByStableHash(ctx, hash)
		if err != nil || exists {
			return exists, err
		}
	}
	if m.ExternalCustomerID == "" {
		return false, nil
	}
	return s.customers.CustomerExistsByID(ctx, m.ExternalCustomerID)
}

// Upsert writes the mapping keyed on (profile, customer). A matched mapping also
// supersedes the profile's other matched rows and becomes the profile's link. An
// unmatched mapping drops the profile's link when the link points at the same customer.
// Both run in one transaction.
func (s *Store) Upsert(ctx context.Context, m *models.IdentityMapping) error {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.Store.Upsert")
	defer span.End()

	if !m.IsMatched {
		return s.inTx(ctx, func(ctx context.Context) error {
			if err := s.legacy.Upsert(ctx, m); err != nil {
				return err
			}
			removed, err := s.links.UnlinkIfTarget(ctx, m.ProfileID, m.ExternalCustomerID, m.StableHash())
			if err != nil {
				return err
			}
			if removed {
				s.logger.WithContext(ctx).WithFields(map[string]any{
					"profile_id":      m.ProfileID,
					"crm_customer_id": m.ExternalCustomerID,
				}).Info("Customer fell below the match threshold, removed profile link")
			}
			return nil
		})
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.legacy.Upsert(ctx, m); err != nil {
			return err
		}
		if err := s.legacy.DemoteOthers(ctx, m.ProfileID, m.ExternalCustomerID); err != nil {
			return err
		}
		return s.writeLink(ctx, m)
	})
}

// SetMatched flags an existing mapping as matched and links the profile to it. It does
// not demote other matched rows; callers decide whether a replacement is allowed.
func (s *Store) SetMatched(ctx context.Context, profileID, customerID, stableHashID string) error {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.Store.SetMatched")
	defer span.End()

	return s.inTx(ctx, func(ctx context.Context) error {
		m, err := s.legacy.SetMatched(ctx, profileID, customerID, stableHashID)
		if err != nil {
			return err
		}
		if m == nil {
			return apperrors.NewStoreError("set matched", ErrMappingNotFound)
		}
		return s.writeLink(ctx, m)
	})
}

// FindProfileLinkedTo returns a profile other than exceptProfileID currently matched to
// the customer, or "".
func (s *Store) FindProfileLinkedTo(ctx context.Context, customerID, stableHashID, exceptProfileID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.Store.FindProfileLinkedTo")
	defer span.End()

	if stableHashID != "" {
		profileID, err := s.links.FindLinkedProfile(ctx, stableHashID, exceptProfileID)
		if err != nil || profileID != "" {
			return profileID, err
		}
	}
	return s.legacy.FindMatchedProfile(ctx, customerID, stableHashID, exceptProfileID)
}

// HasVipData reports whether placeholder VIP data exists for the profile.
func (s *Store) HasVipData(ctx context.Context, profileID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.Store.HasVipData")
	defer span.End()

	return s.links.HasPlaceholderData(ctx, profileID)
}

// writeLink is a no-op for customers without a stable hash; they stay legacy-only.
func (s *Store) writeLink(ctx context.Context, m *models.IdentityMapping) error {
	if m.StableHash() == "" {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"profile_id":      m.ProfileID,
			"crm_customer_id": m.ExternalCustomerID,
		}).Warn("Matched customer has no stable hash id, skipping profile link")
		return nil
	}

	profileID := m.ProfileID
	vipID, err := s.links.EnsureVipCustomerData(ctx, &models.VipCustomerData{
		ProfileID:    &profileID,
		StableHashID: m.StableHashID,
	})
	if err != nil {
		return err
	}
	m.VipCustomerDataID = &vipID

	return s.links.UpsertLink(ctx, m)
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := s.tx.GetTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStoreError("commit transaction", err)
	}
	return nil
}

func (s *Store) logStale(ctx context.Context, m *models.IdentityMapping) {
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"profile_id":      m.ProfileID,
		"crm_customer_id": m.ExternalCustomerID,
		"stable_hash_id":  m.StableHash(),
		"generation":      m.Generation,
	}).Warn("Mapping points at a CRM customer that no longer exists")
}
