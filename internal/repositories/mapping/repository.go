package mapping

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/tracing"
	"github.com/google/uuid"
)

// Repository stores legacy mappings, one row per (profile_id, crm_customer_id).
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the mapping or updates the existing row for the same pair in place.
// created_at and id are preserved on update; m.ID is set to the stored row's id.
func (r *Repository) Upsert(ctx context.Context, m *models.IdentityMapping) error {
	ctx, span := tracing.StartSpan(ctx, "MappingRepository.Upsert")
	defer span.End()

	now := time.Now().UTC()

	row := FromIdentityMapping(m, now)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	ib := mappingStruct.InsertInto(mappingTable, row)
	ub := ib.OnConflict("profile_id", "crm_customer_id")
	ub.Set(
		ub.Assign("stable_hash_id", database.Excluded("stable_hash_id")),
		ub.Assign("is_matched", database.Excluded("is_matched")),
		ub.Assign("match_method", database.Excluded("match_method")),
		ub.Assign("match_confidence", database.Excluded("match_confidence")),
		ub.Assign("match_reasons", database.Excluded("match_reasons")),
		ub.Assign("crm_customer_data", database.Excluded("crm_customer_data")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)
	ib.SQL("RETURNING id")

	query, args := ib.Build()

	fields := map[string]any{
		"profile_id":      m.ProfileID,
		"crm_customer_id": m.ExternalCustomerID,
		"is_matched":      m.IsMatched,
		"confidence":      m.MatchConfidence,
	}

	r.logger.WithContext(ctx).WithFields(fields).Info("Upserting CRM customer mapping")
	var id string
	if err := r.db.Queryer(ctx).GetContext(ctx, &id, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("error upserting CRM customer mapping")
		return apperrors.NewStoreError("upsert mapping", err)
	}

	m.ID = id
	m.UpdatedAt = now
	m.Generation = models.MappingGenerationLegacy
	return nil
}

// DemoteOthers clears is_matched on every row of the profile except keepCustomerID.
func (r *Repository) DemoteOthers(ctx context.Context, profileID, keepCustomerID string) error {
	ctx, span := tracing.StartSpan(ctx, "MappingRepository.DemoteOthers")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(mappingTable)
	ub.Set(
		ub.Assign("is_matched", false),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("profile_id", profileID),
		ub.NotEqual("crm_customer_id", keepCustomerID),
		ub.Equal("is_matched", true),
	)

	query, args := ub.Build()

	result, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("profile_id", profileID).Error("error demoting superseded mappings")
		return apperrors.NewStoreError("demote mappings", err)
	}

	if affected, _ := result.RowsAffected(); affected > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"profile_id": profileID,
			"demoted":    affected,
		}).Info("Superseded previous matched mappings")
	}
	return nil
}

// GetMatched returns the newest matched row of the profile, or nil.
func (r *Repository) GetMatched(ctx context.Context, profileID string) (*models.IdentityMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "MappingRepository.GetMatched")
	defer span.End()

	sb := mappingStruct.SelectFrom(mappingTable)
	sb.Where(
		sb.Equal("profile_id", profileID),
		sb.Equal("is_matched", true),
	)
	sb.OrderBy("updated_at").Desc()
	sb.Limit(1)

	return r.getOne(ctx, sb, "get matched mapping", profileID)
}

// GetLatest returns the most recently updated row of the profile in any state, or nil.
func (r *Repository) GetLatest(ctx context.Context, profileID string) (*models.IdentityMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "MappingRepository.GetLatest")
	defer span.End()

	sb := mappingStruct.SelectFrom(mappingTable)
	sb.Where(sb.Equal("profile_id", profileID))
	sb.OrderBy("is_matched DESC", "updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, "get latest mapping", profileID)
}

// SetMatched flags the existing row for the pair as matched and returns it, or nil when
// no such row exists. Other rows of the profile are left untouched.
func (r *Repository) SetMatched(ctx context.Context, profileID, customerID, stableHashID string) (*models.IdentityMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "MappingRepository.SetMatched")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(mappingTable)
	assignments := []string{
		ub.Assign("is_matched", true),
		ub.Assign("updated_at", time.Now().UTC()),
	}
	if stableHashID != "" {
		assignments = append(assignments, ub.Assign("stable_hash_id", stableHashID))
	}
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("profile_id", profileID),
		ub.Equal("crm_customer_id", customerID),
	)
	ub.SQL("RETURNING *")

	query, args := ub.Build()

	var row MappingRow
	err := r.db.Queryer(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"profile_id":      profileID,
			"crm_customer_id": customerID,
		}).Error("error setting mapping matched")
		return nil, apperrors.NewStoreError("set matched", err)
	}

	return ToIdentityMapping(&row), nil
}

// FindMatchedProfile returns a profile other than exceptProfileID whose matched row points
// at the customer, by crm id or stable hash, or "" when there is none.
func (r *Repository) FindMatchedProfile(ctx context.Context, customerID, stableHashID, exceptProfileID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "MappingRepository.FindMatchedProfile")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("profile_id").From(mappingTable)
	targets := []string{sb.Equal("crm_customer_id", customerID)}
	if stableHashID != "" {
		targets = append(targets, sb.Equal("stable_hash_id", stableHashID))
	}
	sb.Where(
		sb.Equal("is_matched", true),
		sb.Or(targets...),
	)
	if exceptProfileID != "" {
		sb.Where(sb.NotEqual("profile_id", exceptProfileID))
	}
	sb.OrderBy("updated_at").Desc()
	sb.Limit(1)

	query, args := sb.Build()

	var profileID string
	err := r.db.Queryer(ctx).GetContext(ctx, &profileID, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("crm_customer_id", customerID).Error("error finding matched profile")
		return "", apperrors.NewStoreError("find matched profile", err)
	}
	return profileID, nil
}

func (r *Repository) getOne(ctx context.Context, sb *database.SelectBuilder, op, profileID string) (*models.IdentityMapping, error) {
	query, args := sb.Build()

	var row MappingRow
	err := r.db.Queryer(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("profile_id", profileID).Errorf("error: %s", op)
		return nil, apperrors.NewStoreError(op, err)
	}
	return ToIdentityMapping(&row), nil
}
