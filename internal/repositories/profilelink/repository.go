package profilelink

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

// Repository stores profile links and the customer-data records they reference.
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

// GetLink returns the profile's link, or nil.
func (r *Repository) GetLink(ctx context.Context, profileID string) (*models.IdentityMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileLinkRepository.GetLink")
	defer span.End()

	sb := linkStruct.SelectFrom(linkTable)
	sb.Where(sb.Equal("profile_id", profileID))

	query, args := sb.Build()

	var row LinkRow
	err := r.db.Queryer(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("profile_id", profileID).Error("error getting profile link")
		return nil, apperrors.NewStoreError("get profile link", err)
	}

	return ToIdentityMapping(&row), nil
}

// EnsureVipCustomerData returns the id of the customer-data record for the stable hash,
// creating it from the snapshot when missing.
func (r *Repository) EnsureVipCustomerData(ctx context.Context, data *models.VipCustomerData) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileLinkRepository.EnsureVipCustomerData")
	defer span.End()

	now := time.Now().UTC()
	row := &VipCustomerDataRow{
		ID:             uuid.New().String(),
		ProfileID:      nullString(data.ProfileID),
		StableHashID:   nullString(data.StableHashID),
		VipDisplayName: nullString(data.VipDisplayName),
		VipEmail:       nullString(data.VipEmail),
		VipPhoneNumber: nullString(data.VipPhoneNumber),
		VipTier:        nullString(data.VipTier),
		CreatedAt:      sql.NullTime{Time: now, Valid: true},
		UpdatedAt:      sql.NullTime{Time: now, Valid: true},
	}

	ib := vipDataStruct.InsertInto(vipDataTable, row)
	ub := ib.OnConflict("stable_hash_id")
	ub.Set(
		ub.Assign("profile_id", database.Excluded("profile_id")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)
	ib.SQL("RETURNING id")

	query, args := ib.Build()

	var id string
	if err := r.db.Queryer(ctx).GetContext(ctx, &id, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("stable_hash_id", data.StableHashID).Error("error upserting VIP customer data")
		return "", apperrors.NewStoreError("upsert vip customer data", err)
	}
	return id, nil
}

// UpsertLink writes the profile's single link, replacing whatever it pointed at before.
func (r *Repository) UpsertLink(ctx context.Context, m *models.IdentityMapping) error {
	ctx, span := tracing.StartSpan(ctx, "ProfileLinkRepository.UpsertLink")
	defer span.End()

	now := time.Now().UTC()
	row := &LinkRow{
		ID:                uuid.New().String(),
		ProfileID:         m.ProfileID,
		CRMCustomerID:     m.ExternalCustomerID,
		StableHashID:      m.StableHash(),
		VipCustomerDataID: nullString(m.VipCustomerDataID),
		MatchConfidence:   sql.NullFloat64{Float64: m.MatchConfidence, Valid: true},
		MatchMethod:       sql.NullString{String: m.MatchMethod, Valid: m.MatchMethod != ""},
		MatchReasons:      database.NewJSONB(m.MatchReasons),
		LinkedAt:          sql.NullTime{Time: now, Valid: true},
		UpdatedAt:         sql.NullTime{Time: now, Valid: true},
	}
	if row.MatchReasons.Data == nil {
		row.MatchReasons.Data = []string{}
	}

	ib := linkStruct.InsertInto(linkTable, row)
	ub := ib.OnConflict("profile_id")
	ub.Set(
		ub.Assign("crm_customer_id", database.Excluded("crm_customer_id")),
		ub.Assign("stable_hash_id", database.Excluded("stable_hash_id")),
		ub.Assign("vip_customer_data_id", database.Excluded("vip_customer_data_id")),
		ub.Assign("match_confidence", database.Excluded("match_confidence")),
		ub.Assign("match_method", database.Excluded("match_method")),
		ub.Assign("match_reasons", database.Excluded("match_reasons")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()

	fields := map[string]any{
		"profile_id":     m.ProfileID,
		"stable_hash_id": m.StableHash(),
	}
	r.logger.WithContext(ctx).WithFields(fields).Info("Upserting CRM profile link")
	if _, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("error upserting CRM profile link")
		return apperrors.NewStoreError("upsert profile link", err)
	}
	return nil
}

// UnlinkIfTarget deletes the profile's link when it points at the customer, by CRM id or
// stable hash. It reports whether a row was removed.
func (r *Repository) UnlinkIfTarget(ctx context.Context, profileID, customerID, stableHashID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileLinkRepository.UnlinkIfTarget")
	defer span.End()

	del := database.NewDeleteBuilder()
	del.DeleteFrom(linkTable)
	target := []string{del.Equal("crm_customer_id", customerID)}
	if stableHashID != "" {
		target = append(target, del.Equal("stable_hash_id", stableHashID))
	}
	del.Where(
		del.Equal("profile_id", profileID),
		del.Or(target...),
	)

	query, args := del.Build()

	fields := map[string]any{
		"profile_id":      profileID,
		"crm_customer_id": customerID,
		"stable_hash_id":  stableHashID,
	}
	result, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("error deleting CRM profile link")
		return false, apperrors.NewStoreError("delete profile link", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreError("delete profile link", err)
	}
	return affected > 0, nil
}

// FindLinkedProfile returns a profile other than exceptProfileID linked to the stable hash, or "".
func (r *Repository) FindLinkedProfile(ctx context.Context, stableHashID, exceptProfileID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileLinkRepository.FindLinkedProfile")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("profile_id").From(linkTable)
	sb.Where(sb.Equal("stable_hash_id", stableHashID))
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
		r.logger.WithContext(ctx).WithError(err).WithField("stable_hash_id", stableHashID).Error("error finding linked profile")
		return "", apperrors.NewStoreError("find linked profile", err)
	}
	return profileID, nil
}

// HasPlaceholderData reports whether the profile owns customer data not yet tied to the CRM.
func (r *Repository) HasPlaceholderData(ctx context.Context, profileID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileLinkRepository.HasPlaceholderData")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("1").From(vipDataTable)
	sb.Where(
		sb.Equal("profile_id", profileID),
		sb.IsNull("stable_hash_id"),
	)
	sb.Limit(1)

	inner, args := sb.Build()

	var exists bool
	if err := r.db.Queryer(ctx).GetContext(ctx, &exists, "SELECT EXISTS ("+inner+")", args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("profile_id", profileID).Error("error checking VIP placeholder data")
		return false, apperrors.NewStoreError("check vip data", err)
	}
	return exists, nil
}
