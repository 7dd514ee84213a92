package profile

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
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	ListProfiles(ctx context.Context, afterID string, limit int) ([]models.Profile, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new profile repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetProfile returns apperrors.ErrProfileNotFound when the id does not resolve.
func (r *Repository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.GetProfile")
	defer span.End()

	sb := profileStruct.SelectFrom(profileTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var row ProfileRow
	err := r.db.Queryer(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.WithContext(ctx).WithField("profile_id", id).Warn("Profile not found")
			return nil, apperrors.ErrProfileNotFound
		}

		r.logger.WithContext(ctx).WithError(err).WithField("profile_id", id).Error("error getting profile")
		return nil, apperrors.NewStoreError("get profile", err)
	}

	return ToProfile(&row), nil
}

// UpdateProfile writes the non-nil contact fields of update.
func (r *Repository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.UpdateProfile")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(profileTable)

	assignments := []string{ub.Assign("updated_at", time.Now().UTC())}
	if update.PhoneNumber != nil {
		assignments = append(assignments, ub.Assign("phone_number", *update.PhoneNumber))
	}
	if update.Email != nil {
		assignments = append(assignments, ub.Assign("email", *update.Email))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	r.logger.WithContext(ctx).WithField("profile_id", id).Info("Updating profile")
	result, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("profile_id", id).Error("error updating profile")
		return apperrors.NewStoreError("update profile", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.ErrProfileNotFound
	}

	return nil
}

// ListProfiles pages through profiles ordered by id, starting after afterID.
func (r *Repository) ListProfiles(ctx context.Context, afterID string, limit int) ([]models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.ListProfiles")
	defer span.End()

	sb := profileStruct.SelectFrom(profileTable)
	if afterID != "" {
		sb.Where(sb.GreaterThan("id", afterID))
	}
	sb.OrderBy("id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()

	var rows []ProfileRow
	if err := r.db.Queryer(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("after_id", afterID).Error("error listing profiles")
		return nil, apperrors.NewStoreError("list profiles", err)
	}

	profiles := make([]models.Profile, 0, len(rows))
	for i := range rows {
		profiles = append(profiles, *ToProfile(&rows[i]))
	}
	return profiles, nil
}
