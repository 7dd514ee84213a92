package customer

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/tracing"
)

const sourceName = "crm_replica"

// Repository reads the CRM replica table. It is read-only.
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

// ListCustomers is a full scan ordered by id so ranking ties are stable.
func (r *Repository) ListCustomers(ctx context.Context) ([]models.ExternalCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "CustomerRepository.ListCustomers")
	defer span.End()

	sb := customerStruct.SelectFrom(customerTable)
	sb.OrderBy("id").Asc()

	query, args := sb.Build()

	var rows []CustomerRow
	if err := r.db.Queryer(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error listing CRM customers")
		return nil, apperrors.NewExternalFetchError(sourceName, err)
	}

	customers := make([]models.ExternalCustomer, 0, len(rows))
	for i := range rows {
		customers = append(customers, ToExternalCustomer(&rows[i]))
	}

	r.logger.WithContext(ctx).WithField("customers", len(customers)).Debug("Listed CRM customers")
	return customers, nil
}

func (r *Repository) CustomerExistsByID(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "CustomerRepository.CustomerExistsByID")
	defer span.End()

	return r.exists(ctx, "id", id)
}

func (r *Repository) CustomerExistsByStableHash(ctx context.Context, stableHashID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "CustomerRepository.CustomerExistsByStableHash")
	defer span.End()

	return r.exists(ctx, "stable_hash_id", stableHashID)
}

func (r *Repository) exists(ctx context.Context, column, value string) (bool, error) {
	sb := database.NewSelectBuilder()
	sb.Select("1").From(customerTable)
	sb.Where(sb.Equal(column, value))
	sb.Limit(1)

	inner, args := sb.Build()

	var exists bool
	if err := r.db.Queryer(ctx).GetContext(ctx, &exists, "SELECT EXISTS ("+inner+")", args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField(column, value).Error("error checking CRM customer")
		return false, apperrors.NewExternalFetchError(sourceName, err)
	}
	return exists, nil
}
