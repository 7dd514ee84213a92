package matchaudit

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/tracing"
	"github.com/google/uuid"
)

type AuditRow struct {
	ID            string                   `db:"id"`
	ProfileID     string                   `db:"profile_id"`
	CRMCustomerID sql.NullString           `db:"crm_customer_id"`
	Action        string                   `db:"action"`
	Confidence    float64                  `db:"confidence"`
	Reasons       database.JSONB[[]string] `db:"reasons"`
	CreatedAt     time.Time                `db:"created_at"`
}

const auditTable = "crm_match_audit_log"

var auditStruct = database.NewStruct(new(AuditRow))

// Repository appends matching decisions to the audit log. Rows are never updated.
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

func (r *Repository) Record(ctx context.Context, entry *models.MatchAuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "MatchAuditRepository.Record")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	reasons := entry.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	row := &AuditRow{
		ID:         entry.ID,
		ProfileID:  entry.ProfileID,
		Action:     entry.Action,
		Confidence: entry.Confidence,
		Reasons:    database.NewJSONB(reasons),
		CreatedAt:  entry.CreatedAt,
	}
	if entry.CRMCustomerID != nil {
		row.CRMCustomerID = sql.NullString{String: *entry.CRMCustomerID, Valid: true}
	}

	query, args := auditStruct.InsertInto(auditTable, row).Build()

	if _, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"profile_id": entry.ProfileID,
			"action":     entry.Action,
		}).Error("error recording match audit entry")
		return apperrors.NewStoreError("record match audit", err)
	}
	return nil
}
