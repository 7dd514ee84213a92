package customer

import (
	"database/sql"

	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
)

// CustomerRow is a row of the local CRM replica.
type CustomerRow struct {
	ID           string                         `db:"id"`
	Name         sql.NullString                 `db:"name"`
	Email        sql.NullString                 `db:"email"`
	PhoneNumber  sql.NullString                 `db:"phone_number"`
	StableHashID sql.NullString                 `db:"stable_hash_id"`
	Data         database.JSONB[map[string]any] `db:"data"`
	UpdatedAt    sql.NullTime                   `db:"updated_at"`
}

const (
	customerTable = "crm_customers"
)

var customerStruct = database.NewStruct(new(CustomerRow))

func ToExternalCustomer(row *CustomerRow) models.ExternalCustomer {
	return models.ExternalCustomer{
		ID:           row.ID,
		Name:         row.Name.String,
		Email:        nullable(row.Email),
		PhoneNumber:  nullable(row.PhoneNumber),
		StableHashID: nullable(row.StableHashID),
		Data:         row.Data.Data,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
