package profile

import (
	"database/sql"

	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
)

type ProfileRow struct {
	ID          string         `db:"id"`
	DisplayName sql.NullString `db:"display_name"`
	Name        sql.NullString `db:"name"`
	Email       sql.NullString `db:"email"`
	PhoneNumber sql.NullString `db:"phone_number"`
	CreatedAt   sql.NullTime   `db:"created_at"`
	UpdatedAt   sql.NullTime   `db:"updated_at"`
}

const (
	profileTable = "profiles"
)

var profileStruct = database.NewStruct(new(ProfileRow))

func ToProfile(row *ProfileRow) *models.Profile {
	return &models.Profile{
		ID:          row.ID,
		DisplayName: nullable(row.DisplayName),
		Name:        nullable(row.Name),
		Email:       nullable(row.Email),
		PhoneNumber: nullable(row.PhoneNumber),
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
