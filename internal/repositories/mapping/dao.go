package mapping

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
)

// MappingRow is a row of the legacy crm_customer_mapping table.
type MappingRow struct {
	ID              string                         `db:"id"`
	ProfileID       string                         `db:"profile_id"`
	CRMCustomerID   string                         `db:"crm_customer_id"`
	StableHashID    sql.NullString                 `db:"stable_hash_id"`
	IsMatched       bool                           `db:"is_matched"`
	MatchMethod     sql.NullString                 `db:"match_method"`
	MatchConfidence sql.NullFloat64                `db:"match_confidence"`
	MatchReasons    database.JSONB[[]string]       `db:"match_reasons"`
	CustomerData    database.JSONB[map[string]any] `db:"crm_customer_data"`
	CreatedAt       sql.NullTime                   `db:"created_at"`
	UpdatedAt       sql.NullTime                   `db:"updated_at"`
}

const (
	mappingTable = "crm_customer_mapping"
)

var mappingStruct = database.NewStruct(new(MappingRow))

func FromIdentityMapping(m *models.IdentityMapping, now time.Time) *MappingRow {
	return &MappingRow{
		ID:              m.ID,
		ProfileID:       m.ProfileID,
		CRMCustomerID:   m.ExternalCustomerID,
		StableHashID:    sql.NullString{String: m.StableHash(), Valid: m.StableHash() != ""},
		IsMatched:       m.IsMatched,
		MatchMethod:     sql.NullString{String: m.MatchMethod, Valid: m.MatchMethod != ""},
		MatchConfidence: sql.NullFloat64{Float64: m.MatchConfidence, Valid: true},
		MatchReasons:    database.NewJSONB(nonNil(m.MatchReasons)),
		CustomerData:    database.NewJSONB(m.CustomerSnapshot),
		CreatedAt:       sql.NullTime{Time: now, Valid: true},
		UpdatedAt:       sql.NullTime{Time: now, Valid: true},
	}
}

func ToIdentityMapping(row *MappingRow) *models.IdentityMapping {
	m := &models.IdentityMapping{
		ID:                 row.ID,
		ProfileID:          row.ProfileID,
		ExternalCustomerID: row.CRMCustomerID,
		IsMatched:          row.IsMatched,
		MatchMethod:        row.MatchMethod.String,
		MatchConfidence:    row.MatchConfidence.Float64,
		MatchReasons:       row.MatchReasons.Data,
		CustomerSnapshot:   row.CustomerData.Data,
		Generation:         models.MappingGenerationLegacy,
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
	}
	if row.StableHashID.Valid {
		hash := row.StableHashID.String
		m.StableHashID = &hash
	}
	return m
}

func nonNil(reasons []string) []string {
	if reasons == nil {
		return []string{}
	}
	return reasons
}
