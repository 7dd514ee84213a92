package profilelink

import (
	"database/sql"

	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
)

// LinkRow is a row of crm_profile_links, at most one per profile.
type LinkRow struct {
	ID                string                   `db:"id"`
	ProfileID         string                   `db:"profile_id"`
	CRMCustomerID     string                   `db:"crm_customer_id"`
	StableHashID      string                   `db:"stable_hash_id"`
	VipCustomerDataID sql.NullString           `db:"vip_customer_data_id"`
	MatchConfidence   sql.NullFloat64          `db:"match_confidence"`
	MatchMethod       sql.NullString           `db:"match_method"`
	MatchReasons      database.JSONB[[]string] `db:"match_reasons"`
	LinkedAt          sql.NullTime             `db:"linked_at"`
	UpdatedAt         sql.NullTime             `db:"updated_at"`
}

// VipCustomerDataRow is a row of vip_customer_data.
type VipCustomerDataRow struct {
	ID             string         `db:"id"`
	ProfileID      sql.NullString `db:"profile_id"`
	StableHashID   sql.NullString `db:"stable_hash_id"`
	VipDisplayName sql.NullString `db:"vip_display_name"`
	VipEmail       sql.NullString `db:"vip_email"`
	VipPhoneNumber sql.NullString `db:"vip_phone_number"`
	VipTier        sql.NullString `db:"vip_tier"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

const (
	linkTable    = "crm_profile_links"
	vipDataTable = "vip_customer_data"
)

var (
	linkStruct    = database.NewStruct(new(LinkRow))
	vipDataStruct = database.NewStruct(new(VipCustomerDataRow))
)

// ToIdentityMapping presents a link as a mapping. Links only exist for matches.
func ToIdentityMapping(row *LinkRow) *models.IdentityMapping {
	hash := row.StableHashID
	m := &models.IdentityMapping{
		ID:                 row.ID,
		ProfileID:          row.ProfileID,
		ExternalCustomerID: row.CRMCustomerID,
		StableHashID:       &hash,
		IsMatched:          true,
		MatchMethod:        row.MatchMethod.String,
		MatchConfidence:    row.MatchConfidence.Float64,
		MatchReasons:       row.MatchReasons.Data,
		Generation:         models.MappingGenerationLink,
		CreatedAt:          row.LinkedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
	}
	if row.VipCustomerDataID.Valid {
		id := row.VipCustomerDataID.String
		m.VipCustomerDataID = &id
	}
	return m
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
