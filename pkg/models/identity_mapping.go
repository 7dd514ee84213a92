package models

import "time"

// MappingGeneration identifies which physical table a mapping was read from.
type MappingGeneration string

const (
	// MappingGenerationLegacy is the wide crm_customer_mapping table.
	MappingGenerationLegacy MappingGeneration = "v1"
	// MappingGenerationLink is the slim crm_profile_links table.
	MappingGenerationLink MappingGeneration = "v2"
)

// Match method prefixes. The matcher appends the field that drove the decision,
// e.g. "auto_phone" or "sync_script_full_name".
const (
	MatchMethodAuto       = "auto"
	MatchMethodManual     = "manual"
	MatchMethodSyncScript = "sync_script"
)

// IdentityMapping links a profile to a CRM customer with confidence metadata.
type IdentityMapping struct {
	ID                 string   `json:"id" db:"id"`
	ProfileID          string   `json:"profile_id" db:"profile_id"`
	ExternalCustomerID string   `json:"crm_customer_id" db:"crm_customer_id"`
	StableHashID       *string  `json:"stable_hash_id,omitempty" db:"stable_hash_id"`
	IsMatched          bool     `json:"is_matched" db:"is_matched"`
	MatchMethod        string   `json:"match_method" db:"match_method"`
	MatchConfidence    float64  `json:"match_confidence" db:"match_confidence"`
	MatchReasons       []string `json:"match_reasons" db:"-"`
	VipCustomerDataID  *string  `json:"vip_customer_data_id,omitempty" db:"-"`
	// CustomerSnapshot is the CRM record's passthrough data at match time.
	CustomerSnapshot map[string]any    `json:"crm_customer_data,omitempty" db:"-"`
	Generation       MappingGeneration `json:"generation" db:"-"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// StableHash returns the stable hash id or an empty string.
func (m *IdentityMapping) StableHash() string {
	if m.StableHashID == nil {
		return ""
	}
	return *m.StableHashID
}

// VipCustomerData is the durable customer-data record referenced by profile links.
// A row without a stable hash id is local placeholder data not yet tied to the CRM.
type VipCustomerData struct {
	ID             string    `json:"id" db:"id"`
	ProfileID      *string   `json:"profile_id,omitempty" db:"profile_id"`
	StableHashID   *string   `json:"stable_hash_id,omitempty" db:"stable_hash_id"`
	VipDisplayName *string   `json:"vip_display_name,omitempty" db:"vip_display_name"`
	VipEmail       *string   `json:"vip_email,omitempty" db:"vip_email"`
	VipPhoneNumber *string   `json:"vip_phone_number,omitempty" db:"vip_phone_number"`
	VipTier        *string   `json:"vip_tier,omitempty" db:"vip_tier"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// MatchAuditEntry records a matching decision for later review.
type MatchAuditEntry struct {
	ID            string    `json:"id" db:"id"`
	ProfileID     string    `json:"profile_id" db:"profile_id"`
	CRMCustomerID *string   `json:"crm_customer_id,omitempty" db:"crm_customer_id"`
	Action        string    `json:"action" db:"action"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	Reasons       []string  `json:"reasons" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Audit actions
const (
	AuditActionMatched     = "matched"
	AuditActionUnmatched   = "unmatched"
	AuditActionNoCandidate = "no_candidate"
	AuditActionRejected    = "rejected_linked_elsewhere"
)
