package models

import "time"

// ExternalCustomer is a CRM customer record. Only the fields used for matching
// are typed; everything else stays in Data and is passed through untouched.
type ExternalCustomer struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        *string        `json:"email,omitempty"`
	PhoneNumber  *string        `json:"phone_number,omitempty"`
	StableHashID *string        `json:"stable_hash_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// StableHash returns the stable hash id or an empty string.
func (c *ExternalCustomer) StableHash() string {
	if c.StableHashID == nil {
		return ""
	}
	return *c.StableHashID
}
