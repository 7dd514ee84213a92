package models

// VipStatus summarizes a profile's CRM link state for the UI.
type VipStatus string

const (
	VipStatusNotLinked                 VipStatus = "not_linked"
	VipStatusLinkedMatched             VipStatus = "linked_matched"
	VipStatusLinkedUnmatched           VipStatus = "linked_unmatched"
	VipStatusVipDataExistsCRMUnmatched VipStatus = "vip_data_exists_crm_unmatched"
)

// StatusResult is the response of the status endpoint.
type StatusResult struct {
	Status             VipStatus `json:"status"`
	ExternalCustomerID *string   `json:"externalCustomerId"`
}

// MatchOptions tunes a single matching run.
type MatchOptions struct {
	ForceRefresh        bool
	PhoneNumberOverride string
	// Method is the match method prefix; defaults to MatchMethodAuto.
	Method string
	// Customers, when non-nil, is scored instead of fetching the CRM customer list.
	// Batch callers load it once and share it across profiles.
	Customers []ExternalCustomer
}

// MatchResult is the outcome of matching a profile against the CRM.
type MatchResult struct {
	Matched       bool     `json:"matched"`
	Confidence    float64  `json:"confidence"`
	CRMCustomerID *string  `json:"crmCustomerId,omitempty"`
	StableHashID  *string  `json:"stableHashId,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
	MatchMethod   string   `json:"matchMethod,omitempty"`
	// FromCache is true when the result came from an existing authoritative mapping.
	FromCache bool `json:"fromCache"`
}

// LinkByPhoneRequest is the body of the link-by-phone endpoint.
type LinkByPhoneRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=32,phone"`
}

// LinkByPhoneResponse is returned by the link-by-phone endpoint.
type LinkByPhoneResponse struct {
	Success            bool      `json:"success"`
	Status             VipStatus `json:"status,omitempty"`
	ExternalCustomerID *string   `json:"externalCustomerId,omitempty"`
	Error              string    `json:"error,omitempty"`
}
