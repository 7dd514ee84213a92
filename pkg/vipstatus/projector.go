// Package vipstatus derives the VIP status shown to a profile from its latest mapping.
package vipstatus

import "github.com/Ramsey-B/fescue/pkg/models"

// Project maps the latest mapping to a VipStatus. customerExists reports whether the
// mapped CRM customer still resolves; hasVipData whether placeholder VIP data exists.
func Project(mapping *models.IdentityMapping, customerExists bool, hasVipData bool) models.VipStatus {
	if mapping == nil {
		return models.VipStatusNotLinked
	}

	if mapping.IsMatched && customerExists {
		return models.VipStatusLinkedMatched
	}

	// unmatched, or matched to a customer that no longer resolves
	if hasVipData {
		return models.VipStatusVipDataExistsCRMUnmatched
	}
	return models.VipStatusLinkedUnmatched
}

// Result builds the API result, exposing the external customer id only for a live match.
func Result(mapping *models.IdentityMapping, customerExists bool, hasVipData bool) *models.StatusResult {
	status := Project(mapping, customerExists, hasVipData)

	result := &models.StatusResult{Status: status}
	if status == models.VipStatusLinkedMatched {
		id := mapping.ExternalCustomerID
		result.ExternalCustomerID = &id
	}
	return result
}
