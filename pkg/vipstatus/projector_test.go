package vipstatus

import (
	"testing"

	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	matched := &models.IdentityMapping{ProfileID: "p1", ExternalCustomerID: "c1", IsMatched: true}
	unmatched := &models.IdentityMapping{ProfileID: "p1", ExternalCustomerID: "c1", IsMatched: false}

	tests := []struct {
		name           string
		mapping        *models.IdentityMapping
		customerExists bool
		hasVipData     bool
		want           models.VipStatus
	}{
		{"no mapping", nil, false, false, models.VipStatusNotLinked},
		{"no mapping ignores vip data", nil, false, true, models.VipStatusNotLinked},
		{"matched and live", matched, true, false, models.VipStatusLinkedMatched},
		{"matched and live with vip data", matched, true, true, models.VipStatusLinkedMatched},
		{"matched but stale", matched, false, false, models.VipStatusLinkedUnmatched},
		{"matched but stale with vip data", matched, false, true, models.VipStatusVipDataExistsCRMUnmatched},
		{"unmatched", unmatched, true, false, models.VipStatusLinkedUnmatched},
		{"unmatched with vip data", unmatched, true, true, models.VipStatusVipDataExistsCRMUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Project(tt.mapping, tt.customerExists, tt.hasVipData))
		})
	}
}

func TestResult(t *testing.T) {
	matched := &models.IdentityMapping{ProfileID: "p1", ExternalCustomerID: "c1", IsMatched: true}

	result := Result(matched, true, false)
	require.NotNil(t, result.ExternalCustomerID)
	assert.Equal(t, "c1", *result.ExternalCustomerID)

	result = Result(matched, false, false)
	assert.Equal(t, models.VipStatusLinkedUnmatched, result.Status)
	assert.Nil(t, result.ExternalCustomerID)

	result = Result(nil, false, false)
	assert.Equal(t, models.VipStatusNotLinked, result.Status)
	assert.Nil(t, result.ExternalCustomerID)
}
