package matching

import (
	"testing"

	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBestMatch_Empty(t *testing.T) {
	subject := NewSubject(newProfile("Somchai Jaidee", "0812345678", ""), "")
	assert.Nil(t, FindBestMatch(NewScorer(DefaultWeights()), subject, nil))
	assert.Nil(t, FindBestMatch(NewScorer(DefaultWeights()), subject, []models.ExternalCustomer{}))
}

func TestFindBestMatch_PicksHighest(t *testing.T) {
	subject := NewSubject(newProfile("Somchai Jaidee", "0812345678", ""), "")
	customers := []models.ExternalCustomer{
		newCustomer("c1", "Somchai Srisuk", "", ""),
		newCustomer("c2", "Somchai Jaidee", "+66812345678", ""),
		newCustomer("c3", "Anan Jaidee", "", ""),
	}

	best := FindBestMatch(NewScorer(DefaultWeights()), subject, customers)

	require.NotNil(t, best)
	assert.Equal(t, "c2", best.Customer.ID)
	assert.Equal(t, 1.0, best.Confidence)
}

func TestFindBestMatch_FirstSeenWinsTies(t *testing.T) {
	subject := NewSubject(newProfile("", "", "a@x.com"), "")
	customers := []models.ExternalCustomer{
		newCustomer("c1", "", "", "a@x.com"),
		newCustomer("c2", "", "", "A@X.COM"),
	}

	best := FindBestMatch(NewScorer(DefaultWeights()), subject, customers)

	require.NotNil(t, best)
	assert.Equal(t, "c1", best.Customer.ID)
}

func TestFindBestMatch_ZeroConfidenceStillReturned(t *testing.T) {
	subject := NewSubject(newProfile("Anan", "", ""), "")
	customers := []models.ExternalCustomer{newCustomer("c1", "Somchai", "", "")}

	best := FindBestMatch(NewScorer(DefaultWeights()), subject, customers)

	require.NotNil(t, best)
	assert.Zero(t, best.Confidence)
}
