// Package matching links booking profiles to CRM customers: scoring, ranking and the
// orchestration that persists the result.
package matching

import (
	"math"
	"strings"

	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/normalizers"
)

// Match reasons, in the order the scorer emits them.
const (
	ReasonExactPhone     = "exact_phone_match"
	ReasonPartialPhone   = "partial_phone_match"
	ReasonExactFirstName = "exact_first_name_match"
	ReasonPartialFirst   = "partial_first_name_match"
	ReasonExactLastName  = "exact_last_name_match"
	ReasonPartialLast    = "partial_last_name_match"
	ReasonExactEmail     = "exact_email_match"
)

// MaxConfidence caps the additive score.
const MaxConfidence = 1.0

// Weights are the bonuses added per matching field.
type Weights struct {
	ExactPhone       float64
	PartialPhone     float64
	ExactFirstName   float64
	PartialFirstName float64
	ExactLastName    float64
	PartialLastName  float64
	ExactEmail       float64
}

// DefaultWeights favors phone numbers, which rarely collide between unrelated people.
func DefaultWeights() Weights {
	return Weights{
		ExactPhone:       0.7,
		PartialPhone:     0.3,
		ExactFirstName:   0.5,
		PartialFirstName: 0.2,
		ExactLastName:    0.5,
		PartialLastName:  0.2,
		ExactEmail:       0.5,
	}
}

// Score is the confidence that a profile and a customer are the same person.
type Score struct {
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// HasReason reports whether reason contributed to the score.
func (s Score) HasReason(reason string) bool {
	for _, r := range s.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Subject is a profile reduced to the normalized fields the scorer compares.
type Subject struct {
	Phone     string
	FirstName string
	LastName  string
	Email     string
}

// NewSubject normalizes a profile. A non-empty phoneOverride replaces the stored phone.
func NewSubject(profile *models.Profile, phoneOverride string) Subject {
	phone := normalizers.NormalizePhonePtr(profile.PhoneNumber)
	if phoneOverride != "" {
		phone = normalizers.NormalizePhone(phoneOverride)
	}

	name := normalizers.SplitName(profile.MatchableName())

	return Subject{
		Phone:     phone,
		FirstName: normalizers.NormalizeText(name.First),
		LastName:  normalizers.NormalizeText(name.Last),
		Email:     normalizers.NormalizeTextPtr(profile.Email),
	}
}

func customerSubject(customer *models.ExternalCustomer) Subject {
	name := normalizers.SplitName(customer.Name)
	return Subject{
		Phone:     normalizers.NormalizePhonePtr(customer.PhoneNumber),
		FirstName: normalizers.NormalizeText(name.First),
		LastName:  normalizers.NormalizeText(name.Last),
		Email:     normalizers.NormalizeTextPtr(customer.Email),
	}
}

// Scorer computes weighted-sum confidence scores
type Scorer struct {
	weights Weights
}

// NewScorer creates a new Scorer
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score compares a normalized subject with a CRM customer. Each field fires at
// most one tier (exact or partial) and the sum is capped at MaxConfidence.
func (s *Scorer) Score(subject Subject, customer *models.ExternalCustomer) Score {
	other := customerSubject(customer)

	var total float64
	reasons := make([]string, 0, 4)

	add := func(bonus float64, reason string) {
		total += bonus
		reasons = append(reasons, reason)
	}

	switch compare(subject.Phone, other.Phone) {
	case tierExact:
		add(s.weights.ExactPhone, ReasonExactPhone)
	case tierPartial:
		add(s.weights.PartialPhone, ReasonPartialPhone)
	}

	switch compare(subject.FirstName, other.FirstName) {
	case tierExact:
		add(s.weights.ExactFirstName, ReasonExactFirstName)
	case tierPartial:
		add(s.weights.PartialFirstName, ReasonPartialFirst)
	}

	switch compare(subject.LastName, other.LastName) {
	case tierExact:
		add(s.weights.ExactLastName, ReasonExactLastName)
	case tierPartial:
		add(s.weights.PartialLastName, ReasonPartialLast)
	}

	if compare(subject.Email, other.Email) == tierExact {
		add(s.weights.ExactEmail, ReasonExactEmail)
	}

	return Score{
		Confidence: math.Min(total, MaxConfidence),
		Reasons:    reasons,
	}
}

type tier int

const (
	tierNone tier = iota
	tierPartial
	tierExact
)

// compare expects normalized values; empty values never match.
func compare(a, b string) tier {
	if a == "" || b == "" {
		return tierNone
	}
	if a == b {
		return tierExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return tierPartial
	}
	return tierNone
}
