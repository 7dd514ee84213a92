// Package normalizers canonicalizes profile and CRM fields before they are compared.
package normalizers

import (
	"strings"
	"unicode"
)

const (
	// TrunkPrefix is the domestic dialing prefix dropped from local numbers.
	TrunkPrefix = "0"
	// CountryCode is the international prefix recognized on incoming numbers.
	CountryCode = "66"
	// SubscriberLength is the length of a national subscriber number without prefixes.
	SubscriberLength = 9
)

// Name is a display name split into a first token and the remainder.
type Name struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizePhone reduces a phone number to its national subscriber digits.
// It is a best-effort heuristic for messy input, not an E.164 parser:
// "0812345678", "+66812345678" and "66 81 234 5678" all become "812345678".
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	if digits == "" {
		return ""
	}

	digits = strings.TrimPrefix(digits, TrunkPrefix)

	if len(digits) == len(CountryCode)+SubscriberLength && strings.HasPrefix(digits, CountryCode) {
		digits = digits[len(CountryCode):]
	}

	if len(digits) > SubscriberLength {
		digits = digits[len(digits)-SubscriberLength:]
	}

	return digits
}

// NormalizePhonePtr is NormalizePhone for optional fields.
func NormalizePhonePtr(s *string) string {
	if s == nil {
		return ""
	}
	return NormalizePhone(*s)
}

// NormalizeText lowercases and trims free text.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTextPtr is NormalizeText for optional fields.
func NormalizeTextPtr(s *string) string {
	if s == nil {
		return ""
	}
	return NormalizeText(*s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return NormalizeText(s)
}

// SplitName splits a display name on whitespace. The first token is the first
// name and the remaining tokens, joined by a single space, are the last name.
func SplitName(s string) Name {
	parts := strings.Fields(s)
	switch len(parts) {
	case 0:
		return Name{}
	case 1:
		return Name{First: parts[0]}
	default:
		return Name{First: parts[0], Last: strings.Join(parts[1:], " ")}
	}
}
