package models

import "time"

// Profile is the booking application's user record. It is owned by the auth
// collaborator; this service only reads it and updates contact fields.
type Profile struct {
	ID          string    `json:"id" db:"id"`
	DisplayName *string   `json:"display_name,omitempty" db:"display_name"`
	Name        *string   `json:"name,omitempty" db:"name"`
	Email       *string   `json:"email,omitempty" db:"email"`
	PhoneNumber *string   `json:"phone_number,omitempty" db:"phone_number"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MatchableName returns the display name, falling back to the name.
func (p *Profile) MatchableName() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	if p.Name != nil {
		return *p.Name
	}
	return ""
}

// HasMatchableData reports whether the profile carries any field the scorer can use.
func (p *Profile) HasMatchableData() bool {
	return nonEmpty(p.PhoneNumber) || nonEmpty(p.Email) || nonEmpty(p.Name) || nonEmpty(p.DisplayName)
}

// ProfileUpdate carries the profile fields this service is allowed to change.
type ProfileUpdate struct {
	PhoneNumber *string
	Email       *string
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
