package models

import (
	"strings"
	"time"
)

// User is a chat participant as stored in the directory.
// Status is derived from the pairing registry when the user is served to a client;
// it is never read back as the source of truth.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Country     string `json:"country,omitempty"`
	Age         int    `json:"age,omitempty"`

	ProfileComplete bool         `json:"profile_complete"`
	Blocked         bool         `json:"blocked"`
	Status          SessionState `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultLanguage is applied to users whose language was never set.
const DefaultLanguage = "en"

// WithDefaults fills fields a partially written profile may be missing.
func (u User) WithDefaults() User {
	if strings.TrimSpace(u.DisplayName) == "" {
		u.DisplayName = "User"
	}
	if strings.TrimSpace(u.Language) == "" {
		u.Language = DefaultLanguage
	}
	if u.Status == "" {
		u.Status = StateIdle
	}
	return u
}

// HasCompleteProfile reports whether every field the profile flow asks for is filled.
func (u User) HasCompleteProfile() bool {
	return strings.TrimSpace(u.DisplayName) != "" &&
		strings.TrimSpace(u.Language) != "" &&
		strings.TrimSpace(u.Gender) != "" &&
		strings.TrimSpace(u.Country) != "" &&
		u.Age > 0
}

// PartnerProfile is the subset of a user's profile shown to their partner.
type PartnerProfile struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Public returns the profile fields safe to share with a partner.
func (u User) Public() PartnerProfile {
	return PartnerProfile{
		DisplayName: u.DisplayName,
		Language:    u.Language,
		Gender:      u.Gender,
		Country:     u.Country,
	}
}

// AnyValue marks a search filter that matches every user.
const AnyValue = "any"

// SearchCriteria narrows the candidate pool. Each field is either empty/"any"
// or matched exactly (case-insensitive).
type SearchCriteria struct {
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Country  string `json:"country,omitempty"`
}

// IsWildcard reports whether a single filter value matches everyone.
func IsWildcard(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, AnyValue)
}

// Matches reports whether u satisfies every non-wildcard filter.
func (c SearchCriteria) Matches(u User) bool {
	return matchField(c.Language, u.Language) &&
		matchField(c.Gender, u.Gender) &&
		matchField(c.Country, u.Country)
}

func matchField(filter, value string) bool {
	if IsWildcard(filter) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(filter), strings.TrimSpace(value))
}
