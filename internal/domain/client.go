// Package domain contains core domain types for the client assistant.
package domain

import (
	"time"
)

// Client represents an account holder served by the assistant.
type Client struct {
	ClientID     string     `json:"client_id"`
	DisplayName  string     `json:"display_name"`
	BusinessName string     `json:"business_name,omitempty"`
	TaxID        string     `json:"tax_id,omitempty"`
	EntityType   string     `json:"business_entity_type,omitempty"`
	OnboardedAt  *time.Time `json:"onboarded_at,omitempty"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsOnboarded returns true once the business profile has been completed.
func (c *Client) IsOnboarded() bool {
	return c.OnboardedAt != nil
}

// ProfileFields are the profile columns the assistant is allowed to update.
type ProfileFields struct {
	BusinessName string
	TaxID        string
	EntityType   string
}

// Empty reports whether no field is set.
func (f ProfileFields) Empty() bool {
	return f.BusinessName == "" && f.TaxID == "" && f.EntityType == ""
}
