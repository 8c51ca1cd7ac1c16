package domain

import (
	"time"
)

// Priority marks how urgently an activity needs advisor attention.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Audience says who an activity entry is written for.
type Audience string

const (
	AudienceClient  Audience = "client"
	AudienceAdvisor Audience = "advisor"
)

// Activity is an entry in a client's activity feed.
// ClientID is empty for entries not tied to a known client.
type Activity struct {
	ID          int64     `json:"id"`
	ClientID    string    `json:"client_id,omitempty"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Audience    Audience  `json:"audience"`
	CreatedAt   time.Time `json:"created_at"`
}
