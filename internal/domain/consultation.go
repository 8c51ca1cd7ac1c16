package domain

import "time"

// ConsultationRequest records that a client asked to meet an advisor.
type ConsultationRequest struct {
	ClientID    string    `json:"client_id"`
	MeetingType string    `json:"meeting_type"`
	Slot        string    `json:"slot"`
	CreatedAt   time.Time `json:"created_at"`
}
