package model

import "time"

// TicketStatus mirrors the triage pipeline used by the dashboard.
type TicketStatus string

const (
	TicketStatusTriage     TicketStatus = "triage"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

type Ticket struct {
	ID             int64        `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	Subject        string       `json:"subject"`
	Status         TicketStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Membership links a user to the organization whose tickets they see.
type Membership struct {
	ID             int64  `json:"id"`
	UserID         string `json:"user_id"`
	OrganizationID int64  `json:"organization_id"`
	Role           string `json:"role"`
}
