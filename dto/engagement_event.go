package dto

import "time"

const (
	EventEmailSent    = "email.sent"
	EventEmailFailed  = "email.failed"
	EventEmailClicked = "email.clicked"
)

// EngagementEvent is published after a send or click has been committed
type EngagementEvent struct {
	Event      string    `json:"event"`
	TenantID   string    `json:"tenantId"`
	CustomerID string    `json:"customerId"`
	EmailType  string    `json:"emailType"`
	ProgramID  string    `json:"programId,omitempty"`
	StepID     string    `json:"stepId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
