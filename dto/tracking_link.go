package dto

import "time"

// TrackingLink is what a tracking token binds together
type TrackingLink struct {
	CustomerID          string
	DestinationOverride string
	ProgramID           string
	StepID              string
	ExpiresAt           time.Time
}
