package dto

import "time"

type EngagementStats struct {
	Sent             int64   `json:"sent"`
	Clicked          int64   `json:"clicked"`
	Failed           int64   `json:"failed"`
	ClickThroughRate float64 `json:"clickThroughRate"`
}

type ProgramEngagement struct {
	ProgramID string `json:"programId"`
	Name      string `json:"name"`
	EngagementStats
}

type ReviewCount struct {
	ReviewCount int       `json:"reviewCount"`
	Rating      float64   `json:"rating"`
	TakenAt     time.Time `json:"takenAt"`
}

type AnalyticsSummary struct {
	TenantID  string              `json:"tenantId"`
	Since     *time.Time          `json:"since,omitempty"`
	Total     EngagementStats     `json:"total"`
	Review    EngagementStats     `json:"review"`
	Retention EngagementStats     `json:"retention"`
	Programs  []ProgramEngagement `json:"programs"`
	Reviews   *ReviewCount        `json:"reviews,omitempty"`
}
