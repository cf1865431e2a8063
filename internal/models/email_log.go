package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/utils"
)

// EmailLog is append-only. Rows that commit a send carry a DedupeKey; the
// unique index on it is what keeps a scheduling cycle from sending twice.
// Clicks and failures leave it NULL so they can repeat.
//
// The attribution is discriminated by EmailType: review rows never carry
// program or step ids, retention rows always do (except clicks on links
// issued without them).
type EmailLog struct {
	ID         string              `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID   string              `gorm:"column:tenant_id;type:varchar(50);not null;index" json:"tenantId"`
	CustomerID string              `gorm:"column:customer_id;type:varchar(50);not null;index:idx_email_logs_customer_type,priority:1" json:"customerId"`
	EmailType  enum.EmailType      `gorm:"column:email_type;type:varchar(20);not null;index:idx_email_logs_customer_type,priority:2" json:"emailType"`
	Status     enum.EmailLogStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	ProgramID  *string             `gorm:"column:program_id;type:varchar(50);index" json:"programId,omitempty"`
	StepID     *string             `gorm:"column:step_id;type:varchar(50);index" json:"stepId,omitempty"`
	Detail     string              `gorm:"column:detail;type:text" json:"detail,omitempty"`
	DedupeKey  *string             `gorm:"column:dedupe_key;type:varchar(150);uniqueIndex" json:"-"`
	CreatedAt  time.Time           `gorm:"column:created_at;type:timestamp;not null;index" json:"createdAt"`
}

func (EmailLog) TableName() string {
	return "email_logs"
}

func (m *EmailLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("elog", 20)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.Now()
	}
	return m.Validate()
}

// BeforeUpdate rejects every update; log rows are immutable
func (m *EmailLog) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("email log %s is immutable", m.ID)
}

func (m *EmailLog) Validate() error {
	switch m.EmailType {
	case enum.EmailTypeReview:
		if m.ProgramID != nil || m.StepID != nil {
			return fmt.Errorf("review email log cannot reference a program step")
		}
	case enum.EmailTypeRetention:
		if m.Status != enum.EmailLogStatusClicked && (m.ProgramID == nil || m.StepID == nil) {
			return fmt.Errorf("retention email log requires program and step")
		}
	default:
		return fmt.Errorf("unknown email type %q", m.EmailType)
	}
	return nil
}

func ReviewDedupeKey(customerID string) string {
	return "review:" + customerID
}

func StepDedupeKey(stepID, customerID string) string {
	return "step:" + stepID + ":" + customerID
}

// NewReviewSentLog commits the one lifetime global review email of a customer
func NewReviewSentLog(customer *Customer, at time.Time) *EmailLog {
	key := ReviewDedupeKey(customer.ID)
	return &EmailLog{
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		EmailType:  enum.EmailTypeReview,
		Status:     enum.EmailLogStatusSent,
		DedupeKey:  &key,
		CreatedAt:  at,
	}
}

// NewStepSentLog commits a program step for a customer
func NewStepSentLog(customer *Customer, step *ProgramStep, at time.Time) *EmailLog {
	key := StepDedupeKey(step.ID, customer.ID)
	return &EmailLog{
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		EmailType:  enum.EmailTypeRetention,
		Status:     enum.EmailLogStatusSent,
		ProgramID:  utils.ToPtr(step.ProgramID),
		StepID:     utils.ToPtr(step.ID),
		DedupeKey:  &key,
		CreatedAt:  at,
	}
}

// NewFailedLog records a failed attempt; it never blocks a retry
func NewFailedLog(customer *Customer, step *ProgramStep, detail string, at time.Time) *EmailLog {
	log := &EmailLog{
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		EmailType:  enum.EmailTypeReview,
		Status:     enum.EmailLogStatusFailed,
		Detail:     detail,
		CreatedAt:  at,
	}
	if step != nil {
		log.EmailType = enum.EmailTypeRetention
		log.ProgramID = utils.ToPtr(step.ProgramID)
		log.StepID = utils.ToPtr(step.ID)
	}
	return log
}

// NewClickLog records a verified click. Attribution comes from the token.
func NewClickLog(customer *Customer, programID, stepID string, at time.Time) *EmailLog {
	log := &EmailLog{
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		EmailType:  enum.EmailTypeReview,
		Status:     enum.EmailLogStatusClicked,
		CreatedAt:  at,
	}
	if stepID != "" {
		log.EmailType = enum.EmailTypeRetention
		log.StepID = utils.ToPtr(stepID)
		if programID != "" {
			log.ProgramID = utils.ToPtr(programID)
		}
	}
	return log
}
