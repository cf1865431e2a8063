package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/utils"
)

// EmailTemplate belongs either to a global email type of the tenant or to a
// single program step (StepID set).
type EmailTemplate struct {
	ID         string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID   string         `gorm:"column:tenant_id;type:varchar(50);not null;index" json:"tenantId"`
	Type       enum.EmailType `gorm:"column:type;type:varchar(20);not null;index" json:"type"`
	StepID     *string        `gorm:"column:step_id;type:varchar(50);index" json:"stepId,omitempty"`
	Subject    string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Heading    string         `gorm:"column:heading;type:varchar(1000)" json:"heading"`
	Body       string         `gorm:"column:body;type:text" json:"body"`
	ButtonText string         `gorm:"column:button_text;type:varchar(255)" json:"buttonText"`
	ButtonURL  string         `gorm:"column:button_url;type:varchar(2048)" json:"buttonUrl"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}

func (m *EmailTemplate) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("tmpl", 16)
	}
	return nil
}
