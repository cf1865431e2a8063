package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/utils"
)

type Tenant struct {
	ID                      string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	BusinessName            string    `gorm:"column:business_name;type:varchar(255);not null" json:"businessName"`
	ReviewLink              string    `gorm:"column:review_link;type:varchar(2048)" json:"reviewLink"`
	EnableGlobalReviewEmail bool      `gorm:"column:enable_global_review_email;not null" json:"enableGlobalReviewEmail"`
	DefaultReviewDelayDays  int       `gorm:"column:default_review_delay_days;not null" json:"defaultReviewDelayDays"`
	CreatedAt               time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt               time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`

	MailConnection *MailConnection `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}

func (m *Tenant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("tnt", 16)
	}
	return nil
}
