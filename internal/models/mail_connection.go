package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/utils"
)

// MailConnection is the tenant's connected sending identity. Tokens are
// stored encrypted.
type MailConnection struct {
	ID           string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID     string            `gorm:"column:tenant_id;type:varchar(50);uniqueIndex;not null" json:"tenantId"`
	Provider     enum.MailProvider `gorm:"column:provider;type:varchar(50);not null" json:"provider"`
	EmailAddress string            `gorm:"column:email_address;type:varchar(255);not null" json:"emailAddress"`
	DisplayName  string            `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	SmtpServer   string            `gorm:"column:smtp_server;type:varchar(255);not null" json:"smtpServer"`
	SmtpPort     int               `gorm:"column:smtp_port;not null" json:"smtpPort"`
	AccessToken  string            `gorm:"column:access_token;type:text" json:"-"`
	RefreshToken string            `gorm:"column:refresh_token;type:text" json:"-"`
	TokenExpiry  *time.Time        `gorm:"column:token_expiry;type:timestamp" json:"tokenExpiry"`
	CreatedAt    time.Time         `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (MailConnection) TableName() string {
	return "mail_connections"
}

func (m *MailConnection) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mcon", 16)
	}
	return nil
}
