package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type Customer struct {
	ID            string              `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID      string              `gorm:"column:tenant_id;type:varchar(50);not null;uniqueIndex:idx_customers_tenant_email,priority:1" json:"tenantId"`
	Email         string              `gorm:"column:email;type:varchar(255);not null;uniqueIndex:idx_customers_tenant_email,priority:2" json:"email"`
	Name          string              `gorm:"column:name;type:varchar(255)" json:"name"`
	LastVisitDate time.Time           `gorm:"column:last_visit_date;type:timestamp;not null" json:"lastVisitDate"`
	ServiceTag    string              `gorm:"column:service_tag;type:varchar(100);index" json:"serviceTag"`
	Status        enum.CustomerStatus `gorm:"column:status;type:varchar(20);not null;default:pending" json:"status"`
	CreatedAt     time.Time           `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Customer) TableName() string {
	return "customers"
}

func (m *Customer) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("cust", 16)
	}
	if m.Status == "" {
		m.Status = enum.CustomerStatusPending
	}
	return nil
}

// DisplayName is substituted for the {{name}} placeholder
func (m *Customer) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return "there"
}
