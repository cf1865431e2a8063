package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/utils"
)

type ReviewSnapshot struct {
	ID          string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID    string    `gorm:"column:tenant_id;type:varchar(50);not null;index" json:"tenantId"`
	SourceURL   string    `gorm:"column:source_url;type:varchar(2048)" json:"sourceUrl"`
	ReviewCount int       `gorm:"column:review_count" json:"reviewCount"`
	Rating      float64   `gorm:"column:rating" json:"rating"`
	TakenAt     time.Time `gorm:"column:taken_at;type:timestamp;not null;index" json:"takenAt"`
	// ArchiveKey locates the fetched page in object storage, when archiving is on
	ArchiveKey string `gorm:"column:archive_key;type:varchar(255)" json:"archiveKey,omitempty"`
}

func (ReviewSnapshot) TableName() string {
	return "review_snapshots"
}

func (m *ReviewSnapshot) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("rsnp", 16)
	}
	return nil
}
