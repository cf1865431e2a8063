package models

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/utils"
)

// RetentionProgram groups the win-back steps sent to customers carrying its
// service tag.
type RetentionProgram struct {
	ID         string        `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID   string        `gorm:"column:tenant_id;type:varchar(50);not null;uniqueIndex:idx_programs_tenant_tag,priority:1" json:"tenantId"`
	ServiceTag string        `gorm:"column:service_tag;type:varchar(100);not null;uniqueIndex:idx_programs_tenant_tag,priority:2" json:"serviceTag"`
	Name       string        `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Enabled    bool          `gorm:"column:enabled;not null" json:"enabled"`
	Steps      []ProgramStep `gorm:"foreignKey:ProgramID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	CreatedAt  time.Time     `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (RetentionProgram) TableName() string {
	return "retention_programs"
}

func (m *RetentionProgram) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("prog", 16)
	}
	return nil
}

// SchedulingOrder returns the enabled steps sorted by offset. step_order is
// display only and breaks ties.
func (m *RetentionProgram) SchedulingOrder() []ProgramStep {
	steps := make([]ProgramStep, 0, len(m.Steps))
	for _, step := range m.Steps {
		if step.Enabled {
			steps = append(steps, step)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].OffsetDays != steps[j].OffsetDays {
			return steps[i].OffsetDays < steps[j].OffsetDays
		}
		if steps[i].StepOrder != steps[j].StepOrder {
			return steps[i].StepOrder < steps[j].StepOrder
		}
		return steps[i].ID < steps[j].ID
	})
	return steps
}

// IsSchedulable is true for an enabled program with at least one enabled step
func (m *RetentionProgram) IsSchedulable() bool {
	if !m.Enabled {
		return false
	}
	for _, step := range m.Steps {
		if step.Enabled {
			return true
		}
	}
	return false
}

type ProgramStep struct {
	ID           string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	ProgramID    string    `gorm:"column:program_id;type:varchar(50);not null;index" json:"programId"`
	StepOrder    int       `gorm:"column:step_order;not null" json:"stepOrder"`
	OffsetDays   int       `gorm:"column:offset_days;not null" json:"offsetDays"`
	CooldownDays int       `gorm:"column:cooldown_days;not null" json:"cooldownDays"`
	Enabled      bool      `gorm:"column:enabled;not null" json:"enabled"`
	TemplateID   *string   `gorm:"column:template_id;type:varchar(50)" json:"templateId,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (ProgramStep) TableName() string {
	return "program_steps"
}

func (m *ProgramStep) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("step", 16)
	}
	return nil
}
