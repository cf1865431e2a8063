package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type programRepository struct {
	db *gorm.DB
}

func NewProgramRepository(db *gorm.DB) interfaces.ProgramRepository {
	return &programRepository{db: db}
}

// translateDuplicate turns the (tenant_id, service_tag) unique violation into a domain error
func translateDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return reviewloop_errors.ErrDuplicateServiceTag
	}
	return err
}

func (r *programRepository) Create(ctx context.Context, program *models.RetentionProgram) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "program", program)

	if program == nil || program.TenantID == "" || program.ServiceTag == "" {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(program).Error
	if err != nil {
		err = translateDuplicate(err)
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, program.ID)
	return nil
}

func (r *programRepository) Update(ctx context.Context, program *models.RetentionProgram) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.Update")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if program == nil || program.ID == "" || program.ServiceTag == "" {
		return ErrInvalidInput
	}
	tracing.TagEntity(span, program.ID)

	result := r.db.WithContext(ctx).
		Model(&models.RetentionProgram{}).
		Where("tenant_id = ? AND id = ?", program.TenantID, program.ID).
		UpdateColumns(map[string]interface{}{
			"name":        program.Name,
			"service_tag": program.ServiceTag,
			"enabled":     program.Enabled,
			"updated_at":  utils.Now(),
		})
	if result.Error != nil {
		err := translateDuplicate(result.Error)
		tracing.TraceErr(span, err)
		return err
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *programRepository) GetByID(ctx context.Context, tenantID, id string) (*models.RetentionProgram, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, id)

	var result models.RetentionProgram
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC, offset_days ASC, id ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&result).
		Error

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.LogFields(tracingLog.Bool("result.found", false))
		return nil, nil
	}

	span.LogFields(tracingLog.Bool("result.found", true))
	return &result, nil
}

func (r *programRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.RetentionProgram, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.ListByTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var result []*models.RetentionProgram
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC, offset_days ASC, id ASC")
		}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&result).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogFields(tracingLog.Int("result.count", len(result)))
	return result, nil
}

func (r *programRepository) SetEnabled(ctx context.Context, tenantID, id string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.SetEnabled")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)
	span.LogKV("enabled", enabled)

	result := r.db.WithContext(ctx).
		Model(&models.RetentionProgram{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		UpdateColumns(map[string]interface{}{
			"enabled":    enabled,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *programRepository) AddStep(ctx context.Context, step *models.ProgramStep) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.AddStep")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "step", step)

	if step == nil || step.ProgramID == "" {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(step).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, step.ID)
	return nil
}

func (r *programRepository) UpdateStep(ctx context.Context, step *models.ProgramStep) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.UpdateStep")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if step == nil || step.ID == "" || step.ProgramID == "" {
		return ErrInvalidInput
	}
	tracing.TagEntity(span, step.ID)

	result := r.db.WithContext(ctx).
		Model(&models.ProgramStep{}).
		Where("program_id = ? AND id = ?", step.ProgramID, step.ID).
		UpdateColumns(map[string]interface{}{
			"step_order":    step.StepOrder,
			"offset_days":   step.OffsetDays,
			"cooldown_days": step.CooldownDays,
			"enabled":       step.Enabled,
			"template_id":   step.TemplateID,
			"updated_at":    utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *programRepository) SetStepEnabled(ctx context.Context, programID, stepID string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.SetStepEnabled")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, stepID)
	span.LogKV("enabled", enabled)

	result := r.db.WithContext(ctx).
		Model(&models.ProgramStep{}).
		Where("program_id = ? AND id = ?", programID, stepID).
		UpdateColumns(map[string]interface{}{
			"enabled":    enabled,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteStep removes the step definition; email log rows referencing it are kept
func (r *programRepository) DeleteStep(ctx context.Context, programID, stepID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProgramRepository.DeleteStep")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, stepID)

	result := r.db.WithContext(ctx).
		Where("program_id = ? AND id = ?", programID, stepID).
		Delete(&models.ProgramStep{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
