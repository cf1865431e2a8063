package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type emailTemplateRepository struct {
	db *gorm.DB
}

func NewEmailTemplateRepository(db *gorm.DB) interfaces.TemplateRepository {
	return &emailTemplateRepository{db: db}
}

func (r *emailTemplateRepository) first(ctx context.Context, span opentracing.Span, query *gorm.DB) (*models.EmailTemplate, error) {
	var result models.EmailTemplate
	err := query.WithContext(ctx).
		Order("updated_at DESC, id ASC").
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

func (r *emailTemplateRepository) GetByID(ctx context.Context, tenantID, id string) (*models.EmailTemplate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailTemplateRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, id)

	return r.first(ctx, span, r.db.Where("tenant_id = ? AND id = ?", tenantID, id))
}

// GetByType returns the tenant's global template for the type, ignoring step templates
func (r *emailTemplateRepository) GetByType(ctx context.Context, tenantID string, emailType enum.EmailType) (*models.EmailTemplate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailTemplateRepository.GetByType")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("type", emailType)

	return r.first(ctx, span, r.db.Where("tenant_id = ? AND type = ? AND step_id IS NULL", tenantID, emailType))
}

func (r *emailTemplateRepository) GetByStep(ctx context.Context, tenantID, stepID string) (*models.EmailTemplate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailTemplateRepository.GetByStep")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("stepId", stepID)

	return r.first(ctx, span, r.db.Where("tenant_id = ? AND step_id = ?", tenantID, stepID))
}

func (r *emailTemplateRepository) Save(ctx context.Context, template *models.EmailTemplate) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailTemplateRepository.Save")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if template == nil || template.TenantID == "" || !template.Type.IsValid() {
		return ErrInvalidInput
	}

	template.UpdatedAt = utils.Now()
	var err error
	if template.ID == "" {
		err = r.db.WithContext(ctx).Create(template).Error
	} else {
		err = r.db.WithContext(ctx).Save(template).Error
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, template.ID)
	return nil
}
