package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) interfaces.TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if tenant == nil || tenant.BusinessName == "" {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(tenant).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, tenant.ID)
	return nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var result models.Tenant
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
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

func (r *tenantRepository) List(ctx context.Context) ([]*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var result []*models.Tenant
	err := r.db.WithContext(ctx).
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

func (r *tenantRepository) UpdateSettings(ctx context.Context, id string, settings interfaces.TenantSettings) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantRepository.UpdateSettings")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	updates := map[string]interface{}{
		"updated_at": utils.Now(),
	}
	if settings.BusinessName != nil {
		updates["business_name"] = *settings.BusinessName
	}
	if settings.ReviewLink != nil {
		updates["review_link"] = *settings.ReviewLink
	}
	if settings.EnableGlobalReviewEmail != nil {
		updates["enable_global_review_email"] = *settings.EnableGlobalReviewEmail
	}
	if settings.DefaultReviewDelayDays != nil {
		if *settings.DefaultReviewDelayDays < 0 {
			return ErrInvalidInput
		}
		updates["default_review_delay_days"] = *settings.DefaultReviewDelayDays
	}

	result := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the tenant together with everything it owns
func (r *tenantRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantRepository.Delete")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		programIDs := tx.Model(&models.RetentionProgram{}).Select("id").Where("tenant_id = ?", id)
		if err := tx.Where("program_id IN (?)", programIDs).Delete(&models.ProgramStep{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{
			&models.EmailLog{},
			&models.EmailTemplate{},
			&models.RetentionProgram{},
			&models.Customer{},
			&models.MailConnection{},
			&models.ReviewSnapshot{},
		} {
			if err := tx.Where("tenant_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.Tenant{}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "delete tenant")
	}
	return nil
}
