package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type mailConnectionRepository struct {
	db *gorm.DB
}

func NewMailConnectionRepository(db *gorm.DB) interfaces.MailConnectionRepository {
	return &mailConnectionRepository{db: db}
}

func (r *mailConnectionRepository) GetByTenant(ctx context.Context, tenantID string) (*models.MailConnection, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailConnectionRepository.GetByTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var result models.MailConnection
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
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

// Upsert replaces the tenant's connected identity; a tenant has at most one
func (r *mailConnectionRepository) Upsert(ctx context.Context, connection *models.MailConnection) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailConnectionRepository.Upsert")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if connection == nil || connection.TenantID == "" || connection.EmailAddress == "" {
		return ErrInvalidInput
	}
	tracing.TagTenant(span, connection.TenantID)

	connection.UpdatedAt = utils.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider",
				"email_address",
				"display_name",
				"smtp_server",
				"smtp_port",
				"access_token",
				"refresh_token",
				"token_expiry",
				"updated_at",
			}),
		}).
		Create(connection).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *mailConnectionRepository) UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiry *time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailConnectionRepository.UpdateTokens")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	err := r.db.WithContext(ctx).
		Model(&models.MailConnection{}).
		Where("tenant_id = ?", tenantID).
		UpdateColumns(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_expiry":  expiry,
			"updated_at":    utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *mailConnectionRepository) Delete(ctx context.Context, tenantID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailConnectionRepository.Delete")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&models.MailConnection{}).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
