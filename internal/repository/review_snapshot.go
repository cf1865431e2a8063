package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
)

type reviewSnapshotRepository struct {
	db *gorm.DB
}

func NewReviewSnapshotRepository(db *gorm.DB) interfaces.ReviewSnapshotRepository {
	return &reviewSnapshotRepository{db: db}
}

func (r *reviewSnapshotRepository) Create(ctx context.Context, snapshot *models.ReviewSnapshot) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReviewSnapshotRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if snapshot == nil || snapshot.TenantID == "" {
		return ErrInvalidInput
	}
	tracing.TagTenant(span, snapshot.TenantID)

	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *reviewSnapshotRepository) LatestByTenant(ctx context.Context, tenantID string) (*models.ReviewSnapshot, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReviewSnapshotRepository.LatestByTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var result models.ReviewSnapshot
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("taken_at DESC").
		First(&result).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &result, nil
}
