package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
)

type emailLogRepository struct {
	db *gorm.DB
}

func NewEmailLogRepository(db *gorm.DB) interfaces.EmailLogRepository {
	return &emailLogRepository{db: db}
}

// Claim relies on the unique index on dedupe_key; concurrent claims of the
// same key serialize in the database and only one of them inserts.
func (r *emailLogRepository) Claim(ctx context.Context, tx *gorm.DB, log *models.EmailLog) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailLogRepository.Claim")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if log == nil || log.DedupeKey == nil || *log.DedupeKey == "" {
		return false, ErrInvalidInput
	}
	span.LogKV("dedupeKey", *log.DedupeKey)

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(log)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}

	claimed := result.RowsAffected == 1
	span.LogFields(tracingLog.Bool("result.claimed", claimed))
	return claimed, nil
}

func (r *emailLogRepository) Append(ctx context.Context, log *models.EmailLog) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailLogRepository.Append")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if log == nil || log.CustomerID == "" {
		return ErrInvalidInput
	}
	span.LogKV("status", log.Status, "emailType", log.EmailType)

	err := r.db.WithContext(ctx).Create(log).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailLogRepository) HasSent(ctx context.Context, dedupeKey string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailLogRepository.HasSent")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("dedupeKey", dedupeKey)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailLog{}).
		Where("dedupe_key = ?", dedupeKey).
		Count(&count).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return count > 0, nil
}

// ListSentByTenant returns committed sends, oldest first
func (r *emailLogRepository) ListSentByTenant(ctx context.Context, tenantID string) ([]*models.EmailLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailLogRepository.ListSentByTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var result []*models.EmailLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, enum.EmailLogStatusSent).
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

func (r *emailLogRepository) ListByCustomer(ctx context.Context, customerID string) ([]*models.EmailLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailLogRepository.ListByCustomer")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, customerID)

	var result []*models.EmailLog
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC, id ASC").
		Find(&result).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func (r *emailLogRepository) CountByTenant(ctx context.Context, tenantID string, since time.Time) ([]interfaces.EmailLogCount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailLogRepository.CountByTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var rows []struct {
		EmailType enum.EmailType
		Status    enum.EmailLogStatus
		ProgramID *string
		Count     int64
	}
	query := r.db.WithContext(ctx).
		Model(&models.EmailLog{}).
		Select("email_type, status, program_id, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.
		Group("email_type, status, program_id").
		Order("email_type, status").
		Scan(&rows).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := make([]interfaces.EmailLogCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, interfaces.EmailLogCount{
			EmailType: row.EmailType,
			Status:    row.Status,
			ProgramID: row.ProgramID,
			Count:     row.Count,
		})
	}
	return result, nil
}
