package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) interfaces.CustomerRepository {
	return &customerRepository{db: db}
}

// Upsert is keyed on (tenant_id, email). Status is never overwritten by a sync.
func (r *customerRepository) Upsert(ctx context.Context, customer *models.Customer) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerRepository.Upsert")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if customer == nil || customer.TenantID == "" || customer.Email == "" {
		return ErrInvalidInput
	}
	tracing.TagTenant(span, customer.TenantID)

	customer.UpdatedAt = utils.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_visit_date", "service_tag", "updated_at"}),
		}).
		Create(customer).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	// on conflict the generated id was discarded; reload the stored row
	var stored models.Customer
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", customer.TenantID, customer.Email).
		First(&stored).
		Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	*customer = stored
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var result models.Customer
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

// ListByTenant returns customers in insertion order
func (r *customerRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Customer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerRepository.ListByTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var result []*models.Customer
	err := r.db.WithContext(ctx).
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

func (r *customerRepository) AdvanceStatus(ctx context.Context, tx *gorm.DB, id string, status enum.CustomerStatus) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerRepository.AdvanceStatus")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)
	span.LogKV("status", status)

	from := enum.StatusesBefore(status)
	if len(from) == 0 {
		return false, nil
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND status IN ?", id, from).
		UpdateColumns(map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}

	span.LogFields(tracingLog.Bool("result.updated", result.RowsAffected > 0))
	return result.RowsAffected > 0, nil
}
