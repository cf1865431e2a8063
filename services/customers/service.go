package customers

import (
	"context"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/interfaces"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
	"github.com/reviewloop/reviewloop/services/campaign"
)

type CustomerInput struct {
	Email         string    `json:"email" validate:"required,max=255"`
	Name          string    `json:"name" validate:"max=255"`
	LastVisitDate time.Time `json:"lastVisitDate"`
	ServiceTag    string    `json:"serviceTag" validate:"max=100"`
}

type Rejection struct {
	Index  int    `json:"index"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type SyncResult struct {
	Upserted  int                `json:"upserted"`
	Rejected  []Rejection        `json:"rejected"`
	Customers []*models.Customer `json:"customers,omitempty"`
}

type Service interface {
	Upsert(ctx context.Context, tenantID string, input CustomerInput) (*models.Customer, error)
	// Sync upserts every valid row and reports the rejected ones
	Sync(ctx context.Context, tenantID string, inputs []CustomerInput) (*SyncResult, error)
	List(ctx context.Context, tenantID string) ([]*models.Customer, error)
}

type customerService struct {
	log     logger.Logger
	tenants interfaces.TenantRepository
	repo    interfaces.CustomerRepository
}

func NewCustomerService(log logger.Logger, tenants interfaces.TenantRepository, repo interfaces.CustomerRepository) Service {
	return &customerService{log: log, tenants: tenants, repo: repo}
}

func toModel(tenantID string, input CustomerInput) (*models.Customer, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
	}
	if input.LastVisitDate.IsZero() {
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidInput, "lastvisitdate is required")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !mailvalidate.ValidateEmailSyntax(email).IsValid {
		return nil, errors.Wrapf(reviewloop_errors.ErrInvalidEmailAddress, "%q", input.Email)
	}

	return &models.Customer{
		TenantID:      tenantID,
		Email:         email,
		Name:          strings.TrimSpace(input.Name),
		LastVisitDate: input.LastVisitDate.UTC(),
		ServiceTag:    campaign.NormalizeServiceTag(input.ServiceTag),
	}, nil
}

func (s *customerService) requireTenant(ctx context.Context, tenantID string) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return reviewloop_errors.ErrTenantNotFound
	}
	return nil
}

func (s *customerService) Upsert(ctx context.Context, tenantID string, input CustomerInput) (*models.Customer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerService.Upsert")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if err := s.requireTenant(ctx, tenantID); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	customer, err := toModel(tenantID, input)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := s.repo.Upsert(ctx, customer); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagEntity(span, customer.ID)
	return customer, nil
}

func (s *customerService) Sync(ctx context.Context, tenantID string, inputs []CustomerInput) (*SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerService.Sync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogFields(tracingLog.Int("input.count", len(inputs)))

	if err := s.requireTenant(ctx, tenantID); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := &SyncResult{Rejected: []Rejection{}}
	for i, input := range inputs {
		customer, err := toModel(tenantID, input)
		if err == nil {
			err = s.repo.Upsert(ctx, customer)
		}
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{Index: i, Email: input.Email, Reason: err.Error()})
			continue
		}
		result.Upserted++
		result.Customers = append(result.Customers, customer)
	}

	span.LogFields(tracingLog.Int("result.upserted", result.Upserted), tracingLog.Int("result.rejected", len(result.Rejected)))
	if len(result.Rejected) > 0 {
		s.log.Infof("customer sync for tenant %s rejected %d of %d rows", tenantID, len(result.Rejected), len(inputs))
	}
	return result, nil
}

func (s *customerService) List(ctx context.Context, tenantID string) ([]*models.Customer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CustomerService.List")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	return s.repo.ListByTenant(ctx, tenantID)
}
