package tenant

import (
	"context"
	"net/url"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const (
	DefaultReviewDelayDays = 1
	MaxReviewDelayDays     = 365
)

type CreateInput struct {
	BusinessName            string `json:"businessName" validate:"required,max=255"`
	ReviewLink              string `json:"reviewLink" validate:"max=2048"`
	EnableGlobalReviewEmail *bool  `json:"enableGlobalReviewEmail"`
	DefaultReviewDelayDays  *int   `json:"defaultReviewDelayDays"`
}

type SettingsInput struct {
	BusinessName            *string `json:"businessName"`
	ReviewLink              *string `json:"reviewLink"`
	EnableGlobalReviewEmail *bool   `json:"enableGlobalReviewEmail"`
	DefaultReviewDelayDays  *int    `json:"defaultReviewDelayDays"`
}

type TemplateInput struct {
	Subject    string `json:"subject" validate:"max=1000"`
	Heading    string `json:"heading" validate:"max=1000"`
	Body       string `json:"body"`
	ButtonText string `json:"buttonText" validate:"max=255"`
	ButtonURL  string `json:"buttonUrl" validate:"max=2048"`
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Tenant, error)
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)
	UpdateSettings(ctx context.Context, tenantID string, input SettingsInput) (*models.Tenant, error)
	Delete(ctx context.Context, tenantID string) error
	// SaveTemplate stores the tenant's template for a global email type, or for
	// one program step when stepID is set.
	SaveTemplate(ctx context.Context, tenantID string, emailType enum.EmailType, programID, stepID string, input TemplateInput) (*models.EmailTemplate, error)
}

type tenantService struct {
	repos *repository.Repositories
}

func NewTenantService(repos *repository.Repositories) Service {
	return &tenantService{repos: repos}
}

func validLink(link string) error {
	if link == "" {
		return nil
	}
	parsed, err := url.ParseRequestURI(link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.Wrapf(reviewloop_errors.ErrInvalidInput, "%q is not an http(s) url", link)
	}
	return nil
}

func validDelay(days int) error {
	if days < 0 || days > MaxReviewDelayDays {
		return errors.Wrapf(reviewloop_errors.ErrInvalidInput, "review delay must be between 0 and %d days", MaxReviewDelayDays)
	}
	return nil
}

func (s *tenantService) Create(ctx context.Context, input CreateInput) (*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantService.Create")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
	}
	input.ReviewLink = strings.TrimSpace(input.ReviewLink)
	if err := validLink(input.ReviewLink); err != nil {
		return nil, err
	}
	delay := utils.GetOrDefault(input.DefaultReviewDelayDays, DefaultReviewDelayDays)
	if err := validDelay(delay); err != nil {
		return nil, err
	}

	tenant := &models.Tenant{
		BusinessName:            strings.TrimSpace(input.BusinessName),
		ReviewLink:              input.ReviewLink,
		EnableGlobalReviewEmail: utils.GetOrDefault(input.EnableGlobalReviewEmail, true),
		DefaultReviewDelayDays:  delay,
	}
	if err := s.repos.TenantRepository.Create(ctx, tenant); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagEntity(span, tenant.ID)
	return tenant, nil
}

func (s *tenantService) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.repos.TenantRepository.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, reviewloop_errors.ErrTenantNotFound
	}
	return tenant, nil
}

func (s *tenantService) UpdateSettings(ctx context.Context, tenantID string, input SettingsInput) (*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantService.UpdateSettings")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if input.BusinessName != nil && strings.TrimSpace(*input.BusinessName) == "" {
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidInput, "business name cannot be empty")
	}
	if input.ReviewLink != nil {
		if err := validLink(strings.TrimSpace(*input.ReviewLink)); err != nil {
			return nil, err
		}
	}
	if input.DefaultReviewDelayDays != nil {
		if err := validDelay(*input.DefaultReviewDelayDays); err != nil {
			return nil, err
		}
	}

	err := s.repos.TenantRepository.UpdateSettings(ctx, tenantID, interfaces.TenantSettings{
		BusinessName:            input.BusinessName,
		ReviewLink:              input.ReviewLink,
		EnableGlobalReviewEmail: input.EnableGlobalReviewEmail,
		DefaultReviewDelayDays:  input.DefaultReviewDelayDays,
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reviewloop_errors.ErrTenantNotFound
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return s.Get(ctx, tenantID)
}

func (s *tenantService) Delete(ctx context.Context, tenantID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if _, err := s.Get(ctx, tenantID); err != nil {
		return err
	}
	return s.repos.TenantRepository.Delete(ctx, tenantID)
}

func (s *tenantService) SaveTemplate(ctx context.Context, tenantID string, emailType enum.EmailType, programID, stepID string, input TemplateInput) (*models.EmailTemplate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TenantService.SaveTemplate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if !emailType.IsValid() {
		return nil, errors.Wrapf(reviewloop_errors.ErrInvalidInput, "unknown email type %q", emailType)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
	}
	if err := validLink(strings.TrimSpace(input.ButtonURL)); err != nil {
		return nil, err
	}

	if stepID != "" {
		if err := s.requireStep(ctx, tenantID, programID, stepID); err != nil {
			return nil, err
		}
	}

	var existing *models.EmailTemplate
	var err error
	if stepID != "" {
		existing, err = s.repos.EmailTemplateRepository.GetByStep(ctx, tenantID, stepID)
	} else {
		existing, err = s.repos.EmailTemplateRepository.GetByType(ctx, tenantID, emailType)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	template := &models.EmailTemplate{TenantID: tenantID, Type: emailType}
	if existing != nil {
		template = existing
	}
	if stepID != "" {
		template.StepID = utils.ToPtr(stepID)
	}
	template.Subject = input.Subject
	template.Heading = input.Heading
	template.Body = input.Body
	template.ButtonText = input.ButtonText
	template.ButtonURL = strings.TrimSpace(input.ButtonURL)

	if err := s.repos.EmailTemplateRepository.Save(ctx, template); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return template, nil
}

func (s *tenantService) requireStep(ctx context.Context, tenantID, programID, stepID string) error {
	program, err := s.repos.ProgramRepository.GetByID(ctx, tenantID, programID)
	if err != nil {
		return err
	}
	if program != nil {
		for _, step := range program.Steps {
			if step.ID == stepID {
				return nil
			}
		}
	}
	return errors.Wrap(reviewloop_errors.ErrNotFound, "program step")
}
