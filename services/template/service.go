package template

import (
	"context"
	"sort"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
)

// Template is the renderable content of an email
type Template struct {
	Subject    string
	Heading    string
	Body       string
	ButtonText string
	ButtonURL  string
	// StepScoped is set when the template belongs to or is linked from a step
	StepScoped bool
}

func fromModel(m *models.EmailTemplate) Template {
	return Template{
		Subject:    m.Subject,
		Heading:    m.Heading,
		Body:       m.Body,
		ButtonText: m.ButtonText,
		ButtonURL:  m.ButtonURL,
	}
}

// withDefaults fills the fields a tenant left empty
func (t Template) withDefaults(fallback Template) Template {
	if t.Subject == "" {
		t.Subject = fallback.Subject
	}
	if t.Heading == "" {
		t.Heading = fallback.Heading
	}
	if t.Body == "" {
		t.Body = fallback.Body
	}
	if t.ButtonText == "" {
		t.ButtonText = fallback.ButtonText
	}
	return t
}

type Service interface {
	Resolve(ctx context.Context, tenantID string, emailType enum.EmailType) Template
	ResolveForStep(ctx context.Context, tenantID string, step *models.ProgramStep) Template
}

type templateService struct {
	log  logger.Logger
	repo interfaces.TemplateRepository
}

func NewTemplateService(log logger.Logger, repo interfaces.TemplateRepository) Service {
	return &templateService{log: log, repo: repo}
}

// Resolve never fails; lookup errors fall back to the built-in template
func (s *templateService) Resolve(ctx context.Context, tenantID string, emailType enum.EmailType) Template {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TemplateService.Resolve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("type", emailType)

	fallback := Default(emailType)

	stored, err := s.repo.GetByType(ctx, tenantID, emailType)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("template lookup failed for tenant %s, using default: %v", tenantID, err)
		return fallback
	}
	if stored == nil {
		span.LogKV("result", reviewloop_errors.ErrTemplateMissing.Error())
		return fallback
	}
	return fromModel(stored).withDefaults(fallback)
}

// ResolveForStep prefers the step's own template, then the template linked
// from the step, then the tenant's retention template.
func (s *templateService) ResolveForStep(ctx context.Context, tenantID string, step *models.ProgramStep) Template {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TemplateService.ResolveForStep")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if step == nil {
		return s.Resolve(ctx, tenantID, enum.EmailTypeRetention)
	}
	tracing.TagEntity(span, step.ID)

	fallback := Default(enum.EmailTypeRetention)

	stored, err := s.repo.GetByStep(ctx, tenantID, step.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("step template lookup failed for step %s: %v", step.ID, err)
	}
	if stored == nil && err == nil && step.TemplateID != nil && *step.TemplateID != "" {
		stored, err = s.repo.GetByID(ctx, tenantID, *step.TemplateID)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Warnf("linked template %s lookup failed: %v", *step.TemplateID, err)
		}
	}
	if stored != nil {
		resolved := fromModel(stored).withDefaults(fallback)
		resolved.StepScoped = true
		return resolved
	}

	return s.Resolve(ctx, tenantID, enum.EmailTypeRetention)
}

// Compile replaces every {{key}} occurrence in subject, heading and body in a
// single pass, so substituted values are never expanded again. Button fields
// and unknown placeholders are left as they are.
func Compile(t Template, vars map[string]string) Template {
	if len(vars) == 0 {
		return t
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", vars[key])
	}
	replacer := strings.NewReplacer(pairs...)

	t.Subject = replacer.Replace(t.Subject)
	t.Heading = replacer.Replace(t.Heading)
	t.Body = replacer.Replace(t.Body)
	return t
}
