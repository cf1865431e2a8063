package campaign

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

type ProgramInput struct {
	Name       string      `json:"name" validate:"required,max=255"`
	ServiceTag string      `json:"serviceTag" validate:"required,max=100"`
	Enabled    *bool       `json:"enabled"`
	Steps      []StepInput `json:"steps" validate:"dive"`
}

type StepInput struct {
	StepOrder    int     `json:"stepOrder" validate:"gte=0"`
	OffsetDays   int     `json:"offsetDays" validate:"gte=0,lte=3650"`
	CooldownDays int     `json:"cooldownDays" validate:"gte=0,lte=3650"`
	Enabled      *bool   `json:"enabled"`
	TemplateID   *string `json:"templateId"`
}

func (in StepInput) toModel(programID string) models.ProgramStep {
	return models.ProgramStep{
		ProgramID:    programID,
		StepOrder:    in.StepOrder,
		OffsetDays:   in.OffsetDays,
		CooldownDays: in.CooldownDays,
		Enabled:      utils.GetOrDefault(in.Enabled, true),
		TemplateID:   in.TemplateID,
	}
}

type Service interface {
	CreateProgram(ctx context.Context, tenantID string, input ProgramInput) (*models.RetentionProgram, error)
	UpdateProgram(ctx context.Context, tenantID, programID string, input ProgramInput) (*models.RetentionProgram, error)
	GetProgram(ctx context.Context, tenantID, programID string) (*models.RetentionProgram, error)
	ListPrograms(ctx context.Context, tenantID string) ([]*models.RetentionProgram, error)
	SetProgramEnabled(ctx context.Context, tenantID, programID string, enabled bool) error

	AddStep(ctx context.Context, tenantID, programID string, input StepInput) (*models.ProgramStep, error)
	UpdateStep(ctx context.Context, tenantID, programID, stepID string, input StepInput) (*models.ProgramStep, error)
	SetStepEnabled(ctx context.Context, tenantID, programID, stepID string, enabled bool) error
	DeleteStep(ctx context.Context, tenantID, programID, stepID string) error
}

type campaignService struct {
	log  logger.Logger
	repo interfaces.ProgramRepository
}

func NewCampaignService(log logger.Logger, repo interfaces.ProgramRepository) Service {
	return &campaignService{log: log, repo: repo}
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reviewloop_errors.ErrNotFound
	}
	return err
}

func normalizeInput(input *ProgramInput) error {
	if err := utils.ValidateStruct(input); err != nil {
		return errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
	}
	input.ServiceTag = NormalizeServiceTag(input.ServiceTag)
	if input.ServiceTag == "" {
		return reviewloop_errors.ErrEmptyServiceTag
	}
	return nil
}

func (s *campaignService) CreateProgram(ctx context.Context, tenantID string, input ProgramInput) (*models.RetentionProgram, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.CreateProgram")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if err := normalizeInput(&input); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	program := &models.RetentionProgram{
		TenantID:   tenantID,
		ServiceTag: input.ServiceTag,
		Name:       input.Name,
		Enabled:    utils.GetOrDefault(input.Enabled, true),
	}
	for _, step := range input.Steps {
		program.Steps = append(program.Steps, step.toModel(""))
	}

	if err := s.repo.Create(ctx, program); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.log.Infof("created retention program %s for tenant %s with tag %s", program.ID, tenantID, program.ServiceTag)
	return program, nil
}

// UpdateProgram changes name, tag and enabled flag. Steps are managed separately.
func (s *campaignService) UpdateProgram(ctx context.Context, tenantID, programID string, input ProgramInput) (*models.RetentionProgram, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.UpdateProgram")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, programID)

	if err := normalizeInput(&input); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	existing, err := s.GetProgram(ctx, tenantID, programID)
	if err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.ServiceTag = input.ServiceTag
	existing.Enabled = utils.GetOrDefault(input.Enabled, existing.Enabled)

	if err := s.repo.Update(ctx, existing); err != nil {
		err = translateNotFound(err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	return existing, nil
}

func (s *campaignService) GetProgram(ctx context.Context, tenantID, programID string) (*models.RetentionProgram, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.GetProgram")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, programID)

	program, err := s.repo.GetByID(ctx, tenantID, programID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if program == nil {
		return nil, reviewloop_errors.ErrNotFound
	}
	return program, nil
}

func (s *campaignService) ListPrograms(ctx context.Context, tenantID string) ([]*models.RetentionProgram, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.ListPrograms")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	programs, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return programs, nil
}

func (s *campaignService) SetProgramEnabled(ctx context.Context, tenantID, programID string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.SetProgramEnabled")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, programID)

	if err := s.repo.SetEnabled(ctx, tenantID, programID, enabled); err != nil {
		err = translateNotFound(err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *campaignService) AddStep(ctx context.Context, tenantID, programID string, input StepInput) (*models.ProgramStep, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.AddStep")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, programID)

	if err := utils.ValidateStruct(input); err != nil {
		err = errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
		tracing.TraceErr(span, err)
		return nil, err
	}
	if _, err := s.GetProgram(ctx, tenantID, programID); err != nil {
		return nil, err
	}

	step := input.toModel(programID)
	if err := s.repo.AddStep(ctx, &step); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &step, nil
}

func (s *campaignService) UpdateStep(ctx context.Context, tenantID, programID, stepID string, input StepInput) (*models.ProgramStep, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.UpdateStep")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, stepID)

	if err := utils.ValidateStruct(input); err != nil {
		err = errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
		tracing.TraceErr(span, err)
		return nil, err
	}
	program, err := s.GetProgram(ctx, tenantID, programID)
	if err != nil {
		return nil, err
	}

	var existing *models.ProgramStep
	for i := range program.Steps {
		if program.Steps[i].ID == stepID {
			existing = &program.Steps[i]
			break
		}
	}
	if existing == nil {
		return nil, reviewloop_errors.ErrNotFound
	}

	step := input.toModel(programID)
	step.ID = stepID
	step.CreatedAt = existing.CreatedAt
	if input.Enabled == nil {
		step.Enabled = existing.Enabled
	}
	if err := s.repo.UpdateStep(ctx, &step); err != nil {
		err = translateNotFound(err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &step, nil
}

func (s *campaignService) SetStepEnabled(ctx context.Context, tenantID, programID, stepID string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.SetStepEnabled")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, stepID)

	if _, err := s.GetProgram(ctx, tenantID, programID); err != nil {
		return err
	}
	if err := s.repo.SetStepEnabled(ctx, programID, stepID, enabled); err != nil {
		err = translateNotFound(err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *campaignService) DeleteStep(ctx context.Context, tenantID, programID, stepID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CampaignService.DeleteStep")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, stepID)

	if _, err := s.GetProgram(ctx, tenantID, programID); err != nil {
		return err
	}
	if err := s.repo.DeleteStep(ctx, programID, stepID); err != nil {
		err = translateNotFound(err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
