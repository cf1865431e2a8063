package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
)

type TemplateRepository struct {
	mock.Mock
}

func (m *TemplateRepository) GetByID(ctx context.Context, tenantID, id string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, tenantID, id)
	template, _ := args.Get(0).(*models.EmailTemplate)
	return template, args.Error(1)
}

func (m *TemplateRepository) GetByType(ctx context.Context, tenantID string, emailType enum.EmailType) (*models.EmailTemplate, error) {
	args := m.Called(ctx, tenantID, emailType)
	template, _ := args.Get(0).(*models.EmailTemplate)
	return template, args.Error(1)
}

func (m *TemplateRepository) GetByStep(ctx context.Context, tenantID, stepID string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, tenantID, stepID)
	template, _ := args.Get(0).(*models.EmailTemplate)
	return template, args.Error(1)
}

func (m *TemplateRepository) Save(ctx context.Context, template *models.EmailTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}
