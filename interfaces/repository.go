package interfaces

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
)

type TenantSettings struct {
	BusinessName            *string
	ReviewLink              *string
	EnableGlobalReviewEmail *bool
	DefaultReviewDelayDays  *int
}

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	UpdateSettings(ctx context.Context, id string, settings TenantSettings) error
	Delete(ctx context.Context, id string) error
}

type MailConnectionRepository interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.MailConnection, error)
	Upsert(ctx context.Context, connection *models.MailConnection) error
	UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiry *time.Time) error
	Delete(ctx context.Context, tenantID string) error
}

type CustomerRepository interface {
	Upsert(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Customer, error)
	// AdvanceStatus moves the customer forward only; false when nothing changed
	AdvanceStatus(ctx context.Context, tx *gorm.DB, id string, status enum.CustomerStatus) (bool, error)
}

type ProgramRepository interface {
	Create(ctx context.Context, program *models.RetentionProgram) error
	Update(ctx context.Context, program *models.RetentionProgram) error
	GetByID(ctx context.Context, tenantID, id string) (*models.RetentionProgram, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.RetentionProgram, error)
	SetEnabled(ctx context.Context, tenantID, id string, enabled bool) error

	AddStep(ctx context.Context, step *models.ProgramStep) error
	UpdateStep(ctx context.Context, step *models.ProgramStep) error
	SetStepEnabled(ctx context.Context, programID, stepID string, enabled bool) error
	DeleteStep(ctx context.Context, programID, stepID string) error
}

type TemplateRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.EmailTemplate, error)
	GetByType(ctx context.Context, tenantID string, emailType enum.EmailType) (*models.EmailTemplate, error)
	GetByStep(ctx context.Context, tenantID, stepID string) (*models.EmailTemplate, error)
	Save(ctx context.Context, template *models.EmailTemplate) error
}

type EmailLogCount struct {
	EmailType enum.EmailType
	Status    enum.EmailLogStatus
	ProgramID *string
	Count     int64
}

type EmailLogRepository interface {
	// Claim inserts a row carrying a dedupe key; false when the key is taken
	Claim(ctx context.Context, tx *gorm.DB, log *models.EmailLog) (bool, error)
	Append(ctx context.Context, log *models.EmailLog) error
	HasSent(ctx context.Context, dedupeKey string) (bool, error)
	ListSentByTenant(ctx context.Context, tenantID string) ([]*models.EmailLog, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*models.EmailLog, error)
	CountByTenant(ctx context.Context, tenantID string, since time.Time) ([]EmailLogCount, error)
}

type ReviewSnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.ReviewSnapshot) error
	LatestByTenant(ctx context.Context, tenantID string) (*models.ReviewSnapshot, error)
}
