package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
)

type Repositories struct {
	db *gorm.DB

	TenantRepository         interfaces.TenantRepository
	MailConnectionRepository interfaces.MailConnectionRepository
	CustomerRepository       interfaces.CustomerRepository
	ProgramRepository        interfaces.ProgramRepository
	EmailTemplateRepository  interfaces.TemplateRepository
	EmailLogRepository       interfaces.EmailLogRepository
	ReviewSnapshotRepository interfaces.ReviewSnapshotRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:                       db,
		TenantRepository:         NewTenantRepository(db),
		MailConnectionRepository: NewMailConnectionRepository(db),
		CustomerRepository:       NewCustomerRepository(db),
		ProgramRepository:        NewProgramRepository(db),
		EmailTemplateRepository:  NewEmailTemplateRepository(db),
		EmailLogRepository:       NewEmailLogRepository(db),
		ReviewSnapshotRepository: NewReviewSnapshotRepository(db),
	}
}

// Transaction runs fn in a database transaction. Repository methods that take
// a tx argument must be handed the tx they receive here.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Repositories.Transaction")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	err := r.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.MailConnection{},
		&models.Customer{},
		&models.RetentionProgram{},
		&models.ProgramStep{},
		&models.EmailTemplate{},
		&models.EmailLog{},
		&models.ReviewSnapshot{},
	)
}
