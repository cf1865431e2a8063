package services

import (
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/utils"
	"github.com/reviewloop/reviewloop/services/analytics"
	"github.com/reviewloop/reviewloop/services/campaign"
	"github.com/reviewloop/reviewloop/services/click"
	"github.com/reviewloop/reviewloop/services/connection"
	"github.com/reviewloop/reviewloop/services/crypto"
	"github.com/reviewloop/reviewloop/services/customers"
	"github.com/reviewloop/reviewloop/services/dispatcher"
	"github.com/reviewloop/reviewloop/services/events"
	"github.com/reviewloop/reviewloop/services/mailer"
	"github.com/reviewloop/reviewloop/services/reviews"
	"github.com/reviewloop/reviewloop/services/scheduler"
	"github.com/reviewloop/reviewloop/services/storage"
	emailtemplate "github.com/reviewloop/reviewloop/services/template"
	"github.com/reviewloop/reviewloop/services/tenant"
	"github.com/reviewloop/reviewloop/services/token"
)

type Services struct {
	EventsPublisher   interfaces.EventsPublisher
	TokenCodec        interfaces.TokenCodec
	Mailer            interfaces.Mailer
	TemplateService   emailtemplate.Service
	CampaignService   campaign.Service
	CustomerService   customers.Service
	TenantService     tenant.Service
	ConnectionService connection.Service
	Dispatcher        dispatcher.Dispatcher
	Scheduler         scheduler.Engine
	ClickResolver     click.Resolver
	AnalyticsService  analytics.Service
	ReviewService     reviews.Service
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	publisherConfig := events.DefaultPublisherConfig()
	publisher, err := events.NewEventsPublisher(*cfg.Events, log, &publisherConfig)
	if err != nil {
		return nil, errors.Wrap(err, "events publisher")
	}

	cipher, err := crypto.NewAESCrypto(cfg.AppConfig.EncryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "ENCRYPTION_KEY")
	}

	archive, err := storage.NewStorageService(*cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "review archive storage")
	}

	tokens := token.NewCodec(cfg.TrackingConfig.TokenSecret, utils.Now)
	mail := mailer.NewMailer(*cfg.Mailer, log, repos.MailConnectionRepository, cipher)
	templates := emailtemplate.NewTemplateService(log, repos.EmailTemplateRepository)

	d := dispatcher.NewDispatcher(dispatcher.Config{
		TrackingPublicUrl: cfg.TrackingConfig.PublicUrl,
		MailerTimeout:     cfg.DispatcherConfig.MailerTimeout,
		TokenExpiry:       cfg.TrackingConfig.TokenExpiry,
	}, log, repos, templates, tokens, mail, publisher)

	schedulerConfig := *cfg.Scheduler
	if cfg.DatabaseConfig != nil {
		schedulerConfig.MaxDBConns = cfg.DatabaseConfig.MaxConn
	}

	services := Services{
		EventsPublisher:   publisher,
		TokenCodec:        tokens,
		Mailer:            mail,
		TemplateService:   templates,
		CampaignService:   campaign.NewCampaignService(log, repos.ProgramRepository),
		CustomerService:   customers.NewCustomerService(log, repos.TenantRepository, repos.CustomerRepository),
		TenantService:     tenant.NewTenantService(repos),
		ConnectionService: connection.NewConnectionService(repos.MailConnectionRepository, cipher),
		Dispatcher:        d,
		Scheduler:         scheduler.NewEngine(schedulerConfig, log, repos, d),
		ClickResolver:     click.NewResolver(log, repos, tokens, publisher),
		AnalyticsService:  analytics.NewAnalyticsService(repos),
		ReviewService:     reviews.NewReviewService(*cfg.Reviews, log, repos, nil, archive),
	}

	return &services, nil
}

func (s *Services) Close() error {
	if s.EventsPublisher != nil {
		return s.EventsPublisher.Close()
	}
	return nil
}
