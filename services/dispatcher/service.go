package dispatcher

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
	emailtemplate "github.com/reviewloop/reviewloop/services/template"
)

const DefaultMailerTimeout = 30 * time.Second

type Config struct {
	TrackingPublicUrl string
	MailerTimeout     time.Duration
	TokenExpiry       time.Duration
}

// Job is one eligible email. Program and Step are set for the retention flow.
type Job struct {
	Tenant   *models.Tenant
	Customer *models.Customer
	Flow     enum.EmailType
	Program  *models.RetentionProgram
	Step     *models.ProgramStep
	// Now stamps the log rows; zero means the wall clock
	Now time.Time
}

type Result struct {
	LogID string
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) (*Result, error)
}

type dispatcher struct {
	cfg       Config
	log       logger.Logger
	repos     *repository.Repositories
	templates emailtemplate.Service
	tokens    interfaces.TokenCodec
	mailer    interfaces.Mailer
	events    interfaces.EventsPublisher
	now       func() time.Time
}

func NewDispatcher(cfg Config, log logger.Logger, repos *repository.Repositories, templates emailtemplate.Service,
	tokens interfaces.TokenCodec, mailer interfaces.Mailer, events interfaces.EventsPublisher) Dispatcher {
	if cfg.MailerTimeout <= 0 {
		cfg.MailerTimeout = DefaultMailerTimeout
	}
	return &dispatcher{
		cfg:       cfg,
		log:       log,
		repos:     repos,
		templates: templates,
		tokens:    tokens,
		mailer:    mailer,
		events:    events,
		now:       utils.Now,
	}
}

func (d *dispatcher) at(job Job) time.Time {
	if job.Now.IsZero() {
		return d.now()
	}
	return job.Now.UTC()
}

func validateJob(job Job) error {
	if job.Tenant == nil || job.Customer == nil {
		return errors.Wrap(reviewloop_errors.ErrInvalidInput, "tenant and customer are required")
	}
	switch job.Flow {
	case enum.EmailTypeReview:
		return nil
	case enum.EmailTypeRetention:
		if job.Step == nil {
			return errors.Wrap(reviewloop_errors.ErrInvalidInput, "retention job without step")
		}
		return nil
	default:
		return errors.Wrapf(reviewloop_errors.ErrInvalidInput, "unknown flow %q", job.Flow)
	}
}

// Dispatch commits a send. The dedupe claim, the mailer call and the status
// change share one transaction: on mailer failure nothing is committed and the
// customer stays eligible, only a failed row is appended.
func (d *dispatcher) Dispatch(ctx context.Context, job Job) (*Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dispatcher.Dispatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := validateJob(job); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagTenant(span, job.Tenant.ID)
	tracing.TagEntity(span, job.Customer.ID)
	span.LogKV("flow", job.Flow)

	email, err := d.compose(ctx, job)
	if err != nil {
		tracing.TraceErr(span, err)
		d.recordFailure(ctx, job, err)
		return nil, err
	}

	now := d.at(job)
	var entry *models.EmailLog
	if job.Flow == enum.EmailTypeReview {
		entry = models.NewReviewSentLog(job.Customer, now)
	} else {
		entry = models.NewStepSentLog(job.Customer, job.Step, now)
	}

	err = d.repos.Transaction(ctx, func(tx *gorm.DB) error {
		claimed, err := d.repos.EmailLogRepository.Claim(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !claimed {
			return reviewloop_errors.ErrAlreadySent
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.MailerTimeout)
		defer cancel()
		if err := d.mailer.Send(sendCtx, email); err != nil {
			return errors.Wrap(reviewloop_errors.ErrMailerFailure, err.Error())
		}

		if job.Flow == enum.EmailTypeReview {
			if _, err := d.repos.CustomerRepository.AdvanceStatus(ctx, tx, job.Customer.ID, enum.CustomerStatusContacted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, reviewloop_errors.ErrAlreadySent) {
			span.LogKV("result", "already sent")
			return nil, err
		}
		tracing.TraceErr(span, err)
		if errors.Is(err, reviewloop_errors.ErrMailerFailure) {
			d.recordFailure(ctx, job, err)
		}
		return nil, err
	}

	if job.Flow == enum.EmailTypeReview && job.Customer.Status == enum.CustomerStatusPending {
		job.Customer.Status = enum.CustomerStatusContacted
	}
	d.publish(ctx, dto.EventEmailSent, job)

	span.LogKV("result.logId", entry.ID)
	return &Result{LogID: entry.ID}, nil
}

func (d *dispatcher) compose(ctx context.Context, job Job) (dto.OutboundEmail, error) {
	link := dto.TrackingLink{CustomerID: job.Customer.ID}

	var resolved emailtemplate.Template
	if job.Flow == enum.EmailTypeReview {
		resolved = d.templates.Resolve(ctx, job.Tenant.ID, enum.EmailTypeReview)
	} else {
		resolved = d.templates.ResolveForStep(ctx, job.Tenant.ID, job.Step)
		link.ProgramID = job.Step.ProgramID
		link.StepID = job.Step.ID
		if resolved.StepScoped {
			link.DestinationOverride = resolved.ButtonURL
		}
	}

	compiled := emailtemplate.Compile(resolved, map[string]string{
		emailtemplate.VarName:         job.Customer.DisplayName(),
		emailtemplate.VarBusinessName: job.Tenant.BusinessName,
	})

	token, err := d.tokens.Issue(link, d.cfg.TokenExpiry)
	if err != nil {
		return dto.OutboundEmail{}, errors.Wrap(err, "issue tracking token")
	}

	html, text, err := render(compiled, trackingURL(d.cfg.TrackingPublicUrl, token), job.Tenant.BusinessName)
	if err != nil {
		return dto.OutboundEmail{}, err
	}

	return dto.OutboundEmail{
		TenantID: job.Tenant.ID,
		To:       job.Customer.Email,
		ToName:   job.Customer.Name,
		Subject:  compiled.Subject,
		HTML:     html,
		Text:     text,
	}, nil
}

func (d *dispatcher) recordFailure(ctx context.Context, job Job, cause error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dispatcher.recordFailure")
	defer span.Finish()

	var step *models.ProgramStep
	if job.Flow == enum.EmailTypeRetention {
		step = job.Step
	}
	if err := d.repos.EmailLogRepository.Append(ctx, models.NewFailedLog(job.Customer, step, cause.Error(), d.at(job))); err != nil {
		tracing.TraceErr(span, err)
		d.log.Errorf("failed to record failed send for customer %s: %v", job.Customer.ID, err)
	}
	d.publish(ctx, dto.EventEmailFailed, job)
}

// publish is best effort; the log row is the record of truth
func (d *dispatcher) publish(ctx context.Context, event string, job Job) {
	if d.events == nil {
		return
	}
	engagement := dto.EngagementEvent{
		Event:      event,
		TenantID:   job.Tenant.ID,
		CustomerID: job.Customer.ID,
		EmailType:  string(job.Flow),
		OccurredAt: d.at(job),
	}
	if job.Step != nil {
		engagement.ProgramID = job.Step.ProgramID
		engagement.StepID = job.Step.ID
	}
	if err := d.events.PublishEngagementEvent(ctx, engagement); err != nil {
		d.log.Warnf("failed to publish %s event for customer %s: %v", event, job.Customer.ID, err)
	}
}
