package click

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const (
	searchBaseURL = "https://www.google.com/search"
	FallbackURL   = "https://www.google.com"
)

type ClickResult struct {
	RedirectURL string
}

type Resolver interface {
	ResolveClick(ctx context.Context, token string) (*ClickResult, error)
}

type resolver struct {
	log    logger.Logger
	repos  *repository.Repositories
	tokens interfaces.TokenCodec
	events interfaces.EventsPublisher
	now    func() time.Time
}

func NewResolver(log logger.Logger, repos *repository.Repositories, tokens interfaces.TokenCodec, events interfaces.EventsPublisher) Resolver {
	return &resolver{log: log, repos: repos, tokens: tokens, events: events, now: utils.Now}
}

// ResolveClick records the click and returns where to send the visitor.
// Repeat clicks log again; status never moves backwards.
func (r *resolver) ResolveClick(ctx context.Context, token string) (*ClickResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ClickResolver.ResolveClick")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	link, err := r.tokens.Verify(token)
	if err != nil {
		span.LogKV("result", "invalid link")
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidLink, err.Error())
	}
	tracing.TagEntity(span, link.CustomerID)

	customer, err := r.repos.CustomerRepository.GetByID(ctx, link.CustomerID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "load customer")
	}
	if customer == nil {
		return nil, errors.Wrap(reviewloop_errors.ErrNotFound, "customer")
	}
	tracing.TagTenant(span, customer.TenantID)

	tenant, err := r.repos.TenantRepository.GetByID(ctx, customer.TenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "load tenant")
	}
	if tenant == nil {
		return nil, reviewloop_errors.ErrTenantNotFound
	}

	at := r.now()
	if err := r.repos.EmailLogRepository.Append(ctx, models.NewClickLog(customer, link.ProgramID, link.StepID, at)); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "record click")
	}

	advanced, err := r.repos.CustomerRepository.AdvanceStatus(ctx, nil, customer.ID, enum.CustomerStatusReviewed)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "advance status")
	}
	span.LogKV("status.advanced", advanced)

	r.publish(ctx, customer, link, at)

	return &ClickResult{RedirectURL: Destination(link, tenant)}, nil
}

// Destination picks the redirect target: the link override, then the tenant
// review link, then a search for the business, then a fixed fallback.
func Destination(link *dto.TrackingLink, tenant *models.Tenant) string {
	if link != nil {
		if override := strings.TrimSpace(link.DestinationOverride); override != "" {
			return override
		}
	}
	if tenant == nil {
		return FallbackURL
	}
	if reviewLink := strings.TrimSpace(tenant.ReviewLink); reviewLink != "" {
		return reviewLink
	}
	if name := strings.TrimSpace(tenant.BusinessName); name != "" {
		return searchBaseURL + "?" + url.Values{"q": {name + " reviews"}}.Encode()
	}
	return FallbackURL
}

func (r *resolver) publish(ctx context.Context, customer *models.Customer, link *dto.TrackingLink, at time.Time) {
	if r.events == nil {
		return
	}
	event := dto.EngagementEvent{
		Event:      dto.EventEmailClicked,
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		EmailType:  string(enum.EmailTypeReview),
		ProgramID:  link.ProgramID,
		StepID:     link.StepID,
		OccurredAt: at,
	}
	if link.StepID != "" {
		event.EmailType = string(enum.EmailTypeRetention)
	}
	if err := r.events.PublishEngagementEvent(ctx, event); err != nil {
		r.log.Warnf("failed to publish click event for customer %s: %v", customer.ID, err)
	}
}
