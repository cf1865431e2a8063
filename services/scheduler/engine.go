package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services/campaign"
	"github.com/reviewloop/reviewloop/services/dispatcher"
)

type Config struct {
	Workers int `env:"SCHEDULER_WORKERS" envDefault:"1"`
	// MaxDBConns is the database pool size, zero when unknown. A dispatch
	// holds a transaction connection while the mailer takes a second one.
	MaxDBConns int
}

// effectiveWorkers keeps every worker able to get the extra connection
func (c Config) effectiveWorkers() int {
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	if c.MaxDBConns > 0 && workers > c.MaxDBConns-1 {
		workers = c.MaxDBConns - 1
		if workers < 1 {
			workers = 1
		}
	}
	return workers
}

type Engine interface {
	RunCycle(ctx context.Context, now time.Time) (dto.CycleSummary, error)
	RunTenantCycle(ctx context.Context, tenantID string, now time.Time) (dto.CycleSummary, error)
}

type engine struct {
	cfg        Config
	log        logger.Logger
	repos      *repository.Repositories
	dispatcher dispatcher.Dispatcher
}

func NewEngine(cfg Config, log logger.Logger, repos *repository.Repositories, d dispatcher.Dispatcher) Engine {
	if workers := cfg.effectiveWorkers(); workers != cfg.Workers {
		if cfg.Workers > workers {
			log.Warnf("scheduler workers capped at %d for a pool of %d connections", workers, cfg.MaxDBConns)
		}
		cfg.Workers = workers
	}
	return &engine{cfg: cfg, log: log, repos: repos, dispatcher: d}
}

// candidate is one customer with the jobs due for it this cycle
type candidate struct {
	customer *models.Customer
	jobs     []dispatcher.Job
}

// RunCycle runs every tenant. A tenant that cannot be loaded is logged and
// skipped; only a failure to list tenants or a cancelled context is returned.
func (e *engine) RunCycle(ctx context.Context, now time.Time) (dto.CycleSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerEngine.RunCycle")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("now", now)

	var summary dto.CycleSummary

	tenants, err := e.repos.TenantRepository.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return summary, errors.Wrap(err, "list tenants")
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			break
		}
		tenantSummary, err := e.runTenant(ctx, tenant, now)
		summary.Add(tenantSummary)
		if err != nil {
			tracing.TraceErr(span, err)
			e.log.Errorf("scheduling cycle failed for tenant %s: %v", tenant.ID, err)
		}
	}

	tracing.LogObjectAsJson(span, "summary", summary)
	e.log.Infof("scheduling cycle done: processed=%d sent=%d failed=%d skipped=%d",
		summary.Processed, summary.Sent, summary.Failed, summary.Skipped)
	return summary, ctx.Err()
}

func (e *engine) RunTenantCycle(ctx context.Context, tenantID string, now time.Time) (dto.CycleSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerEngine.RunTenantCycle")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	tenant, err := e.repos.TenantRepository.GetByID(ctx, tenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.CycleSummary{}, err
	}
	if tenant == nil {
		return dto.CycleSummary{}, reviewloop_errors.ErrTenantNotFound
	}

	summary, err := e.runTenant(ctx, tenant, now)
	if err != nil {
		tracing.TraceErr(span, err)
		return summary, err
	}
	return summary, ctx.Err()
}

func (e *engine) runTenant(ctx context.Context, tenant *models.Tenant, now time.Time) (dto.CycleSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerEngine.runTenant")
	defer span.Finish()
	tracing.TagTenant(span, tenant.ID)

	candidates, err := e.plan(ctx, tenant, now)
	if err != nil {
		return dto.CycleSummary{}, err
	}

	summary := e.dispatchAll(ctx, candidates)
	span.LogKV("processed", summary.Processed, "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// plan reads the tenant's state once and decides every customer's jobs
func (e *engine) plan(ctx context.Context, tenant *models.Tenant, now time.Time) ([]candidate, error) {
	programs, err := e.repos.ProgramRepository.ListByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list programs")
	}
	byTag := make(map[string]*models.RetentionProgram, len(programs))
	for _, program := range programs {
		if program.IsSchedulable() {
			byTag[program.ServiceTag] = program
		}
	}

	customers, err := e.repos.CustomerRepository.ListByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}

	logs, err := e.repos.EmailLogRepository.ListSentByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list sent emails")
	}
	histories := buildHistories(logs)

	candidates := make([]candidate, 0, len(customers))
	for _, customer := range customers {
		h, ok := histories[customer.ID]
		if !ok {
			h = newHistory()
		}

		c := candidate{customer: customer}
		if reviewDue(tenant, customer, h, now) {
			c.jobs = append(c.jobs, dispatcher.Job{
				Tenant:   tenant,
				Customer: customer,
				Flow:     enum.EmailTypeReview,
				Now:      now,
			})
		}

		if customer.ServiceTag != "" {
			program := byTag[campaign.NormalizeServiceTag(customer.ServiceTag)]
			if step, decision := nextStep(program, customer, h, now); decision == stepDue {
				c.jobs = append(c.jobs, dispatcher.Job{
					Tenant:   tenant,
					Customer: customer,
					Flow:     enum.EmailTypeRetention,
					Program:  program,
					Step:     step,
					Now:      now,
				})
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// dispatchAll fans candidates out to the worker pool in order. Cancelling ctx
// stops handing out customers; sends already started run to completion.
func (e *engine) dispatchAll(ctx context.Context, candidates []candidate) dto.CycleSummary {
	var (
		mu      sync.Mutex
		summary dto.CycleSummary
		wg      sync.WaitGroup
	)

	sendCtx := context.WithoutCancel(ctx)
	queue := make(chan candidate)

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range queue {
				result := e.safeProcess(sendCtx, c)
				mu.Lock()
				summary.Add(result)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case queue <- c:
		}
	}
	close(queue)
	wg.Wait()

	return summary
}

// safeProcess counts a panicking customer as failed and keeps the worker alive
func (e *engine) safeProcess(ctx context.Context, c candidate) (summary dto.CycleSummary) {
	defer func() {
		if r := recover(); r != nil {
			summary = dto.CycleSummary{Processed: 1, Failed: 1}
			e.log.Errorf("panic while processing customer %s: %v", c.customer.ID, r)
		}
	}()
	return e.process(ctx, c)
}

func (e *engine) process(ctx context.Context, c candidate) dto.CycleSummary {
	summary := dto.CycleSummary{Processed: 1}
	if len(c.jobs) == 0 {
		summary.Skipped = 1
		return summary
	}

	for _, job := range c.jobs {
		_, err := e.dispatcher.Dispatch(ctx, job)
		switch {
		case err == nil:
			summary.Sent++
		case errors.Is(err, reviewloop_errors.ErrAlreadySent):
			e.log.Debugf("customer %s already received %s email", c.customer.ID, job.Flow)
		default:
			summary.Failed++
			e.log.Warnf("dispatch of %s email to customer %s failed: %v", job.Flow, c.customer.ID, err)
		}
	}
	if summary.Sent == 0 && summary.Failed == 0 {
		summary.Skipped = 1
	}
	return summary
}
