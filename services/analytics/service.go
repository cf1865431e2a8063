package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
)

type Service interface {
	// Summary aggregates the email log of a tenant. A zero since covers all time.
	Summary(ctx context.Context, tenantID string, since time.Time) (*dto.AnalyticsSummary, error)
}

type analyticsService struct {
	repos *repository.Repositories
}

func NewAnalyticsService(repos *repository.Repositories) Service {
	return &analyticsService{repos: repos}
}

func (s *analyticsService) Summary(ctx context.Context, tenantID string, since time.Time) (*dto.AnalyticsSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.Summary")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	counts, err := s.repos.EmailLogRepository.CountByTenant(ctx, tenantID, since)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	programs, err := s.repos.ProgramRepository.ListByTenant(ctx, tenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	names := make(map[string]string, len(programs))
	for _, program := range programs {
		names[program.ID] = program.Name
	}

	summary := aggregate(counts, names)
	summary.TenantID = tenantID
	if !since.IsZero() {
		summary.Since = &since
	}

	snapshot, err := s.repos.ReviewSnapshotRepository.LatestByTenant(ctx, tenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if snapshot != nil {
		summary.Reviews = &dto.ReviewCount{ReviewCount: snapshot.ReviewCount, Rating: snapshot.Rating, TakenAt: snapshot.TakenAt}
	}
	return summary, nil
}

func aggregate(counts []interfaces.EmailLogCount, names map[string]string) *dto.AnalyticsSummary {
	summary := &dto.AnalyticsSummary{Programs: []dto.ProgramEngagement{}}
	byProgram := make(map[string]*dto.ProgramEngagement)

	for _, count := range counts {
		add(&summary.Total, count)
		switch count.EmailType {
		case enum.EmailTypeReview:
			add(&summary.Review, count)
		case enum.EmailTypeRetention:
			add(&summary.Retention, count)
		}

		if count.ProgramID == nil {
			continue
		}
		program, ok := byProgram[*count.ProgramID]
		if !ok {
			program = &dto.ProgramEngagement{ProgramID: *count.ProgramID, Name: names[*count.ProgramID]}
			byProgram[*count.ProgramID] = program
		}
		add(&program.EngagementStats, count)
	}

	for _, program := range byProgram {
		program.ClickThroughRate = rate(program.Clicked, program.Sent)
		summary.Programs = append(summary.Programs, *program)
	}
	sort.Slice(summary.Programs, func(i, j int) bool {
		return summary.Programs[i].ProgramID < summary.Programs[j].ProgramID
	})

	for _, stats := range []*dto.EngagementStats{&summary.Total, &summary.Review, &summary.Retention} {
		stats.ClickThroughRate = rate(stats.Clicked, stats.Sent)
	}
	return summary
}

func add(stats *dto.EngagementStats, count interfaces.EmailLogCount) {
	switch count.Status {
	case enum.EmailLogStatusSent:
		stats.Sent += count.Count
	case enum.EmailLogStatusClicked:
		stats.Clicked += count.Count
	case enum.EmailLogStatusFailed:
		stats.Failed += count.Count
	}
}

// rate is clicks per send rounded to four decimals; zero without sends
func rate(clicked, sent int64) float64 {
	if sent == 0 {
		return 0
	}
	return math.Round(float64(clicked)/float64(sent)*10000) / 10000
}
