package reviews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const maxPageSize = 5 << 20

type Config struct {
	FetchTimeout time.Duration `env:"REVIEW_SNAPSHOT_FETCH_TIMEOUT" envDefault:"15s"`
	UserAgent    string        `env:"REVIEW_SNAPSHOT_USER_AGENT" envDefault:"Mozilla/5.0 (compatible; reviewloop/1.0)"`
}

type Service interface {
	// TakeSnapshot returns nil without error when the tenant has no review link
	// or the page carries no review count.
	TakeSnapshot(ctx context.Context, tenant *models.Tenant) (*models.ReviewSnapshot, error)
	SnapshotAll(ctx context.Context) (int, error)
	Latest(ctx context.Context, tenantID string) (*models.ReviewSnapshot, error)
}

type reviewService struct {
	cfg     Config
	log     logger.Logger
	repos   *repository.Repositories
	client  *http.Client
	archive interfaces.StorageService
}

// NewReviewService archives fetched pages when archive is not nil
func NewReviewService(cfg Config, log logger.Logger, repos *repository.Repositories, client *http.Client, archive interfaces.StorageService) Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &reviewService{cfg: cfg, log: log, repos: repos, client: client, archive: archive}
}

func (s *reviewService) TakeSnapshot(ctx context.Context, tenant *models.Tenant) (*models.ReviewSnapshot, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReviewService.TakeSnapshot")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if tenant == nil || tenant.ReviewLink == "" {
		span.LogKV("result", "no review link")
		return nil, nil
	}
	tracing.TagTenant(span, tenant.ID)

	page, err := s.fetch(ctx, tenant.ReviewLink)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	stats, ok, err := ExtractStats(page)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "parse review page")
	}
	if !ok {
		span.LogKV("result", "no review count on page")
		return nil, nil
	}

	snapshot := &models.ReviewSnapshot{
		TenantID:    tenant.ID,
		SourceURL:   tenant.ReviewLink,
		ReviewCount: stats.ReviewCount,
		Rating:      stats.Rating,
		TakenAt:     utils.Now(),
	}
	snapshot.ArchiveKey = s.archivePage(ctx, snapshot, page)
	if err := s.repos.ReviewSnapshotRepository.Create(ctx, snapshot); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("result.reviewCount", stats.ReviewCount)
	return snapshot, nil
}

// SnapshotAll visits every tenant and returns how many snapshots were stored
func (s *reviewService) SnapshotAll(ctx context.Context) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReviewService.SnapshotAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	tenants, err := s.repos.TenantRepository.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	stored := 0
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		snapshot, err := s.TakeSnapshot(ctx, tenant)
		if err != nil {
			s.log.Warnf("review snapshot failed for tenant %s: %v", tenant.ID, err)
			continue
		}
		if snapshot != nil {
			stored++
		}
	}
	span.LogKV("result.stored", stored)
	return stored, nil
}

// archivePage returns the stored key, or "" when archiving is off or failed.
// A failed upload never loses the snapshot.
func (s *reviewService) archivePage(ctx context.Context, snapshot *models.ReviewSnapshot, page string) string {
	if s.archive == nil {
		return ""
	}
	key := ArchiveKey(snapshot.TenantID, snapshot.TakenAt)
	if err := s.archive.Upload(ctx, key, []byte(page), "text/html; charset=utf-8"); err != nil {
		s.log.Warnf("could not archive review page for tenant %s: %v", snapshot.TenantID, err)
		return ""
	}
	return key
}

func ArchiveKey(tenantID string, takenAt time.Time) string {
	return fmt.Sprintf("review-pages/%s/%s.html", tenantID, takenAt.UTC().Format("20060102T150405Z"))
}

func (s *reviewService) Latest(ctx context.Context, tenantID string) (*models.ReviewSnapshot, error) {
	return s.repos.ReviewSnapshotRepository.LatestByTenant(ctx, tenantID)
}

func (s *reviewService) fetch(ctx context.Context, url string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	request.Header.Set("User-Agent", s.cfg.UserAgent)
	request.Header.Set("Accept", "text/html")

	response, err := s.client.Do(request)
	if err != nil {
		return "", errors.Wrap(err, "fetch review page")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", errors.Errorf("review page returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxPageSize))
	if err != nil {
		return "", errors.Wrap(err, "read review page")
	}
	return string(body), nil
}
