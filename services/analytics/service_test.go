package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/testutil"
	"github.com/reviewloop/reviewloop/internal/utils"
)

func TestAggregate(t *testing.T) {
	counts := []interfaces.EmailLogCount{
		{EmailType: enum.EmailTypeReview, Status: enum.EmailLogStatusSent, Count: 10},
		{EmailType: enum.EmailTypeReview, Status: enum.EmailLogStatusClicked, Count: 3},
		{EmailType: enum.EmailTypeReview, Status: enum.EmailLogStatusFailed, Count: 1},
		{EmailType: enum.EmailTypeRetention, Status: enum.EmailLogStatusSent, ProgramID: utils.ToPtr("prog_b"), Count: 4},
		{EmailType: enum.EmailTypeRetention, Status: enum.EmailLogStatusClicked, ProgramID: utils.ToPtr("prog_b"), Count: 1},
		{EmailType: enum.EmailTypeRetention, Status: enum.EmailLogStatusSent, ProgramID: utils.ToPtr("prog_a"), Count: 2},
	}

	summary := aggregate(counts, map[string]string{"prog_a": "Color", "prog_b": "Haircut"})

	assert.Equal(t, int64(16), summary.Total.Sent)
	assert.Equal(t, int64(4), summary.Total.Clicked)
	assert.Equal(t, int64(1), summary.Total.Failed)
	assert.Equal(t, 0.25, summary.Total.ClickThroughRate)
	assert.Equal(t, 0.3, summary.Review.ClickThroughRate)
	assert.Equal(t, int64(6), summary.Retention.Sent)
	assert.Equal(t, 0.1667, summary.Retention.ClickThroughRate)

	require.Len(t, summary.Programs, 2)
	assert.Equal(t, "prog_a", summary.Programs[0].ProgramID)
	assert.Equal(t, "Color", summary.Programs[0].Name)
	assert.Zero(t, summary.Programs[0].ClickThroughRate)
	assert.Equal(t, "Haircut", summary.Programs[1].Name)
	assert.Equal(t, 0.25, summary.Programs[1].ClickThroughRate)
}

func TestAggregateEmpty(t *testing.T) {
	summary := aggregate(nil, nil)
	assert.Zero(t, summary.Total.ClickThroughRate)
	assert.NotNil(t, summary.Programs)
	assert.Empty(t, summary.Programs)
}

func TestSummaryFromLog(t *testing.T) {
	db, err := testutil.OpenInMemory(repository.MigrateDB)
	require.NoError(t, err)
	defer testutil.Close(db)

	ctx := context.Background()
	repos := repository.InitRepositories(db)

	tenant := &models.Tenant{BusinessName: "Blue Door Salon"}
	require.NoError(t, repos.TenantRepository.Create(ctx, tenant))
	customer := &models.Customer{TenantID: tenant.ID, Email: "ana@example.com", LastVisitDate: utils.Now()}
	require.NoError(t, repos.CustomerRepository.Upsert(ctx, customer))

	old := utils.Now().AddDate(0, -2, 0)
	recent := utils.Now().Add(-time.Hour)
	_, err = repos.EmailLogRepository.Claim(ctx, nil, models.NewReviewSentLog(customer, old))
	require.NoError(t, err)
	require.NoError(t, repos.EmailLogRepository.Append(ctx, models.NewClickLog(customer, "", "", recent)))
	require.NoError(t, repos.ReviewSnapshotRepository.Create(ctx, &models.ReviewSnapshot{TenantID: tenant.ID, ReviewCount: 40, Rating: 4.7, TakenAt: recent}))

	service := NewAnalyticsService(repos)

	all, err := service.Summary(ctx, tenant.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.Review.Sent)
	assert.Equal(t, int64(1), all.Review.Clicked)
	assert.Equal(t, 1.0, all.Review.ClickThroughRate)
	assert.Nil(t, all.Since)
	require.NotNil(t, all.Reviews)
	assert.Equal(t, 40, all.Reviews.ReviewCount)

	lastWeek, err := service.Summary(ctx, tenant.ID, utils.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Zero(t, lastWeek.Review.Sent)
	assert.Equal(t, int64(1), lastWeek.Review.Clicked)
	assert.NotNil(t, lastWeek.Since)
}
