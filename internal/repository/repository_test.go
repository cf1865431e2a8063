package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/testutil"
	"github.com/reviewloop/reviewloop/internal/utils"
)

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

type RepositoryTestSuite struct {
	suite.Suite

	ctx   context.Context
	db    *gorm.DB
	repos *Repositories

	tenant *models.Tenant
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := testutil.OpenInMemory(MigrateDB)
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.db = db
	s.repos = InitRepositories(db)

	s.tenant = &models.Tenant{
		BusinessName:            "Blue Door Salon",
		ReviewLink:              "https://g.page/r/bluedoor/review",
		EnableGlobalReviewEmail: true,
		DefaultReviewDelayDays:  1,
	}
	s.Require().NoError(s.repos.TenantRepository.Create(s.ctx, s.tenant))
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.Require().NoError(testutil.Close(s.db))
}

func (s *RepositoryTestSuite) newCustomer(email string) *models.Customer {
	customer := &models.Customer{
		TenantID:      s.tenant.ID,
		Email:         email,
		Name:          "Ana",
		LastVisitDate: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
		ServiceTag:    "haircut",
	}
	s.Require().NoError(s.repos.CustomerRepository.Upsert(s.ctx, customer))
	return customer
}

func (s *RepositoryTestSuite) newProgram(tag string) *models.RetentionProgram {
	program := &models.RetentionProgram{
		TenantID:   s.tenant.ID,
		ServiceTag: tag,
		Name:       "Win back",
		Enabled:    true,
		Steps: []models.ProgramStep{
			{StepOrder: 1, OffsetDays: 30, CooldownDays: 0, Enabled: true},
			{StepOrder: 2, OffsetDays: 60, CooldownDays: 14, Enabled: true},
		},
	}
	s.Require().NoError(s.repos.ProgramRepository.Create(s.ctx, program))
	return program
}

func (s *RepositoryTestSuite) TestTenantGetByID() {
	tenant, err := s.repos.TenantRepository.GetByID(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Require().NotNil(tenant)
	s.Equal("Blue Door Salon", tenant.BusinessName)
	s.True(tenant.EnableGlobalReviewEmail)
	s.Equal(1, tenant.DefaultReviewDelayDays)

	missing, err := s.repos.TenantRepository.GetByID(s.ctx, "tnt_missing")
	s.NoError(err)
	s.Nil(missing)
}

func (s *RepositoryTestSuite) TestTenantCreateRequiresBusinessName() {
	err := s.repos.TenantRepository.Create(s.ctx, &models.Tenant{})
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *RepositoryTestSuite) TestTenantUpdateSettings() {
	disabled := false
	delay := 3
	err := s.repos.TenantRepository.UpdateSettings(s.ctx, s.tenant.ID, interfaces.TenantSettings{
		EnableGlobalReviewEmail: &disabled,
		DefaultReviewDelayDays:  &delay,
	})
	s.Require().NoError(err)

	tenant, err := s.repos.TenantRepository.GetByID(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.False(tenant.EnableGlobalReviewEmail)
	s.Equal(3, tenant.DefaultReviewDelayDays)
	s.Equal("Blue Door Salon", tenant.BusinessName)

	negative := -1
	err = s.repos.TenantRepository.UpdateSettings(s.ctx, s.tenant.ID, interfaces.TenantSettings{DefaultReviewDelayDays: &negative})
	s.ErrorIs(err, ErrInvalidInput)

	err = s.repos.TenantRepository.UpdateSettings(s.ctx, "tnt_missing", interfaces.TenantSettings{DefaultReviewDelayDays: &delay})
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestTenantDeleteCascades() {
	customer := s.newCustomer("ana@example.com")
	program := s.newProgram("haircut")
	_, err := s.repos.EmailLogRepository.Claim(s.ctx, nil, models.NewReviewSentLog(customer, utils.Now()))
	s.Require().NoError(err)

	s.Require().NoError(s.repos.TenantRepository.Delete(s.ctx, s.tenant.ID))

	var count int64
	s.Require().NoError(s.db.Model(&models.ProgramStep{}).Where("program_id = ?", program.ID).Count(&count).Error)
	s.Zero(count)
	s.Require().NoError(s.db.Model(&models.EmailLog{}).Count(&count).Error)
	s.Zero(count)
	s.Require().NoError(s.db.Model(&models.Customer{}).Count(&count).Error)
	s.Zero(count)

	tenant, err := s.repos.TenantRepository.GetByID(s.ctx, s.tenant.ID)
	s.NoError(err)
	s.Nil(tenant)
}

func (s *RepositoryTestSuite) TestCustomerUpsertKeepsIdentityAndStatus() {
	first := s.newCustomer("ana@example.com")
	s.Equal(enum.CustomerStatusPending, first.Status)

	advanced, err := s.repos.CustomerRepository.AdvanceStatus(s.ctx, nil, first.ID, enum.CustomerStatusContacted)
	s.Require().NoError(err)
	s.True(advanced)

	again := &models.Customer{
		TenantID:      s.tenant.ID,
		Email:         "ana@example.com",
		Name:          "Ana Maria",
		LastVisitDate: time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
		ServiceTag:    "color",
	}
	s.Require().NoError(s.repos.CustomerRepository.Upsert(s.ctx, again))

	s.Equal(first.ID, again.ID)
	s.Equal("Ana Maria", again.Name)
	s.Equal("color", again.ServiceTag)
	s.Equal(enum.CustomerStatusContacted, again.Status)

	customers, err := s.repos.CustomerRepository.ListByTenant(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Len(customers, 1)
}

func (s *RepositoryTestSuite) TestCustomerAdvanceStatusNeverRegresses() {
	customer := s.newCustomer("ana@example.com")

	advanced, err := s.repos.CustomerRepository.AdvanceStatus(s.ctx, nil, customer.ID, enum.CustomerStatusReviewed)
	s.Require().NoError(err)
	s.True(advanced)

	advanced, err = s.repos.CustomerRepository.AdvanceStatus(s.ctx, nil, customer.ID, enum.CustomerStatusContacted)
	s.Require().NoError(err)
	s.False(advanced)

	advanced, err = s.repos.CustomerRepository.AdvanceStatus(s.ctx, nil, customer.ID, enum.CustomerStatusReviewed)
	s.Require().NoError(err)
	s.False(advanced)

	stored, err := s.repos.CustomerRepository.GetByID(s.ctx, customer.ID)
	s.Require().NoError(err)
	s.Equal(enum.CustomerStatusReviewed, stored.Status)
}

func (s *RepositoryTestSuite) TestProgramDuplicateServiceTag() {
	s.newProgram("haircut")

	err := s.repos.ProgramRepository.Create(s.ctx, &models.RetentionProgram{
		TenantID:   s.tenant.ID,
		ServiceTag: "haircut",
		Name:       "Second",
	})
	s.ErrorIs(err, reviewloop_errors.ErrDuplicateServiceTag)

	other := &models.Tenant{BusinessName: "Other Salon"}
	s.Require().NoError(s.repos.TenantRepository.Create(s.ctx, other))
	err = s.repos.ProgramRepository.Create(s.ctx, &models.RetentionProgram{
		TenantID:   other.ID,
		ServiceTag: "haircut",
		Name:       "Other tenant",
	})
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestProgramStepsLoadedAndToggled() {
	program := s.newProgram("haircut")

	loaded, err := s.repos.ProgramRepository.GetByID(s.ctx, s.tenant.ID, program.ID)
	s.Require().NoError(err)
	s.Require().Len(loaded.Steps, 2)
	s.Equal(30, loaded.Steps[0].OffsetDays)
	s.Equal(60, loaded.Steps[1].OffsetDays)

	s.Require().NoError(s.repos.ProgramRepository.SetStepEnabled(s.ctx, program.ID, loaded.Steps[0].ID, false))
	s.Require().NoError(s.repos.ProgramRepository.SetEnabled(s.ctx, s.tenant.ID, program.ID, false))

	loaded, err = s.repos.ProgramRepository.GetByID(s.ctx, s.tenant.ID, program.ID)
	s.Require().NoError(err)
	s.False(loaded.Enabled)
	s.False(loaded.Steps[0].Enabled)
	s.True(loaded.Steps[1].Enabled)

	wrongTenant, err := s.repos.ProgramRepository.GetByID(s.ctx, "tnt_other", program.ID)
	s.NoError(err)
	s.Nil(wrongTenant)
}

func (s *RepositoryTestSuite) TestTemplateLookup() {
	global := &models.EmailTemplate{
		TenantID: s.tenant.ID,
		Type:     enum.EmailTypeRetention,
		Subject:  "We miss you",
	}
	s.Require().NoError(s.repos.EmailTemplateRepository.Save(s.ctx, global))

	stepTemplate := &models.EmailTemplate{
		TenantID: s.tenant.ID,
		Type:     enum.EmailTypeRetention,
		StepID:   utils.ToPtr("step_1"),
		Subject:  "Step one",
	}
	s.Require().NoError(s.repos.EmailTemplateRepository.Save(s.ctx, stepTemplate))

	byType, err := s.repos.EmailTemplateRepository.GetByType(s.ctx, s.tenant.ID, enum.EmailTypeRetention)
	s.Require().NoError(err)
	s.Require().NotNil(byType)
	s.Equal(global.ID, byType.ID)

	byStep, err := s.repos.EmailTemplateRepository.GetByStep(s.ctx, s.tenant.ID, "step_1")
	s.Require().NoError(err)
	s.Require().NotNil(byStep)
	s.Equal("Step one", byStep.Subject)

	review, err := s.repos.EmailTemplateRepository.GetByType(s.ctx, s.tenant.ID, enum.EmailTypeReview)
	s.NoError(err)
	s.Nil(review)
}

func (s *RepositoryTestSuite) TestClaimIsIdempotent() {
	customer := s.newCustomer("ana@example.com")

	claimed, err := s.repos.EmailLogRepository.Claim(s.ctx, nil, models.NewReviewSentLog(customer, utils.Now()))
	s.Require().NoError(err)
	s.True(claimed)

	claimed, err = s.repos.EmailLogRepository.Claim(s.ctx, nil, models.NewReviewSentLog(customer, utils.Now()))
	s.Require().NoError(err)
	s.False(claimed)

	sent, err := s.repos.EmailLogRepository.HasSent(s.ctx, models.ReviewDedupeKey(customer.ID))
	s.Require().NoError(err)
	s.True(sent)

	logs, err := s.repos.EmailLogRepository.ListByCustomer(s.ctx, customer.ID)
	s.Require().NoError(err)
	s.Len(logs, 1)
}

func (s *RepositoryTestSuite) TestConcurrentClaimsInsertOnce() {
	customer := s.newCustomer("ana@example.com")

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.repos.EmailLogRepository.Claim(s.ctx, nil, models.NewReviewSentLog(customer, utils.Now()))
			s.NoError(err)
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for claimed := range results {
		if claimed {
			wins++
		}
	}
	s.Equal(1, wins)
}

func (s *RepositoryTestSuite) TestClaimRollsBackWithTransaction() {
	customer := s.newCustomer("ana@example.com")

	err := s.repos.Transaction(s.ctx, func(tx *gorm.DB) error {
		claimed, err := s.repos.EmailLogRepository.Claim(s.ctx, tx, models.NewReviewSentLog(customer, utils.Now()))
		s.Require().NoError(err)
		s.True(claimed)
		return reviewloop_errors.ErrMailerFailure
	})
	s.ErrorIs(err, reviewloop_errors.ErrMailerFailure)

	sent, err := s.repos.EmailLogRepository.HasSent(s.ctx, models.ReviewDedupeKey(customer.ID))
	s.Require().NoError(err)
	s.False(sent)
}

func (s *RepositoryTestSuite) TestFailuresAndClicksRepeat() {
	customer := s.newCustomer("ana@example.com")
	now := utils.Now()

	s.Require().NoError(s.repos.EmailLogRepository.Append(s.ctx, models.NewFailedLog(customer, nil, "smtp down", now)))
	s.Require().NoError(s.repos.EmailLogRepository.Append(s.ctx, models.NewFailedLog(customer, nil, "smtp down", now)))
	s.Require().NoError(s.repos.EmailLogRepository.Append(s.ctx, models.NewClickLog(customer, "", "", now)))
	s.Require().NoError(s.repos.EmailLogRepository.Append(s.ctx, models.NewClickLog(customer, "", "", now)))

	sent, err := s.repos.EmailLogRepository.ListSentByTenant(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Empty(sent)

	logs, err := s.repos.EmailLogRepository.ListByCustomer(s.ctx, customer.ID)
	s.Require().NoError(err)
	s.Len(logs, 4)
}

func (s *RepositoryTestSuite) TestEmailLogsAreImmutable() {
	customer := s.newCustomer("ana@example.com")
	log := models.NewReviewSentLog(customer, utils.Now())
	_, err := s.repos.EmailLogRepository.Claim(s.ctx, nil, log)
	s.Require().NoError(err)

	log.Detail = "changed"
	s.Error(s.db.Save(log).Error)
}

func (s *RepositoryTestSuite) TestCountByTenant() {
	customer := s.newCustomer("ana@example.com")
	program := s.newProgram("haircut")
	now := utils.Now()

	_, err := s.repos.EmailLogRepository.Claim(s.ctx, nil, models.NewReviewSentLog(customer, now))
	s.Require().NoError(err)
	_, err = s.repos.EmailLogRepository.Claim(s.ctx, nil, models.NewStepSentLog(customer, &program.Steps[0], now))
	s.Require().NoError(err)
	s.Require().NoError(s.repos.EmailLogRepository.Append(s.ctx, models.NewClickLog(customer, "", "", now)))

	counts, err := s.repos.EmailLogRepository.CountByTenant(s.ctx, s.tenant.ID, time.Time{})
	s.Require().NoError(err)

	totals := map[enum.EmailType]map[enum.EmailLogStatus]int64{}
	for _, count := range counts {
		if totals[count.EmailType] == nil {
			totals[count.EmailType] = map[enum.EmailLogStatus]int64{}
		}
		totals[count.EmailType][count.Status] += count.Count
	}
	s.Equal(int64(1), totals[enum.EmailTypeReview][enum.EmailLogStatusSent])
	s.Equal(int64(1), totals[enum.EmailTypeReview][enum.EmailLogStatusClicked])
	s.Equal(int64(1), totals[enum.EmailTypeRetention][enum.EmailLogStatusSent])
}

func (s *RepositoryTestSuite) TestReviewSnapshotLatest() {
	older := &models.ReviewSnapshot{TenantID: s.tenant.ID, ReviewCount: 10, Rating: 4.2, TakenAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &models.ReviewSnapshot{TenantID: s.tenant.ID, ReviewCount: 12, Rating: 4.3, TakenAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.repos.ReviewSnapshotRepository.Create(s.ctx, older))
	s.Require().NoError(s.repos.ReviewSnapshotRepository.Create(s.ctx, newer))

	latest, err := s.repos.ReviewSnapshotRepository.LatestByTenant(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal(12, latest.ReviewCount)
}
