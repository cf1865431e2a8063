package dispatcher

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/mocks"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/testutil"
	"github.com/reviewloop/reviewloop/internal/utils"
	emailtemplate "github.com/reviewloop/reviewloop/services/template"
	"github.com/reviewloop/reviewloop/services/token"
)

var tokenPattern = regexp.MustCompile(`https://track\.example\.com/r\?t=([A-Za-z0-9_\-.]+)`)

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

type DispatcherTestSuite struct {
	suite.Suite

	ctx     context.Context
	db      *gorm.DB
	repos   *repository.Repositories
	mailer  *mocks.Mailer
	events  *mocks.EventsPublisher
	codec   interfaces.TokenCodec
	subject Dispatcher

	tenant   *models.Tenant
	customer *models.Customer
	program  *models.RetentionProgram
}

func (s *DispatcherTestSuite) SetupTest() {
	db, err := testutil.OpenInMemory(repository.MigrateDB)
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.db = db
	s.repos = repository.InitRepositories(db)
	s.mailer = new(mocks.Mailer)
	s.events = new(mocks.EventsPublisher)
	s.codec = token.NewCodec("test-secret", nil)

	log := mocks.NewLogger()
	templates := emailtemplate.NewTemplateService(log, s.repos.EmailTemplateRepository)
	s.subject = NewDispatcher(Config{TrackingPublicUrl: "https://track.example.com/"},
		log, s.repos, templates, s.codec, s.mailer, s.events)

	s.tenant = &models.Tenant{BusinessName: "Blue Door Salon", EnableGlobalReviewEmail: true, DefaultReviewDelayDays: 1}
	s.Require().NoError(s.repos.TenantRepository.Create(s.ctx, s.tenant))

	s.customer = &models.Customer{TenantID: s.tenant.ID, Email: "ana@example.com", Name: "Ana", LastVisitDate: utils.Now(), ServiceTag: "haircut"}
	s.Require().NoError(s.repos.CustomerRepository.Upsert(s.ctx, s.customer))

	s.program = &models.RetentionProgram{
		TenantID:   s.tenant.ID,
		ServiceTag: "haircut",
		Name:       "Haircut win-back",
		Enabled:    true,
		Steps:      []models.ProgramStep{{StepOrder: 1, OffsetDays: 30, Enabled: true}},
	}
	s.Require().NoError(s.repos.ProgramRepository.Create(s.ctx, s.program))
}

func (s *DispatcherTestSuite) TearDownTest() {
	s.Require().NoError(testutil.Close(s.db))
}

func (s *DispatcherTestSuite) reviewJob() Job {
	return Job{Tenant: s.tenant, Customer: s.customer, Flow: enum.EmailTypeReview}
}

func (s *DispatcherTestSuite) stepJob() Job {
	return Job{Tenant: s.tenant, Customer: s.customer, Flow: enum.EmailTypeRetention, Program: s.program, Step: &s.program.Steps[0]}
}

func (s *DispatcherTestSuite) linkIn(email dto.OutboundEmail) *dto.TrackingLink {
	match := tokenPattern.FindStringSubmatch(email.HTML)
	s.Require().Len(match, 2, "tracking url missing from html")
	link, err := s.codec.Verify(match[1])
	s.Require().NoError(err)
	return link
}

func (s *DispatcherTestSuite) storedStatus() enum.CustomerStatus {
	stored, err := s.repos.CustomerRepository.GetByID(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	return stored.Status
}

func (s *DispatcherTestSuite) TestReviewSend() {
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	s.events.On("PublishEngagementEvent", mock.Anything, mock.MatchedBy(func(e dto.EngagementEvent) bool {
		return e.Event == dto.EventEmailSent && e.EmailType == "review" && e.CustomerID == s.customer.ID
	})).Return(nil).Once()

	result, err := s.subject.Dispatch(s.ctx, s.reviewJob())
	s.Require().NoError(err)
	s.NotEmpty(result.LogID)

	s.Require().Len(s.mailer.Sent, 1)
	email := s.mailer.Sent[0]
	s.Equal(s.tenant.ID, email.TenantID)
	s.Equal("ana@example.com", email.To)
	s.Contains(email.Subject, "Blue Door Salon")
	s.Contains(email.HTML, "Ana")
	s.NotContains(email.HTML, "{{")
	s.NotEmpty(email.Text)

	link := s.linkIn(email)
	s.Equal(s.customer.ID, link.CustomerID)
	s.Empty(link.StepID)
	s.Empty(link.DestinationOverride)

	s.Equal(enum.CustomerStatusContacted, s.storedStatus())
	s.Equal(enum.CustomerStatusContacted, s.customer.Status)
	s.events.AssertExpectations(s.T())
}

func (s *DispatcherTestSuite) TestStepSendCarriesAttributionAndOverride() {
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	s.events.On("PublishEngagementEvent", mock.Anything, mock.Anything).Return(nil)

	step := s.program.Steps[0]
	s.Require().NoError(s.repos.EmailTemplateRepository.Save(s.ctx, &models.EmailTemplate{
		TenantID:   s.tenant.ID,
		Type:       enum.EmailTypeRetention,
		StepID:     utils.ToPtr(step.ID),
		Subject:    "{{name}}, time for a trim?",
		Body:       "It has been a while.\n\nBook again at {{business_name}}.",
		ButtonURL:  "https://bluedoor.example.com/book",
		ButtonText: "Book now",
	}))

	_, err := s.subject.Dispatch(s.ctx, s.stepJob())
	s.Require().NoError(err)

	s.Require().Len(s.mailer.Sent, 1)
	email := s.mailer.Sent[0]
	s.Equal("Ana, time for a trim?", email.Subject)
	s.Contains(email.HTML, "Book again at Blue Door Salon.")
	s.Contains(email.HTML, "Book now")
	s.NotContains(email.HTML, "bluedoor.example.com/book")

	link := s.linkIn(email)
	s.Equal(s.customer.ID, link.CustomerID)
	s.Equal(s.program.ID, link.ProgramID)
	s.Equal(step.ID, link.StepID)
	s.Equal("https://bluedoor.example.com/book", link.DestinationOverride)

	// the retention flow never touches the status
	s.Equal(enum.CustomerStatusPending, s.storedStatus())

	logs, err := s.repos.EmailLogRepository.ListByCustomer(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(enum.EmailTypeRetention, logs[0].EmailType)
	s.Equal(step.ID, *logs[0].StepID)
}

func (s *DispatcherTestSuite) TestSecondDispatchIsAlreadySent() {
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	s.events.On("PublishEngagementEvent", mock.Anything, mock.Anything).Return(nil)

	_, err := s.subject.Dispatch(s.ctx, s.reviewJob())
	s.Require().NoError(err)

	_, err = s.subject.Dispatch(s.ctx, s.reviewJob())
	s.ErrorIs(err, reviewloop_errors.ErrAlreadySent)
	s.Len(s.mailer.Sent, 1)

	// a step send is a separate key
	_, err = s.subject.Dispatch(s.ctx, s.stepJob())
	s.NoError(err)
	s.Len(s.mailer.Sent, 2)
}

func (s *DispatcherTestSuite) TestMailerFailureRollsBack() {
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("535 authentication failed"))
	s.events.On("PublishEngagementEvent", mock.Anything, mock.MatchedBy(func(e dto.EngagementEvent) bool {
		return e.Event == dto.EventEmailFailed
	})).Return(nil).Once()

	at := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	job := s.reviewJob()
	job.Now = at

	_, err := s.subject.Dispatch(s.ctx, job)
	s.ErrorIs(err, reviewloop_errors.ErrMailerFailure)
	s.Contains(err.Error(), "535 authentication failed")

	sent, err := s.repos.EmailLogRepository.HasSent(s.ctx, models.ReviewDedupeKey(s.customer.ID))
	s.Require().NoError(err)
	s.False(sent)

	logs, err := s.repos.EmailLogRepository.ListByCustomer(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(enum.EmailLogStatusFailed, logs[0].Status)
	s.Contains(logs[0].Detail, "535")
	s.True(at.Equal(logs[0].CreatedAt))

	s.Equal(enum.CustomerStatusPending, s.storedStatus())
	s.Equal(enum.CustomerStatusPending, s.customer.Status)
	s.events.AssertExpectations(s.T())
}

func (s *DispatcherTestSuite) TestPublishFailureDoesNotFailTheSend() {
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	s.events.On("PublishEngagementEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := s.subject.Dispatch(s.ctx, s.reviewJob())
	s.NoError(err)
}

func (s *DispatcherTestSuite) TestInvalidJobs() {
	_, err := s.subject.Dispatch(s.ctx, Job{Flow: enum.EmailTypeReview})
	s.ErrorIs(err, reviewloop_errors.ErrInvalidInput)

	_, err = s.subject.Dispatch(s.ctx, Job{Tenant: s.tenant, Customer: s.customer, Flow: enum.EmailTypeRetention})
	s.ErrorIs(err, reviewloop_errors.ErrInvalidInput)

	_, err = s.subject.Dispatch(s.ctx, Job{Tenant: s.tenant, Customer: s.customer, Flow: "newsletter"})
	s.ErrorIs(err, reviewloop_errors.ErrInvalidInput)
	s.mailer.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything)
}

func TestParagraphsAndTrackingURL(t *testing.T) {
	got := paragraphs("first line\r\n\r\n  second  \n\n\n\nthird")
	if strings.Join(got, "|") != "first line|second|third" {
		t.Fatalf("unexpected paragraphs %q", got)
	}
	if u := trackingURL("https://x.example.com/", "a.b-c_d"); u != "https://x.example.com/r?t=a.b-c_d" {
		t.Fatalf("unexpected url %s", u)
	}
}

func (s *DispatcherTestSuite) TestTenantRetentionTemplateDoesNotOverrideDestination() {
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	s.events.On("PublishEngagementEvent", mock.Anything, mock.Anything).Return(nil)

	s.Require().NoError(s.repos.EmailTemplateRepository.Save(s.ctx, &models.EmailTemplate{
		TenantID:  s.tenant.ID,
		Type:      enum.EmailTypeRetention,
		Subject:   "We miss you, {{name}}",
		ButtonURL: "https://bluedoor.example.com/everyone",
	}))

	_, err := s.subject.Dispatch(s.ctx, s.stepJob())
	s.Require().NoError(err)

	s.Require().Len(s.mailer.Sent, 1)
	s.Equal("We miss you, Ana", s.mailer.Sent[0].Subject)
	link := s.linkIn(s.mailer.Sent[0])
	s.Equal(s.program.Steps[0].ID, link.StepID)
	s.Empty(link.DestinationOverride)
}

type brokenCodec struct{}

func (brokenCodec) Issue(dto.TrackingLink, time.Duration) (string, error) {
	return "", errors.New("signing key unavailable")
}

func (brokenCodec) Verify(string) (*dto.TrackingLink, error) {
	return nil, reviewloop_errors.ErrInvalidToken
}

func (s *DispatcherTestSuite) TestComposeFailureIsRecorded() {
	s.events.On("PublishEngagementEvent", mock.Anything, mock.MatchedBy(func(e dto.EngagementEvent) bool {
		return e.Event == dto.EventEmailFailed
	})).Return(nil).Once()

	templates := emailtemplate.NewTemplateService(mocks.NewLogger(), s.repos.EmailTemplateRepository)
	subject := NewDispatcher(Config{TrackingPublicUrl: "https://track.example.com/"},
		mocks.NewLogger(), s.repos, templates, brokenCodec{}, s.mailer, s.events)

	_, err := subject.Dispatch(s.ctx, s.stepJob())
	s.Require().Error(err)
	s.Contains(err.Error(), "signing key unavailable")
	s.Empty(s.mailer.Sent)

	logs, err := s.repos.EmailLogRepository.ListByCustomer(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(enum.EmailLogStatusFailed, logs[0].Status)
	s.Equal(enum.EmailTypeRetention, logs[0].EmailType)
	s.Nil(logs[0].DedupeKey)
	s.Contains(logs[0].Detail, "signing key unavailable")
	s.events.AssertExpectations(s.T())
}
