package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/mocks"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/utils"
)

func sentStep(customerID string, step models.ProgramStep, at time.Time) *models.EmailLog {
	customer := &models.Customer{ID: customerID, TenantID: "tnt_1"}
	return models.NewStepSentLog(customer, &step, at)
}

func TestReviewDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	tenant := &models.Tenant{EnableGlobalReviewEmail: true, DefaultReviewDelayDays: 3}
	customer := &models.Customer{ID: "cust_1", LastVisitDate: now.AddDate(0, 0, -3)}

	assert.True(t, reviewDue(tenant, customer, newHistory(), now))
	assert.False(t, reviewDue(tenant, customer, newHistory(), now.AddDate(0, 0, 1)))
	assert.False(t, reviewDue(tenant, customer, newHistory(), now.AddDate(0, 0, -1)))

	h := buildHistories([]*models.EmailLog{models.NewReviewSentLog(customer, now)})[customer.ID]
	assert.False(t, reviewDue(tenant, customer, h, now))

	disabled := &models.Tenant{EnableGlobalReviewEmail: false, DefaultReviewDelayDays: 3}
	assert.False(t, reviewDue(disabled, customer, newHistory(), now))
}

func TestReviewDueIgnoresFailedAndClickedRows(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	tenant := &models.Tenant{EnableGlobalReviewEmail: true, DefaultReviewDelayDays: 0}
	customer := &models.Customer{ID: "cust_1", TenantID: "tnt_1", LastVisitDate: now}

	h := buildHistories([]*models.EmailLog{
		models.NewFailedLog(customer, nil, "smtp down", now),
		models.NewClickLog(customer, "", "", now),
	})[customer.ID]
	assert.True(t, reviewDue(tenant, customer, h, now))
}

func TestNextStep(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	first := models.ProgramStep{ID: "step_a", ProgramID: "prog_1", StepOrder: 1, OffsetDays: 30, CooldownDays: 14, Enabled: true}
	second := models.ProgramStep{ID: "step_b", ProgramID: "prog_1", StepOrder: 2, OffsetDays: 50, CooldownDays: 14, Enabled: true}
	program := &models.RetentionProgram{ID: "prog_1", Enabled: true, Steps: []models.ProgramStep{second, first}}

	visit := now.AddDate(0, 0, -45)
	customer := &models.Customer{ID: "cust_1", LastVisitDate: visit}

	t.Run("first due step by offset", func(t *testing.T) {
		step, decision := nextStep(program, customer, newHistory(), now)
		require.Equal(t, stepDue, decision)
		assert.Equal(t, "step_a", step.ID)
	})

	t.Run("not yet due", func(t *testing.T) {
		young := &models.Customer{ID: "cust_1", LastVisitDate: now.AddDate(0, 0, -29)}
		step, decision := nextStep(program, young, newHistory(), now)
		assert.Nil(t, step)
		assert.Equal(t, stepNotYetDue, decision)
	})

	t.Run("cooldown boundary", func(t *testing.T) {
		sentAt := visit.AddDate(0, 0, 50)
		h := buildHistories([]*models.EmailLog{sentStep(customer.ID, first, sentAt)})[customer.ID]

		_, decision := nextStep(program, customer, h, sentAt.AddDate(0, 0, 5))
		assert.Equal(t, stepCoolingDown, decision)
		_, decision = nextStep(program, customer, h, sentAt.AddDate(0, 0, 13))
		assert.Equal(t, stepCoolingDown, decision)

		step, decision := nextStep(program, customer, h, sentAt.AddDate(0, 0, 14))
		require.Equal(t, stepDue, decision)
		assert.Equal(t, "step_b", step.ID)
	})

	t.Run("all sent", func(t *testing.T) {
		h := buildHistories([]*models.EmailLog{
			sentStep(customer.ID, first, visit.AddDate(0, 0, 30)),
			sentStep(customer.ID, second, visit.AddDate(0, 0, 50)),
		})[customer.ID]
		step, decision := nextStep(program, customer, h, now.AddDate(1, 0, 0))
		assert.Nil(t, step)
		assert.Equal(t, stepNone, decision)
	})

	t.Run("earlier step blocks later ones", func(t *testing.T) {
		old := &models.Customer{ID: "cust_1", LastVisitDate: now.AddDate(0, 0, -100)}
		step, decision := nextStep(program, old, newHistory(), now)
		require.Equal(t, stepDue, decision)
		assert.Equal(t, "step_a", step.ID)
	})

	t.Run("disabled", func(t *testing.T) {
		off := &models.RetentionProgram{ID: "prog_1", Enabled: false, Steps: []models.ProgramStep{first}}
		_, decision := nextStep(off, customer, newHistory(), now)
		assert.Equal(t, stepNone, decision)

		disabledStep := first
		disabledStep.Enabled = false
		onlyDisabled := &models.RetentionProgram{ID: "prog_1", Enabled: true, Steps: []models.ProgramStep{disabledStep}}
		_, decision = nextStep(onlyDisabled, customer, newHistory(), now)
		assert.Equal(t, stepNone, decision)

		_, decision = nextStep(nil, customer, newHistory(), now)
		assert.Equal(t, stepNone, decision)
	})
}

func TestHistoryKeepsLatestProgramSend(t *testing.T) {
	step := models.ProgramStep{ID: "step_a", ProgramID: "prog_1"}
	early := utils.Now().AddDate(0, 0, -10)
	late := utils.Now()

	h := buildHistories([]*models.EmailLog{
		sentStep("cust_1", step, late),
		sentStep("cust_1", step, early),
	})["cust_1"]
	require.NotNil(t, h)
	assert.Equal(t, late, h.lastProgramSend["prog_1"])
	assert.True(t, h.sentSteps["step_a"])

	failed := models.NewFailedLog(&models.Customer{ID: "cust_2"}, &step, "boom", late)
	require.Equal(t, enum.EmailLogStatusFailed, failed.Status)
	h = buildHistories([]*models.EmailLog{failed})["cust_2"]
	assert.False(t, h.sentSteps["step_a"])
}

func TestWorkersStayBelowPoolSize(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		expected int
	}{
		{"default", Config{}, 1},
		{"unknown pool", Config{Workers: 8}, 8},
		{"fits the pool", Config{Workers: 4, MaxDBConns: 10}, 4},
		{"equal to the pool", Config{Workers: 10, MaxDBConns: 10}, 9},
		{"above the pool", Config{Workers: 20, MaxDBConns: 5}, 4},
		{"single connection", Config{Workers: 3, MaxDBConns: 1}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.cfg.effectiveWorkers())
		})
	}

	e := NewEngine(Config{Workers: 50, MaxDBConns: 50}, mocks.NewLogger(), nil, nil).(*engine)
	assert.Equal(t, 49, e.cfg.Workers)
}
