package scheduler

import (
	"time"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/utils"
)

// history is what the committed sends of one customer tell the engine
type history struct {
	reviewSent      bool
	sentSteps       map[string]bool
	lastProgramSend map[string]time.Time
}

func newHistory() *history {
	return &history{
		sentSteps:       make(map[string]bool),
		lastProgramSend: make(map[string]time.Time),
	}
}

func (h *history) record(log *models.EmailLog) {
	if log.Status != enum.EmailLogStatusSent {
		return
	}
	switch log.EmailType {
	case enum.EmailTypeReview:
		h.reviewSent = true
	case enum.EmailTypeRetention:
		if log.StepID != nil {
			h.sentSteps[*log.StepID] = true
		}
		if log.ProgramID != nil {
			if last, ok := h.lastProgramSend[*log.ProgramID]; !ok || log.CreatedAt.After(last) {
				h.lastProgramSend[*log.ProgramID] = log.CreatedAt
			}
		}
	}
}

// buildHistories groups a tenant's committed sends per customer
func buildHistories(logs []*models.EmailLog) map[string]*history {
	histories := make(map[string]*history)
	for _, log := range logs {
		h, ok := histories[log.CustomerID]
		if !ok {
			h = newHistory()
			histories[log.CustomerID] = h
		}
		h.record(log)
	}
	return histories
}

// reviewDue is true on the exact configured day after the visit, once per customer
func reviewDue(tenant *models.Tenant, customer *models.Customer, h *history, now time.Time) bool {
	if !tenant.EnableGlobalReviewEmail || h.reviewSent {
		return false
	}
	return utils.DaysBetween(customer.LastVisitDate, now) == tenant.DefaultReviewDelayDays
}

type stepDecision int

const (
	stepNone stepDecision = iota
	stepDue
	stepNotYetDue
	stepCoolingDown
)

// nextStep walks the enabled steps in offset order and looks at the first one
// not yet sent. Later steps are never considered ahead of it, so a customer
// gets at most one step per cycle.
func nextStep(program *models.RetentionProgram, customer *models.Customer, h *history, now time.Time) (*models.ProgramStep, stepDecision) {
	if program == nil || !program.IsSchedulable() {
		return nil, stepNone
	}

	age := utils.DaysBetween(customer.LastVisitDate, now)
	for _, step := range program.SchedulingOrder() {
		if h.sentSteps[step.ID] {
			continue
		}
		if age < step.OffsetDays {
			return nil, stepNotYetDue
		}
		if last, ok := h.lastProgramSend[program.ID]; ok && utils.DaysBetween(last, now) < step.CooldownDays {
			return nil, stepCoolingDown
		}
		due := step
		return &due, stepDue
	}
	return nil, stepNone
}
