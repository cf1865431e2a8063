package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/enum"
)

func TestEmailLogConstructors(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	customer := &Customer{ID: "cust_1", TenantID: "tnt_1"}
	step := &ProgramStep{ID: "step_1", ProgramID: "prog_1"}

	review := NewReviewSentLog(customer, now)
	require.NoError(t, review.Validate())
	assert.Equal(t, enum.EmailTypeReview, review.EmailType)
	assert.Equal(t, "review:cust_1", *review.DedupeKey)

	sent := NewStepSentLog(customer, step, now)
	require.NoError(t, sent.Validate())
	assert.Equal(t, "step:step_1:cust_1", *sent.DedupeKey)
	assert.Equal(t, "prog_1", *sent.ProgramID)

	failed := NewFailedLog(customer, step, "smtp timeout", now)
	require.NoError(t, failed.Validate())
	assert.Nil(t, failed.DedupeKey)
	assert.Equal(t, enum.EmailTypeRetention, failed.EmailType)

	reviewFailed := NewFailedLog(customer, nil, "boom", now)
	require.NoError(t, reviewFailed.Validate())
	assert.Equal(t, enum.EmailTypeReview, reviewFailed.EmailType)

	click := NewClickLog(customer, "", "", now)
	require.NoError(t, click.Validate())
	assert.Equal(t, enum.EmailTypeReview, click.EmailType)
	assert.Nil(t, click.DedupeKey)

	stepClick := NewClickLog(customer, "prog_1", "step_1", now)
	require.NoError(t, stepClick.Validate())
	assert.Equal(t, enum.EmailTypeRetention, stepClick.EmailType)
}

func TestEmailLog_ValidateRejectsMismatchedAttribution(t *testing.T) {
	stepID := "step_1"

	assert.Error(t, (&EmailLog{EmailType: enum.EmailTypeReview, Status: enum.EmailLogStatusSent, StepID: &stepID}).Validate())
	assert.Error(t, (&EmailLog{EmailType: enum.EmailTypeRetention, Status: enum.EmailLogStatusSent}).Validate())
	assert.Error(t, (&EmailLog{EmailType: "newsletter", Status: enum.EmailLogStatusSent}).Validate())
}
