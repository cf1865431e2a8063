package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomerStatus_Advances(t *testing.T) {
	assert.True(t, CustomerStatusPending.Advances(CustomerStatusContacted))
	assert.True(t, CustomerStatusPending.Advances(CustomerStatusReviewed))
	assert.True(t, CustomerStatusContacted.Advances(CustomerStatusReviewed))

	assert.False(t, CustomerStatusReviewed.Advances(CustomerStatusContacted))
	assert.False(t, CustomerStatusReviewed.Advances(CustomerStatusReviewed))
	assert.False(t, CustomerStatusContacted.Advances(CustomerStatusPending))
	assert.True(t, CustomerStatus("").Advances(CustomerStatusPending))
}

func TestStatusesBefore(t *testing.T) {
	assert.Equal(t, []CustomerStatus{CustomerStatusPending}, StatusesBefore(CustomerStatusContacted))
	assert.Equal(t, []CustomerStatus{CustomerStatusPending, CustomerStatusContacted}, StatusesBefore(CustomerStatusReviewed))
	assert.Empty(t, StatusesBefore(CustomerStatusPending))
}
