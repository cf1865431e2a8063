package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/reviewloop/reviewloop/dto"
)

type Mailer struct {
	mock.Mock

	mu   sync.Mutex
	Sent []dto.OutboundEmail
}

func (m *Mailer) Send(ctx context.Context, email dto.OutboundEmail) error {
	args := m.Called(ctx, email)
	err := args.Error(0)
	if err == nil {
		m.mu.Lock()
		m.Sent = append(m.Sent, email)
		m.mu.Unlock()
	}
	return err
}

// SentTo returns the successful sends addressed to the recipient
func (m *Mailer) SentTo(to string) []dto.OutboundEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []dto.OutboundEmail
	for _, email := range m.Sent {
		if email.To == to {
			result = append(result, email)
		}
	}
	return result
}
