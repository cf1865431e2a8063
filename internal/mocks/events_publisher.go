package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/reviewloop/reviewloop/dto"
)

type EventsPublisher struct {
	mock.Mock
}

func (m *EventsPublisher) PublishEngagementEvent(ctx context.Context, event dto.EngagementEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventsPublisher) Close() error {
	return m.Called().Error(0)
}
