package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockResponder is a mock implementation of Responder using testify/mock.
type MockResponder struct {
	mock.Mock
}

func (m *MockResponder) Serve(ctx context.Context, subject, group string, handler Handler) error {
	args := m.Called(ctx, subject, group, handler)
	return args.Error(0)
}
