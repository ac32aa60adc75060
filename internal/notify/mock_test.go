package notify

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, e Email) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type failingStore struct{ Store }

func (failingStore) Create(context.Context, *Notification) error { return errStore }
