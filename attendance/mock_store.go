package attendance

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mock.Mock
}

// Put implements the Store interface
func (m *MockStore) Put(ctx context.Context, rec Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// Get implements the Store interface
func (m *MockStore) Get(ctx context.Context, key Key) (*Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

// ListForOccurrence implements the Store interface
func (m *MockStore) ListForOccurrence(ctx context.Context, eventID string, occurrenceStart time.Time) ([]Record, error) {
	args := m.Called(ctx, eventID, occurrenceStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}
