package testing

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore is a mock of the object store reports are archived to.
type MockObjectStore struct {
	mock.Mock
}

// EnsureBucket records the call.
func (m *MockObjectStore) EnsureBucket(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

// PutObject records the call.
func (m *MockObjectStore) PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error {
	args := m.Called(ctx, bucket, key, contentType, data)
	return args.Error(0)
}
