package mocks

import (
	"context"
	"io"
	"time"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/hashing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSource implements hashing.Source for testing across packages
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)

	// Handle function return types (for readers built per call)
	if fn, ok := args.Get(0).(func(context.Context, string) io.ReadCloser); ok {
		return fn(ctx, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

var _ hashing.Source = (*MockSource)(nil)

// MockScanner implements appifi.Scanner for testing across packages
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) ReadDir(ctx context.Context, dir string) ([]appifi.Xstat, error) {
	args := m.Called(ctx, dir)

	if fn, ok := args.Get(0).(func(context.Context, string) []appifi.Xstat); ok {
		return fn(ctx, dir), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appifi.Xstat), args.Error(1)
}

var _ appifi.Scanner = (*MockScanner)(nil)

// MockStamper implements appifi.Stamper for testing across packages
type MockStamper struct {
	mock.Mock
}

func (m *MockStamper) Stamp(path string, id uuid.UUID, digest hashing.Digest, modTime time.Time) error {
	args := m.Called(path, id, digest, modTime)
	return args.Error(0)
}

var _ appifi.Stamper = (*MockStamper)(nil)
