package hashing

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/RocGit/appifi/config"
	"github.com/stretchr/testify/require"
)

func newTestConfig(segment int64) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.SegmentSize = segment
	cfg.ReadBufferSize = 16
	cfg.MaxJobs = 0
	return cfg
}

func newTestHasher(t *testing.T, segment int64, opts ...HasherOption) *Hasher {
	t.Helper()
	h, err := NewHasher(newTestConfig(segment), opts...)
	require.NoError(t, err)
	return h
}

type sourceFunc func(ctx context.Context, path string) (io.ReadCloser, error)

func (f sourceFunc) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return f(ctx, path)
}

// blockingSource hands out readers that block until the job is cancelled.
type blockingSource struct {
	opened chan struct{}
	once   sync.Once
}

func (s *blockingSource) Open(ctx context.Context, _ string) (io.ReadCloser, error) {
	s.once.Do(func() { close(s.opened) })
	return io.NopCloser(ctxReader{ctx}), nil
}

type ctxReader struct {
	ctx context.Context
}

func (r ctxReader) Read([]byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
