package forest

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/config"
	"github.com/RocGit/appifi/hashing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testRoot = "/data"

var testModTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// memSource serves file content from memory. Opening a gated path blocks
// until the gate is closed or the job is cancelled.
type memSource struct {
	mu     sync.Mutex
	files  map[string][]byte
	errs   map[string]error
	gates  map[string]chan struct{}
	opens  map[string]int
	opened chan string
}

func newMemSource() *memSource {
	return &memSource{
		files:  make(map[string][]byte),
		errs:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
		opens:  make(map[string]int),
		opened: make(chan string, 64),
	}
}

func (s *memSource) put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

func (s *memSource) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *memSource) fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[path] = err
}

func (s *memSource) gate(path string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := make(chan struct{})
	s.gates[path] = g
	return g
}

func (s *memSource) openCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[path]
}

func (s *memSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opens[path]++
	gate := s.gates[path]
	s.mu.Unlock()

	select {
	case s.opened <- path:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	data, ok := s.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return &memFile{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

type memFile struct {
	*bytes.Reader
	size int64
}

func (f *memFile) Close() error {
	return nil
}

func (f *memFile) Stat() (fs.FileInfo, error) {
	return memInfo{size: f.size}, nil
}

type memInfo struct {
	size int64
}

func (i memInfo) Name() string       { return "" }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o644 }
func (i memInfo) ModTime() time.Time { return testModTime }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }

func newTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.SegmentSize = 64
	cfg.ReadBufferSize = 16
	cfg.MaxJobs = 0
	return cfg
}

func newTestForest(t *testing.T, src hashing.Source, opts ...Option) *Forest {
	t.Helper()
	cfg := newTestConfig()
	h, err := hashing.NewHasher(cfg, hashing.WithSource(src))
	require.NoError(t, err)
	fr, err := New(cfg, NewIndex(), testRoot, append([]Option{WithHasher(h)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(fr.Close)
	return fr
}

func fileX(name string) appifi.Xstat {
	return appifi.Xstat{UUID: uuid.New(), Name: name, Kind: appifi.KindFile, Magic: "JPEG"}
}

func dirX(name string) appifi.Xstat {
	return appifi.Xstat{UUID: uuid.New(), Name: name, Kind: appifi.KindDirectory}
}

func digestPtr(d hashing.Digest) *hashing.Digest {
	return &d
}

// inspect runs fn on the file at rel on the serialized path.
func inspect(t *testing.T, fr *Forest, rel string, fn func(f *File)) {
	t.Helper()
	require.NoError(t, fr.Do(func(root *Directory) error {
		n, err := find(root, rel)
		if err != nil {
			return err
		}
		f, ok := n.(*File)
		require.True(t, ok, "%s is not a file", rel)
		fn(f)
		return nil
	}))
}

func waitOpened(t *testing.T, src *memSource, path string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p := <-src.opened:
			if p == path {
				return
			}
		case <-timeout:
			t.Fatalf("%s was never opened", path)
		}
	}
}

// childNames lists the names under dir.
func childNames(t *testing.T, fr *Forest, rel string) []string {
	t.Helper()
	var names []string
	require.NoError(t, fr.Do(func(root *Directory) error {
		n, err := find(root, rel)
		if err != nil {
			return err
		}
		for _, child := range n.(*Directory).Children() {
			names = append(names, child.Name())
		}
		return nil
	}))
	return names
}
