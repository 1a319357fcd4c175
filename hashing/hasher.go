package hashing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/RocGit/appifi/config"
	"github.com/RocGit/appifi/internal/metrics"
	"github.com/RocGit/appifi/internal/util"
)

// Result is what a finished job delivers to its completion callback.
type Result struct {
	Path    string
	Digest  Digest // valid only when Err is nil
	Size    int64
	Leaves  int
	ModTime time.Time // zero when the source cannot stat
	Err     error
}

func (r Result) Outcome() Outcome {
	return Classify(r.Err)
}

// Job is the handle of one running hashing task.
type Job struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Path returns the path the job reads. It is fixed at start.
func (j *Job) Path() string {
	return j.path
}

// Cancel requests cooperative cancellation and returns immediately.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed once the job has stopped.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result is valid after Done is closed.
func (j *Job) Result() Result {
	<-j.done
	return j.result
}

// Hasher launches hashing jobs and tracks every background task it runs.
type Hasher struct {
	alg         Algorithm
	segmentSize int64
	bufSize     int
	timeout     time.Duration
	source      Source
	slots       chan struct{} // nil when unlimited
	wg          sync.WaitGroup
}

type HasherOption func(*Hasher)

// WithSource replaces the local file system as content source.
func WithSource(src Source) HasherOption {
	return func(h *Hasher) {
		h.source = src
	}
}

func NewHasher(cfg *config.Config, opts ...HasherOption) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	alg, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	h := &Hasher{
		alg:         alg,
		segmentSize: cfg.SegmentSize,
		bufSize:     cfg.ReadBufferSize,
		timeout:     cfg.JobTimeoutDuration(),
		source:      OSSource{},
	}
	if cfg.MaxJobs > 0 {
		h.slots = make(chan struct{}, cfg.MaxJobs)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

// Start launches a job reading path under ctx. onDone runs on the job's
// goroutine after Done is closed; a task it starts through the Hasher is
// tracked before this job is released, so Wait covers the chain.
func (h *Hasher) Start(ctx context.Context, path string, onDone func(*Job, Result)) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{path: path, cancel: cancel, done: make(chan struct{})}
	metrics.RecordJobStarted()

	h.Go(func() {
		defer cancel()
		res := h.run(ctx, path)
		j.result = res
		close(j.done)
		metrics.RecordJobFinished(res.Outcome().String(), res.Size)
		if onDone != nil {
			onDone(j, res)
		}
	})
	return j
}

// Go runs fn as a tracked background task.
func (h *Hasher) Go(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// Wait blocks until every job and task has returned. Jobs and tasks may
// start more work from inside themselves, but callers outside them must not
// call Start or Go while Wait is blocked.
func (h *Hasher) Wait() {
	h.wg.Wait()
}

func (h *Hasher) run(ctx context.Context, path string) (res Result) {
	logger := util.GetLogger("Hasher")
	res.Path = path
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	defer func() {
		// a failure observed after cancellation is the cancellation
		if res.Err != nil && ctx.Err() != nil {
			res.Err = jobCtxErr(ctx.Err())
		}
	}()

	if h.slots != nil {
		select {
		case h.slots <- struct{}{}:
			defer func() { <-h.slots }()
		case <-ctx.Done():
			res.Err = ctx.Err()
			return
		}
	}

	rc, err := h.source.Open(ctx, path)
	if err != nil {
		res.Err = fmt.Errorf("opening %s for hashing: %w", path, err)
		return
	}
	defer rc.Close()
	if st, ok := rc.(statter); ok {
		if fi, err := st.Stat(); err == nil {
			res.ModTime = fi.ModTime()
		}
	}

	seg := NewSegmenter(h.alg, h.segmentSize)
	buf := make([]byte, h.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return
		}
		n, err := rc.Read(buf)
		if n > 0 {
			seg.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Err = fmt.Errorf("hashing %s: %w", path, err)
			return
		}
	}

	res.Digest = seg.Finish()
	res.Size = seg.Len()
	res.Leaves = seg.Leaves()
	logger.Trace().Str("path", path).Int64("size", res.Size).Int("leaves", res.Leaves).Msg("Hashed")
	return
}

func jobCtxErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return fmt.Errorf("hash job timed out: %w", err)
}
