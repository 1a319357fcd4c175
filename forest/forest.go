// Package forest keeps an in-memory tree mirroring a directory hierarchy and
// maintains a content digest for every typed file in it.
//
// A Forest is the single owner of its tree: every structural operation and
// every hashing job completion runs under one lock. Hashing jobs run in the
// background and are paused around moves so no job reads a path that is
// being relocated.
package forest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/config"
	"github.com/RocGit/appifi/hashing"
	"github.com/RocGit/appifi/internal/util"
	"github.com/google/uuid"
)

type Forest struct {
	mu      sync.Mutex
	cfg     *config.Config
	index   *Index
	hasher  *hashing.Hasher
	root    *Directory
	scanner appifi.Scanner // optional
	stamper appifi.Stamper // optional
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
}

type Option func(*Forest)

// WithScanner lets the forest list directories for Refresh, Load and
// rescans after a file goes missing.
func WithScanner(s appifi.Scanner) Option {
	return func(fr *Forest) {
		fr.scanner = s
	}
}

// WithStamper persists digests after successful jobs.
func WithStamper(s appifi.Stamper) Option {
	return func(fr *Forest) {
		fr.stamper = s
	}
}

// WithHasher replaces the hasher built from the config.
func WithHasher(h *hashing.Hasher) Option {
	return func(fr *Forest) {
		fr.hasher = h
	}
}

// New creates a forest rooted at the directory rootPath. index is shared with
// whoever consumes digest lookups.
func New(cfg *config.Config, index *Index, rootPath string, opts ...Option) (*Forest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(rootPath) {
		return nil, fmt.Errorf("forest root %q is not absolute", rootPath)
	}
	rootPath = filepath.Clean(rootPath)

	fr := &Forest{cfg: cfg, index: index}
	for _, opt := range opts {
		opt(fr)
	}
	if fr.hasher == nil {
		h, err := hashing.NewHasher(cfg)
		if err != nil {
			return nil, err
		}
		fr.hasher = h
	}
	fr.ctx, fr.cancel = context.WithCancel(context.Background())
	fr.root = newDirectory(fr, uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+rootPath)), rootPath)
	return fr, nil
}

// Root returns the root directory. Its name is the absolute root path.
func (fr *Forest) Root() *Directory {
	return fr.root
}

func (fr *Forest) Index() *Index {
	return fr.index
}

// Do runs fn on the serialized path, where Node methods may be called.
func (fr *Forest) Do(fn func(root *Directory) error) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.closed {
		return ErrClosed
	}
	return fn(fr.root)
}

// Reconcile diffs dir's children against xstats. See [Directory.Reconcile].
func (fr *Forest) Reconcile(dir *Directory, xstats []appifi.Xstat) error {
	return fr.Do(func(*Directory) error {
		if !dir.rooted() {
			return fmt.Errorf("reconciling %s: %w", dir.name, ErrDetached)
		}
		return dir.Reconcile(xstats)
	})
}

// Refresh lists dir through the scanner and reconciles the result. The
// listing is read without holding the forest lock; it is discarded if dir
// moved or was detached meanwhile.
func (fr *Forest) Refresh(ctx context.Context, dir *Directory) error {
	if fr.scanner == nil {
		return ErrNoScanner
	}
	var path string
	if err := fr.Do(func(*Directory) error {
		if !dir.rooted() {
			return ErrDetached
		}
		path = dir.AbsPath()
		return nil
	}); err != nil {
		return fmt.Errorf("refreshing %s: %w", dir.name, err)
	}

	xstats, err := fr.scanner.ReadDir(ctx, path)
	if err != nil {
		return fmt.Errorf("listing %s: %w", path, err)
	}

	return fr.Do(func(*Directory) error {
		if !dir.rooted() || dir.AbsPath() != path {
			return fmt.Errorf("refreshing %s: moved during scan: %w", path, ErrDetached)
		}
		return dir.Reconcile(xstats)
	})
}

// Load refreshes the whole tree breadth-first from the root. Errors for
// individual directories are collected and loading continues.
func (fr *Forest) Load(ctx context.Context) error {
	logger := util.GetLogger("Forest.Load")
	start := time.Now()

	var errs []error
	dirs := 0
	queue := []*Directory{fr.root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := queue[0]
		queue = queue[1:]
		if err := fr.Refresh(ctx, dir); err != nil {
			if errors.Is(err, ErrNoScanner) || errors.Is(err, ErrClosed) {
				return err
			}
			errs = append(errs, err)
		}
		dirs++
		fr.Do(func(*Directory) error {
			for _, child := range dir.Children() {
				if sub, ok := child.(*Directory); ok {
					queue = append(queue, sub)
				}
			}
			return nil
		})
	}

	logger.Info().Str("root", fr.root.name).Int("dirs", dirs).Int("errors", len(errs)).
		Dur("elapsed", time.Since(start)).Msg("Forest loaded")
	return errors.Join(errs...)
}

// Move relocates n to dst under newName. The subtree is paused before rename
// runs and resumed after it returns, whether or not it succeeded. If n itself
// was already paused, or lands in a paused directory, it stays paused.
// Pauses are flat: resuming the subtree also resumes descendants that were
// paused on their own. The tree is relinked only on success.
func (fr *Forest) Move(n Node, dst *Directory, newName string, rename func(src, dst string) error) error {
	return fr.Do(func(root *Directory) error {
		b := n.base()
		switch {
		case n == Node(root):
			return errors.New("cannot move the forest root")
		case !b.rooted() || !dst.rooted():
			return fmt.Errorf("moving %s: %w", b.name, ErrDetached)
		case newName == "" || strings.ContainsRune(newName, filepath.Separator):
			return fmt.Errorf("moving %s: invalid name %q", b.name, newName)
		}
		for cur := dst; cur != nil; cur = cur.parent {
			if Node(cur) == n {
				return fmt.Errorf("cannot move %s into itself", b.AbsPath())
			}
		}
		if other, ok := dst.children[newName]; ok && other != n {
			return fmt.Errorf("moving %s: %w: %s", b.name, ErrNameConflict, newName)
		}

		src, target := n.AbsPath(), filepath.Join(dst.AbsPath(), newName)
		relinked := false
		if !n.Paused() {
			if err := n.Pause(); err != nil {
				return fmt.Errorf("moving %s: %w", src, err)
			}
			defer func() {
				if relinked && dst.paused {
					return
				}
				if err := n.Resume(); err != nil {
					logger := util.GetLogger("Forest.Move")
					logger.Error().Err(err).Str("path", n.AbsPath()).Msg("Failed to resume after move")
				}
			}()
		}

		if err := rename(src, target); err != nil {
			return fmt.Errorf("renaming %s to %s: %w", src, target, err)
		}
		if b.parent.children[b.name] == n {
			delete(b.parent.children, b.name)
		}
		b.name = newName
		b.parent = dst
		dst.children[newName] = n
		relinked = true
		return nil
	})
}

// Pause pauses n and everything below it.
func (fr *Forest) Pause(n Node) error {
	return fr.Do(func(*Directory) error { return n.Pause() })
}

// Resume resumes n and everything below it.
func (fr *Forest) Resume(n Node) error {
	return fr.Do(func(*Directory) error { return n.Resume() })
}

// FindByPath resolves a slash-separated path relative to the root.
func (fr *Forest) FindByPath(rel string) (Node, error) {
	var found Node
	err := fr.Do(func(root *Directory) error {
		var err error
		found, err = find(root, rel)
		return err
	})
	return found, err
}

func find(root *Directory, rel string) (Node, error) {
	var cur Node = root
	for _, name := range strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/") {
		if name == "." || name == "" {
			continue
		}
		dir, ok := cur.(*Directory)
		if !ok {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		if cur, ok = dir.children[name]; !ok {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
	}
	return cur, nil
}

// Lookup returns the files whose content has digest d.
func (fr *Forest) Lookup(d hashing.Digest) []*File {
	return fr.index.Lookup(d)
}

// Entry is a snapshot of an indexed file for consumers outside the
// serialized path.
type Entry struct {
	UUID  uuid.UUID
	Name  string
	Path  string
	Magic appifi.Magic
}

// Entries snapshots the files indexed under d, sorted by path.
func (fr *Forest) Entries(d hashing.Digest) []Entry {
	var out []Entry
	fr.Do(func(*Directory) error {
		for _, f := range fr.index.Lookup(d) {
			out = append(out, Entry{UUID: f.uuid, Name: f.name, Path: f.AbsPath(), Magic: f.magic})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Digests returns every indexed digest in ascending order.
func (fr *Forest) Digests() []hashing.Digest {
	out := make([]hashing.Digest, 0, fr.index.Len())
	fr.index.Range(func(d hashing.Digest, _ []*File) bool {
		out = append(out, d)
		return true
	})
	slices.SortFunc(out, func(a, b hashing.Digest) int { return strings.Compare(a.String(), b.String()) })
	return out
}

// Wait blocks until no job, rescan or stamp is running, including work those
// start in turn. It is for quiescent callers: nothing may mutate the tree
// from outside while it blocks.
func (fr *Forest) Wait() {
	fr.hasher.Wait()
}

// Close detaches the whole tree, stopping every job, and waits for
// background work to drain. The root stays in place but empty.
func (fr *Forest) Close() {
	fr.mu.Lock()
	if fr.closed {
		fr.mu.Unlock()
		return
	}
	for _, child := range fr.root.Children() {
		child.Detach()
	}
	fr.closed = true
	fr.cancel()
	fr.mu.Unlock()

	fr.hasher.Wait()
	logger := util.GetLogger("Forest")
	logger.Debug().Str("root", fr.root.name).Msg("Forest closed")
}

func (fr *Forest) newNode(x appifi.Xstat) (Node, error) {
	switch x.Kind {
	case appifi.KindDirectory:
		return newDirectory(fr, x.UUID, x.Name), nil
	case appifi.KindFile:
		return newFile(fr, x)
	}
	return nil, fmt.Errorf("%s: unsupported xstat kind %d", x.Name, x.Kind)
}

// jobDone delivers a job result to f unless the job has been superseded.
func (fr *Forest) jobDone(f *File, j *hashing.Job, res hashing.Result) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if f.job != j {
		logger := util.GetLogger("Forest")
		logger.Trace().Str("path", j.Path()).Str("outcome", res.Outcome().String()).Msg("Dropped stale job result")
		return
	}
	f.job = nil
	f.jobDone(res)
}

// scheduleRefresh rescans dir in the background.
func (fr *Forest) scheduleRefresh(dir *Directory) {
	if fr.scanner == nil || fr.closed {
		return
	}
	fr.hasher.Go(func() {
		if err := fr.Refresh(fr.ctx, dir); err != nil && !errors.Is(err, ErrDetached) && !errors.Is(err, ErrClosed) {
			logger := util.GetLogger("Forest")
			logger.Warn().Err(err).Msg("Rescan failed")
		}
	})
}

// stamp hands a fresh digest to the stamper in the background.
func (fr *Forest) stamp(f *File, res hashing.Result) {
	if fr.stamper == nil || res.ModTime.IsZero() {
		return
	}
	id := f.uuid
	fr.hasher.Go(func() {
		if err := fr.stamper.Stamp(res.Path, id, res.Digest, res.ModTime); err != nil {
			logger := util.GetLogger("Forest")
			logger.Warn().Err(err).Str("path", res.Path).Msg("Failed to stamp digest")
		}
	})
}
