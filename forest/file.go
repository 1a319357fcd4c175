package forest

import (
	"fmt"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/hashing"
	"github.com/RocGit/appifi/internal/util"
)

// File is a forest leaf: a file with a definite content type whose digest is
// maintained by background hashing jobs.
type File struct {
	node
	magic appifi.Magic
	state hashState
	job   *hashing.Job
}

var _ Node = (*File)(nil)

func newFile(fr *Forest, x appifi.Xstat) (*File, error) {
	if x.Kind != appifi.KindFile {
		return nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, x.Name, x.Kind)
	}
	if !x.Magic.Definite() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMagic, x.Name)
	}
	f := &File{
		node:  node{forest: fr, uuid: x.UUID, name: x.Name},
		magic: x.Magic,
	}
	if x.Digest != nil {
		d := *x.Digest
		f.state.digest = &d
	}
	return f, nil
}

// Magic returns the content type tag.
func (f *File) Magic() appifi.Magic {
	return f.magic
}

// Digest returns the content digest, if known.
func (f *File) Digest() (hashing.Digest, bool) {
	if f.state.digest == nil {
		return hashing.Digest{}, false
	}
	return *f.state.digest, true
}

// Failures returns the consecutive transient failure count.
func (f *File) Failures() int {
	return f.state.failures
}

func (f *File) Paused() bool {
	return f.state.paused
}

// Hashing reports whether a job is active.
func (f *File) Hashing() bool {
	return f.job != nil
}

// Attach registers f under parent, indexes it if hashed and otherwise starts
// hashing unless paused or out of retries. A file attached under a paused
// directory starts paused.
func (f *File) Attach(parent *Directory) error {
	if err := f.link(f, parent); err != nil {
		return err
	}
	if parent.paused {
		f.state.paused = true
	}
	next, eff := f.state.attach(f.forest.cfg.MaxFailures)
	f.apply(next, eff, nil)
	return nil
}

// Detach stops any job and unindexes before unregistering from the parent.
func (f *File) Detach() {
	next, eff := f.state.detach()
	f.apply(next, eff, nil)
	f.unlink(f)
}

// Update applies a fresh xstat for the same file. A new name restarts an
// in-flight job against the new path; a new digest reindexes the file.
func (f *File) Update(x appifi.Xstat) error {
	if err := checkXstat(f, x, appifi.KindFile); err != nil {
		return err
	}
	if !x.Magic.Definite() {
		return fmt.Errorf("%w: %s", ErrUnknownMagic, x.Name)
	}
	f.magic = x.Magic

	renamed := x.Name != f.name
	if renamed {
		if err := f.rename(f, x.Name); err != nil {
			return err
		}
	}
	next, eff := f.state.update(f.forest.cfg.MaxFailures, renamed, x.Digest)
	f.apply(next, eff, nil)
	return nil
}

// Pause cancels any active job and keeps new ones from starting.
func (f *File) Pause() error {
	next, eff, err := f.state.pause()
	if err != nil {
		return fmt.Errorf("pausing %s: %w", f.name, err)
	}
	f.apply(next, eff, nil)
	return nil
}

// Resume lifts a pause and restarts hashing if the file still needs it.
func (f *File) Resume() error {
	next, eff, err := f.state.resume(f.forest.cfg.MaxFailures)
	if err != nil {
		return fmt.Errorf("resuming %s: %w", f.name, err)
	}
	f.apply(next, eff, nil)
	return nil
}

// jobDone receives the result of f's current job.
func (f *File) jobDone(res hashing.Result) {
	logger := util.GetLogger("File")
	maxFailures := f.forest.cfg.MaxFailures
	next, eff := f.state.jobDone(maxFailures, res.Outcome(), res.Digest)

	switch res.Outcome() {
	case hashing.OutcomeHashed:
		logger.Debug().Str("path", res.Path).Str("digest", res.Digest.String()).Msg("File hashed")
	case hashing.OutcomeTransient:
		if next.exhausted(maxFailures) {
			logger.Warn().Err(res.Err).Str("path", res.Path).Int("failures", next.failures).Msg("Hashing retries exhausted")
		} else {
			logger.Debug().Err(res.Err).Str("path", res.Path).Int("failures", next.failures).Msg("Hashing failed, retrying")
		}
	}
	f.apply(next, eff, &res)
}

// apply swaps in next and carries out eff around the swap.
func (f *File) apply(next hashState, eff effect, res *hashing.Result) {
	fr := f.forest
	if eff.has(cancelJob) && f.job != nil {
		f.job.Cancel()
		f.job = nil
	}
	if eff.has(unindexFile) {
		fr.index.Unindex(f)
	}
	f.state = next
	if eff.has(indexFile) {
		fr.index.Index(f) // digest is set by every transition requesting this
	}
	if eff.has(startJob) {
		f.startJob()
	}
	if eff.has(notifyMissing) && f.parent != nil {
		f.parent.fileMissing(f, res.Err)
	}
	if eff.has(stampDigest) {
		fr.stamp(f, *res)
	}
}

func (f *File) startJob() {
	if f.job != nil {
		panic(fmt.Sprintf("forest: second hash job for %s (%s)", f.AbsPath(), f.uuid))
	}
	fr := f.forest
	f.job = fr.hasher.Start(fr.ctx, f.AbsPath(), func(j *hashing.Job, res hashing.Result) {
		fr.jobDone(f, j, res)
	})
}
