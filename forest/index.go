package forest

import (
	"slices"

	"github.com/RocGit/appifi/hashing"
	"github.com/RocGit/appifi/internal/metrics"
	"github.com/puzpuzpuz/xsync/v4"
)

// Index maps a digest to the set of files sharing that content.
//
// Writes happen on the forest's serialized path. Each set is replaced rather
// than modified, so lookups may run concurrently from any goroutine.
type Index struct {
	digests *xsync.Map[hashing.Digest, []*File]
}

func NewIndex() *Index {
	return &Index{digests: xsync.NewMap[hashing.Digest, []*File]()}
}

// Index adds f under its current digest. Adding a file already present is a no-op.
func (idx *Index) Index(f *File) error {
	d, ok := f.Digest()
	if !ok {
		return ErrHashless
	}
	files, _ := idx.digests.Load(d)
	if slices.Contains(files, f) {
		return nil
	}
	next := make([]*File, len(files), len(files)+1)
	copy(next, files)
	idx.digests.Store(d, append(next, f))
	metrics.SetIndexDigests(idx.digests.Size())
	return nil
}

// Unindex removes f from the set of its current digest. It must run before
// the digest is overwritten.
func (idx *Index) Unindex(f *File) {
	d, ok := f.Digest()
	if !ok {
		return
	}
	files, _ := idx.digests.Load(d)
	i := slices.Index(files, f)
	if i < 0 {
		return
	}
	if len(files) == 1 {
		idx.digests.Delete(d)
	} else {
		idx.digests.Store(d, slices.Delete(slices.Clone(files), i, i+1))
	}
	metrics.SetIndexDigests(idx.digests.Size())
}

// Lookup returns the files sharing digest d.
func (idx *Index) Lookup(d hashing.Digest) []*File {
	files, _ := idx.digests.Load(d)
	return slices.Clone(files)
}

// Len returns the number of distinct digests.
func (idx *Index) Len() int {
	return idx.digests.Size()
}

// Range calls fn for each digest until fn returns false. files must not be modified.
func (idx *Index) Range(fn func(d hashing.Digest, files []*File) bool) {
	idx.digests.Range(fn)
}

