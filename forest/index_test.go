package forest

import (
	"testing"

	"github.com/RocGit/appifi/hashing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedFile(t *testing.T, name string, d *hashing.Digest) *File {
	t.Helper()
	x := fileX(name)
	x.Digest = d
	f, err := newFile(nil, x)
	require.NoError(t, err)
	return f
}

func TestIndex_IndexIsIdempotent(t *testing.T) {
	t.Parallel()
	d := hashing.SHA256.Sum([]byte("same"))
	idx := NewIndex()
	a := indexedFile(t, "a.jpg", &d)
	b := indexedFile(t, "b.jpg", &d)

	require.NoError(t, idx.Index(a))
	require.NoError(t, idx.Index(a))
	require.NoError(t, idx.Index(b))

	assert.ElementsMatch(t, []*File{a, b}, idx.Lookup(d))
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_Unindex(t *testing.T) {
	t.Parallel()
	d := hashing.SHA256.Sum([]byte("same"))
	idx := NewIndex()
	a := indexedFile(t, "a.jpg", &d)
	b := indexedFile(t, "b.jpg", &d)
	require.NoError(t, idx.Index(a))
	require.NoError(t, idx.Index(b))

	idx.Unindex(a)
	idx.Unindex(a)
	assert.Equal(t, []*File{b}, idx.Lookup(d))

	idx.Unindex(b)
	assert.Empty(t, idx.Lookup(d))
	assert.Zero(t, idx.Len())
}

func TestIndex_LookupReturnsCopy(t *testing.T) {
	t.Parallel()
	d := hashing.SHA256.Sum([]byte("same"))
	idx := NewIndex()
	a := indexedFile(t, "a.jpg", &d)
	require.NoError(t, idx.Index(a))

	files := idx.Lookup(d)
	files[0] = nil
	assert.Equal(t, []*File{a}, idx.Lookup(d))
}

func TestIndex_Hashless(t *testing.T) {
	t.Parallel()
	idx := NewIndex()
	f := indexedFile(t, "a.jpg", nil)

	assert.ErrorIs(t, idx.Index(f), ErrHashless)
	idx.Unindex(f)
	assert.Zero(t, idx.Len())
}

func TestIndex_Range(t *testing.T) {
	t.Parallel()
	d1 := hashing.SHA256.Sum([]byte("one"))
	d2 := hashing.SHA256.Sum([]byte("two"))
	idx := NewIndex()
	require.NoError(t, idx.Index(indexedFile(t, "a.jpg", &d1)))
	require.NoError(t, idx.Index(indexedFile(t, "b.jpg", &d2)))

	seen := map[hashing.Digest]int{}
	idx.Range(func(d hashing.Digest, files []*File) bool {
		seen[d] = len(files)
		return true
	})
	assert.Equal(t, map[hashing.Digest]int{d1: 1, d2: 1}, seen)
}
