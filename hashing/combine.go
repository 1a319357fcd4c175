package hashing

import "hash"

// Combine folds leaf digests left to right into a file digest:
// H(H(l0||l1)||l2)... A single leaf is returned unchanged and no leaves
// yield the empty-content digest.
func Combine(alg Algorithm, leaves []Digest) Digest {
	if len(leaves) == 0 {
		return alg.Empty()
	}
	c := newChain(alg)
	for _, leaf := range leaves {
		c.push(leaf)
	}
	return c.acc
}

// chain holds the running left fold of leaf digests. One hasher and one
// scratch buffer are reused for every pair.
type chain struct {
	h      hash.Hash
	acc    Digest
	leaves int
	pair   [2 * Size]byte
}

func newChain(alg Algorithm) *chain {
	return &chain{h: alg.New()}
}

func (c *chain) push(leaf Digest) {
	c.leaves++
	if c.leaves == 1 {
		c.acc = leaf
		return
	}
	copy(c.pair[:Size], c.acc[:])
	copy(c.pair[Size:], leaf[:])
	c.h.Reset()
	c.h.Write(c.pair[:])
	c.acc = sum(c.h)
}
