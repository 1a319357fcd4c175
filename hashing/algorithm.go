package hashing

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Algorithm names the digest function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

var (
	emptySHA256 = mustParse(EmptySHA256)
	emptyBLAKE3 = mustParse(EmptyBLAKE3)
)

func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(name); a {
	case SHA256, BLAKE3:
		return a, nil
	}
	return "", fmt.Errorf("unknown digest algorithm %q", name)
}

// New returns a fresh streaming hasher.
func (a Algorithm) New() hash.Hash {
	if a == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// Empty returns the digest of zero-length content.
func (a Algorithm) Empty() Digest {
	if a == BLAKE3 {
		return emptyBLAKE3
	}
	return emptySHA256
}

// Sum digests b in one pass.
func (a Algorithm) Sum(b []byte) Digest {
	h := a.New()
	h.Write(b)
	return sum(h)
}

func sum(h hash.Hash) Digest {
	var d Digest
	h.Sum(d[:0])
	return d
}
