// Package hashing computes content digests for forest files.
//
// Content shorter than the configured segment size is digested in a single
// pass. Longer content is cut into fixed-size segments in offset order; each
// segment yields a leaf digest and the leaves are folded left to right,
// combined = H(combined || leaf), into the file digest. A file with a single
// leaf has that leaf as its digest.
package hashing

import (
	"encoding/hex"
	"fmt"
)

// Size is the length in bytes of every digest produced by this package
const Size = 32

// Digests of zero-length content, lowercase hex
const (
	EmptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	EmptyBLAKE3 = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
)

// Digest is a fixed-length content hash.
type Digest [Size]byte

// String returns the lowercase hex encoding used as the canonical form in
// xstat records, logs and index lookups.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses a 64-character lowercase hex string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*Size {
		return d, fmt.Errorf("digest is %d characters, want %d", len(s), 2*Size)
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return d, fmt.Errorf("digest %q is not lowercase hex", s)
		}
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	return d, nil
}

// DigestFromBytes copies a raw digest, rejecting the wrong length.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(b), Size)
	}
	copy(d[:], b)
	return d, nil
}

func mustParse(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}
