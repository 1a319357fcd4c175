package hashing

import "hash"

// Segmenter is an io.Writer that digests content in fixed-size segments and
// chains the leaf digests as they complete. Bytes must be written in file
// offset order.
type Segmenter struct {
	alg   Algorithm
	size  int64
	cur   hash.Hash
	n     int64 // bytes in the current segment
	total int64
	chain *chain
}

// NewSegmenter panics if size is not positive.
func NewSegmenter(alg Algorithm, size int64) *Segmenter {
	if size <= 0 {
		panic("hashing: segment size must be positive")
	}
	return &Segmenter{
		alg:   alg,
		size:  size,
		cur:   alg.New(),
		chain: newChain(alg),
	}
}

func (s *Segmenter) Write(p []byte) (int, error) {
	written := len(p)
	for len(p) > 0 {
		chunk := p
		if room := s.size - s.n; int64(len(chunk)) > room {
			chunk = p[:room]
		}
		s.cur.Write(chunk)
		s.n += int64(len(chunk))
		s.total += int64(len(chunk))
		p = p[len(chunk):]
		if s.n == s.size {
			s.pushLeaf()
		}
	}
	return written, nil
}

func (s *Segmenter) pushLeaf() {
	s.chain.push(sum(s.cur))
	s.cur.Reset()
	s.n = 0
}

// Leaves returns how many leaf digests have been produced so far.
func (s *Segmenter) Leaves() int {
	return s.chain.leaves
}

// Len returns the number of bytes written.
func (s *Segmenter) Len() int64 {
	return s.total
}

// Finish closes the trailing partial segment, if it holds any bytes, and
// returns the file digest. A remainder of zero bytes never becomes a leaf.
// The Segmenter must not be written to afterwards.
func (s *Segmenter) Finish() Digest {
	if s.n > 0 {
		s.pushLeaf()
	}
	if s.chain.leaves == 0 {
		return s.alg.Empty()
	}
	return s.chain.acc
}
