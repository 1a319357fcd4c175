package forest

import "github.com/RocGit/appifi/hashing"

// hashState is a File's hashing state: Hashless{failures} while digest is
// nil, Hashed{digest} otherwise, with orthogonal paused and running flags.
// Transitions are pure; they return the next state and the side effects the
// File must carry out.
type hashState struct {
	digest   *hashing.Digest
	failures int
	paused   bool
	running  bool // a job handle is held
}

// effect is a set of side-effect requests. They are applied in declaration
// order, with the state swap between unindexFile and indexFile.
type effect uint8

const (
	cancelJob effect = 1 << iota
	unindexFile
	indexFile
	startJob
	notifyMissing
	stampDigest
)

func (e effect) has(f effect) bool {
	return e&f != 0
}

func (s hashState) hashed() bool {
	return s.digest != nil
}

// exhausted is the terminal Hashless sub-state reached at the failure cap.
func (s hashState) exhausted(maxFailures int) bool {
	return s.digest == nil && s.failures >= maxFailures
}

// startIfEligible arms a job for an active, idle, hash-less file under the cap.
func (s hashState) startIfEligible(maxFailures int, eff effect) (hashState, effect) {
	if s.digest == nil && !s.paused && !s.running && s.failures < maxFailures {
		s.running = true
		eff |= startJob
	}
	return s, eff
}

func (s hashState) attach(maxFailures int) (hashState, effect) {
	var eff effect
	if s.hashed() {
		eff |= indexFile
	}
	return s.startIfEligible(maxFailures, eff)
}

func (s hashState) detach() (hashState, effect) {
	var eff effect
	if s.running {
		s.running = false
		eff |= cancelJob
	}
	if s.hashed() {
		eff |= unindexFile
	}
	return s, eff
}

func (s hashState) jobDone(maxFailures int, outcome hashing.Outcome, digest hashing.Digest) (hashState, effect) {
	s.running = false
	switch outcome {
	case hashing.OutcomeHashed:
		var eff effect
		if s.hashed() {
			eff |= unindexFile
		}
		s.digest = &digest
		s.failures = 0
		return s, eff | indexFile | stampDigest
	case hashing.OutcomeMissing:
		return s, notifyMissing
	case hashing.OutcomeCancelled:
		return s, 0
	default:
		s.failures++
		return s.startIfEligible(maxFailures, 0)
	}
}

func (s hashState) pause() (hashState, effect, error) {
	if s.paused {
		return s, 0, ErrAlreadyPaused
	}
	var eff effect
	if s.running {
		s.running = false
		eff |= cancelJob
	}
	s.paused = true
	return s, eff, nil
}

func (s hashState) resume(maxFailures int) (hashState, effect, error) {
	if !s.paused {
		return s, 0, ErrNotPaused
	}
	s.paused = false
	next, eff := s.startIfEligible(maxFailures, 0)
	return next, eff, nil
}

// update applies an xstat refresh. renamed means the content now lives at a
// new path, so any in-flight job is stale.
func (s hashState) update(maxFailures int, renamed bool, digest *hashing.Digest) (hashState, effect) {
	changed := !sameDigest(s.digest, digest)
	if !renamed && !changed {
		return s, 0
	}
	var eff effect
	if s.running && (renamed || (changed && digest != nil)) {
		s.running = false
		eff |= cancelJob
	}
	if changed {
		if s.hashed() {
			eff |= unindexFile
		}
		if digest != nil {
			d := *digest
			s.digest = &d
			eff |= indexFile
		} else {
			s.digest = nil
		}
		s.failures = 0
	}
	return s.startIfEligible(maxFailures, eff)
}

func sameDigest(a, b *hashing.Digest) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
