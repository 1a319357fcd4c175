package forest

import "errors"

var (
	ErrAlreadyPaused = errors.New("already paused")
	ErrNotPaused     = errors.New("not paused")
	ErrUnknownMagic  = errors.New("content type tag is not definite")
	ErrUUIDMismatch  = errors.New("xstat uuid does not match node")
	ErrKindMismatch  = errors.New("xstat kind does not match node")
	ErrNameConflict  = errors.New("name already taken in directory")
	ErrDetached      = errors.New("node is not attached to the forest")
	ErrNotFound      = errors.New("no such node")
	ErrHashless      = errors.New("file has no digest")
	ErrNoScanner     = errors.New("forest has no scanner")
	ErrClosed        = errors.New("forest is closed")
)
