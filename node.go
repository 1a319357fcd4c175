// Package appifi contains the domain records shared by the forest, its
// hashing pipeline and the directory scanner.
package appifi

import (
	"time"

	"github.com/RocGit/appifi/hashing"
	"github.com/google/uuid"
)

// Kind distinguishes file and directory xstat records
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	}
	return "unknown"
}

// Magic is the detected content-type tag of a file, e.g. "JPEG".
// The empty Magic is the raw/unknown category.
type Magic string

// Definite reports whether the tag names a real category. Only files with a
// definite tag are materialized in the forest.
func (m Magic) Definite() bool {
	return m != ""
}

// Xstat is the extended status record produced by a directory scan.
type Xstat struct {
	UUID    uuid.UUID
	Name    string
	Kind    Kind
	Magic   Magic           // files only
	Digest  *hashing.Digest // nil when the content has no known digest
	Size    int64
	ModTime time.Time
}
