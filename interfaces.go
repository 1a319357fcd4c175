package appifi

import (
	"context"
	"time"

	"github.com/RocGit/appifi/hashing"
	"github.com/google/uuid"
)

// Scanner lists a directory as xstat records. Entries that are neither
// regular files nor directories are omitted.
type Scanner interface {
	ReadDir(ctx context.Context, dir string) ([]Xstat, error)
}

// Stamper persists a computed digest next to the file so later scans report
// it. modTime is the modification time observed when hashing began; an
// implementation must refuse to stamp if the file changed since.
type Stamper interface {
	Stamp(path string, id uuid.UUID, digest hashing.Digest, modTime time.Time) error
}
