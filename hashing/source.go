package hashing

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Source opens file content for hashing.
//
// Readers that also implement Stat() (fs.FileInfo, error), like *os.File,
// let the job report the modification time it hashed.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

type statter interface {
	Stat() (fs.FileInfo, error)
}

// OSSource reads from the local file system.
type OSSource struct{}

func (OSSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s is not a regular file: %w", path, ErrPathMissing)
	}
	return f, nil
}

var _ Source = OSSource{}
