// Package xstat lists directories as xstat records. Each file and directory
// carries a persistent uuid in an extended attribute, together with the last
// digest computed for its content.
package xstat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/config"
	"github.com/RocGit/appifi/hashing"
	"github.com/RocGit/appifi/internal/util"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

var (
	// ErrUnsupportedType is returned by Stat for anything other than a
	// regular file or a directory.
	ErrUnsupportedType = errors.New("not a regular file or directory")

	// ErrStale is returned by Stamp when the file changed after hashing began.
	ErrStale = errors.New("file modified since hashing began")

	// ErrReplaced is returned by Stamp when the path now holds another file.
	ErrReplaced = errors.New("file replaced since hashing began")

	errNoRecord    = errors.New("no xstat record")
	errUnsupported = errors.New("extended attributes unavailable")
)

// Scanner implements appifi.Scanner and appifi.Stamper on the local file
// system. Where extended attributes are unavailable, stamped digests are
// remembered in memory for the life of the Scanner.
type Scanner struct {
	attr string
	memo *xsync.Map[uuid.UUID, stamp]
}

type stamp struct {
	digest  hashing.Digest
	modTime int64
}

var (
	_ appifi.Scanner = (*Scanner)(nil)
	_ appifi.Stamper = (*Scanner)(nil)
)

func NewScanner(cfg *config.Config) *Scanner {
	return &Scanner{
		attr: cfg.XattrName,
		memo: xsync.NewMap[uuid.UUID, stamp](),
	}
}

// ReadDir returns an xstat for every regular file and directory in dir.
// Entries that vanish or cannot be read while listing are skipped.
func (s *Scanner) ReadDir(ctx context.Context, dir string) ([]appifi.Xstat, error) {
	logger := util.GetLogger("Scanner")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]appifi.Xstat, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x, err := s.Stat(filepath.Join(dir, e.Name()))
		switch {
		case err == nil:
			out = append(out, x)
		case errors.Is(err, ErrUnsupportedType), errors.Is(err, fs.ErrNotExist):
		default:
			logger.Warn().Err(err).Str("dir", dir).Str("name", e.Name()).Msg("Skipping entry")
		}
	}
	logger.Trace().Str("dir", dir).Int("entries", len(out)).Msg("Listed directory")
	return out, nil
}

// Stat builds the xstat of one path, creating its record on first sight.
func (s *Scanner) Stat(path string) (appifi.Xstat, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return appifi.Xstat{}, err
	}
	x := appifi.Xstat{Name: filepath.Base(path), ModTime: fi.ModTime()}
	switch {
	case fi.IsDir():
		x.Kind = appifi.KindDirectory
	case fi.Mode().IsRegular():
		x.Kind = appifi.KindFile
		x.Size = fi.Size()
	default:
		return appifi.Xstat{}, fmt.Errorf("%s: %w", path, ErrUnsupportedType)
	}

	rec, err := s.load(path)
	switch {
	case errors.Is(err, errUnsupported):
		x.UUID = inodeUUID(fi)
		if x.Kind == appifi.KindFile {
			if x.Magic, err = sniffFile(path); err != nil {
				return appifi.Xstat{}, err
			}
			x.Digest = s.remembered(x.UUID, fi)
		}
		return x, nil
	case errors.Is(err, errNoRecord):
		rec = newRecord()
	case err != nil:
		logger := util.GetLogger("Scanner")
		logger.Debug().Err(err).Str("path", path).Msg("Replacing unreadable record")
		rec = newRecord()
	}
	fresh := err != nil
	dirty := fresh
	x.UUID = rec.id()

	if x.Kind == appifi.KindFile {
		if !rec.current(fi.ModTime()) {
			if rec.Magic, err = sniffFile(path); err != nil {
				return appifi.Xstat{}, err
			}
			rec.Digest = nil
			rec.ModTime = fi.ModTime().UnixNano()
			dirty = true
		}
		x.Magic = rec.Magic
		x.Digest = rec.digest(fi.ModTime())
	}

	if dirty {
		if err := s.store(path, rec); err != nil {
			if !errors.Is(err, errUnsupported) {
				return appifi.Xstat{}, err
			}
			// read-only: a uuid that is not persisted would change every scan
			if fresh {
				x.UUID = inodeUUID(fi)
				if x.Kind == appifi.KindFile {
					x.Digest = s.remembered(x.UUID, fi)
				}
			}
		}
	}
	return x, nil
}

// Stamp records digest in the file's record if the file is still the one
// identified by id and unchanged since modTime.
func (s *Scanner) Stamp(path string, id uuid.UUID, digest hashing.Digest, modTime time.Time) error {
	logger := util.GetLogger("Scanner")

	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !fi.ModTime().Equal(modTime) {
		return fmt.Errorf("stamping %s: %w", path, ErrStale)
	}
	rec, err := s.load(path)
	switch {
	case errors.Is(err, errUnsupported), errors.Is(err, errNoRecord):
		if inodeUUID(fi) != id {
			return fmt.Errorf("stamping %s: %w", path, ErrReplaced)
		}
		s.memo.Store(id, stamp{digest: digest, modTime: modTime.UnixNano()})
		logger.Trace().Str("path", path).Msg("No extended attributes, digest kept in memory")
		return nil
	case err != nil:
		return fmt.Errorf("stamping %s: %w", path, err)
	case rec.id() != id:
		return fmt.Errorf("stamping %s: %w", path, ErrReplaced)
	}
	rec.Digest = digest[:]
	rec.ModTime = modTime.UnixNano()
	if err := s.store(path, rec); err != nil {
		return fmt.Errorf("stamping %s: %w", path, err)
	}
	logger.Debug().Str("path", path).Str("digest", digest.String()).Msg("Stamped digest")
	return nil
}

func (s *Scanner) remembered(id uuid.UUID, fi fs.FileInfo) *hashing.Digest {
	st, ok := s.memo.Load(id)
	if !ok || st.modTime != fi.ModTime().UnixNano() {
		return nil
	}
	return &st.digest
}

func (s *Scanner) load(path string) (*record, error) {
	data, err := getxattr(path, s.attr)
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(data)
}

func (s *Scanner) store(path string, rec *record) error {
	data, err := rec.marshal()
	if err != nil {
		return err
	}
	return setxattr(path, s.attr, data)
}

// inodeUUID derives a stable uuid from the device and inode numbers for file
// systems without extended attributes.
func inodeUUID(fi fs.FileInfo) uuid.UUID {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "inode:%d:%d", st.Dev, st.Ino))
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("name:"+fi.Name()))
}
