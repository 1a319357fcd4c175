//go:build linux

package xstat

import (
	"errors"

	"golang.org/x/sys/unix"
)

func getxattr(path, attr string) ([]byte, error) {
	buf := make([]byte, 128)
	for {
		n, err := unix.Lgetxattr(path, attr, buf)
		if errors.Is(err, unix.ERANGE) {
			size, err := unix.Lgetxattr(path, attr, nil)
			if err != nil {
				return nil, xattrErr(err)
			}
			buf = make([]byte, size)
			continue
		}
		if err != nil {
			return nil, xattrErr(err)
		}
		return buf[:n], nil
	}
}

func setxattr(path, attr string, data []byte) error {
	return xattrErr(unix.Lsetxattr(path, attr, data, 0))
}

func xattrErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENODATA):
		return errNoRecord
	case errors.Is(err, unix.ENOTSUP), errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES), errors.Is(err, unix.EROFS):
		return errors.Join(errUnsupported, err)
	}
	return err
}
