// Package mount exposes the content index as a read-only FUSE file system.
//
// The root lists one directory per digest. Each digest directory holds a
// symlink per file with that content, pointing at the file's real path.
package mount

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/RocGit/appifi/config"
	"github.com/RocGit/appifi/forest"
	"github.com/RocGit/appifi/hashing"
	"github.com/RocGit/appifi/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Catalog is the read side of the index the mount serves.
type Catalog interface {
	Digests() []hashing.Digest
	Entries(d hashing.Digest) []forest.Entry
}

var _ Catalog = (*forest.Forest)(nil)

// attrTimeout bounds how stale a listing the kernel may serve
const attrTimeout = time.Second

type rootNode struct {
	fs.Inode
	cat Catalog
}

var (
	_ fs.NodeGetattrer = (*rootNode)(nil)
	_ fs.NodeLookuper  = (*rootNode)(nil)
	_ fs.NodeReaddirer = (*rootNode)(nil)
)

func (n *rootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0o555 | syscall.S_IFDIR
	out.SetTimeout(attrTimeout)
	return 0
}

func (n *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	digests := n.cat.Digests()
	entries := make([]fuse.DirEntry, 0, len(digests))
	for _, d := range digests {
		entries = append(entries, fuse.DirEntry{Name: d.String(), Mode: syscall.S_IFDIR, Ino: digestIno(d)})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	d, err := hashing.ParseDigest(name)
	if err != nil || len(n.cat.Entries(d)) == 0 {
		return nil, syscall.ENOENT
	}
	out.Mode = 0o555 | syscall.S_IFDIR
	out.SetEntryTimeout(attrTimeout)
	out.SetAttrTimeout(attrTimeout)
	child := &digestNode{cat: n.cat, digest: d}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR, Ino: digestIno(d)}), 0
}

type digestNode struct {
	fs.Inode
	cat    Catalog
	digest hashing.Digest
}

var (
	_ fs.NodeGetattrer = (*digestNode)(nil)
	_ fs.NodeLookuper  = (*digestNode)(nil)
	_ fs.NodeReaddirer = (*digestNode)(nil)
)

func (n *digestNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0o555 | syscall.S_IFDIR
	out.SetTimeout(attrTimeout)
	return 0
}

func (n *digestNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	links := linkNames(n.cat.Entries(n.digest))
	entries := make([]fuse.DirEntry, 0, len(links))
	for _, l := range links {
		entries = append(entries, fuse.DirEntry{Name: l.name, Mode: syscall.S_IFLNK})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *digestNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, l := range linkNames(n.cat.Entries(n.digest)) {
		if l.name != name {
			continue
		}
		out.Mode = 0o777 | syscall.S_IFLNK
		out.Size = uint64(len(l.target))
		out.SetEntryTimeout(attrTimeout)
		out.SetAttrTimeout(attrTimeout)
		link := &fs.MemSymlink{Data: []byte(l.target)}
		return n.NewInode(ctx, link, fs.StableAttr{Mode: syscall.S_IFLNK}), 0
	}
	return nil, syscall.ENOENT
}

// digestIno derives a stable inode number from the digest prefix.
func digestIno(d hashing.Digest) uint64 {
	ino := binary.BigEndian.Uint64(d[:8])
	if ino <= fuse.FUSE_ROOT_ID {
		ino += fuse.FUSE_ROOT_ID + 1
	}
	return ino
}

// Mount serves cat at dir until the returned server is unmounted.
func Mount(dir string, cat Catalog, opts config.MountOptions) (*fuse.Server, error) {
	logger := util.GetLogger("Mount")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	root := &rootNode{cat: cat}
	fsOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: opts.FsName,
			Name:   opts.Name,
			Debug:  opts.Debug,
			Logger: util.NewLogLogger("Fuse", util.DebugLevel),
		},
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	}
	server, err := fs.Mount(dir, root, fsOpts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	logger.Info().Str("dir", dir).Msg("Index mounted")
	return server, nil
}
