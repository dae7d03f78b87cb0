//go:build fuse

package main

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/embeddedkv/litefs"
)

// litefsNode is a FUSE inode backed by a path into a mounted litefs.FS. The
// path, not a cached directory listing, is the node's identity: every
// operation re-resolves against the filesystem, matching littlefs's own
// lack of a persistent in-memory directory cache.
//
// Grounded on the teacher's squashfs Inode.Lookup/Open/OpenDir/ReadDir split
// (internal/inode_fuse.go), adapted from go-fuse's low-level raw API to its
// higher-level fs.Inode embedding, which this module's read-write semantics
// need (squashfs is read-only).
type litefsNode struct {
	fs.Inode
	fsys *litefs.FS
	path string
}

var (
	_ fs.NodeLookuper  = (*litefsNode)(nil)
	_ fs.NodeReaddirer = (*litefsNode)(nil)
	_ fs.NodeOpener    = (*litefsNode)(nil)
	_ fs.NodeReader    = (*litefsNode)(nil)
	_ fs.NodeWriter    = (*litefsNode)(nil)
	_ fs.NodeCreater   = (*litefsNode)(nil)
	_ fs.NodeMkdirer   = (*litefsNode)(nil)
	_ fs.NodeUnlinker  = (*litefsNode)(nil)
	_ fs.NodeGetattrer = (*litefsNode)(nil)
)

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func (n *litefsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := joinPath(n.path, name)
	entries, err := n.fsys.List(ctx, n.path)
	if err != nil {
		return nil, syscall.EIO
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		mode := uint32(fuse.S_IFREG)
		if e.Kind == litefs.Dictionary {
			mode = fuse.S_IFDIR
		}
		node := &litefsNode{fsys: n.fsys, path: child}
		return n.NewInode(ctx, node, fs.StableAttr{Mode: mode}), 0
	}
	return nil, syscall.ENOENT
}

func (n *litefsNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.List(ctx, n.path)
	if err != nil {
		return nil, syscall.EIO
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if e.Kind == litefs.Dictionary {
			mode = fuse.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *litefsNode) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o755
	if n.path != "/" {
		data, err := n.fsys.Get(ctx, n.path)
		if err == nil {
			out.Mode = fuse.S_IFREG | 0o644
			out.Size = uint64(len(data))
		}
	}
	return 0
}

func (n *litefsNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *litefsNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.fsys.Get(ctx, n.path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), 0
}

// Write replaces the whole file with the written region merged over its
// prior contents, since littlefs's Set always writes a complete value.
func (n *litefsNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	existing, _ := n.fsys.Get(ctx, n.path)
	end := off + int64(len(data))
	if end < int64(len(existing)) {
		end = int64(len(existing))
	}
	buf := make([]byte, end)
	copy(buf, existing)
	copy(buf[off:], data)
	if err := n.fsys.Set(ctx, n.path, buf); err != nil {
		return 0, syscall.EIO
	}
	return uint32(len(data)), 0
}

func (n *litefsNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := joinPath(n.path, name)
	if err := n.fsys.Set(ctx, child, nil); err != nil {
		return nil, nil, 0, syscall.EIO
	}
	node := &litefsNode{fsys: n.fsys, path: child}
	return n.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFREG}), nil, 0, 0
}

func (n *litefsNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := joinPath(n.path, name)
	if err := n.fsys.Mkdir(ctx, child); err != nil {
		return nil, syscall.EIO
	}
	node := &litefsNode{fsys: n.fsys, path: child}
	return n.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (n *litefsNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := n.fsys.Delete(ctx, joinPath(n.path, name)); err != nil {
		return syscall.EIO
	}
	return 0
}
