// Package blockdev provides the fixed-size indexed block device abstraction
// the metadata-pair, CTZ, and allocator layers read and program through.
//
// This narrows the teacher's path-addressed FS interface
// (Create/Open/Rename/...) down to the two primitives littlefs actually
// assumes: read a block, program a block. A single regular host file stands
// in for the flash device, addressed by fixed-size block index rather than
// by path.
package blockdev

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrOutOfRange is returned when a block index falls outside [0, BlockCount()).
var ErrOutOfRange = errors.New("blockdev: block index out of range")

// Device is the block device interface consumed by the filesystem core.
type Device interface {
	// ReadBlock reads exactly BlockSize() bytes from block index into buf.
	ReadBlock(ctx context.Context, index uint32, buf []byte) error

	// WriteBlock programs exactly BlockSize() bytes from buf into block
	// index. The block is assumed pre-erased, or the device handles erase.
	WriteBlock(ctx context.Context, index uint32, buf []byte) error

	// BlockCount returns the total number of addressable blocks.
	BlockCount() uint32

	// BlockSize returns the device's fixed block size in bytes.
	BlockSize() uint32
}

// MemDevice is an in-memory Device, used by unit tests and as a scratch
// device for format/mount round trips that don't need host-file durability.
type MemDevice struct {
	blockSize uint32
	blocks    [][]byte
}

// NewMemDevice allocates a zeroed in-memory device of blockCount blocks,
// each blockSize bytes.
func NewMemDevice(blockCount, blockSize uint32) *MemDevice {
	blocks := make([][]byte, blockCount)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &MemDevice{blockSize: blockSize, blocks: blocks}
}

func (d *MemDevice) ReadBlock(ctx context.Context, index uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index >= uint32(len(d.blocks)) {
		return fmt.Errorf("blockdev: read block %d: %w", index, ErrOutOfRange)
	}
	copy(buf, d.blocks[index])
	return nil
}

func (d *MemDevice) WriteBlock(ctx context.Context, index uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index >= uint32(len(d.blocks)) {
		return fmt.Errorf("blockdev: write block %d: %w", index, ErrOutOfRange)
	}
	copy(d.blocks[index], buf)
	return nil
}

func (d *MemDevice) BlockCount() uint32 { return uint32(len(d.blocks)) }
func (d *MemDevice) BlockSize() uint32  { return d.blockSize }

// FileDevice treats a single regular host file as a flat array of fixed-size
// blocks, addressed by ReadAt/WriteAt offset = index * blockSize.
type FileDevice struct {
	f          *os.File
	blockCount uint32
	blockSize  uint32
}

// OpenFileDevice opens (or creates, if create is true) name as a FileDevice
// with the given geometry, growing/truncating it to exactly
// blockCount*blockSize bytes.
func OpenFileDevice(name string, blockCount, blockSize uint32, create bool) (*FileDevice, error) {
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", name, err)
	}
	size := int64(blockCount) * int64(blockSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: truncate %s: %w", name, err)
	}
	return &FileDevice{f: f, blockCount: blockCount, blockSize: blockSize}, nil
}

func (d *FileDevice) ReadBlock(ctx context.Context, index uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index >= d.blockCount {
		return fmt.Errorf("blockdev: read block %d: %w", index, ErrOutOfRange)
	}
	_, err := d.f.ReadAt(buf[:d.blockSize], int64(index)*int64(d.blockSize))
	return err
}

func (d *FileDevice) WriteBlock(ctx context.Context, index uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index >= d.blockCount {
		return fmt.Errorf("blockdev: write block %d: %w", index, ErrOutOfRange)
	}
	_, err := d.f.WriteAt(buf[:d.blockSize], int64(index)*int64(d.blockSize))
	return err
}

func (d *FileDevice) BlockCount() uint32 { return d.blockCount }
func (d *FileDevice) BlockSize() uint32  { return d.blockSize }

// Sync flushes the backing file to stable storage.
func (d *FileDevice) Sync() error { return d.f.Sync() }

// Close closes the backing file.
func (d *FileDevice) Close() error { return d.f.Close() }
