// Package ctz implements the count-trailing-zeros skip-list layout used to
// store file data larger than the inline threshold. Block i holds
// NPointers(i) little-endian u32 back-pointers followed by its data region;
// pointer 0 always names the immediately preceding block, so a sequential
// read only ever needs to follow it.
package ctz

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/embeddedkv/litefs/internal/blockdev"
	"github.com/embeddedkv/litefs/internal/encoding"
	"github.com/embeddedkv/litefs/internal/testutil"
)

// NPointers returns the number of back-pointers stored in block index.
func NPointers(index uint32) int {
	if index == 0 {
		return 0
	}
	return bits.TrailingZeros32(index) + 1
}

// LastBlockIndex returns the index of the final block of a file of fileSize
// bytes, given blockSize-sized data regions reduced by each block's pointer
// header.
func LastBlockIndex(fileSize uint32, blockSize uint32) uint32 {
	if fileSize == 0 {
		return 0
	}
	index := uint32(0)
	remaining := fileSize
	for {
		dataSize := blockSize - uint32(4*NPointers(index))
		if remaining <= dataSize {
			return index
		}
		remaining -= dataSize
		index++
	}
}

// Pointer holds the n back-pointers carried in a block's header, and the
// trailing data payload.
type Pointer struct {
	Blocks []uint32
	Data   []byte
}

// ParseBlock splits a raw block buffer into its pointer header and data
// region, per index's expected pointer count.
func ParseBlock(index uint32, buf []byte) (Pointer, error) {
	n := NPointers(index)
	hdr := 4 * n
	if len(buf) < hdr {
		return Pointer{}, fmt.Errorf("ctz: block %d too short for %d pointers", index, n)
	}
	s := encoding.NewSlice(buf[:hdr])
	blocks := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, ok := s.GetFixed32()
		if !ok {
			return Pointer{}, fmt.Errorf("ctz: truncated pointer header at block %d", index)
		}
		blocks[i] = v
	}
	return Pointer{Blocks: blocks, Data: buf[hdr:]}, nil
}

// SerializeBlock encodes a pointer header followed by data into a
// blockSize-sized buffer.
func SerializeBlock(blockSize uint32, blocks []uint32, data []byte) []byte {
	buf := make([]byte, 4*len(blocks), blockSize)
	for i, b := range blocks {
		encoding.EncodeFixed32(buf[4*i:4*i+4], b)
	}
	buf = append(buf, data...)
	if uint32(len(buf)) < blockSize {
		buf = append(buf, make([]byte, blockSize-uint32(len(buf)))...)
	}
	return buf
}

// Read returns the exact fileSize bytes of the CTZ file rooted at head,
// walking pointer 0 back from the last block to block 0.
func Read(ctx context.Context, dev blockdev.Device, head uint32, fileSize uint32) ([]byte, error) {
	blockSize := dev.BlockSize()
	lastIndex := LastBlockIndex(fileSize, blockSize)

	chain := make([][]byte, lastIndex+1)
	addr := head
	for i := int64(lastIndex); i >= 0; i-- {
		buf := make([]byte, blockSize)
		if err := dev.ReadBlock(ctx, addr, buf); err != nil {
			return nil, fmt.Errorf("ctz: read block %d (index %d): %w", addr, i, err)
		}
		ptr, err := ParseBlock(uint32(i), buf)
		if err != nil {
			return nil, err
		}
		chain[i] = ptr.Data
		if i > 0 {
			addr = ptr.Blocks[0]
		}
	}

	out := make([]byte, 0, fileSize)
	for _, data := range chain {
		out = append(out, data...)
	}
	if uint32(len(out)) > fileSize {
		out = out[:fileSize]
	}
	return out, nil
}

// Writer appends data to a CTZ file one block at a time, allocating each
// block address via alloc before writing it.
type Writer struct {
	dev   blockdev.Device
	alloc func(ctx context.Context) (uint32, error)

	index   uint32
	prev    uint32
	head    uint32
	written uint32
}

// NewWriter creates a CTZ writer; alloc is called once per block to obtain
// its physical address.
func NewWriter(dev blockdev.Device, alloc func(ctx context.Context) (uint32, error)) *Writer {
	return &Writer{dev: dev, alloc: alloc}
}

// Write appends data as a sequence of blocks, buffering nothing across
// calls: every call starts a new block, and a call's last block is written
// padded to the block size. A body split across several calls reads back
// intact only if every call but the last ends on a block's data boundary.
func (w *Writer) Write(ctx context.Context, data []byte) error {
	blockSize := w.dev.BlockSize()
	dataSize := blockSize - uint32(4*NPointers(w.index))

	for len(data) > 0 {
		chunk := data
		if uint32(len(chunk)) > dataSize {
			chunk = chunk[:dataSize]
		}
		data = data[len(chunk):]

		addr, err := w.alloc(ctx)
		if err != nil {
			return fmt.Errorf("ctz: allocate block for index %d: %w", w.index, err)
		}

		var blocks []uint32
		if w.index > 0 {
			// Only pointer 0 is populated; later back-pointers are left
			// zero, matching the documented single-pointer read path.
			blocks = make([]uint32, NPointers(w.index))
			blocks[0] = w.prev
		}

		buf := SerializeBlock(blockSize, blocks, chunk)
		testutil.MaybeKill(testutil.KPCTZWriteBlock0)
		if err := w.dev.WriteBlock(ctx, addr, buf); err != nil {
			return fmt.Errorf("ctz: write block %d: %w", addr, err)
		}

		// head tracks the most recently written block: Read and the
		// allocator's reachability scan both walk pointer 0 backward from
		// the last block, so (head, size) must name the last block, not
		// the first.
		w.head = addr
		w.prev = addr
		w.written += uint32(len(chunk))
		w.index++

		dataSize = blockSize - uint32(4*NPointers(w.index))
	}
	return nil
}

// Finish returns the file's last-block address and total size written, the
// (head, size) pair stored in a STRUCT entry's CTZ payload.
func (w *Writer) Finish() (head uint32, size uint32) {
	return w.head, w.written
}
