// Package alloc implements the block allocator: a lookahead buffer of free
// block addresses, refilled on demand by a reachability scan that walks the
// metadata-pair tree from the root and marks every block it finds live.
package alloc

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/embeddedkv/litefs/internal/blockdev"
	"github.com/embeddedkv/litefs/internal/ctz"
	"github.com/embeddedkv/litefs/internal/errors"
	"github.com/embeddedkv/litefs/internal/logging"
	"github.com/embeddedkv/litefs/internal/mblock"
	"github.com/embeddedkv/litefs/internal/testutil"
)

// ErrNoSpace is returned when a reachability scan finds no free blocks.
var ErrNoSpace = errors.ErrNoSpace

// Bias controls which half of the block-address space a refill scans first.
type Bias int

const (
	// Before biases the candidate window to addresses below the midpoint.
	Before Bias = iota
	// After biases the candidate window to addresses at or above the midpoint.
	After
)

// RootPair reads the pair of metadata blocks a reachability scan walks from.
// The root metadata pair is fixed at physical addresses (0, 1).
var RootPair = [2]uint32{0, 1}

// Walker resolves the outbound links of a metadata pair during a
// reachability scan: it reads both halves, returns the set of blocks that
// pair's current entries reference (child pairs, CTZ heads), and the set of
// CTZ blocks reachable by following those heads.
type Walker interface {
	// Walk returns the child pairs and data blocks that pair's current
	// commit points to. The pair's own two physical halves are not
	// included; the caller marks those itself.
	Walk(ctx context.Context, pair [2]uint32) (children [][2]uint32, dataBlocks []uint32, err error)
}

// Allocator hands out free block addresses from a cached lookahead window,
// refilling it by reachability scan when exhausted.
type Allocator struct {
	dev        blockdev.Device
	programBSz int
	walker     Walker
	log        logging.Logger

	bias Bias
	free []uint32
}

// New creates an allocator over dev, using walker to compute reachability on
// refill.
func New(dev blockdev.Device, programBlockSize int, walker Walker, log logging.Logger) *Allocator {
	return &Allocator{
		dev:        dev,
		programBSz: programBlockSize,
		walker:     walker,
		log:        logging.OrDefault(log),
		bias:       Before,
	}
}

// GetBlock returns the next free block address, refilling the lookahead
// buffer via a reachability scan if it is empty.
func (a *Allocator) GetBlock(ctx context.Context) (uint32, error) {
	if len(a.free) == 0 {
		if err := a.refill(ctx); err != nil {
			return 0, err
		}
	}
	if len(a.free) == 0 {
		return 0, ErrNoSpace
	}
	addr := a.free[0]
	a.free = a.free[1:]
	return addr, nil
}

// refill walks reachability from the root, marks every block it finds live
// in a bitset over [0, block_count), and populates free with every address
// in the bias-selected half of the space that the scan did not mark live.
// The bias flips on every refill so consecutive refills cover both halves of
// the address space over time.
func (a *Allocator) refill(ctx context.Context) error {
	testutil.MaybeKill(testutil.KPAllocRefill0)
	count := a.dev.BlockCount()
	live := bitset.New(uint(count))

	visited := make(map[[2]uint32]bool)
	queue := [][2]uint32{RootPair}

	for len(queue) > 0 {
		pair := queue[0]
		queue = queue[1:]
		if visited[pair] {
			continue
		}
		visited[pair] = true

		live.Set(uint(pair[0]))
		live.Set(uint(pair[1]))

		children, dataBlocks, err := a.walker.Walk(ctx, pair)
		if err != nil {
			// A corrupted subtree is skipped rather than aborting the
			// whole scan: the blocks it would have marked live stay
			// tentatively free, which is conservative only in the sense
			// that littlefs's own allocator accepts the same risk in
			// exchange for availability after partial corruption.
			a.log.Warnf(logging.NSAlloc+"skipping corrupt subtree at pair (%d,%d): %v", pair[0], pair[1], err)
			continue
		}
		for _, d := range dataBlocks {
			live.Set(uint(d))
		}
		queue = append(queue, children...)
	}

	mid := count / 2
	var candidates []uint32
	switch a.bias {
	case Before:
		for i := uint32(0); i < mid; i++ {
			if !live.Test(uint(i)) {
				candidates = append(candidates, i)
			}
		}
	case After:
		for i := mid; i < count; i++ {
			if !live.Test(uint(i)) {
				candidates = append(candidates, i)
			}
		}
	}

	a.free = candidates
	if a.bias == Before {
		a.bias = After
	} else {
		a.bias = Before
	}

	a.log.Debugf(logging.NSAlloc+"refilled %d free blocks (bias now %v)", len(a.free), a.bias)

	if len(a.free) == 0 {
		return fmt.Errorf("alloc: reachability scan found no free blocks: %w", ErrNoSpace)
	}
	return nil
}

// DeviceWalker is the production Walker: it reads each pair's current block
// via ReadPair, collects its child metadata pairs, and walks every CTZ file
// it references block-by-block so interior and tail blocks of large files
// are marked live, not just their heads.
type DeviceWalker struct {
	Dev      blockdev.Device
	ReadPair func(ctx context.Context, pair [2]uint32) (*mblock.Block, error)
}

// Walk implements Walker.
func (w *DeviceWalker) Walk(ctx context.Context, pair [2]uint32) (children [][2]uint32, dataBlocks []uint32, err error) {
	b, err := w.ReadPair(ctx, pair)
	if err != nil {
		return nil, nil, err
	}

	children = mblock.ChildPairs(b)

	for _, ref := range mblock.DataFiles(b) {
		blocks, err := w.walkCTZChain(ctx, ref)
		if err != nil {
			return nil, nil, fmt.Errorf("alloc: walk CTZ file head %d: %w", ref.Head, err)
		}
		dataBlocks = append(dataBlocks, blocks...)
	}
	return children, dataBlocks, nil
}

// walkCTZChain returns every physical block address in ref's skip list, by
// following pointer 0 back from the last block to block 0.
func (w *DeviceWalker) walkCTZChain(ctx context.Context, ref mblock.FileRef) ([]uint32, error) {
	blockSize := w.Dev.BlockSize()
	lastIndex := ctz.LastBlockIndex(ref.Size, blockSize)

	blocks := make([]uint32, lastIndex+1)
	addr := ref.Head
	for i := int64(lastIndex); i >= 0; i-- {
		blocks[i] = addr
		if i == 0 {
			break
		}
		buf := make([]byte, blockSize)
		if err := w.Dev.ReadBlock(ctx, addr, buf); err != nil {
			return nil, err
		}
		ptr, err := ctz.ParseBlock(uint32(i), buf)
		if err != nil {
			return nil, err
		}
		addr = ptr.Blocks[0]
	}
	return blocks, nil
}
