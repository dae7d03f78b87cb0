package litefs

import (
	"context"
	"fmt"

	"github.com/embeddedkv/litefs/internal/alloc"
	"github.com/embeddedkv/litefs/internal/blockdev"
	"github.com/embeddedkv/litefs/internal/entry"
	"github.com/embeddedkv/litefs/internal/logging"
	"github.com/embeddedkv/litefs/internal/mblock"
	"github.com/embeddedkv/litefs/internal/mpair"
	"github.com/embeddedkv/litefs/internal/pathcache"
	"github.com/embeddedkv/litefs/internal/tagcodec"
	"github.com/embeddedkv/litefs/internal/testutil"
)

// rootPair is the fixed physical address of the root metadata pair.
var rootPair = [2]uint32{0, 1}

// FS is a connected handle to a littlefs-format filesystem. It is
// single-owner: callers issuing concurrent operations on one FS must
// synchronize externally (e.g. with a sync.Mutex), matching the resource
// model of the underlying block device.
type FS struct {
	dev  blockdev.Device
	opts Options
	log  logging.Logger

	alloc *alloc.Allocator
	cache *pathcache.ShardedLRUCache
}

// Format initializes dev with an empty root directory per opts: both halves
// of the root pair are written (revisions 1 and 2) containing the
// "littlefs" magic NAME entry and an inline superblock STRUCT entry at id 0.
func Format(ctx context.Context, dev blockdev.Device, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	superEntries := []entry.Entry{
		{
			Tag:     tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeName, ID: 0, Length: 8},
			Payload: []byte("littlefs"),
		},
		{
			Tag:     tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeStruct, Chunk: tagcodec.ChunkInline, ID: 0, Length: superblockSize},
			Payload: encodeSuperblock(dev.BlockSize(), dev.BlockCount(), opts.NameLengthMax, opts.FileSizeMax, opts.FileAttributeSizeMax),
		},
	}

	blockA := mblock.AddCommit(&mblock.Block{RevisionCount: 0}, superEntries)
	blockB := mblock.AddCommit(blockA, nil)

	outA, result := mblock.Serialize(int(opts.ProgramBlockSize), int(dev.BlockSize()), blockA)
	if result == mblock.SplitEmergency {
		return fmt.Errorf("litefs: format: root superblock commit does not fit in one block")
	}
	outB, result := mblock.Serialize(int(opts.ProgramBlockSize), int(dev.BlockSize()), blockB)
	if result == mblock.SplitEmergency {
		return fmt.Errorf("litefs: format: root superblock commit does not fit in one block")
	}

	paddedA := make([]byte, dev.BlockSize())
	copy(paddedA, outA)
	paddedB := make([]byte, dev.BlockSize())
	copy(paddedB, outB)

	testutil.MaybeKill(testutil.KPCommitWrite0)
	if err := dev.WriteBlock(ctx, rootPair[0], paddedA); err != nil {
		return fmt.Errorf("litefs: format: write root block %d: %w", rootPair[0], err)
	}
	if err := dev.WriteBlock(ctx, rootPair[1], paddedB); err != nil {
		return fmt.Errorf("litefs: format: write root block %d: %w", rootPair[1], err)
	}
	testutil.MaybeKill(testutil.KPCommitWrite1)
	return nil
}

// Connect opens a handle to an already-formatted dev.
func Connect(ctx context.Context, dev blockdev.Device, opts Options) (*FS, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := logging.NewDefaultLogger(logging.LevelWarn)

	fs := &FS{
		dev:   dev,
		opts:  opts,
		log:   log,
		cache: pathcache.NewShardedLRUCache(uint64(opts.LookaheadSize)*4, 16),
	}

	if _, err := fs.readPair(ctx, rootPair); err != nil {
		return nil, fmt.Errorf("litefs: connect: read root pair: %w", err)
	}

	walker := &alloc.DeviceWalker{Dev: dev, ReadPair: fs.readPairBlock}
	fs.alloc = alloc.New(dev, int(opts.ProgramBlockSize), walker, log)

	log.Debugf(logging.NSMount + "connected")
	return fs, nil
}

// Close releases the handle. It does not close the underlying device.
func (fs *FS) Close() error {
	fs.cache.Close()
	return nil
}

// inlineThreshold is the file-size cutoff above which Set stores data as a
// CTZ skip-list file instead of inline in the metadata block.
func (fs *FS) inlineThreshold() uint32 {
	return fs.opts.BlockSize / 4
}

func (fs *FS) readPair(ctx context.Context, pair [2]uint32) (mpair.Current, error) {
	return mpair.Read(ctx, fs.dev, int(fs.opts.ProgramBlockSize), mpair.Pair{A: pair[0], B: pair[1]}, fs.log)
}

// readPairBlock adapts readPair to the alloc.DeviceWalker.ReadPair shape.
func (fs *FS) readPairBlock(ctx context.Context, pair [2]uint32) (*mblock.Block, error) {
	cur, err := fs.readPair(ctx, pair)
	if err != nil {
		return nil, err
	}
	return cur.Block, nil
}

// initPair writes an identical freshly-serialized image of b to both halves
// of a newly allocated pair, so the very first mpair.Read of it (which
// parses both halves) succeeds on either.
func (fs *FS) initPair(ctx context.Context, pair [2]uint32, b *mblock.Block) error {
	if b.RevisionCount == 0 {
		b = mblock.AddCommit(b, nil)
	}
	out, result := mblock.Serialize(int(fs.opts.ProgramBlockSize), int(fs.opts.BlockSize), b)
	if result == mblock.SplitEmergency {
		return fmt.Errorf("litefs: initial pair commit does not fit in one block")
	}
	padded := make([]byte, fs.opts.BlockSize)
	copy(padded, out)

	if err := fs.dev.WriteBlock(ctx, pair[0], padded); err != nil {
		return fmt.Errorf("litefs: init pair: write block %d: %w", pair[0], err)
	}
	if err := fs.dev.WriteBlock(ctx, pair[1], padded); err != nil {
		return fmt.Errorf("litefs: init pair: write block %d: %w", pair[1], err)
	}
	return nil
}

// commitToPair appends newEntries as a new commit to pair, splitting it into
// a new tail pair if the compacted result no longer fits in one block. A
// split invalidates the whole path cache (conservatively: ids can renumber
// across a split) rather than trying to track exactly which paths changed.
func (fs *FS) commitToPair(ctx context.Context, pair [2]uint32, newEntries []entry.Entry) error {
	cur, err := fs.readPair(ctx, pair)
	if err != nil {
		return fmt.Errorf("litefs: commit: read pair (%d,%d): %w", pair[0], pair[1], err)
	}

	base := cur.Block
	if base == nil {
		base = &mblock.Block{RevisionCount: 0}
	}
	next := mblock.AddCommit(base, newEntries)

	result, err := mpair.Write(ctx, fs.dev, int(fs.opts.ProgramBlockSize), mpair.Pair{A: pair[0], B: pair[1]}, cur, next, fs.log)
	if err != nil {
		return fmt.Errorf("litefs: commit: write pair (%d,%d): %w", pair[0], pair[1], err)
	}

	switch result {
	case mblock.Ok, mblock.Split:
		return nil
	case mblock.SplitEmergency:
		return fs.splitPair(ctx, pair, cur, mblock.Compact(next))
	default:
		return fmt.Errorf("litefs: commit: unexpected write result %v", result)
	}
}

// splitPair allocates a new tail pair, moves the upper half of compacted's
// ids there, and writes the head half (with its hard-tail pointer to the new
// pair) back onto pair's existing physical addresses.
func (fs *FS) splitPair(ctx context.Context, pair [2]uint32, cur mpair.Current, compacted *mblock.Block) error {
	testutil.MaybeKill(testutil.KPSplitAllocTail0)
	newA, err := fs.alloc.GetBlock(ctx)
	if err != nil {
		return fmt.Errorf("litefs: split: allocate tail block A: %w", err)
	}
	newB, err := fs.alloc.GetBlock(ctx)
	if err != nil {
		return fmt.Errorf("litefs: split: allocate tail block B: %w", err)
	}

	head, tail := mblock.Split(compacted, newA, newB)

	testutil.MaybeKill(testutil.KPSplitInitTail0)
	if err := fs.initPair(ctx, [2]uint32{newA, newB}, tail); err != nil {
		return fmt.Errorf("litefs: split: init tail pair: %w", err)
	}

	testutil.MaybeKill(testutil.KPSplitWriteHead0)
	if _, err := mpair.Write(ctx, fs.dev, int(fs.opts.ProgramBlockSize), mpair.Pair{A: pair[0], B: pair[1]}, cur, head, fs.log); err != nil {
		return fmt.Errorf("litefs: split: write head pair (%d,%d): %w", pair[0], pair[1], err)
	}

	fs.cache.Close()
	fs.log.Warnf(logging.NSPair+"split pair (%d,%d), new tail (%d,%d)", pair[0], pair[1], newA, newB)
	return nil
}
