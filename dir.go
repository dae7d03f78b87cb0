package litefs

import (
	"context"
	"fmt"
	"strings"

	"github.com/embeddedkv/litefs/internal/entry"
	"github.com/embeddedkv/litefs/internal/logging"
	"github.com/embeddedkv/litefs/internal/mblock"
	"github.com/embeddedkv/litefs/internal/pathcache"
	"github.com/embeddedkv/litefs/internal/tagcodec"
)

// EntryKind distinguishes a directory entry holding a file's value from one
// holding a nested directory.
type EntryKind int

const (
	// Value is a regular file entry.
	Value EntryKind = iota
	// Dictionary is a nested-directory entry.
	Dictionary
)

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string
	Kind EntryKind
}

// dirRecord is the internal, richer form of a directory entry: enough to
// read its value or locate it for mutation.
type dirRecord struct {
	id   uint16
	pair [2]uint32
	name string
	kind EntryKind

	childPair [2]uint32
	inline    []byte
	fileRef   mblock.FileRef
	isInline  bool
}

// splitPath breaks a slash-separated path into non-empty segments.
func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// dirPathKey reconstructs the canonical path of the directory named by segs,
// used as the path cache's key.
func dirPathKey(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

// chain follows hard-tail entries from pair to the end of its metadata-pair
// chain, returning every pair visited in order.
func (fs *FS) chain(ctx context.Context, pair [2]uint32) ([][2]uint32, error) {
	visited := [][2]uint32{pair}
	current := pair
	for {
		cur, err := fs.readPair(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("litefs: chain: read pair (%d,%d): %w", current[0], current[1], err)
		}
		next, ok := mblock.HardTail(cur.Block)
		if !ok {
			return visited, nil
		}
		visited = append(visited, next)
		current = next
	}
}

// listPair returns the directory records held directly in pair (not
// following hard-tails). skipReserved excludes id 0, used only for the root
// pair where id 0 holds the superblock.
func (fs *FS) listPair(ctx context.Context, pair [2]uint32, skipReserved bool) ([]dirRecord, error) {
	cur, err := fs.readPair(ctx, pair)
	if err != nil {
		return nil, err
	}
	compacted := entry.Compact(cur.Block.Entries())

	byID := make(map[uint16]*dirRecord)
	order := make([]uint16, 0)
	for _, e := range compacted {
		if e.Tag.IsHardTail() || e.Tag.IsCRC() {
			continue
		}
		rec, ok := byID[e.Tag.ID]
		if !ok {
			rec = &dirRecord{id: e.Tag.ID, pair: pair}
			byID[e.Tag.ID] = rec
			order = append(order, e.Tag.ID)
		}
		switch {
		case e.Tag.IsName():
			rec.name = string(e.Payload)
		case e.Tag.IsStruct():
			switch e.Tag.Chunk {
			case tagcodec.ChunkInline:
				rec.kind = Value
				rec.isInline = true
				rec.inline = append([]byte(nil), e.Payload...)
			case tagcodec.ChunkCTZ:
				rec.kind = Value
			case mblock.DirStructChunk:
				rec.kind = Dictionary
			}
		}
	}

	// Fill in FileRef/childPair precisely from the block's typed accessors
	// rather than re-decoding payload bytes above.
	dataFiles := mblock.DataFiles(cur.Block)
	childPairs := mblock.ChildPairs(cur.Block)
	dataIdx, childIdx := 0, 0
	for _, id := range order {
		rec := byID[id]
		switch rec.kind {
		case Value:
			if !rec.isInline && dataIdx < len(dataFiles) {
				rec.fileRef = dataFiles[dataIdx]
				dataIdx++
			}
		case Dictionary:
			if childIdx < len(childPairs) {
				rec.childPair = childPairs[childIdx]
				childIdx++
			}
		}
	}

	out := make([]dirRecord, 0, len(order))
	for _, id := range order {
		if skipReserved && id == 0 {
			continue
		}
		out = append(out, *byID[id])
	}
	return out, nil
}

// listChain returns every directory record across pair's full hard-tail
// chain.
func (fs *FS) listChain(ctx context.Context, pair [2]uint32, skipReserved bool) ([]dirRecord, error) {
	pairs, err := fs.chain(ctx, pair)
	if err != nil {
		return nil, err
	}
	var out []dirRecord
	for i, p := range pairs {
		recs, err := fs.listPair(ctx, p, skipReserved && i == 0)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// lookupInChain finds name among pair's chain, returning its record and the
// tail pair (the last pair in the chain, where a new entry would be
// inserted if name is not found).
func (fs *FS) lookupInChain(ctx context.Context, pair [2]uint32, name string, skipReserved bool) (*dirRecord, [2]uint32, error) {
	pairs, err := fs.chain(ctx, pair)
	if err != nil {
		return nil, [2]uint32{}, err
	}
	for i, p := range pairs {
		recs, err := fs.listPair(ctx, p, skipReserved && i == 0)
		if err != nil {
			return nil, [2]uint32{}, err
		}
		for _, r := range recs {
			if r.name == name {
				rec := r
				return &rec, pairs[len(pairs)-1], nil
			}
		}
	}
	return nil, pairs[len(pairs)-1], nil
}

// findDirPair walks segs from root, following Dictionary entries, and
// returns the (head) pair address of the final directory. Resolutions are
// cached by directory path so repeated lookups under the same directory
// don't re-walk from the root each time.
func (fs *FS) findDirPair(ctx context.Context, segs []string) ([2]uint32, error) {
	key := dirPathKey(segs)
	if h := fs.cache.Lookup(key); h != nil {
		ref := h.Value()
		fs.cache.Release(h)
		return [2]uint32{ref.A, ref.B}, nil
	}

	current := rootPair
	for i, seg := range segs {
		rec, _, err := fs.lookupInChain(ctx, current, seg, i == 0)
		if err != nil {
			return [2]uint32{}, err
		}
		if rec == nil {
			return [2]uint32{}, fmt.Errorf("litefs: %q: %w", seg, ErrNotFound)
		}
		if rec.kind != Dictionary {
			return [2]uint32{}, fmt.Errorf("litefs: %q: %w", seg, ErrDirectoryExpected)
		}
		current = rec.childPair
	}

	h := fs.cache.Insert(key, pathcache.PairRef{A: current[0], B: current[1]})
	fs.cache.Release(h)
	return current, nil
}

// Mkdir creates path, including any missing intermediate directories, by
// copy-on-write commits walking from the root.
func (fs *FS) Mkdir(ctx context.Context, path string) error {
	fs.log.Debugf(logging.NSDir + "mkdir " + path)
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}

	current := rootPair
	for i, seg := range segs {
		rec, tailPair, err := fs.lookupInChain(ctx, current, seg, i == 0)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.kind != Dictionary {
				return fmt.Errorf("litefs: mkdir %q: %w", seg, ErrDirectoryExpected)
			}
			current = rec.childPair
			continue
		}

		if uint32(len(seg)) > fs.opts.NameLengthMax {
			return fmt.Errorf("litefs: mkdir %q: %w", seg, ErrNameTooLong)
		}

		childA, err := fs.alloc.GetBlock(ctx)
		if err != nil {
			return fmt.Errorf("litefs: mkdir: allocate pair: %w", err)
		}
		childB, err := fs.alloc.GetBlock(ctx)
		if err != nil {
			return fmt.Errorf("litefs: mkdir: allocate pair: %w", err)
		}
		childPair := [2]uint32{childA, childB}
		if err := fs.initPair(ctx, childPair, &mblock.Block{RevisionCount: 0}); err != nil {
			return fmt.Errorf("litefs: mkdir: init pair: %w", err)
		}

		id, err := fs.nextID(ctx, tailPair, i == 0 && tailPair == current)
		if err != nil {
			return err
		}

		newEntries := []entry.Entry{
			{Tag: tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeName, ID: id, Length: uint16(len(seg))}, Payload: []byte(seg)},
			{Tag: tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeStruct, Chunk: mblock.DirStructChunk, ID: id, Length: 8}, Payload: mblock.EncodePairAddrs(childA, childB)},
		}
		if err := fs.commitToPair(ctx, tailPair, newEntries); err != nil {
			return err
		}
		fs.cache.Erase(path)
		current = childPair
	}
	return nil
}

// nextID returns the smallest unused id in tailPair's chain position, used
// when inserting a brand-new entry there. isRootHead excludes id 0 (the
// superblock) from recs, so ids there start at 1, not 0.
func (fs *FS) nextID(ctx context.Context, tailPair [2]uint32, isRootHead bool) (uint16, error) {
	recs, err := fs.listPair(ctx, tailPair, isRootHead)
	if err != nil {
		return 0, err
	}
	if isRootHead {
		return uint16(len(recs)) + 1, nil
	}
	return uint16(len(recs)), nil
}

// List returns the entries of the directory at path.
func (fs *FS) List(ctx context.Context, path string) ([]DirEntry, error) {
	segs := splitPath(path)
	pair, err := fs.findDirPair(ctx, segs)
	if err != nil {
		return nil, err
	}
	recs, err := fs.listChain(ctx, pair, len(segs) == 0)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, DirEntry{Name: r.name, Kind: r.kind})
	}
	return out, nil
}
