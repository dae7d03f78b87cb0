// Package mblock implements one physical metadata block: a revision count
// followed by an ordered sequence of commits, with parse/serialize, compact,
// split, and add-commit operations.
package mblock

import (
	"github.com/embeddedkv/litefs/internal/checksum"
	"github.com/embeddedkv/litefs/internal/commit"
	"github.com/embeddedkv/litefs/internal/encoding"
	"github.com/embeddedkv/litefs/internal/entry"
	"github.com/embeddedkv/litefs/internal/errors"
	"github.com/embeddedkv/litefs/internal/tagcodec"
)

// ErrCorrupt is returned when the revision-count header itself cannot be read.
var ErrCorrupt = errors.ErrCorrupt

// Block is the in-memory, already-parsed form of one physical metadata block.
type Block struct {
	RevisionCount uint32
	// rawEntries is the accumulated, uncompacted entry list across every
	// live commit in the block, in replay order.
	rawEntries []entry.Entry
}

// Entries returns b's raw, uncompacted entry list across all commits.
func (b *Block) Entries() []entry.Entry { return b.rawEntries }

// WriteResult is the three-valued outcome of serializing a block image,
// modeling the exception-like control flow of the original design as a
// plain Go enum the caller switches on.
type WriteResult int

const (
	// Ok: the compacted write fits with room to spare.
	Ok WriteResult = iota
	// Split: the write fit, but the block is full enough that a metadata
	// pair split is advisable before the next write.
	Split
	// SplitEmergency: the write does not fit even after compaction; the
	// caller must split before this write can be retried.
	SplitEmergency
)

// Parse reads a block image. It parses the revision count, then repeatedly
// parses commits until the first CRC failure (marking the end of live
// commits) or end of buffer. Only a failure to read the revision-count
// region itself is reported as ErrCorrupt.
func Parse(programBlockSize int, buf []byte) (*Block, error) {
	if len(buf) < 4 {
		return nil, ErrCorrupt
	}
	rev := encoding.DecodeFixed32(buf[:4])

	b := &Block{RevisionCount: rev}

	pos := 4
	prevRaw := tagcodec.InitialMask
	seed := uint32(0)
	// The revision-count bytes themselves are folded into the first commit's
	// CRC seed, matching the spec's "CRC of commit k includes ... the
	// revision count" invariant.
	seed = checksum.Extend(seed, buf[:4])

	for pos < len(buf) {
		entries, consumed, newPrevRaw, newSeed, err := commit.Parse(buf[pos:], prevRaw, seed, programBlockSize)
		if err != nil {
			break
		}
		b.rawEntries = append(b.rawEntries, entries...)
		pos += consumed
		prevRaw, seed = newPrevRaw, newSeed
	}

	return b, nil
}

// Serialize writes the block's single compacted commit (current entries plus
// any newly appended ones are expected to already be folded into b by the
// caller via AddCommit) into a buffer sized blockSize, returning the result
// classification.
func Serialize(programBlockSize, blockSize int, b *Block) ([]byte, WriteResult) {
	buf := make([]byte, 4, blockSize)
	encoding.EncodeFixed32(buf, b.RevisionCount)

	compacted := entry.Compact(b.rawEntries)

	seed := checksum.Extend(0, buf)
	out, _, _ := commit.Serialize(buf, tagcodec.InitialMask, seed, programBlockSize, compacted)

	if len(out) > blockSize {
		return out, SplitEmergency
	}

	// "Split" advisory: fewer than one program_block_size of slack remaining.
	if blockSize-len(out) < programBlockSize {
		return out, Split
	}
	return out, Ok
}

// AddCommit returns a new logical block with RevisionCount+1 and entries
// appended to the existing (uncompacted) entry list as a new commit.
func AddCommit(b *Block, entries []entry.Entry) *Block {
	next := &Block{
		RevisionCount: b.RevisionCount + 1,
		rawEntries:    append(append([]entry.Entry(nil), b.rawEntries...), entries...),
	}
	return next
}

// Compact collapses all of b's commits into their single equivalent entry set.
func Compact(b *Block) *Block {
	return &Block{RevisionCount: b.RevisionCount, rawEntries: entry.Compact(b.rawEntries)}
}

// IDs returns the set of ids present in b's compacted entries, not counting
// the hard-tail entry.
func IDs(b *Block) map[uint16]bool {
	ids := make(map[uint16]bool)
	for _, e := range entry.Compact(b.rawEntries) {
		if e.Tag.IsHardTail() {
			continue
		}
		ids[e.Tag.ID] = true
	}
	return ids
}

// Split partitions b's compacted entries into two halves by id: the lower
// half stays in head (with an appended hard-tail entry pointing at
// newPair), the upper half moves to tail.
func Split(b *Block, newPairA, newPairB uint32) (head *Block, tail *Block) {
	compacted := entry.Compact(b.rawEntries)

	ids := IDs(b)
	sorted := make([]uint16, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sortUint16(sorted)

	if len(sorted) == 0 {
		return &Block{RevisionCount: b.RevisionCount}, &Block{RevisionCount: 0}
	}
	mid := sorted[len(sorted)/2]

	var lower, upper []entry.Entry
	for _, e := range compacted {
		if e.Tag.ID < mid {
			lower = append(lower, e)
		} else {
			shifted := e
			shifted.Tag.ID -= mid
			upper = append(upper, shifted)
		}
	}

	hardTail := entry.Entry{
		Tag:     tagcodec.Tag{Valid: false, Abstract: tagcodec.TypeTail, ID: tagcodec.NoID, Length: 8},
		Payload: encodePairAddrs(newPairA, newPairB),
	}
	lower = append(lower, hardTail)

	return &Block{RevisionCount: b.RevisionCount, rawEntries: lower},
		&Block{RevisionCount: 0, rawEntries: upper}
}

// LinkedBlocks enumerates the outbound block references carried in b's
// compacted entries: hard-tail pair addresses, directory-child pair
// addresses, and CTZ file heads. Used by the allocator's reachability scan.
func LinkedBlocks(b *Block) []uint32 {
	var out []uint32
	for _, e := range entry.Compact(b.rawEntries) {
		switch {
		case e.Tag.IsHardTail() && len(e.Payload) >= 8:
			out = append(out, encoding.DecodeFixed32(e.Payload[0:4]), encoding.DecodeFixed32(e.Payload[4:8]))
		case e.Tag.IsStruct() && e.Tag.Chunk == tagcodec.ChunkCTZ && len(e.Payload) >= 4:
			// STRUCT/CTZ payload begins with the head block pointer.
			out = append(out, encoding.DecodeFixed32(e.Payload[0:4]))
		case e.Tag.IsStruct() && e.Tag.Chunk == DirStructChunk && len(e.Payload) >= 8:
			out = append(out, encoding.DecodeFixed32(e.Payload[0:4]), encoding.DecodeFixed32(e.Payload[4:8]))
		}
	}
	return out
}

// ChildPairs returns the metadata-pair addresses b's compacted entries link
// to: hard-tail continuations of this same directory's chain, and
// directory-child STRUCT entries.
func ChildPairs(b *Block) [][2]uint32 {
	var out [][2]uint32
	for _, e := range entry.Compact(b.rawEntries) {
		switch {
		case e.Tag.IsHardTail() && len(e.Payload) >= 8:
			out = append(out, [2]uint32{encoding.DecodeFixed32(e.Payload[0:4]), encoding.DecodeFixed32(e.Payload[4:8])})
		case e.Tag.IsStruct() && e.Tag.Chunk == DirStructChunk && len(e.Payload) >= 8:
			out = append(out, [2]uint32{encoding.DecodeFixed32(e.Payload[0:4]), encoding.DecodeFixed32(e.Payload[4:8])})
		}
	}
	return out
}

// HardTail returns the pair address a block's hard-tail entry points to, if
// it has one. Unlike ChildPairs (which mixes hard-tail and directory-child
// pairs for the allocator's reachability scan), this looks specifically for
// the TypeTail entry so callers walking a directory's pair chain don't
// confuse a hard-tail continuation with an ordinary subdirectory.
func HardTail(b *Block) ([2]uint32, bool) {
	for _, e := range entry.Compact(b.rawEntries) {
		if e.Tag.IsHardTail() && len(e.Payload) >= 8 {
			return [2]uint32{encoding.DecodeFixed32(e.Payload[0:4]), encoding.DecodeFixed32(e.Payload[4:8])}, true
		}
	}
	return [2]uint32{}, false
}

// FileRef names a CTZ file by its head block and total size, as stored in a
// STRUCT/CTZ entry's payload: (head_pointer: u32, file_size: u32).
type FileRef struct {
	Head uint32
	Size uint32
}

// DataFiles returns the CTZ file references carried by b's compacted
// entries.
func DataFiles(b *Block) []FileRef {
	var out []FileRef
	for _, e := range entry.Compact(b.rawEntries) {
		if e.Tag.IsStruct() && e.Tag.Chunk == tagcodec.ChunkCTZ && len(e.Payload) >= 8 {
			out = append(out, FileRef{
				Head: encoding.DecodeFixed32(e.Payload[0:4]),
				Size: encoding.DecodeFixed32(e.Payload[4:8]),
			})
		}
	}
	return out
}

// DirStructChunk marks a STRUCT entry whose payload is a child directory's
// metadata-pair address, as opposed to an inline or CTZ file structure.
const DirStructChunk = 0x03

func encodePairAddrs(a, b uint32) []byte {
	return EncodePairAddrs(a, b)
}

// EncodePairAddrs packs a metadata-pair address as the two little-endian u32s
// used for hard-tail and directory-child STRUCT payloads.
func EncodePairAddrs(a, b uint32) []byte {
	buf := make([]byte, 8)
	encoding.EncodeFixed32(buf[0:4], a)
	encoding.EncodeFixed32(buf[4:8], b)
	return buf
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
