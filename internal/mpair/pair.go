// Package mpair implements a metadata pair: two physical blocks storing
// alternating revisions of one logical metadata block. Reads return the
// fresher revision; writes always target the other half, then the pair
// "flips".
package mpair

import (
	"context"
	"fmt"

	"github.com/embeddedkv/litefs/internal/blockdev"
	"github.com/embeddedkv/litefs/internal/logging"
	"github.com/embeddedkv/litefs/internal/mblock"
	"github.com/embeddedkv/litefs/internal/testutil"
)

// Pair names the two physical block addresses holding one logical metadata block.
type Pair struct {
	A, B uint32
}

// Current is the result of reading a pair: the fresher block, plus which
// physical half it came from (so a subsequent Write knows which half is
// stale and safe to overwrite).
type Current struct {
	Block *mblock.Block
	Addr  uint32
}

// newerRevision reports whether a is newer than b, using the signed 32-bit
// wraparound comparison the source relies on: if the subtraction's sign bit
// flips due to wraparound, the positive-signed difference still names the
// newer revision.
func newerRevision(a, b uint32) bool {
	return int32(a-b) > 0
}

// Read loads both physical blocks of pair and returns the one with the
// greater revision count (a tie deterministically prefers A). If one half
// fails to parse, the other is returned; if both fail, the first's error is
// reported as fatal for this subtree.
func Read(ctx context.Context, dev blockdev.Device, programBlockSize int, pair Pair, log logging.Logger) (Current, error) {
	log = logging.OrDefault(log)

	bufA := make([]byte, dev.BlockSize())
	errA := dev.ReadBlock(ctx, pair.A, bufA)
	var blockA *mblock.Block
	if errA == nil {
		blockA, errA = mblock.Parse(programBlockSize, bufA)
	}

	bufB := make([]byte, dev.BlockSize())
	errB := dev.ReadBlock(ctx, pair.B, bufB)
	var blockB *mblock.Block
	if errB == nil {
		blockB, errB = mblock.Parse(programBlockSize, bufB)
	}

	switch {
	case errA == nil && errB == nil:
		if newerRevision(blockB.RevisionCount, blockA.RevisionCount) {
			return Current{Block: blockB, Addr: pair.B}, nil
		}
		return Current{Block: blockA, Addr: pair.A}, nil
	case errA == nil:
		log.Warnf(logging.NSPair+"block %d corrupt, using block %d", pair.B, pair.A)
		return Current{Block: blockA, Addr: pair.A}, nil
	case errB == nil:
		log.Warnf(logging.NSPair+"block %d corrupt, using block %d", pair.A, pair.B)
		return Current{Block: blockB, Addr: pair.B}, nil
	default:
		return Current{}, fmt.Errorf("mpair: both halves of pair (%d,%d) corrupt: %w", pair.A, pair.B, errA)
	}
}

// other returns the half of pair that is not addr.
func (p Pair) other(addr uint32) uint32 {
	if addr == p.A {
		return p.B
	}
	return p.A
}

// Write serializes newBlock to the half of pair that is NOT cur.Addr (the
// stale half), flipping the pair. If cur.Block is nil (first-ever write to
// a freshly allocated pair), the write targets B, leaving A available for
// the next flip. It returns the resulting write classification.
func Write(ctx context.Context, dev blockdev.Device, programBlockSize int, pair Pair, cur Current, newBlock *mblock.Block, log logging.Logger) (mblock.WriteResult, error) {
	log = logging.OrDefault(log)

	target := pair.B
	if cur.Block != nil {
		target = pair.other(cur.Addr)
	}

	out, result := mblock.Serialize(programBlockSize, int(dev.BlockSize()), newBlock)
	if result == mblock.SplitEmergency {
		return result, nil
	}

	padded := make([]byte, dev.BlockSize())
	copy(padded, out)

	if target == pair.A {
		testutil.MaybeKill(testutil.KPPairWriteA0)
	} else {
		testutil.MaybeKill(testutil.KPPairWriteB0)
	}
	if err := dev.WriteBlock(ctx, target, padded); err != nil {
		return result, fmt.Errorf("mpair: write block %d: %w", target, err)
	}
	if target == pair.A {
		testutil.MaybeKill(testutil.KPPairWriteA1)
	} else {
		testutil.MaybeKill(testutil.KPPairWriteB1)
	}
	log.Debugf(logging.NSPair+"wrote pair (%d,%d) -> block %d rev %d", pair.A, pair.B, target, newBlock.RevisionCount)
	return result, nil
}
