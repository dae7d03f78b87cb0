// Package commit serializes and parses one append unit within a metadata
// block: a sequence of entries, a terminating CRC tag and CRC word, and zero
// padding out to the next program_block_size boundary.
//
// This mirrors the teacher's WAL record framing (internal/wal: a
// checksum-terminated, block-padded length-framed record) one level down:
// a commit is this module's equivalent of one physical WAL record, and the
// metadata block (internal/mblock) is the equivalent of one WAL block.
package commit

import (
	"errors"

	"github.com/embeddedkv/litefs/internal/checksum"
	"github.com/embeddedkv/litefs/internal/entry"
	"github.com/embeddedkv/litefs/internal/tagcodec"
)

// ErrCRCMismatch is returned by Parse when a commit's terminating CRC does
// not match the bytes preceding it; this is the expected signal that the
// block has reached the end of its live commits, not necessarily an error.
var ErrCRCMismatch = errors.New("commit: crc mismatch")

// ErrTruncated is returned when buf ends before a complete commit is found.
var ErrTruncated = errors.New("commit: truncated")

// Serialize appends one commit for entries to buf, using prevRaw as the XOR
// chain state carried in from the preceding commit (or tagcodec.InitialMask
// at the start of a block), and seed as the running CRC carried in from all
// prior bytes of the block (revision count plus prior commits).
//
// It returns the extended buffer and the updated (prevRaw, seed) chain state
// for the next commit, if any.
func Serialize(buf []byte, prevRaw uint32, seed uint32, programBlockSize int, entries []entry.Entry) (out []byte, newPrevRaw uint32, newSeed uint32) {
	start := len(buf)

	for _, e := range entries {
		raw := tagcodec.Encode(prevRaw, e.Tag)
		buf = appendBE32(buf, raw)
		buf = append(buf, e.Payload...)
		seed = checksum.Extend(seed, buf[len(buf)-4-len(e.Payload):])
		prevRaw = tagcodec.Pack(e.Tag)
	}

	// Terminating CRC tag: payload carries the running CRC computed over
	// every byte of the commit up to and including this tag's own 4 bytes.
	crcTag := tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeCRC, ID: tagcodec.NoID, Length: 4}
	crcRaw := tagcodec.Encode(prevRaw, crcTag)
	buf = appendBE32(buf, crcRaw)
	seed = checksum.Extend(seed, buf[len(buf)-4:])

	buf = appendBE32(buf, seed)

	prevRaw = tagcodec.Pack(crcTag)

	// Pad with zero bytes to the next program_block_size boundary.
	total := len(buf) - start
	if rem := total % programBlockSize; rem != 0 {
		pad := programBlockSize - rem
		buf = append(buf, make([]byte, pad)...)
	}

	return buf, prevRaw, seed
}

// Parse reads one commit from the start of buf, given the incoming XOR chain
// state prevRaw and running CRC seed (as left by the previous commit, or the
// block header for the first commit). It returns the decoded entries
// (excluding the terminating CRC entry), the number of bytes consumed
// (including padding, a multiple of programBlockSize), and the updated chain
// state. ErrCRCMismatch signals the end of the block's live commits, not
// necessarily corruption.
func Parse(buf []byte, prevRaw uint32, seed uint32, programBlockSize int) (entries []entry.Entry, consumed int, newPrevRaw uint32, newSeed uint32, err error) {
	pos := 0
	for {
		if pos+4 > len(buf) {
			return nil, 0, prevRaw, seed, ErrTruncated
		}
		raw := readBE32(buf[pos:])
		tag, unchained := tagcodec.Decode(prevRaw, raw)
		pos += 4

		if tag.Abstract == tagcodec.TypeCRC {
			if int(tag.Length) != 4 || pos+4 > len(buf) {
				return nil, 0, prevRaw, seed, ErrTruncated
			}
			seedThroughTag := checksum.Extend(seed, buf[pos-4:pos])
			stored := readBE32(buf[pos:])
			pos += 4
			if stored != seedThroughTag {
				return nil, 0, prevRaw, seed, ErrCRCMismatch
			}

			total := pos
			if rem := total % programBlockSize; rem != 0 {
				pad := programBlockSize - rem
				if pos+pad > len(buf) {
					return nil, 0, prevRaw, seed, ErrTruncated
				}
				pos += pad
			}
			return entries, pos, unchained, seedThroughTag, nil
		}

		if pos+int(tag.Length) > len(buf) {
			return nil, 0, prevRaw, seed, ErrTruncated
		}
		payload := buf[pos : pos+int(tag.Length)]
		pos += int(tag.Length)

		seed = checksum.Extend(seed, buf[pos-4-int(tag.Length):pos])
		prevRaw = unchained

		entries = append(entries, entry.Entry{Tag: tag, Payload: append([]byte(nil), payload...)})
	}
}

func appendBE32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readBE32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
