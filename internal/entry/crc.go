package entry

import (
	"github.com/embeddedkv/litefs/internal/checksum"
	"github.com/embeddedkv/litefs/internal/tagcodec"
)

// CRC folds an entry's encoded tag bytes and payload into seed, returning the
// running CRC-32 used by a commit's terminating CRC tag.
func CRC(seed uint32, prevRaw uint32, e Entry) (uint32, uint32) {
	raw := tagcodec.Encode(prevRaw, e.Tag)
	var tagBuf [4]byte
	tagBuf[0] = byte(raw >> 24)
	tagBuf[1] = byte(raw >> 16)
	tagBuf[2] = byte(raw >> 8)
	tagBuf[3] = byte(raw)

	seed = checksum.Extend(seed, tagBuf[:])
	if len(e.Payload) > 0 {
		seed = checksum.Extend(seed, e.Payload)
	}
	return seed, raw
}
