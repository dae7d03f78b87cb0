package litefs

import "encoding/binary"

// superblockVersion is the on-disk format version this module writes.
const superblockVersion = 0x00020000

// superblockSize is the byte length of the inline superblock struct payload:
// six big-endian u32 fields.
const superblockSize = 6 * 4

// encodeSuperblock packs the superblock struct payload. Unlike every other
// on-disk integer in this format, the superblock fields are big-endian, per
// the tag encoding convention rather than the CTZ/revision-count one.
func encodeSuperblock(blockSize, blockCount, nameLengthMax, fileSizeMax, fileAttributeSizeMax uint32) []byte {
	buf := make([]byte, superblockSize)
	binary.BigEndian.PutUint32(buf[0:4], superblockVersion)
	binary.BigEndian.PutUint32(buf[4:8], blockSize)
	binary.BigEndian.PutUint32(buf[8:12], blockCount)
	binary.BigEndian.PutUint32(buf[12:16], nameLengthMax)
	binary.BigEndian.PutUint32(buf[16:20], fileSizeMax)
	binary.BigEndian.PutUint32(buf[20:24], fileAttributeSizeMax)
	return buf
}

// decodeSuperblock is the inverse of encodeSuperblock.
func decodeSuperblock(buf []byte) (version, blockSize, blockCount, nameLengthMax, fileSizeMax, fileAttributeSizeMax uint32) {
	version = binary.BigEndian.Uint32(buf[0:4])
	blockSize = binary.BigEndian.Uint32(buf[4:8])
	blockCount = binary.BigEndian.Uint32(buf[8:12])
	nameLengthMax = binary.BigEndian.Uint32(buf[12:16])
	fileSizeMax = binary.BigEndian.Uint32(buf[16:20])
	fileAttributeSizeMax = binary.BigEndian.Uint32(buf[20:24])
	return
}
