// Package checksum provides the CRC-32 implementation used to protect
// metadata commits.
//
// littlefs uses the standard CRC-32 (IEEE 802.3 polynomial), not the
// Castagnoli variant RocksDB favors for its SSE4.2 acceleration: the two are
// not interchangeable, and a littlefs image is only readable by this module
// if the checksum matches bit-for-bit. The masking scheme RocksDB applies to
// stored CRCs (to avoid a checksum that embeds its own value) is not part of
// littlefs's on-disk format, so it is not reproduced here: commit CRC words
// are stored unmasked.
package checksum

import "hash/crc32"

var ieeeTable = crc32.MakeTable(crc32.IEEE)

// Value computes the CRC-32 of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, ieeeTable)
}

// Extend computes the CRC-32 of concat(A, data) where initCRC is the CRC-32 of A.
func Extend(initCRC uint32, data []byte) uint32 {
	return crc32.Update(initCRC, ieeeTable, data)
}
