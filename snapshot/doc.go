// Package snapshot persists feature banks so that a restarted run can resume
// kNN monitoring without rebuilding the bank first.
//
// # File Format
//
//	Header (28 bytes, little endian):
//	  Magic        [4]byte  "KNNB"
//	  Version      uint16
//	  Compression  uint8    0=none 1=lz4 2=zstd
//	  Reserved     uint8
//	  Checksum     uint32   CRC32C of the uncompressed payload
//	  RawLength    uint64   uncompressed payload length
//	  StoredLength uint64   payload length as stored
//	Payload:
//	  Epoch        uint64
//	  Dim          uint32
//	  Count        uint32
//	  Features     [Dim*Count]float32, row-major D×N
//	  Labels       [Count]uint32
//
// Compressed payloads that do not shrink below 90% of the raw size are stored
// uncompressed and flagged as such in the header.
//
// A Store writes one blob per epoch (bank-00000042.knnb) and a MANIFEST.json
// document naming the latest snapshot.
package snapshot
