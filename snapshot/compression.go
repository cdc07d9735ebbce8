package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression.
type Compression uint8

const (
	// CompressionNone stores payloads as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (smaller).
	CompressionZSTD Compression = 2
)

// ErrUnknownCompression is returned for unsupported compression identifiers.
var ErrUnknownCompression = errors.New("snapshot: unknown compression")

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(b []byte) error {
	v, err := ParseCompression(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxRawLength))
}

// lz4 blocks expand each stored byte into at most 255 raw bytes.
const lz4MaxRatio = 255

// maxRawLength caps the decoded payload of a single snapshot.
const maxRawLength = 1 << 34

// checkRawLength rejects header lengths that no stored payload of the
// given size could decode to, before anything is allocated from them.
func checkRawLength(stored int, c Compression, rawLen int) error {
	if rawLen < 0 || uint64(rawLen) > maxRawLength {
		return fmt.Errorf("%w: raw length %d out of range", ErrCorrupt, rawLen)
	}
	switch c {
	case CompressionNone:
		if stored != rawLen {
			return fmt.Errorf("%w: stored %d bytes, header says %d", ErrCorrupt, stored, rawLen)
		}
	case CompressionLZ4:
		if uint64(rawLen) > lz4MaxRatio*uint64(stored)+16 {
			return fmt.Errorf("%w: %d lz4 bytes cannot hold %d raw bytes", ErrCorrupt, stored, rawLen)
		}
	}
	return nil
}

// compress returns the stored form of raw and the compression actually used.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		out = buf[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, err
		}
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	if len(out) == 0 || float64(len(out)) > float64(len(raw))*0.9 {
		return raw, CompressionNone, nil
	}
	return out, c, nil
}

func decompress(stored []byte, c Compression, rawLen int) ([]byte, error) {
	if err := checkRawLength(len(stored), c, rawLen); err != nil {
		return nil, err
	}
	switch c {
	case CompressionNone:
		return stored, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrCorrupt, n, rawLen)
		}
		return raw, nil
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		raw, err := dec.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrCorrupt, len(raw), rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}
