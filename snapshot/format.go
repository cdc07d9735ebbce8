package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/internal/conv"
	"github.com/hupe1980/knnmon/internal/hash"
	"github.com/hupe1980/knnmon/matrix"
)

const (
	magic         = "KNNB"
	formatVersion = 1
	headerSize    = 28
	payloadFixed  = 16 // epoch + dim + count
)

var (
	// ErrCorrupt is returned when a snapshot cannot be decoded.
	ErrCorrupt = errors.New("snapshot: corrupt data")
	// ErrVersion is returned for snapshots written by an unsupported format version.
	ErrVersion = errors.New("snapshot: unsupported version")
)

// Encode serializes fb using compression c.
func Encode(fb *bank.FeatureBank, c Compression) ([]byte, error) {
	data, _, err := encode(fb, c)
	return data, err
}

// encode also reports the compression actually written, which falls back
// to CompressionNone when c does not shrink the payload.
func encode(fb *bank.FeatureBank, c Compression) ([]byte, Compression, error) {
	dim, err := conv.IntToUint32(fb.Dim())
	if err != nil {
		return nil, 0, err
	}
	count, err := conv.IntToUint32(fb.Len())
	if err != nil {
		return nil, 0, err
	}
	epoch, err := conv.IntToUint64(fb.Epoch())
	if err != nil {
		return nil, 0, err
	}

	features := fb.Features().RawData()
	raw := make([]byte, payloadFixed+4*len(features)+4*fb.Len())
	binary.LittleEndian.PutUint64(raw[0:], epoch)
	binary.LittleEndian.PutUint32(raw[8:], dim)
	binary.LittleEndian.PutUint32(raw[12:], count)

	off := payloadFixed
	for _, v := range features {
		binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
		off += 4
	}
	for _, l := range fb.RawLabels() {
		u, err := conv.IntToUint32(l)
		if err != nil {
			return nil, 0, err
		}
		binary.LittleEndian.PutUint32(raw[off:], u)
		off += 4
	}

	stored, used, err := compress(raw, c)
	if err != nil {
		return nil, 0, err
	}

	out := make([]byte, headerSize+len(stored))
	copy(out[0:4], magic)
	binary.LittleEndian.PutUint16(out[4:], formatVersion)
	out[6] = byte(used)
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(raw))
	binary.LittleEndian.PutUint64(out[12:], uint64(len(raw)))
	binary.LittleEndian.PutUint64(out[20:], uint64(len(stored)))
	copy(out[headerSize:], stored)
	return out, used, nil
}

// Header describes an encoded snapshot without decoding the payload.
type Header struct {
	Version      uint16
	Compression  Compression
	Checksum     uint32
	RawLength    uint64
	StoredLength uint64
}

// ReadHeader parses the fixed-size header of an encoded snapshot.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if string(data[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}
	h := Header{
		Version:      binary.LittleEndian.Uint16(data[4:]),
		Compression:  Compression(data[6]),
		Checksum:     binary.LittleEndian.Uint32(data[8:]),
		RawLength:    binary.LittleEndian.Uint64(data[12:]),
		StoredLength: binary.LittleEndian.Uint64(data[20:]),
	}
	if h.Version != formatVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

// Decode parses a snapshot produced by Encode. The returned bank does not
// reference data.
func Decode(data []byte) (*bank.FeatureBank, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-headerSize) != h.StoredLength {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(data)-headerSize, h.StoredLength)
	}
	rawLen, err := conv.Uint64ToInt(h.RawLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	raw, err := decompress(data[headerSize:], h.Compression, rawLen)
	if err != nil {
		return nil, err
	}
	if err := hash.Verify(raw, h.Checksum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(raw) < payloadFixed {
		return nil, fmt.Errorf("%w: payload too short", ErrCorrupt)
	}

	epoch, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(raw[0:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	dim, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(raw[8:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	count, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(raw[12:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	want := uint64(payloadFixed) + 4*uint64(dim)*uint64(count) + 4*uint64(count)
	if want != uint64(len(raw)) {
		return nil, fmt.Errorf("%w: %dx%d bank needs %d payload bytes, have %d", ErrCorrupt, dim, count, want, len(raw))
	}

	if count == 0 {
		return bank.NewEmpty().WithEpoch(epoch), nil
	}

	features := make([]float32, dim*count)
	off := payloadFixed
	for i := range features {
		features[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}
	labels := make([]int, count)
	for i := range labels {
		l, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(raw[off:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		labels[i] = l
		off += 4
	}

	m, err := matrix.New(dim, count, features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	fb, err := bank.New(m, labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return fb.WithEpoch(epoch), nil
}
