package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720 (32 bytes of zeros).
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))

	data := []byte("feature bank payload")
	h := NewCRC32C()
	_, _ = h.Write(data[:7])
	_, _ = h.Write(data[7:])
	assert.Equal(t, CRC32C(data), h.Sum32())

	assert.NoError(t, Verify(data, CRC32C(data)))
	assert.ErrorIs(t, Verify(data, CRC32C(data)+1), ErrChecksum)
}
