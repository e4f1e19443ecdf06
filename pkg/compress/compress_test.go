package compress

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatRamp returns the bytes of a slowly varying float32 series, the
// shape of typical coordinate buffers.
func floatRamp(n int) []byte {
	out := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(i)*0.25))
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	data := append(bytes.Repeat([]byte("sightdata "), 200), floatRamp(500)...)

	for _, tag := range []Tag{None, LZ4, Zstd, BG4LZ4} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, used, err := BlockOrRaw(data, tag)
			require.NoError(t, err)
			assert.Equal(t, tag, used)
			if tag != None {
				assert.Less(t, len(compressed), len(data))
			}

			restored, err := Unblock(compressed, used, len(data))
			require.NoError(t, err)
			assert.Equal(t, data, restored)
		})
	}
}

func TestIncompressibleFallsBackToRaw(t *testing.T) {
	data := []byte{0x01, 0x7f, 0x33}

	_, err := Block(data, LZ4)
	assert.ErrorIs(t, err, ErrIncompressible)

	out, used, err := BlockOrRaw(data, LZ4)
	require.NoError(t, err)
	assert.Equal(t, None, used)
	assert.Equal(t, data, out)
}

func TestUnblockSizeMismatch(t *testing.T) {
	_, err := Unblock([]byte{1, 2, 3}, None, 4)
	assert.Error(t, err)

	compressed, err := Block(bytes.Repeat([]byte{7}, 1024), LZ4)
	require.NoError(t, err)
	_, err = Unblock(compressed, LZ4, 1000)
	assert.Error(t, err)
}

func TestParseTag(t *testing.T) {
	for _, tag := range []Tag{None, LZ4, Zstd, BG4LZ4} {
		parsed, err := ParseTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}
	_, err := ParseTag("brotli")
	assert.Error(t, err)
}

func TestBG4Transpose(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	transposed := bg4Transpose(data)
	assert.Equal(t, []byte{1, 5, 2, 6, 3, 7, 4, 8, 9}, transposed)

	restored := make([]byte, len(data))
	bg4Untranspose(restored, transposed)
	assert.Equal(t, data, restored)
}
