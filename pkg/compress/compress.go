// Package compress provides the block compression used when buffers leave
// memory: dumped buffers in the out-of-core store and encoded objects in
// codec streams.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm used for a block. Tags are
// written in file and stream headers (1 byte each); changing the values
// breaks compatibility with existing dumps.
type Tag uint8

const (
	// None stores the block as-is.
	None Tag = 0

	// LZ4 is LZ4 block compression. Fast default for dumps.
	LZ4 Tag = 1

	// Zstd is zstd at the default level. Better ratio for exports.
	Zstd Tag = 2

	// BG4LZ4 groups bytes by position in 4-byte words before LZ4.
	// Effective on float32 coordinate and normal buffers.
	BG4LZ4 Tag = 3
)

// String returns the configuration name of a tag.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case BG4LZ4:
		return "bg4_lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseTag parses a tag from its configuration name.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "bg4_lz4":
		return BG4LZ4, nil
	default:
		return None, fmt.Errorf("unknown compression: %q", name)
	}
}

// ErrIncompressible is returned by Block when the compressed output would
// not be smaller than the input.
var ErrIncompressible = errors.New("data is incompressible")

// Block compresses data with the given algorithm.
func Block(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		return compressZstd(data)
	case BG4LZ4:
		return compressLZ4(bg4Transpose(data))
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// BlockOrRaw compresses data with tag, falling back to None when the data
// does not compress. It returns the tag actually used.
func BlockOrRaw(data []byte, tag Tag) ([]byte, Tag, error) {
	out, err := Block(data, tag)
	if errors.Is(err, ErrIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, None, err
	}
	return out, tag, nil
}

// Unblock decompresses a block into a new slice of exactly size bytes.
func Unblock(compressed []byte, tag Tag, size int) ([]byte, error) {
	dst := make([]byte, size)
	if err := UnblockInto(dst, compressed, tag); err != nil {
		return nil, err
	}
	return dst, nil
}

// UnblockInto decompresses a block into dst. The decompressed size must
// match len(dst) exactly.
func UnblockInto(dst, compressed []byte, tag Tag) error {
	switch tag {
	case None:
		if len(compressed) != len(dst) {
			return fmt.Errorf("raw block: size %d does not match expected %d", len(compressed), len(dst))
		}
		copy(dst, compressed)
		return nil

	case LZ4:
		return decompressLZ4(dst, compressed)

	case Zstd:
		out, err := zstdDecoder.DecodeAll(compressed, dst[:0])
		if err != nil {
			return fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), len(dst))
		}
		// DecodeAll reallocates when the capacity is exceeded
		if len(out) > 0 && &out[0] != &dst[0] {
			copy(dst, out)
		}
		return nil

	case BG4LZ4:
		transposed := make([]byte, len(dst))
		if err := decompressLZ4(transposed, compressed); err != nil {
			return err
		}
		bg4Untranspose(dst, transposed)
		return nil

	default:
		return fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 for incompressible input
	if written == 0 || written >= len(data) {
		return nil, ErrIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(dst, compressed []byte) error {
	read, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != len(dst) {
		return fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, len(dst))
	}
	return nil
}

// zstd encoders and decoders are safe for concurrent use and expensive to
// build, so one of each is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, ErrIncompressible
	}
	return compressed, nil
}

// bg4Transpose moves byte 0 of every 4-byte group first, then byte 1, and
// so on. Trailing bytes are appended unchanged.
func bg4Transpose(data []byte) []byte {
	groups := len(data) / 4
	out := make([]byte, len(data))

	for i := 0; i < groups; i++ {
		out[i] = data[i*4]
		out[groups+i] = data[i*4+1]
		out[groups*2+i] = data[i*4+2]
		out[groups*3+i] = data[i*4+3]
	}
	copy(out[groups*4:], data[groups*4:])
	return out
}

func bg4Untranspose(dst, data []byte) {
	groups := len(data) / 4

	for i := 0; i < groups; i++ {
		dst[i*4] = data[i]
		dst[i*4+1] = data[groups+i]
		dst[i*4+2] = data[groups*2+i]
		dst[i*4+3] = data[groups*3+i]
	}
	copy(dst[groups*4:], data[groups*4:])
}
