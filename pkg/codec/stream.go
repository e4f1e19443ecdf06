package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"sightdata/pkg/compress"
	"sightdata/pkg/data"
)

// streamMagic starts every encoded stream.
var streamMagic = [4]byte{'S', 'D', 'C', 'B'}

// headerSize is magic(4) + tag(1) + reserved(3) + length(8).
const headerSize = 4 + 1 + 3 + 8

// ErrBadStream is returned when a stream does not start with a valid
// header.
var ErrBadStream = errors.New("not an encoded object stream")

// Write encodes obj to w, compressing the CBOR payload with tag unless it
// does not compress.
func Write(w io.Writer, obj data.Object, tag compress.Tag) error {
	raw, err := Marshal(obj)
	if err != nil {
		return err
	}
	payload, used, err := compress.BlockOrRaw(raw, tag)
	if err != nil {
		return err
	}

	header := make([]byte, headerSize)
	copy(header[0:4], streamMagic[:])
	header[4] = byte(used)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(raw)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("error writing stream header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("error writing stream payload: %w", err)
	}
	return nil
}

// Read decodes an object written by Write. The rest of r is the payload.
func Read(r io.Reader, opts ...Option) (data.Object, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("error reading stream header: %w", err)
	}
	if !bytes.Equal(header[0:4], streamMagic[:]) {
		return nil, ErrBadStream
	}
	tag := compress.Tag(header[4])
	size := binary.LittleEndian.Uint64(header[8:16])

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading stream payload: %w", err)
	}
	if tag == compress.None && uint64(len(payload)) != size {
		return nil, fmt.Errorf("payload of %d bytes, header announces %d: %w", len(payload), size, ErrBadStream)
	}
	raw, err := compress.Unblock(payload, tag, int(size))
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw, opts...)
}

// WriteFile encodes obj into the file at path.
func WriteFile(path string, obj data.Object, tag compress.Tag) error {
	var buf bytes.Buffer
	if err := Write(&buf, obj, tag); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the object stored in the file at path.
func ReadFile(path string, opts ...Option) (data.Object, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()
	return Read(file, opts...)
}
