package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"sightdata/pkg/compress"
)

// Store keeps dumped buffers outside of memory.
type Store interface {
	// Write stores data under key.
	Write(key string, data []byte) error

	// Read fills dst with the data stored under key. len(dst) must be
	// the size that was written.
	Read(key string, dst []byte) error

	// Remove deletes the data stored under key.
	Remove(key string) error
}

// dumpMagic starts every dump file.
var dumpMagic = [4]byte{'S', 'D', 'M', 'P'}

// dumpHeaderSize is magic(4) + tag(1) + reserved(3) + size(8) + digest(32).
const dumpHeaderSize = 4 + 1 + 3 + 8 + 32

// FileStore writes one file per dumped buffer in a directory. Files are
// compressed and carry a BLAKE3 digest of the uncompressed content that
// is checked on read.
type FileStore struct {
	dir         string
	compression compress.Tag
}

// NewFileStore creates dir if needed and returns a store writing to it.
func NewFileStore(dir string, compression compress.Tag) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating dump directory: %w", err)
	}
	return &FileStore{dir: dir, compression: compression}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".dump")
}

// Write implements Store.
func (s *FileStore) Write(key string, data []byte) error {
	payload, tag, err := compress.BlockOrRaw(data, s.compression)
	if err != nil {
		return err
	}

	header := make([]byte, dumpHeaderSize)
	copy(header[0:4], dumpMagic[:])
	header[4] = byte(tag)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(data)))
	digest := blake3.Sum256(data)
	copy(header[16:48], digest[:])

	file, err := os.Create(s.path(key))
	if err != nil {
		return fmt.Errorf("error creating dump file: %w", err)
	}
	if _, err := file.Write(header); err != nil {
		file.Close()
		return fmt.Errorf("error writing dump header: %w", err)
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		return fmt.Errorf("error writing dump payload: %w", err)
	}
	return file.Close()
}

// Read implements Store.
func (s *FileStore) Read(key string, dst []byte) error {
	file, err := os.Open(s.path(key))
	if err != nil {
		return fmt.Errorf("error opening dump file: %w", err)
	}
	defer file.Close()

	header := make([]byte, dumpHeaderSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return fmt.Errorf("error reading dump header: %w", err)
	}
	if !bytes.Equal(header[0:4], dumpMagic[:]) {
		return fmt.Errorf("invalid dump file %s", key)
	}
	tag := compress.Tag(header[4])
	size := binary.LittleEndian.Uint64(header[8:16])
	if size != uint64(len(dst)) {
		return fmt.Errorf("dump %s holds %d bytes, expected %d", key, size, len(dst))
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("error reading dump payload: %w", err)
	}
	if err := compress.UnblockInto(dst, payload, tag); err != nil {
		return err
	}

	digest := blake3.Sum256(dst)
	if !bytes.Equal(digest[:], header[16:48]) {
		return fmt.Errorf("dump %s: %w", key, ErrChecksum)
	}
	return nil
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
