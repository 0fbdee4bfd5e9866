package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"
)

const stringDataHeaderSize = 8 // totalBytes uint64

// offsetCodec serializes the uint64 start-offset of one stored string.
var offsetCodec = Codec[uint64]{
	Size:   8,
	Encode: func(v uint64, buf []byte) { binary.LittleEndian.PutUint64(buf, v) },
	Decode: func(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) },
}

// StringStore is append-only, mmap-backed byte-string storage: a data
// file (header + packed bytes, growing by doubling) paired with an
// offsets vector recording each string's start. A
// string's end is either the next string's start or, for the last
// string, the data file's total-bytes-used header.
type StringStore struct {
	f        *os.File
	data     mmap.MMap
	fileSize int64
	total    int64
	offsets  *RecordFile[uint64]
}

// OpenStringStore opens or creates the string store under dir.
func OpenStringStore(dir string) (*StringStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create string store dir: %w", err)
	}

	offsets, err := OpenRecordFile(filepath.Join(dir, "url_offsets.dat"), offsetCodec)
	if err != nil {
		return nil, err
	}

	dataPath := filepath.Join(dir, "url_data.dat")
	_, statErr := os.Stat(dataPath)
	exists := statErr == nil

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		offsets.Close()
		return nil, fmt.Errorf("open string data file: %w", err)
	}

	var fileSize int64
	if exists {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			offsets.Close()
			return nil, fmt.Errorf("stat string data file: %w", err)
		}
		fileSize = info.Size()
	} else {
		fileSize = stringDataHeaderSize + int64(8*pageSize)
		if err := f.Truncate(fileSize); err != nil {
			f.Close()
			offsets.Close()
			return nil, fmt.Errorf("truncate string data file: %w", err)
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		offsets.Close()
		return nil, fmt.Errorf("mmap string data file: %w", err)
	}

	s := &StringStore{f: f, data: m, fileSize: fileSize, offsets: offsets}
	if exists {
		s.total = int64(binary.LittleEndian.Uint64(m[:stringDataHeaderSize]))
	} else {
		binary.LittleEndian.PutUint64(m[:stringDataHeaderSize], 0)
	}
	return s, nil
}

func (s *StringStore) capacity() int64 { return s.fileSize - stringDataHeaderSize }

func (s *StringStore) grow(minCapacity int64) error {
	newSize := s.fileSize
	for newSize-stringDataHeaderSize < minCapacity {
		newSize *= 2
	}
	if err := s.data.Unmap(); err != nil {
		return fmt.Errorf("unmap string data file: %w", err)
	}
	if err := s.f.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate string data file: %w", err)
	}
	m, err := mmap.Map(s.f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("remap string data file: %w", err)
	}
	s.data = m
	s.fileSize = newSize
	return nil
}

// PushBack appends b and returns the implicit index it can be
// retrieved at via Get.
func (s *StringStore) PushBack(b []byte) (int64, error) {
	if s.capacity()-s.total < int64(len(b)) {
		if err := s.grow(s.total + int64(len(b))); err != nil {
			return 0, err
		}
	}
	offset := s.total
	copy(s.data[stringDataHeaderSize+offset:], b)
	s.total += int64(len(b))
	binary.LittleEndian.PutUint64(s.data[:stringDataHeaderSize], uint64(s.total))
	idx := s.offsets.PushBack(uint64(offset))
	return idx, nil
}

// PopBack retracts the most recently pushed string. Used to undo a
// PushBack whose index collided in the ordered map's two-phase insert.
func (s *StringStore) PopBack() error {
	if s.offsets.Empty() {
		return fmt.Errorf("string store: pop from empty store")
	}
	start := s.offsets.PopBack()
	s.total = int64(start)
	binary.LittleEndian.PutUint64(s.data[:stringDataHeaderSize], uint64(s.total))
	return nil
}

// Get returns a borrowed view of the string at index n. The slice is
// only valid until the next PushBack/PopBack, which may remap the
// backing file and invalidate prior views.
func (s *StringStore) Get(n uint32) []byte {
	idx := int64(n)
	start := s.offsets.Get(idx)
	var end int64
	if idx == s.offsets.Len()-1 {
		end = s.total
	} else {
		end = int64(s.offsets.Get(idx + 1))
	}
	return s.data[stringDataHeaderSize+int64(start) : stringDataHeaderSize+end]
}

// Size returns the number of stored strings.
func (s *StringStore) Size() int64 { return s.offsets.Len() }

// Empty reports whether the store holds no strings.
func (s *StringStore) Empty() bool { return s.Size() == 0 }

// Close unmaps and closes both backing files.
func (s *StringStore) Close() error {
	if err := s.data.Unmap(); err != nil {
		s.offsets.Close()
		return err
	}
	if err := s.f.Close(); err != nil {
		s.offsets.Close()
		return err
	}
	return s.offsets.Close()
}
