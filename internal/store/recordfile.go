// Package store implements the persistent, memory-mapped backing of the
// URL frontier: an append-only string store and a fixed-arity
// disk-resident ordered map over its contents. All writes are
// single-threaded; readers never run concurrently with a writer —
// the frontier package serializes access externally.
package store

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// pageSize mirrors the host page size the on-disk layout's doubling
// growth starts from (8 × page_size).
const pageSize = 4096

const recordFileHeaderSize = 8 // totalCount uint64

// Codec describes how to marshal a fixed-size record of type T to and
// from a byte buffer of exactly Size bytes.
type Codec[T any] struct {
	Size   int
	Encode func(v T, buf []byte)
	Decode func(buf []byte) T
}

// RecordFile is a memory-mapped, fixed-size-record vector file: a
// small header holding the element count followed by packed records,
// growing by doubling when capacity runs out. PushBack/PopBack/Get/Set
// cover append, retract, random read, and in-place mutation (the last
// needed by the B-tree node file and by the frontier's swap-remove).
type RecordFile[T any] struct {
	path     string
	f        *os.File
	data     mmap.MMap
	fileSize int64
	count    int64
	codec    Codec[T]
}

// OpenRecordFile opens or creates a record file at path.
func OpenRecordFile[T any](path string, codec Codec[T]) (*RecordFile[T], error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record file %s: %w", path, err)
	}

	var fileSize int64
	if exists {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat record file %s: %w", path, err)
		}
		fileSize = info.Size()
	} else {
		fileSize = recordFileHeaderSize + int64(8*pageSize)
		if err := f.Truncate(fileSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate record file %s: %w", path, err)
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap record file %s: %w", path, err)
	}

	rf := &RecordFile[T]{path: path, f: f, data: m, fileSize: fileSize, codec: codec}
	if exists {
		rf.count = int64(binary.LittleEndian.Uint64(m[:recordFileHeaderSize]))
	} else {
		binary.LittleEndian.PutUint64(m[:recordFileHeaderSize], 0)
	}
	return rf, nil
}

func (r *RecordFile[T]) offset(i int64) int64 {
	return recordFileHeaderSize + i*int64(r.codec.Size)
}

func (r *RecordFile[T]) capacityRecords() int64 {
	return (r.fileSize - recordFileHeaderSize) / int64(r.codec.Size)
}

// grow doubles the backing file until it can hold at least n records.
// All mmap remaps unmap before truncating.
func (r *RecordFile[T]) grow(n int64) error {
	newSize := r.fileSize
	for (newSize-recordFileHeaderSize)/int64(r.codec.Size) < n {
		newSize *= 2
	}
	if err := r.data.Unmap(); err != nil {
		return fmt.Errorf("unmap record file %s: %w", r.path, err)
	}
	if err := r.f.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate record file %s: %w", r.path, err)
	}
	m, err := mmap.Map(r.f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("remap record file %s: %w", r.path, err)
	}
	r.data = m
	r.fileSize = newSize
	return nil
}

func (r *RecordFile[T]) setCount(n int64) {
	r.count = n
	binary.LittleEndian.PutUint64(r.data[:recordFileHeaderSize], uint64(n))
}

// Len returns the number of stored records.
func (r *RecordFile[T]) Len() int64 { return r.count }

// Empty reports whether the record file has no entries.
func (r *RecordFile[T]) Empty() bool { return r.count == 0 }

// Get decodes and returns the record at index i. i must be in
// [0, Len()); out-of-range access is a programmer error and panics.
func (r *RecordFile[T]) Get(i int64) T {
	if i < 0 || i >= r.count {
		panic(fmt.Sprintf("record file %s: index %d out of range [0,%d)", r.path, i, r.count))
	}
	off := r.offset(i)
	return r.codec.Decode(r.data[off : off+int64(r.codec.Size)])
}

// Set overwrites the record at index i in place.
func (r *RecordFile[T]) Set(i int64, v T) {
	if i < 0 || i >= r.count {
		panic(fmt.Sprintf("record file %s: index %d out of range [0,%d)", r.path, i, r.count))
	}
	off := r.offset(i)
	r.codec.Encode(v, r.data[off:off+int64(r.codec.Size)])
}

// PushBack appends v, growing the backing file if necessary, and
// returns the index it was stored at.
func (r *RecordFile[T]) PushBack(v T) int64 {
	if r.count >= r.capacityRecords() {
		if err := r.grow(r.count + 1); err != nil {
			panic(fmt.Sprintf("record file %s: grow failed: %v", r.path, err))
		}
	}
	idx := r.count
	off := r.offset(idx)
	r.codec.Encode(v, r.data[off:off+int64(r.codec.Size)])
	r.setCount(idx + 1)
	return idx
}

// PopBack retracts and returns the last record.
func (r *RecordFile[T]) PopBack() T {
	if r.count == 0 {
		panic(fmt.Sprintf("record file %s: pop from empty file", r.path))
	}
	v := r.Get(r.count - 1)
	r.setCount(r.count - 1)
	return v
}

// Close unmaps and closes the backing file.
func (r *RecordFile[T]) Close() error {
	if err := r.data.Unmap(); err != nil {
		return err
	}
	return r.f.Close()
}
