package store

import (
	"fmt"
	"path/filepath"
)

// URLStore combines the string store and the disk ordered map into a
// URL-level dedup primitive: a URL is pushed into the
// string store speculatively, then indexed; if the index already holds
// an equal string, the speculative push is retracted rather than
// leaving a duplicate copy of the bytes on disk.
type URLStore struct {
	strings *StringStore
	index   *UrlIndex
}

// OpenURLStore opens or creates the string store and ordered map under
// dir.
func OpenURLStore(dir string) (*URLStore, error) {
	strings, err := OpenStringStore(dir)
	if err != nil {
		return nil, err
	}
	index, err := OpenUrlIndex(filepath.Join(dir, "url_index.dat"), strings)
	if err != nil {
		strings.Close()
		return nil, err
	}
	return &URLStore{strings: strings, index: index}, nil
}

// Contains reports whether url has already been stored.
func (s *URLStore) Contains(url string) bool {
	return s.index.Contains([]byte(url))
}

// Insert stores url if it is not already present, returning its
// string-store id and whether the insert happened (false means url was
// already present and id is meaningless).
func (s *URLStore) Insert(url string) (id uint32, inserted bool, err error) {
	idx, err := s.strings.PushBack([]byte(url))
	if err != nil {
		return 0, false, fmt.Errorf("url store insert: %w", err)
	}
	candidate := uint32(idx)
	if !s.index.Insert(candidate) {
		if popErr := s.strings.PopBack(); popErr != nil {
			return 0, false, fmt.Errorf("url store insert: rollback: %w", popErr)
		}
		return 0, false, nil
	}
	return candidate, true, nil
}

// URL returns the string stored at id.
func (s *URLStore) URL(id uint32) string {
	return string(s.strings.Get(id))
}

// Size returns the number of distinct URLs stored.
func (s *URLStore) Size() int64 { return s.strings.Size() }

// Empty reports whether the store holds no URLs.
func (s *URLStore) Empty() bool { return s.strings.Empty() }

// Close closes both backing structures.
func (s *URLStore) Close() error {
	if err := s.index.Close(); err != nil {
		s.strings.Close()
		return err
	}
	return s.strings.Close()
}
