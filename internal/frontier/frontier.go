// Package frontier implements the URL frontier: a persistent, on-disk
// priority queue that aggregates the string store, the ordered-map
// dedup index, and a queued-record vector, exposing push/seen/pop_urls
// over them.
package frontier

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/crawlkit/crawler/internal/store"
)

// SampleOverhead and MinConsideration parameterize the sampled-top-k
// extraction procedure.
const (
	SampleOverhead   = 3
	MinConsideration = 100
)

// QueuedURL is the { url_id, score } record persisted in the queued
// vector.
type QueuedURL struct {
	URLID uint32
	Score int32
}

var queuedURLCodec = store.Codec[QueuedURL]{
	Size: 8,
	Encode: func(v QueuedURL, buf []byte) {
		binary.LittleEndian.PutUint32(buf[0:4], v.URLID)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(v.Score))
	},
	Decode: func(buf []byte) QueuedURL {
		return QueuedURL{
			URLID: binary.LittleEndian.Uint32(buf[0:4]),
			Score: int32(binary.LittleEndian.Uint32(buf[4:8])),
		}
	},
}

// Frontier is the persistent priority queue of canonical URLs.
type Frontier struct {
	urls   *store.URLStore
	queue  *store.RecordFile[QueuedURL]
	scorer Scorer
	rng    *rand.Rand
}

// Open opens or creates a frontier rooted at dir, scoring newly pushed
// URLs with scorer.
func Open(dir string, scorer Scorer) (*Frontier, error) {
	urls, err := store.OpenURLStore(dir)
	if err != nil {
		return nil, fmt.Errorf("frontier: %w", err)
	}
	queue, err := store.OpenRecordFile(filepath.Join(dir, "url_queue.dat"), queuedURLCodec)
	if err != nil {
		urls.Close()
		return nil, fmt.Errorf("frontier: %w", err)
	}
	return &Frontier{
		urls:   urls,
		queue:  queue,
		scorer: scorer,
		rng:    rand.New(rand.NewSource(1)),
	}, nil
}

// Seen reports whether url is already known to the frontier.
func (f *Frontier) Seen(url string) bool {
	return f.urls.Contains(url)
}

// Push adds a canonical URL (canonicalization is the caller's
// responsibility). Returns false if url was already known — the
// string store's size is left unchanged in that case.
func (f *Frontier) Push(canonicalURL string) (bool, error) {
	id, inserted, err := f.urls.Insert(canonicalURL)
	if err != nil {
		return false, fmt.Errorf("frontier push: %w", err)
	}
	if !inserted {
		return false, nil
	}
	score := f.scorer.Score(canonicalURL)
	f.queue.PushBack(QueuedURL{URLID: id, Score: score})
	return true, nil
}

// Size returns the total number of distinct URLs ever seen.
func (f *Frontier) Size() int64 { return f.urls.Size() }

// QueuedSize returns the number of URLs still awaiting extraction.
func (f *Frontier) QueuedSize() int64 { return f.queue.Len() }

// TotalSize is an alias for Size.
func (f *Frontier) TotalSize() int64 { return f.Size() }

type candidate struct {
	queueIndex int64
	urlID      uint32
	score      int32
}

// PopURLs implements sampled-top-k extraction: sample a
// superset of candidates uniformly at random via Algorithm L, sort by
// score, and accept up to max candidates that pass predicate — the
// ones accepted are removed from the queue via descending-index
// swap-pop; rejected candidates are left queued for a future call.
// predicate may be nil to accept every candidate.
func (f *Frontier) PopURLs(max int, predicate func(url string) bool) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	n := f.queue.Len()
	if n == 0 {
		return nil, nil
	}

	target := int64(max) * SampleOverhead
	if target < MinConsideration {
		target = MinConsideration
	}
	if target > n {
		target = n
	}

	indices := reservoirSampleL(f.rng, n, target)
	candidates := make([]candidate, 0, len(indices))
	for _, idx := range indices {
		rec := f.queue.Get(idx)
		candidates = append(candidates, candidate{queueIndex: idx, urlID: rec.URLID, score: rec.Score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	results := make([]string, 0, max)
	toRemove := make([]int64, 0, max)
	for _, c := range candidates {
		if len(results) >= max {
			break
		}
		u := f.urls.URL(c.urlID)
		if predicate != nil && !predicate(u) {
			continue
		}
		results = append(results, u)
		toRemove = append(toRemove, c.queueIndex)
	}

	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] > toRemove[j] })
	for _, idx := range toRemove {
		last := f.queue.Len() - 1
		if idx != last {
			f.queue.Set(idx, f.queue.Get(last))
		}
		f.queue.PopBack()
	}

	return results, nil
}

// Close releases the backing files.
func (f *Frontier) Close() error {
	if err := f.queue.Close(); err != nil {
		f.urls.Close()
		return err
	}
	return f.urls.Close()
}
