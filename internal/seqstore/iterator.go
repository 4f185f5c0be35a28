package seqstore

import (
	"iter"
	"log"

	"github.com/cockroachdb/pebble"

	"github.com/tinytelemetry/hubtrail/internal/record"
)

// DefaultPageSize is the number of records an Iterator reads per step while
// holding the store lock.
const DefaultPageSize = 128

// Iterator is a forward-only cursor over the log in ascending sequence order.
// It holds the store lock only while fetching a page, so appends and other
// iterators interleave with it. Entries that cannot be read are skipped.
// An Iterator is not safe for concurrent use.
type Iterator struct {
	store    *Store
	pageSize int

	lower   []byte // inclusive lower bound of the next page; nil = lowest key
	page    []record.Record
	pos     int
	cur     record.Record
	done    bool
	skipped int64
	err     error
}

// Iterate starts a new cursor at the lowest key.
func (s *Store) Iterate() *Iterator {
	return &Iterator{store: s, pageSize: DefaultPageSize}
}

// IterateFrom starts a new cursor at the first record with id >= seq.
func (s *Store) IterateFrom(seq uint64) *Iterator {
	return &Iterator{
		store:    s,
		pageSize: DefaultPageSize,
		lower:    record.EncodeKey(seq),
	}
}

// All returns a restartable sequence of every record in ascending order.
// Each range over the result opens a fresh cursor.
func (s *Store) All() iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		it := s.Iterate()
		for it.Next() {
			if !yield(it.Record()) {
				return
			}
		}
	}
}

// Next advances to the next readable record. It returns false when the log is
// exhausted or the store was closed.
func (it *Iterator) Next() bool {
	for {
		if it.pos < len(it.page) {
			it.cur = it.page[it.pos]
			it.pos++
			return true
		}
		if it.done {
			return false
		}
		it.fetch()
	}
}

// Record returns the current record. The payload is owned by the caller.
func (it *Iterator) Record() record.Record {
	return it.cur
}

// Skipped returns how many unreadable entries were passed over.
func (it *Iterator) Skipped() int64 {
	return it.skipped
}

// Err returns the error that ended iteration early, if any. Per-record read
// failures are not reported here; see Skipped.
func (it *Iterator) Err() error {
	return it.err
}

// fetch reads the next page under the store lock.
func (it *Iterator) fetch() {
	s := it.store
	s.mu.Lock()
	defer s.mu.Unlock()

	it.page = it.page[:0]
	it.pos = 0

	if s.db == nil {
		it.done = true
		it.err = ErrClosed
		return
	}

	pi, err := s.db.NewIter(&pebble.IterOptions{LowerBound: it.lower})
	if err != nil {
		log.Printf("seqstore: iterate: %v", err)
		it.done = true
		it.err = err
		return
	}
	defer pi.Close()

	n := 0
	var last []byte
	for valid := pi.First(); valid && n < it.pageSize; valid = pi.Next() {
		last = append(last[:0], pi.Key()...)
		n++

		seq, kerr := record.DecodeKey(pi.Key())
		if kerr != nil {
			it.skip(pi.Key(), kerr)
			continue
		}
		value, verr := pi.ValueAndErr()
		if verr != nil {
			it.skip(pi.Key(), verr)
			continue
		}
		it.page = append(it.page, record.Record{
			Seq:     seq,
			Payload: append([]byte(nil), value...),
		})
	}
	if err := pi.Error(); err != nil {
		log.Printf("seqstore: iterate stopped: %v", err)
		it.done = true
		it.err = err
		return
	}
	if n < it.pageSize {
		it.done = true
		return
	}
	// Resume strictly after the last key seen. Appending a zero byte yields
	// the immediate successor in byte order.
	it.lower = append(last, 0)
}

func (it *Iterator) skip(key []byte, err error) {
	it.skipped++
	log.Printf("seqstore: skipping unreadable entry key=%x: %v", key, err)
}
