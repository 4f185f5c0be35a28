// Package seqstore provides the durable append-only sequence log.
//
// Records are kept in a Pebble database keyed by 8-byte big-endian sequence
// ids (see package record), so Pebble's byte-ordered iteration yields records
// in ascending id order. The next id is recovered on open from the largest
// persisted key; there is no separate counter record.
//
// A Store is safe for concurrent use by one writer and any number of readers
// within a single process. Two processes must never open the same directory;
// Pebble's directory lock makes the second Open fail.
package seqstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/tinytelemetry/hubtrail/internal/record"
)

const (
	// DirName is the database directory created under the base directory.
	DirName = "events.pebble"

	defaultDirMode = 0755
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("seqstore: store is closed")

	// ErrCorruptKey indicates the highest persisted key is not a valid
	// sequence key, so the counter cannot be recovered.
	ErrCorruptKey = errors.New("seqstore: corrupt sequence key")
)

// Store is the single owner of the sequence counter and the record log.
// The holder of mu has exclusive write access to both.
type Store struct {
	mu        sync.Mutex
	db        *pebble.DB
	dir       string
	lastSeq   uint64
	failed    error
	ephemeral bool
}

// Open opens or creates the log rooted at baseDir and recovers the counter
// from the largest persisted key.
func Open(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("seqstore: base dir is empty")
	}
	if err := os.MkdirAll(baseDir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("seqstore: mkdir: %w", err)
	}

	dir := filepath.Join(baseDir, DirName)
	db, err := pebble.Open(dir, &pebble.Options{Logger: pebbleLogger{}})
	if err != nil {
		return nil, fmt.Errorf("seqstore: open %s: %w", dir, err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.recover(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("seqstore: opened %s (last sequence id %d)", dir, s.lastSeq)
	return s, nil
}

// OpenEphemeral opens a store in a fresh temporary directory that is removed
// on Close.
func OpenEphemeral() (*Store, error) {
	base, err := os.MkdirTemp("", "hubtrail-*")
	if err != nil {
		return nil, fmt.Errorf("seqstore: temp dir: %w", err)
	}
	s, err := Open(base)
	if err != nil {
		_ = os.RemoveAll(base)
		return nil, err
	}
	s.ephemeral = true
	return s, nil
}

// MustOpenEphemeral is like OpenEphemeral but panics on failure.
func MustOpenEphemeral() *Store {
	s, err := OpenEphemeral()
	if err != nil {
		panic(err)
	}
	return s
}

// recover scans for the maximum key and initializes the counter from it.
func (s *Store) recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("seqstore: recover: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return fmt.Errorf("seqstore: recover: %w", err)
		}
		s.lastSeq = 0
		return nil
	}
	seq, err := record.DecodeKey(iter.Key())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptKey, err)
	}
	s.lastSeq = seq
	return nil
}

// Append assigns the next sequence id to payload, writes it durably and
// returns the id. The counter advances before the write and is never rolled
// back: a failed write poisons the store and every later Append returns the
// same error, so ids are never silently skipped.
func (s *Store) Append(payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrClosed
	}
	if s.failed != nil {
		return 0, s.failed
	}

	s.lastSeq++
	seq := s.lastSeq

	if err := s.db.Set(record.EncodeKey(seq), payload, pebble.Sync); err != nil {
		s.failed = fmt.Errorf("seqstore: append seq=%d: %w", seq, err)
		return 0, s.failed
	}
	return seq, nil
}

// LastSeq returns the most recently assigned sequence id, or 0 for an empty
// store.
func (s *Store) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// NextSeq returns the id the next Append will assign.
func (s *Store) NextSeq() uint64 {
	return s.LastSeq() + 1
}

// Dir returns the database directory.
func (s *Store) Dir() string {
	return s.dir
}

// Ephemeral reports whether the store lives in a temporary directory.
func (s *Store) Ephemeral() bool {
	return s.ephemeral
}

// Checkpoint writes a consistent copy of the database to dstDir, which must
// not exist yet.
func (s *Store) Checkpoint(dstDir string) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return ErrClosed
	}
	if err := os.MkdirAll(filepath.Dir(dstDir), defaultDirMode); err != nil {
		return fmt.Errorf("seqstore: checkpoint mkdir: %w", err)
	}
	if err := db.Checkpoint(dstDir, pebble.WithFlushedWAL()); err != nil {
		return fmt.Errorf("seqstore: checkpoint: %w", err)
	}
	return nil
}

// Close closes the database. Ephemeral stores also remove their directory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.ephemeral {
		if rerr := os.RemoveAll(filepath.Dir(s.dir)); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

// pebbleLogger routes Pebble's internal logging through the standard logger.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Printf("pebble: "+format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Printf("pebble: error: "+format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatalf("pebble: fatal: "+format, args...)
}
