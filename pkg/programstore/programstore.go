// Package programstore provides persistent storage for Intcode programs.
//
// Programs are content addressed by their ProgramID and may be reachable
// under any number of names. A program is removed once its last name is.
package programstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fortiblox/intcode/internal/types"
	"github.com/fortiblox/intcode/pkg/intcode"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrProgramNotFound is returned when a program doesn't exist.
	ErrProgramNotFound = errors.New("program not found")

	// ErrNameNotFound is returned when no program is stored under a name.
	ErrNameNotFound = errors.New("program name not found")

	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid program name")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("program store closed")
)

// MaxNameLength bounds program names.
const MaxNameLength = 256

// Bucket names for BoltDB.
var (
	// bucketPrograms stores program records keyed by program ID.
	bucketPrograms = []byte("programs")

	// bucketNames maps names to program IDs.
	bucketNames = []byte("names")

	// bucketMetadata stores store metadata.
	bucketMetadata = []byte("metadata")
)

var keyProgramCount = []byte("program_count")

// Config holds program store configuration options.
type Config struct {
	// Path is the database file path.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// Timeout is how long to wait for the file lock.
	Timeout time.Duration
}

// DefaultConfig returns the default program store configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// Record is a stored program.
type Record struct {
	ID        types.ProgramID
	Tape      []int64
	CreatedAt time.Time
}

// Text returns the canonical program text.
func (r *Record) Text() string {
	return intcode.Format(r.Tape)
}

// Entry pairs a name with the program it refers to.
type Entry struct {
	Name string
	ID   types.ProgramID
	Size int
}

// Stats contains program store statistics.
type Stats struct {
	ProgramCount uint64
	NameCount    uint64
	DatabaseSize int64
}

// Store is the program store interface.
type Store interface {
	Put(name string, tape []int64) (types.ProgramID, error)
	Get(id types.ProgramID) (*Record, error)
	GetByName(name string) (*Record, error)
	Has(id types.ProgramID) bool
	Delete(name string) error
	List() ([]Entry, error)
	Stats() (*Stats, error)
	Sync() error
	Close() error
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db     *bolt.DB
	config Config

	mu           sync.RWMutex
	programCount uint64
	closed       bool
}

// Open creates or opens a program store at the configured path.
func Open(config Config) (*BoltStore, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  config.Timeout,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}

	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &BoltStore{
		db:     db,
		config: config,
	}

	if !config.ReadOnly {
		if err := store.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}

	if err := store.loadCachedValues(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load cached values: %w", err)
	}

	return store, nil
}

// initBuckets creates all required buckets.
func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPrograms, bucketNames, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// loadCachedValues loads the program count into memory.
func (s *BoltStore) loadCachedValues() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return nil // Empty database.
		}
		if v := meta.Get(keyProgramCount); len(v) == 8 {
			s.programCount = binary.BigEndian.Uint64(v)
		}
		return nil
	})
}

func (s *BoltStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func validateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Put stores tape under name and returns its program ID. Storing the same
// tape twice keeps one record; re-using a name repoints it.
func (s *BoltStore) Put(name string, tape []int64) (types.ProgramID, error) {
	if err := s.checkOpen(); err != nil {
		return types.ProgramID{}, err
	}
	if err := validateName(name); err != nil {
		return types.ProgramID{}, err
	}

	id := types.ComputeProgramID(intcode.Format(tape))
	record := Record{ID: id, Tape: tape, CreatedAt: time.Now().UTC()}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&record); err != nil {
		return types.ProgramID{}, fmt.Errorf("encode program: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	var orphaned *types.ProgramID
	err := s.db.Update(func(tx *bolt.Tx) error {
		programs := tx.Bucket(bucketPrograms)
		names := tx.Bucket(bucketNames)

		if programs.Get(id[:]) == nil {
			if err := programs.Put(id[:], buf.Bytes()); err != nil {
				return err
			}
			added = true
		}

		if prev := names.Get([]byte(name)); prev != nil && !bytes.Equal(prev, id[:]) {
			prevID, _ := types.ProgramIDFromBytes(prev)
			orphaned = &prevID
		}
		if err := names.Put([]byte(name), id[:]); err != nil {
			return err
		}

		if orphaned != nil && !referenced(names, *orphaned) {
			if err := programs.Delete(orphaned[:]); err != nil {
				return err
			}
		} else {
			orphaned = nil
		}

		count := s.programCount
		if added {
			count++
		}
		if orphaned != nil {
			count--
		}
		return putCount(tx, count)
	})
	if err != nil {
		return types.ProgramID{}, err
	}

	if added {
		s.programCount++
	}
	if orphaned != nil {
		s.programCount--
	}
	return id, nil
}

// Get retrieves a program by ID.
func (s *BoltStore) Get(id types.ProgramID) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var record Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPrograms).Get(id[:])
		if data == nil {
			return fmt.Errorf("%w: %s", ErrProgramNotFound, id)
		}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(&record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByName retrieves the program stored under name.
func (s *BoltStore) GetByName(name string) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var id types.ProgramID
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNames).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %q", ErrNameNotFound, name)
		}
		copy(id[:], v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Has reports whether a program with id is stored.
func (s *BoltStore) Has(id types.ProgramID) bool {
	if s.checkOpen() != nil {
		return false
	}
	found := false
	s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketPrograms).Get(id[:]) != nil
		return nil
	})
	return found
}

// Delete removes name. The program itself is removed when no other name
// refers to it.
func (s *BoltStore) Delete(name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketNames)
		v := names.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %q", ErrNameNotFound, name)
		}
		id, err := types.ProgramIDFromBytes(v)
		if err != nil {
			return err
		}
		if err := names.Delete([]byte(name)); err != nil {
			return err
		}
		if referenced(names, id) {
			return nil
		}
		if err := tx.Bucket(bucketPrograms).Delete(id[:]); err != nil {
			return err
		}
		removed = true
		return putCount(tx, s.programCount-1)
	})
	if err != nil {
		return err
	}
	if removed {
		s.programCount--
	}
	return nil
}

// List returns all names in lexical order.
func (s *BoltStore) List() ([]Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		programs := tx.Bucket(bucketPrograms)
		return tx.Bucket(bucketNames).ForEach(func(k, v []byte) error {
			id, err := types.ProgramIDFromBytes(v)
			if err != nil {
				return err
			}
			entry := Entry{Name: string(k), ID: id}
			if data := programs.Get(v); data != nil {
				var record Record
				if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
					return fmt.Errorf("decode program %s: %w", id, err)
				}
				entry.Size = len(record.Tape)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stats returns program store statistics.
func (s *BoltStore) Stats() (*Stats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stats := &Stats{}
	err := s.db.View(func(tx *bolt.Tx) error {
		stats.NameCount = uint64(tx.Bucket(bucketNames).Stats().KeyN)
		stats.DatabaseSize = tx.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	stats.ProgramCount = s.programCount
	s.mu.RUnlock()
	return stats, nil
}

// Sync forces an fsync of the database.
func (s *BoltStore) Sync() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Sync()
}

// Close closes the store.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// referenced reports whether any name still points at id.
func referenced(names *bolt.Bucket, id types.ProgramID) bool {
	found := false
	names.ForEach(func(_, v []byte) error {
		if bytes.Equal(v, id[:]) {
			found = true
		}
		return nil
	})
	return found
}

func putCount(tx *bolt.Tx, count uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	return tx.Bucket(bucketMetadata).Put(keyProgramCount, buf[:])
}
