// Package checkpoint persists machine snapshots in BadgerDB.
//
// A checkpoint is an intcode.State encoded as canonical CBOR and then
// compressed with zstd. Memory images are mostly small integers and zero
// runs, which compress well.
package checkpoint

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint has the name.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrInvalidName is returned for empty names.
	ErrInvalidName = errors.New("invalid checkpoint name")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("checkpoint store closed")
)

// prefixCheckpoint is the key prefix for checkpoint records.
// Key format: prefixCheckpoint + name
var prefixCheckpoint = []byte{0x01}

// Config contains configuration for the checkpoint store.
type Config struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	SyncWrites bool

	// Logger is an optional logger. Set to nil to disable logging.
	Logger badger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// Checkpoint is a stored snapshot with its metadata.
type Checkpoint struct {
	Name    string        `cbor:"name"`
	Program string        `cbor:"program,omitempty"`
	SavedAt time.Time     `cbor:"savedAt"`
	State   intcode.State `cbor:"state"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("checkpoint: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Store is a BadgerDB-backed checkpoint store.
type Store struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	count  atomic.Int64
	mu     sync.Mutex
	closed atomic.Bool
}

// Open opens the checkpoint store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	s := &Store{db: db, encoder: encoder, decoder: decoder}
	if err := s.loadCount(); err != nil {
		s.Close()
		return nil, fmt.Errorf("load count: %w", err)
	}
	return s, nil
}

func (s *Store) loadCount() error {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixCheckpoint
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	s.count.Store(n)
	return err
}

func checkpointKey(name string) []byte {
	key := make([]byte, 0, len(prefixCheckpoint)+len(name))
	key = append(key, prefixCheckpoint...)
	return append(key, name...)
}

// Encode serializes a checkpoint to its stored form.
func (s *Store) Encode(cp *Checkpoint) ([]byte, error) {
	raw, err := encMode.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return s.encoder.EncodeAll(raw, nil), nil
}

// Decode parses a stored checkpoint.
func (s *Store) Decode(data []byte) (*Checkpoint, error) {
	raw, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := cbor.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Save stores state under name, replacing any previous checkpoint.
func (s *Store) Save(name, program string, state intcode.State) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if name == "" {
		return ErrInvalidName
	}

	data, err := s.Encode(&Checkpoint{
		Name:    name,
		Program: program,
		SavedAt: time.Now().UTC(),
		State:   state,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := checkpointKey(name)
	existed := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			existed = true
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	if !existed {
		s.count.Add(1)
	}
	return nil
}

// Load retrieves the checkpoint stored under name.
func (s *Store) Load(name string) (*Checkpoint, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var cp *Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrCheckpointNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := s.Decode(val)
			if err != nil {
				return err
			}
			cp = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// Delete removes a checkpoint.
func (s *Store) Delete(name string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := checkpointKey(name)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %q", ErrCheckpointNotFound, name)
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	s.count.Add(-1)
	return nil
}

// List returns checkpoint names in lexical order.
func (s *Store) List() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixCheckpoint
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[len(prefixCheckpoint):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of stored checkpoints.
func (s *Store) Count() int {
	return int(s.count.Load())
}

// Close closes the store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.decoder.Close()
	s.encoder.Close()
	return s.db.Close()
}
