// Package storage is the transactional key-value store that values are
// transcoded against. It is a thin layer over Pebble that exposes the
// operations the transcoding pipeline needs: reads that hand back store-owned
// memory, and in-place reservations for writes.
package storage

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

// MaxKeySize is the largest key a container accepts.
const MaxKeySize = 1978

// Options configures an Env.
type Options struct {
	InMemory bool // Keep everything in memory (tests, scratch environments)
	Sync     bool // Fsync on every commit
	Logger   *zap.Logger
}

// Env is an open store.
type Env struct {
	db     *pebble.DB
	path   string
	sync   bool
	logger *zap.Logger
}

// Open opens or creates the store at path.
func Open(path string, opts Options) (*Env, error) {
	pebbleOpts := &pebble.Options{}
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "open store at %s", path)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Env{db: db, path: path, sync: opts.Sync, logger: logger}, nil
}

// Path returns the directory the store lives in.
func (e *Env) Path() string {
	return e.path
}

// Close closes the store. Open transactions must be finished first.
func (e *Env) Close() error {
	return e.db.Close()
}

// DBI names a container inside the store.
type DBI struct {
	name   string
	prefix []byte
}

// Name returns the container name.
func (d DBI) Name() string {
	return d.name
}

func (d DBI) key(k []byte) []byte {
	out := make([]byte, 0, len(d.prefix)+len(k))
	out = append(out, d.prefix...)
	return append(out, k...)
}

// OpenDBI returns the handle for a named container. Containers share one
// keyspace under a name\x00 prefix.
func (e *Env) OpenDBI(name string) (DBI, error) {
	if name == "" || bytes.IndexByte([]byte(name), 0) >= 0 {
		return DBI{}, errors.Wrapf(BadDBI, "container name %q", name)
	}
	return DBI{name: name, prefix: append([]byte(name), 0)}, nil
}

// View runs fn in a read-only transaction.
func (e *Env) View(fn func(txn *Txn) error) error {
	txn := e.Begin(true)
	defer txn.Abort()
	return fn(txn)
}

// Update runs fn in a read-write transaction and commits when it succeeds.
func (e *Env) Update(fn func(txn *Txn) error) error {
	txn := e.Begin(false)
	if err := fn(txn); err != nil {
		txn.Abort()
		return err
	}
	return txn.Commit()
}

func validKey(key []byte) error {
	if len(key) == 0 || len(key) > MaxKeySize {
		return errors.Wrapf(BadValSize, "key of %d bytes", len(key))
	}
	return nil
}

// statusOf maps Pebble errors onto store status codes.
func statusOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pebble.ErrNotFound):
		return NotFound
	case errors.Is(err, pebble.ErrClosed):
		return errors.Wrap(BadTxn, err.Error())
	case errors.Is(err, pebble.ErrReadOnly):
		return errors.Wrap(EACCES, err.Error())
	default:
		return errors.Wrap(EIO, err.Error())
	}
}

type getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}
