package storage

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/freyjawire/pkg/buffer"
	"go.uber.org/zap"
)

// PutFlags alter Reserve.
type PutFlags uint

const (
	// NoOverwrite fails with KeyExist when the key is already present.
	NoOverwrite PutFlags = 1 << iota
)

// Txn is a store transaction. Read-write transactions see their own writes.
// Ranges returned by Get stay valid until Commit or Abort, or until the next
// write in the same transaction, whichever comes first.
type Txn struct {
	id       ksuid.KSUID
	env      *Env
	batch    *pebble.Batch
	snap     *pebble.Snapshot
	closers  []io.Closer
	readOnly bool
	done     bool
}

// Begin starts a transaction.
func (e *Env) Begin(readOnly bool) *Txn {
	txn := &Txn{id: ksuid.New(), env: e, readOnly: readOnly}
	if readOnly {
		txn.snap = e.db.NewSnapshot()
	} else {
		txn.batch = e.db.NewIndexedBatch()
	}
	e.logger.Debug("txn begin", zap.Stringer("txn", txn.id), zap.Bool("read_only", readOnly))
	return txn
}

// ID identifies the transaction in logs.
func (t *Txn) ID() ksuid.KSUID {
	return t.id
}

// ReadOnly reports whether the transaction can write.
func (t *Txn) ReadOnly() bool {
	return t.readOnly
}

func (t *Txn) reader() getter {
	if t.readOnly {
		return t.snap
	}
	return t.batch
}

// Get reads the value stored under key. The returned range is owned by the
// store; see Txn for how long it lives.
func (t *Txn) Get(dbi DBI, key []byte) (buffer.ByteRange, error) {
	if t.done {
		return buffer.ByteRange{}, BadTxn
	}
	if err := validKey(key); err != nil {
		return buffer.ByteRange{}, err
	}
	val, closer, err := t.reader().Get(dbi.key(key))
	if err != nil {
		return buffer.ByteRange{}, statusOf(err)
	}
	if closer != nil {
		t.closers = append(t.closers, closer)
	}
	return buffer.StoreRange(val), nil
}

// Reserve allocates size bytes for key inside the transaction and calls fill
// with the writable region before the write is published. fill must not
// keep the slice.
func (t *Txn) Reserve(dbi DBI, key []byte, size int, flags PutFlags, fill func(dst []byte)) error {
	if t.done {
		return BadTxn
	}
	if t.readOnly {
		return errors.Wrap(EACCES, "reserve in read-only transaction")
	}
	if err := validKey(key); err != nil {
		return err
	}
	if size < 0 {
		return errors.Wrapf(EINVAL, "reserve of %d bytes", size)
	}

	k := dbi.key(key)
	if flags&NoOverwrite != 0 {
		_, closer, err := t.batch.Get(k)
		switch {
		case err == nil:
			if closer != nil {
				_ = closer.Close()
			}
			return KeyExist
		case !errors.Is(err, pebble.ErrNotFound):
			return statusOf(err)
		}
	}

	op := t.batch.SetDeferred(len(k), size)
	copy(op.Key, k)
	fill(op.Value)
	if err := op.Finish(); err != nil {
		return statusOf(err)
	}
	return nil
}

// Put stores value under key.
func (t *Txn) Put(dbi DBI, key, value []byte, flags PutFlags) error {
	return t.Reserve(dbi, key, len(value), flags, func(dst []byte) {
		copy(dst, value)
	})
}

// Delete removes key. It returns NotFound when the key is absent.
func (t *Txn) Delete(dbi DBI, key []byte) error {
	if t.done {
		return BadTxn
	}
	if t.readOnly {
		return errors.Wrap(EACCES, "delete in read-only transaction")
	}
	if err := validKey(key); err != nil {
		return err
	}
	k := dbi.key(key)
	_, closer, err := t.batch.Get(k)
	if err != nil {
		return statusOf(err)
	}
	if closer != nil {
		_ = closer.Close()
	}
	return statusOf(t.batch.Delete(k, nil))
}

func (t *Txn) release() {
	for _, c := range t.closers {
		_ = c.Close()
	}
	t.closers = nil
	t.done = true
}

// Commit publishes the transaction's writes. Read-only transactions just end.
func (t *Txn) Commit() error {
	if t.done {
		return BadTxn
	}
	t.release()
	if t.readOnly {
		return statusOf(t.snap.Close())
	}

	opts := pebble.NoSync
	if t.env.sync {
		opts = pebble.Sync
	}
	err := t.batch.Commit(opts)
	closeErr := t.batch.Close()
	if err != nil {
		t.env.logger.Warn("txn commit failed", zap.Stringer("txn", t.id), zap.Error(err))
		return statusOf(err)
	}
	t.env.logger.Debug("txn commit", zap.Stringer("txn", t.id))
	return statusOf(closeErr)
}

// Abort discards the transaction. It is safe to call after Commit.
func (t *Txn) Abort() {
	if t.done {
		return
	}
	t.release()
	if t.readOnly {
		_ = t.snap.Close()
	} else {
		_ = t.batch.Close()
	}
	t.env.logger.Debug("txn abort", zap.Stringer("txn", t.id))
}
