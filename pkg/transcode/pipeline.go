// Package transcode moves values between the store and callers, stripping
// or stamping the version prefix and the compression envelope on the way.
//
// Reads go through three stages, each skipped unless the container is
// configured for it:
//
//	version    -> strip the 8-byte prefix and record the version
//	detection  -> read the status byte (compressed containers only)
//	payload    -> decompress frames with status >= 250, pass the rest through
//
// The payload then lands in caller-owned memory: the container's decompress
// target for compressed containers, the registered unsafe buffer otherwise.
// A payload that does not fit is reported as TooLarge so the caller can
// retry with ReadAlloc; it is never truncated.
package transcode

import (
	"github.com/cockroachdb/errors"
	"github.com/ssargent/freyjawire/pkg/buffer"
	"github.com/ssargent/freyjawire/pkg/codec"
	"github.com/ssargent/freyjawire/pkg/dberror"
	"github.com/ssargent/freyjawire/pkg/storage"
	"go.uber.org/zap"
)

// Kind discriminates read results.
type Kind uint8

const (
	// Empty is a valid zero-length value.
	Empty Kind = iota
	// Value carries the payload.
	Value
	// TooLarge means the payload did not fit the destination.
	TooLarge
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Value:
		return "value"
	case TooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// Result is the outcome of a read.
type Result struct {
	Kind       Kind
	Value      buffer.ByteRange
	Version    float64
	HasVersion bool
}

// Txn is the store surface the pipeline needs. *storage.Txn implements it.
type Txn interface {
	Get(dbi storage.DBI, key []byte) (buffer.ByteRange, error)
	Reserve(dbi storage.DBI, key []byte, size int, flags storage.PutFlags, fill func(dst []byte)) error
	Delete(dbi storage.DBI, key []byte) error
}

// Observer receives pipeline outcomes for metrics.
type Observer interface {
	ObserveRead(container string, kind Kind)
	ObserveCorrupt(container string)
	ObserveDecompress(container string, codecID uint8, size int)
	ObserveWrite(container string, size int)
}

type nopObserver struct{}

func (nopObserver) ObserveRead(string, Kind) {}
func (nopObserver) ObserveCorrupt(string) {}
func (nopObserver) ObserveDecompress(string, uint8, int) {}
func (nopObserver) ObserveWrite(string, int) {}

// Pipeline runs reads and writes against container handles. It holds no
// per-call state and may be shared.
type Pipeline struct {
	logger   *zap.Logger
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: zap.NewNop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReadAndTranscode reads key and delivers its payload into caller memory
// without allocating. Store failures come back as *dberror.Error.
func (p *Pipeline) ReadAndTranscode(txn Txn, c *Container, key []byte, scope *buffer.Unsafe) (Result, error) {
	raw, err := txn.Get(c.DBI, key)
	if err != nil {
		return Result{}, dberror.FromError(err)
	}
	return p.Transcode(c, raw, scope)
}

// Transcode runs the read stages over a raw stored value.
func (p *Pipeline) Transcode(c *Container, raw buffer.ByteRange, scope *buffer.Unsafe) (Result, error) {
	payload, res, _, err := p.strip(c, raw, false)
	if err != nil {
		return Result{}, err
	}
	if res.Kind != Value {
		p.finish(c, res)
		return res, nil
	}

	if c.Compressed() {
		target := c.DecompressTarget
		switch {
		case payload.SameMemory(target):
			res.Value = payload
		case payload.Len() > len(target):
			res.Kind = TooLarge
		default:
			n := copy(target, payload.Bytes())
			res.Value = buffer.HostRange(target[:n])
		}
	} else {
		out, ok := copyToScope(scope, payload)
		if ok {
			res.Value = out
		} else {
			res.Kind = TooLarge
		}
	}

	p.finish(c, res)
	return res, nil
}

// ReadAlloc is the allocating fallback for TooLarge: the payload is
// returned in fresh memory that outlives the transaction.
func (p *Pipeline) ReadAlloc(txn Txn, c *Container, key []byte) (Result, error) {
	raw, err := txn.Get(c.DBI, key)
	if err != nil {
		return Result{}, dberror.FromError(err)
	}
	payload, res, owned, err := p.strip(c, raw, true)
	if err != nil {
		return Result{}, err
	}
	if res.Kind == Value {
		if owned {
			res.Value = payload
		} else {
			res.Value = buffer.HostRange(payload.Clone())
		}
	}
	p.finish(c, res)
	return res, nil
}

// strip runs the version, detection and payload stages. owned reports that
// the payload was decompressed into a fresh allocation.
func (p *Pipeline) strip(c *Container, raw buffer.ByteRange, allowAlloc bool) (payload buffer.ByteRange, res Result, owned bool, err error) {
	payload = raw
	if c.HasVersions {
		rest, v, err := codec.StripVersion(raw)
		if err != nil {
			p.corrupt(c, err)
			return buffer.ByteRange{}, Result{}, false, err
		}
		c.recordVersion(v)
		res.Version = v
		res.HasVersion = true
		payload = rest
	}
	if payload.Empty() {
		res.Kind = Empty
		return payload, res, false, nil
	}

	status := codec.StatusByte(payload, c.Compressed())
	if codec.IsCompressed(status) {
		dec := c.Compression.Decompress(payload, c.DecompressTarget, allowAlloc)
		if !dec.Valid {
			err := dberror.Corrupt("invalid compressed frame (status %d)", status)
			p.corrupt(c, err)
			return buffer.ByteRange{}, Result{}, false, err
		}
		if dec.Bytes == nil && dec.MustCopy {
			res.Kind = TooLarge
			return buffer.ByteRange{}, res, false, nil
		}
		p.observer.ObserveDecompress(c.Name(), codec.CodecID(status), len(dec.Bytes))
		if len(dec.Bytes) == 0 {
			res.Kind = Empty
			return buffer.ByteRange{}, res, false, nil
		}
		payload = buffer.HostRange(dec.Bytes)
		owned = dec.MustCopy
	}

	res.Kind = Value
	return payload, res, owned, nil
}

func copyToScope(scope *buffer.Unsafe, payload buffer.ByteRange) (buffer.ByteRange, bool) {
	if scope == nil {
		return buffer.ByteRange{}, false
	}
	return scope.CopyFrom(payload)
}

func (p *Pipeline) finish(c *Container, res Result) {
	if res.Kind == TooLarge {
		p.logger.Debug("payload exceeds destination",
			zap.String("container", c.Name()),
			zap.Bool("compressed", c.Compressed()))
	}
	p.observer.ObserveRead(c.Name(), res.Kind)
}

func (p *Pipeline) corrupt(c *Container, err error) {
	p.logger.Warn("corrupt value", zap.String("container", c.Name()), zap.Error(err))
	p.observer.ObserveCorrupt(c.Name())
}

// WriteVersioned stores [version][payload] with one reservation filled in
// place, compressing the payload first when the container is configured
// for it.
func (p *Pipeline) WriteVersioned(txn Txn, c *Container, key, payload []byte, version float64, flags storage.PutFlags) error {
	if !c.HasVersions {
		return errors.Mark(
			errors.Newf("container %q does not store versions", c.Name()),
			ErrConfigurationMismatch)
	}
	value, err := p.frame(c, payload)
	if err != nil {
		return err
	}
	size := codec.VersionPrefixBytes + len(value)
	err = txn.Reserve(c.DBI, key, size, flags, func(dst []byte) {
		codec.PutVersion(dst, version)
		copy(dst[codec.VersionPrefixBytes:], value)
	})
	if err != nil {
		return dberror.FromError(err)
	}
	p.observer.ObserveWrite(c.Name(), size)
	return nil
}

// Write stores payload in a container without versions.
func (p *Pipeline) Write(txn Txn, c *Container, key, payload []byte, flags storage.PutFlags) error {
	if c.HasVersions {
		return errors.Mark(
			errors.Newf("container %q requires a version on every write", c.Name()),
			ErrConfigurationMismatch)
	}
	value, err := p.frame(c, payload)
	if err != nil {
		return err
	}
	err = txn.Reserve(c.DBI, key, len(value), flags, func(dst []byte) {
		copy(dst, value)
	})
	if err != nil {
		return dberror.FromError(err)
	}
	p.observer.ObserveWrite(c.Name(), len(value))
	return nil
}

// Delete removes key from the container.
func (p *Pipeline) Delete(txn Txn, c *Container, key []byte) error {
	return dberror.FromError(txn.Delete(c.DBI, key))
}

func (p *Pipeline) frame(c *Container, payload []byte) ([]byte, error) {
	if !c.Compressed() {
		return payload, nil
	}
	out, err := c.Compression.Compress(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "container %q", c.Name())
	}
	return out, nil
}
