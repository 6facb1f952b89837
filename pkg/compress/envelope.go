// Package compress implements the compression envelope: a status byte
// followed by a length-prefixed codec body, applied to values of
// containers configured with compression.
package compress

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/freyjawire/pkg/buffer"
	"github.com/ssargent/freyjawire/pkg/codec"
	"go.uber.org/zap"
)

// Decoded is the outcome of a decompression attempt.
type Decoded struct {
	// Bytes holds the payload, either target[:n] or a fresh allocation.
	Bytes []byte
	// Valid is false when the frame is malformed.
	Valid bool
	// MustCopy is set when the payload did not fit the target. Bytes is
	// then a fresh allocation, or nil when allocation was not allowed.
	MustCopy bool
}

// Decompressor expands a compressed frame. The frame starts with its status
// byte (>= codec.CompressedStatusThreshold).
type Decompressor interface {
	Decompress(frame buffer.ByteRange, target []byte, allowAlloc bool) Decoded
}

// Compressor frames a payload for storage.
type Compressor interface {
	Compress(payload []byte) ([]byte, error)
}

// Engine is both halves of the envelope.
type Engine interface {
	Decompressor
	Compressor
}

// Envelope frames values with a single write codec and decodes any
// registered codec.
type Envelope struct {
	codecs    [codec.MaxCodecID + 1]Codec
	write     Codec
	threshold int
	logger    *zap.Logger
}

// Option configures an Envelope.
type Option func(*Envelope)

// WithThreshold sets the payload size at which writes are compressed.
func WithThreshold(n int) Option {
	return func(e *Envelope) {
		e.threshold = n
	}
}

// WithLogger sets the logger used for rejected frames.
func WithLogger(l *zap.Logger) Option {
	return func(e *Envelope) {
		e.logger = l
	}
}

// DefaultThreshold is the write threshold when none is configured.
const DefaultThreshold = 1000

// NewEnvelope creates an envelope that writes with the named codec and can
// read every built-in codec.
func NewEnvelope(writeCodec string, opts ...Option) (*Envelope, error) {
	e := &Envelope{
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
	}
	for _, name := range []string{"snappy", "zstd", "s2", "xz"} {
		c, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		e.Register(c)
		if name == writeCodec {
			e.write = c
		}
	}
	if e.write == nil {
		return nil, errors.Newf("unknown compression codec %q", writeCodec)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.threshold < 0 {
		return nil, errors.Newf("compression threshold must not be negative: %d", e.threshold)
	}
	return e, nil
}

// Register adds or replaces a codec for its id.
func (e *Envelope) Register(c Codec) {
	e.codecs[c.ID()] = c
}

// Codec returns the codec writes use.
func (e *Envelope) Codec() Codec {
	return e.write
}

// Threshold returns the compression threshold.
func (e *Envelope) Threshold() int {
	return e.threshold
}

// Compress frames payload. Payloads below the threshold are stored raw
// unless they start with a byte that would read back as a status byte, in
// which case they are always framed. Framing that does not save space is
// dropped for the same reason it is kept: only when the leading byte allows.
func (e *Envelope) Compress(payload []byte) ([]byte, error) {
	mustFrame := len(payload) > 0 && codec.IsCompressed(payload[0])
	if !mustFrame && len(payload) < e.threshold {
		return payload, nil
	}

	out := make([]byte, 1, 1+binary.MaxVarintLen64+len(payload)/2)
	out[0] = codec.Status(e.write.ID())
	out = binary.AppendUvarint(out, uint64(len(payload)))
	out, err := e.write.Encode(out, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "compress with %s", e.write.Name())
	}
	if !mustFrame && len(out) >= len(payload) {
		return payload, nil
	}
	return out, nil
}

// Decompress expands frame into target. When the declared length exceeds
// len(target) it allocates if allowAlloc, otherwise it reports MustCopy
// without decoding.
func (e *Envelope) Decompress(frame buffer.ByteRange, target []byte, allowAlloc bool) Decoded {
	if frame.Empty() || !codec.IsCompressed(frame.At(0)) {
		return Decoded{}
	}
	c := e.codecs[codec.CodecID(frame.At(0))]
	if c == nil {
		e.logger.Debug("unknown codec in frame", zap.Uint8("status", frame.At(0)))
		return Decoded{}
	}

	body := frame.Bytes()[1:]
	size, n := binary.Uvarint(body)
	if n <= 0 {
		e.logger.Debug("bad length header in frame", zap.String("codec", c.Name()))
		return Decoded{}
	}
	body = body[n:]

	var dst []byte
	mustCopy := false
	if size <= uint64(len(target)) {
		dst = target[:size]
	} else {
		if !allowAlloc {
			return Decoded{Valid: true, MustCopy: true}
		}
		if size > uint64(maxAlloc) {
			return Decoded{}
		}
		dst = make([]byte, size)
		mustCopy = true
	}

	out, err := c.Decode(dst, body)
	if err != nil || uint64(len(out)) != size {
		e.logger.Debug("rejected frame",
			zap.String("codec", c.Name()),
			zap.Uint64("declared", size),
			zap.Int("decoded", len(out)),
			zap.Error(err))
		return Decoded{}
	}
	if size > 0 && &out[0] != &dst[0] {
		copy(dst, out)
	}
	return Decoded{Bytes: dst, Valid: true, MustCopy: mustCopy}
}

// maxAlloc bounds allocations driven by a frame's declared length.
const maxAlloc = 1 << 31
