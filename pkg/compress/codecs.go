package compress

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec ids as carried in the status byte (status = 250 + id).
const (
	Snappy uint8 = 0
	Zstd   uint8 = 1
	S2     uint8 = 2
	XZ     uint8 = 3
)

// Codec is one compression algorithm addressable by a status byte.
type Codec interface {
	ID() uint8
	Name() string
	// Encode appends the compressed form of src to dst.
	Encode(dst, src []byte) ([]byte, error)
	// Decode decompresses src into dst, whose length is the declared
	// uncompressed size. It fails without growing past dst when src
	// decodes to any other length.
	Decode(dst, src []byte) ([]byte, error)
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	switch name {
	case "snappy":
		return snappyCodec{}, nil
	case "zstd":
		return newZstdCodec()
	case "s2":
		return s2Codec{}, nil
	case "xz":
		return xzCodec{}, nil
	default:
		return nil, errors.Newf("unknown compression codec %q", name)
	}
}

type snappyCodec struct{}

func (snappyCodec) ID() uint8    { return Snappy }
func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Encode(dst, src []byte) ([]byte, error) {
	return append(dst, snappy.Encode(nil, src)...), nil
}

func (snappyCodec) Decode(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n != len(dst) {
		return nil, errLengthMismatch(n, len(dst))
	}
	return snappy.Decode(dst, src)
}

type s2Codec struct{}

func (s2Codec) ID() uint8    { return S2 }
func (s2Codec) Name() string { return "s2" }

func (s2Codec) Encode(dst, src []byte) ([]byte, error) {
	return append(dst, s2.Encode(nil, src)...), nil
}

func (s2Codec) Decode(dst, src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n != len(dst) {
		return nil, errLengthMismatch(n, len(dst))
	}
	return s2.Decode(dst, src)
}

// zstdCodec keeps one stateless encoder and decoder; EncodeAll and
// DecodeAll are safe for concurrent use.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecodeAllCapLimit(true))
	if err != nil {
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (*zstdCodec) ID() uint8    { return Zstd }
func (*zstdCodec) Name() string { return "zstd" }

func (c *zstdCodec) Encode(dst, src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dst), nil
}

// Decode is capped at len(dst): DecodeAll fails instead of growing the
// slice when a frame holds more than the declared size.
func (c *zstdCodec) Decode(dst, src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, dst[:0:len(dst)])
	if err != nil {
		return nil, err
	}
	if len(out) != len(dst) {
		return nil, errLengthMismatch(len(out), len(dst))
	}
	return out, nil
}

type xzCodec struct{}

func (xzCodec) ID() uint8    { return XZ }
func (xzCodec) Name() string { return "xz" }

func (xzCodec) Encode(dst, src []byte) ([]byte, error) {
	out := bytes.NewBuffer(dst)
	w, err := xz.NewWriter(out)
	if err != nil {
		return nil, errors.Wrap(err, "xz writer")
	}
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "xz write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "xz close")
	}
	return out.Bytes(), nil
}

func (xzCodec) Decode(dst, src []byte) ([]byte, error) {
	// The reader takes a stream cut at a block boundary for a clean end,
	// so the footer is checked up front.
	if !validXZFooter(src) {
		return nil, errors.New("xz stream footer missing or damaged")
	}
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "xz reader")
	}
	n, err := io.ReadFull(r, dst)
	if err != nil {
		return nil, errors.Wrap(err, "xz read")
	}
	// Drain to io.EOF so the block check, index and footer are verified.
	// The stream must end exactly at the declared length.
	var rest [1]byte
	for {
		m, err := r.Read(rest[:])
		if m != 0 {
			return nil, errors.New("xz stream longer than declared length")
		}
		if err == io.EOF {
			return dst[:n], nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "xz trailer")
		}
	}
}

// xzFooterLen covers CRC32, backward size, stream flags and the "YZ" magic.
const xzFooterLen = 12

func validXZFooter(src []byte) bool {
	if len(src) < xzFooterLen {
		return false
	}
	f := src[len(src)-xzFooterLen:]
	if f[10] != 'Y' || f[11] != 'Z' {
		return false
	}
	return binary.LittleEndian.Uint32(f[:4]) == crc32.ChecksumIEEE(f[4:10])
}

func errLengthMismatch(got, declared int) error {
	return errors.Newf("codec length %d does not match declared length %d", got, declared)
}
