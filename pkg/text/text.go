// Package text converts stored byte ranges into Go strings under the three
// encodings values may use: UTF-8, zero-terminated UTF-16 and a zero-copy
// single-byte view.
package text

import (
	"encoding/binary"
	"unsafe"

	"github.com/ssargent/freyjawire/pkg/buffer"
	"github.com/ssargent/freyjawire/pkg/dberror"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// UTF8 copies the range into a string. Malformed sequences are kept as-is.
func UTF8(r buffer.ByteRange) string {
	return string(r.Bytes())
}

// UTF16 decodes native-endian UTF-16 code units that end in a zero
// terminator. The terminator is not part of the result.
func UTF16(r buffer.ByteRange) (string, error) {
	b := r.Bytes()
	if len(b) == 0 || len(b)%2 != 0 {
		return "", dberror.InvalidEncoding("UTF-16 value has %d bytes", len(b))
	}
	if binary.NativeEndian.Uint16(b[len(b)-2:]) != 0 {
		return "", dberror.InvalidEncoding("UTF-16 value is not zero-terminated")
	}
	out, err := utf16Encoding().NewDecoder().Bytes(b[:len(b)-2])
	if err != nil {
		return "", dberror.InvalidEncoding("%v", err)
	}
	return string(out), nil
}

// EncodeUTF16 produces the zero-terminated native-endian layout UTF16 reads.
func EncodeUTF16(s string) ([]byte, error) {
	out, err := utf16Encoding().NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return append(out, 0, 0), nil
}

func utf16Encoding() encoding.Encoding {
	order := unicode.LittleEndian
	if binary.NativeEndian.Uint16([]byte{0, 1}) == 1 {
		order = unicode.BigEndian
	}
	return unicode.UTF16(order, unicode.IgnoreBOM)
}

// Latin1View is a single-byte string handle backed by the range's memory.
// It is only valid while that memory is; never keep it past the owning
// transaction or buffer registration.
type Latin1View struct {
	raw string
}

// Unsafe returns a view over r without copying.
func Unsafe(r buffer.ByteRange) Latin1View {
	b := r.Bytes()
	if len(b) == 0 {
		return Latin1View{}
	}
	return Latin1View{raw: unsafe.String(unsafe.SliceData(b), len(b))}
}

// Len returns the number of characters, one per byte.
func (v Latin1View) Len() int {
	return len(v.raw)
}

// At returns the character at i.
func (v Latin1View) At(i int) rune {
	return rune(v.raw[i])
}

// Raw returns the aliasing string. Bytes >= 0x80 are not valid UTF-8 here.
func (v Latin1View) Raw() string {
	return v.raw
}

// String decodes the view into an owned UTF-8 string.
func (v Latin1View) String() string {
	out, err := charmap.ISO8859_1.NewDecoder().String(v.raw)
	if err != nil {
		// every byte maps in ISO-8859-1
		panic(err)
	}
	return out
}
