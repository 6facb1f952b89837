package codec

import (
	"encoding/binary"
	"math"

	"github.com/ssargent/freyjawire/pkg/buffer"
	"github.com/ssargent/freyjawire/pkg/dberror"
)

const (
	// VersionPrefixBytes is the width of the version tag.
	VersionPrefixBytes = 8
	// CompressedStatusThreshold is the smallest status byte marking a compressed body.
	CompressedStatusThreshold = 250
	// MaxCodecID is the largest codec id a status byte can carry.
	MaxCodecID = math.MaxUint8 - CompressedStatusThreshold
)

// PutVersion writes v into the first VersionPrefixBytes of dst.
func PutVersion(dst []byte, v float64) {
	binary.NativeEndian.PutUint64(dst[:VersionPrefixBytes], math.Float64bits(v))
}

// Version reads the version tag from the start of src.
func Version(src []byte) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(src[:VersionPrefixBytes]))
}

// StripVersion reads the version tag and returns the remaining range.
func StripVersion(r buffer.ByteRange) (buffer.ByteRange, float64, error) {
	if r.Len() < VersionPrefixBytes {
		return buffer.ByteRange{}, 0, dberror.Corrupt("versioned value is %d bytes, shorter than the %d byte version prefix", r.Len(), VersionPrefixBytes)
	}
	v := Version(r.Bytes())
	return r.Advance(VersionPrefixBytes), v, nil
}

// AppendVersioned returns [version][payload] as a fresh slice.
func AppendVersioned(payload []byte, v float64) []byte {
	out := make([]byte, VersionPrefixBytes+len(payload))
	PutVersion(out, v)
	copy(out[VersionPrefixBytes:], payload)
	return out
}

// StatusByte returns the compression status of r. Containers without
// compression always get 0, as does an empty range.
func StatusByte(r buffer.ByteRange, compressed bool) byte {
	if !compressed || r.Empty() {
		return 0
	}
	return r.At(0)
}

// IsCompressed reports whether a status byte marks a compressed body.
func IsCompressed(status byte) bool {
	return status >= CompressedStatusThreshold
}

// CodecID returns the codec id encoded in a compressed status byte.
func CodecID(status byte) uint8 {
	return status - CompressedStatusThreshold
}

// Status returns the status byte for a codec id.
func Status(codecID uint8) byte {
	return CompressedStatusThreshold + codecID
}
