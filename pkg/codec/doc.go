// Package codec implements the byte-level framing that FreyjaWire layers on
// top of stored values.
//
// # Value Format
//
// A stored value carries up to two optional framing layers, outermost first:
//
//	[Version(8)][Status(1)][Body]
//
// Fields:
//   - Version: float64 in native byte order, present only for containers
//     opened with versions enabled
//   - Status: present only for containers opened with compression; a value
//     >= 250 marks a compressed body produced by codec (Status - 250), any
//     smaller value is simply the first byte of a raw payload
//   - Body: for compressed values, a uvarint uncompressed length followed by
//     the codec output; otherwise the payload itself
//
// Each layer is applied and stripped independently and only when the owning
// container is configured for it. A container without compression never
// looks at the status byte.
//
// # Usage
//
//	dst := make([]byte, codec.VersionPrefixBytes+len(payload))
//	codec.PutVersion(dst, 3.0)
//	copy(dst[codec.VersionPrefixBytes:], payload)
//
//	rest, version, err := codec.StripVersion(buffer.StoreRange(dst))
//
// # Error Handling
//
// A versioned value shorter than the prefix is reported as a corrupt value
// (dberror.ErrCorruptValue); it is never padded or skipped.
package codec
