// Package dberror turns store status codes and value corruption into the
// structured errors callers see.
package dberror

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/freyjawire/pkg/storage"
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindStoreStatus is a non-success status returned by the store.
	KindStoreStatus Kind = iota
	// KindCorruptValue is a stored value whose framing cannot be decoded.
	KindCorruptValue
	// KindInvalidEncoding is a string payload with a broken layout. It is
	// also a corrupt value.
	KindInvalidEncoding
)

func (k Kind) String() string {
	switch k {
	case KindStoreStatus:
		return "store_status"
	case KindCorruptValue:
		return "corrupt_value"
	case KindInvalidEncoding:
		return "invalid_encoding"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrCorruptValue    = errors.New("corrupt value")
	ErrInvalidEncoding = errors.New("invalid encoding")
	ErrNotFound        = errors.New("not found")
	ErrKeyExists       = errors.New("key exists")
)

// Error is a host-visible store error carrying the normalized numeric code
type Error struct {
	Code    int
	Message string
	Kind    Kind
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Is matches the package sentinels by kind and code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCorruptValue:
		return e.Kind == KindCorruptValue || e.Kind == KindInvalidEncoding
	case ErrInvalidEncoding:
		return e.Kind == KindInvalidEncoding
	case ErrNotFound:
		return e.Code == int(storage.NotFound)
	case ErrKeyExists:
		return e.Code == int(storage.KeyExist)
	}
	if other, ok := target.(*Error); ok {
		return other.Code == e.Code && other.Kind == e.Kind
	}
	return false
}

// Normalize maps a raw status to the code used for message lookup. Codes in
// the store's reserved band pass through, other negative codes are negated.
func Normalize(code int) int {
	if code < 0 && !storage.InReservedBand(code) {
		return -code
	}
	return code
}

// Translate builds the error for a store status code. It does not raise
// anything; propagating the value is up to the caller.
func Translate(code int) *Error {
	code = Normalize(code)
	return &Error{
		Code:    code,
		Message: storage.StatusText(code),
		Kind:    KindStoreStatus,
	}
}

// Corrupt builds a CorruptValue error.
func Corrupt(format string, args ...any) *Error {
	return &Error{
		Code:    int(storage.Corrupted),
		Message: storage.StatusText(int(storage.Corrupted)),
		Kind:    KindCorruptValue,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// InvalidEncoding builds an InvalidEncoding error.
func InvalidEncoding(format string, args ...any) *Error {
	return &Error{
		Code:    int(storage.Corrupted),
		Message: "Invalid zero-terminated UTF-16 string",
		Kind:    KindInvalidEncoding,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// FromError translates err when it carries a store status and returns it
// unchanged otherwise.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var derr *Error
	if errors.As(err, &derr) {
		return err
	}
	var status storage.Status
	if errors.As(err, &status) {
		return Translate(int(status))
	}
	return err
}

// CodeOf returns the numeric code carried by err, or 0 when it has none.
func CodeOf(err error) int {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	var status storage.Status
	if errors.As(err, &status) {
		return Normalize(int(status))
	}
	return 0
}
