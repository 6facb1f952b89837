package storage

import (
	"fmt"
	"syscall"
)

// Status is a store result code. Zero is success, the reserved negative
// band (-30799..-30780) carries store conditions and positive values are
// operating system errno codes.
type Status int

const (
	Success         Status = 0
	KeyExist        Status = -30799
	NotFound        Status = -30798
	PageNotFound    Status = -30797
	Corrupted       Status = -30796
	Panic           Status = -30795
	VersionMismatch Status = -30794
	Invalid         Status = -30793
	MapFull         Status = -30792
	DBsFull         Status = -30791
	ReadersFull     Status = -30790
	TLSFull         Status = -30789
	TxnFull         Status = -30788
	CursorFull      Status = -30787
	PageFull        Status = -30786
	MapResized      Status = -30785
	Incompatible    Status = -30784
	BadRSlot        Status = -30783
	BadTxn          Status = -30782
	BadValSize      Status = -30781
	BadDBI          Status = -30780

	EIO    Status = Status(syscall.EIO)
	ENOMEM Status = Status(syscall.ENOMEM)
	EACCES Status = Status(syscall.EACCES)
	EINVAL Status = Status(syscall.EINVAL)
	ENOSPC Status = Status(syscall.ENOSPC)
)

// ReservedLow and ReservedHigh bound (exclusively) the store's own error band.
const (
	ReservedLow  = -30800
	ReservedHigh = -30700
)

var statusText = map[Status]string{
	Success:         "Successful return: 0",
	KeyExist:        "KEYEXIST: Key/data pair already exists",
	NotFound:        "NOTFOUND: No matching key/data pair found",
	PageNotFound:    "PAGE_NOTFOUND: Requested page not found",
	Corrupted:       "CORRUPTED: Located page was wrong type",
	Panic:           "PANIC: Update of meta page failed or environment had fatal error",
	VersionMismatch: "VERSION_MISMATCH: Database environment version mismatch",
	Invalid:         "INVALID: File is not a valid store file",
	MapFull:         "MAP_FULL: Environment mapsize limit reached",
	DBsFull:         "DBS_FULL: Environment maxdbs limit reached",
	ReadersFull:     "READERS_FULL: Environment maxreaders limit reached",
	TLSFull:         "TLS_FULL: Thread-local storage keys full - too many environments open",
	TxnFull:         "TXN_FULL: Transaction has too many dirty pages - transaction too big",
	CursorFull:      "CURSOR_FULL: Internal error - cursor stack limit reached",
	PageFull:        "PAGE_FULL: Internal error - page has no more space",
	MapResized:      "MAP_RESIZED: Database contents grew beyond environment mapsize",
	Incompatible:    "INCOMPATIBLE: Operation and DB incompatible, or DB flags changed",
	BadRSlot:        "BAD_RSLOT: Invalid reuse of reader locktable slot",
	BadTxn:          "BAD_TXN: Transaction must abort, has a failed child, or is invalid",
	BadValSize:      "BAD_VALSIZE: Unsupported size of key/DB name/data, or wrong DUPFIXED size",
	BadDBI:          "BAD_DBI: The specified DBI handle was closed/changed unexpectedly",
}

// StatusText returns the store's message for a status code.
func StatusText(code int) string {
	if msg, ok := statusText[Status(code)]; ok {
		return msg
	}
	if code > 0 {
		return syscall.Errno(code).Error()
	}
	return fmt.Sprintf("Unknown error code: %d", code)
}

// InReservedBand reports whether code lies inside the store's own error band.
func InReservedBand(code int) bool {
	return code > ReservedLow && code < ReservedHigh
}

func (s Status) Error() string {
	return StatusText(int(s))
}

// Code returns the raw numeric status.
func (s Status) Code() int {
	return int(s)
}
