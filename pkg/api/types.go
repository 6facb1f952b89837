package api

import (
	"time"

	"github.com/ssargent/freyjawire/pkg/syncx"
	"github.com/ssargent/freyjawire/pkg/transcode"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port        int
	Bind        string
	APIKey      string        // Empty disables authentication
	LockTimeout time.Duration // How long a request waits for a busy container
}

// ContainerInfo describes a container in listings
type ContainerInfo struct {
	Name        string `json:"name"`
	Versions    bool   `json:"versions"`
	Compression string `json:"compression,omitempty"`
	TargetSize  int    `json:"target_size,omitempty"`
}

// ValueResponse is the JSON form of a read for text encodings
type ValueResponse struct {
	Container string   `json:"container"`
	Key       string   `json:"key"`
	Encoding  string   `json:"encoding"`
	Value     string   `json:"value"`
	Size      int      `json:"size"`
	Version   *float64 `json:"version,omitempty"`
	ReadPath  string   `json:"read_path"`
}

// ContainerHandle pairs a container with the gate that serializes access to
// its scratch areas.
type ContainerHandle struct {
	Container *transcode.Container
	Codec     string
	gate      *syncx.Gate
}

// NewContainerHandle wraps c for serving. codec is the write codec name, or
// empty for uncompressed containers.
func NewContainerHandle(c *transcode.Container, codec string) *ContainerHandle {
	return &ContainerHandle{Container: c, Codec: codec, gate: syncx.NewGate()}
}

// Info returns the listing form of the handle.
func (h *ContainerHandle) Info() ContainerInfo {
	return ContainerInfo{
		Name:        h.Container.Name(),
		Versions:    h.Container.HasVersions,
		Compression: h.Codec,
		TargetSize:  len(h.Container.DecompressTarget),
	}
}

const (
	encodingRaw    = "raw"
	encodingUTF8   = "utf8"
	encodingUTF16  = "utf16"
	encodingLatin1 = "latin1"

	readPathFast  = "fast"
	readPathAlloc = "alloc"

	headerVersion  = "X-Freyja-Version"
	headerReadPath = "X-Freyja-Read-Path"
)
