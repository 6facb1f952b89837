package transcode

import (
	"github.com/cockroachdb/errors"
	"github.com/ssargent/freyjawire/pkg/codec"
	"github.com/ssargent/freyjawire/pkg/compress"
	"github.com/ssargent/freyjawire/pkg/storage"
)

// ErrConfigurationMismatch marks framing requested from a container that is
// not configured for it.
var ErrConfigurationMismatch = errors.New("configuration mismatch")

const (
	// versionOffset is where the last read version lands in KeyBuffer.
	versionOffset = 16
	keyBufferSize = versionOffset + codec.VersionPrefixBytes
)

// ContainerOptions configures a container handle.
type ContainerOptions struct {
	HasVersions bool
	Compression compress.Engine // nil disables compression
	TargetSize  int             // DecompressTarget size, required with Compression
}

// Container is the per-container handle the pipeline borrows on every call.
// Its scratch areas are not safe for concurrent use; callers run one
// operation per handle at a time.
type Container struct {
	DBI              storage.DBI
	HasVersions      bool
	Compression      compress.Engine
	DecompressTarget []byte
	KeyBuffer        []byte
}

// NewContainer validates opts and allocates the handle's scratch areas.
func NewContainer(dbi storage.DBI, opts ContainerOptions) (*Container, error) {
	c := &Container{
		DBI:         dbi,
		HasVersions: opts.HasVersions,
		KeyBuffer:   make([]byte, keyBufferSize),
	}
	if opts.Compression != nil {
		if opts.TargetSize <= 0 {
			return nil, errors.Mark(
				errors.Newf("container %q: compression needs a positive decompress target size, got %d", dbi.Name(), opts.TargetSize),
				ErrConfigurationMismatch)
		}
		c.Compression = opts.Compression
		c.DecompressTarget = make([]byte, opts.TargetSize)
	} else if opts.TargetSize != 0 {
		return nil, errors.Mark(
			errors.Newf("container %q: decompress target set without compression", dbi.Name()),
			ErrConfigurationMismatch)
	}
	return c, nil
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.DBI.Name()
}

// Compressed reports whether the container frames values with a status byte.
func (c *Container) Compressed() bool {
	return c.Compression != nil
}

// LastVersion returns the version recorded by the most recent read.
func (c *Container) LastVersion() float64 {
	return codec.Version(c.KeyBuffer[versionOffset:])
}

func (c *Container) recordVersion(v float64) {
	codec.PutVersion(c.KeyBuffer[versionOffset:], v)
}
