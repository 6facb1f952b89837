// Package di provides dependency injection container
package di

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/freyjawire/pkg/api" //nolint:depguard
	"github.com/ssargent/freyjawire/pkg/buffer"
	"github.com/ssargent/freyjawire/pkg/compress"
	"github.com/ssargent/freyjawire/pkg/config"
	"github.com/ssargent/freyjawire/pkg/logging"
	"github.com/ssargent/freyjawire/pkg/storage"
	"github.com/ssargent/freyjawire/pkg/transcode"
	"go.uber.org/zap"
)

// BuildOptions tweaks how Build opens the store
type BuildOptions struct {
	InMemory bool        // Ignore data_dir and keep the store in memory
	Logger   *zap.Logger // Use this logger instead of building one from config
}

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory

	config   *config.Config
	logger   *zap.Logger
	env      *storage.Env
	metrics  *api.Metrics
	pipeline *transcode.Pipeline
	pool     *buffer.Pool
	handles  []*api.ContainerHandle
	byName   map[string]*api.ContainerHandle
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// Build wires config -> logger -> store -> containers -> pipeline. Any
// previously built graph is closed first.
func (c *Container) Build(cfg *config.Config, opts BuildOptions) error {
	if err := c.Close(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Level, logging.Format(cfg.Logging.Format))
		if err != nil {
			return err
		}
	}

	if !opts.InMemory {
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.Wrap(err, "failed to create data dir")
		}
	}
	env, err := storage.Open(cfg.DataDir, storage.Options{InMemory: opts.InMemory, Logger: logger})
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}

	metrics := api.NewMetrics()
	pipeline := transcode.New(transcode.WithLogger(logger), transcode.WithObserver(metrics))

	handles := make([]*api.ContainerHandle, 0, len(cfg.Containers))
	byName := make(map[string]*api.ContainerHandle, len(cfg.Containers))
	for _, decl := range cfg.Containers {
		h, err := openContainer(env, decl, logger)
		if err != nil {
			_ = env.Close()
			return err
		}
		handles = append(handles, h)
		byName[decl.Name] = h
	}

	c.config = cfg
	c.logger = logger
	c.env = env
	c.metrics = metrics
	c.pipeline = pipeline
	c.pool = buffer.NewPool(cfg.UnsafeBufferSize)
	c.handles = handles
	c.byName = byName

	logger.Debug("dependency graph built",
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("in_memory", opts.InMemory),
		zap.Int("containers", len(handles)))
	return nil
}

func openContainer(env *storage.Env, decl config.Container, logger *zap.Logger) (*api.ContainerHandle, error) {
	dbi, err := env.OpenDBI(decl.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "open container %q", decl.Name)
	}

	opts := transcode.ContainerOptions{HasVersions: decl.Versions}
	codec := ""
	if cmp := decl.Compression; cmp != nil {
		engine, err := compress.NewEnvelope(cmp.Codec,
			compress.WithThreshold(cmp.Threshold),
			compress.WithLogger(logger.With(zap.String("container", decl.Name))))
		if err != nil {
			return nil, errors.Wrapf(err, "container %q", decl.Name)
		}
		opts.Compression = engine
		opts.TargetSize = cmp.TargetSize
		codec = cmp.Codec
	}

	tc, err := transcode.NewContainer(dbi, opts)
	if err != nil {
		return nil, err
	}
	return api.NewContainerHandle(tc, codec), nil
}

// Close releases the store. It is safe to call on an unbuilt container.
func (c *Container) Close() error {
	if c.env == nil {
		return nil
	}
	err := c.env.Close()
	c.env = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return err
}

// Config returns the configuration the graph was built from
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the application logger
func (c *Container) Logger() *zap.Logger { return logging.OrNop(c.logger) }

// Env returns the open store
func (c *Container) Env() *storage.Env { return c.env }

// Pipeline returns the shared transcoding pipeline
func (c *Container) Pipeline() *transcode.Pipeline { return c.pipeline }

// Pool returns the unsafe buffer pool
func (c *Container) Pool() *buffer.Pool { return c.pool }

// Metrics returns the metrics the pipeline reports to
func (c *Container) Metrics() *api.Metrics { return c.metrics }

// Handles returns the configured containers in declaration order
func (c *Container) Handles() []*api.ContainerHandle { return c.handles }

// Handle returns the named container
func (c *Container) Handle(name string) (*api.ContainerHandle, error) {
	h, ok := c.byName[name]
	if !ok {
		return nil, errors.Newf("unknown container %q", name)
	}
	return h, nil
}

// Deps returns the API server collaborators
func (c *Container) Deps() api.Deps {
	return api.Deps{
		Env:        c.env,
		Pipeline:   c.pipeline,
		Containers: c.handles,
		Pool:       c.pool,
		Metrics:    c.metrics,
		Logger:     c.logger,
	}
}

// ServerConfig returns the API listener settings
func (c *Container) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Port:        c.config.Server.Port,
		Bind:        c.config.Server.Bind,
		APIKey:      c.config.Security.APIKey,
		LockTimeout: c.config.LockTimeout,
	}
}
