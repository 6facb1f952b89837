package api

import (
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/freyjawire/pkg/buffer"
	"github.com/ssargent/freyjawire/pkg/dberror"
	"github.com/ssargent/freyjawire/pkg/storage"
	"github.com/ssargent/freyjawire/pkg/text"
	"github.com/ssargent/freyjawire/pkg/transcode"
	"go.uber.org/zap"
)

const (
	// maxBodyBytes bounds PUT bodies.
	maxBodyBytes            = 64 << 20
	defaultUnsafeBufferSize = 64 << 10
)

// Deps are the collaborators a Server is built from
type Deps struct {
	Env        *storage.Env
	Pipeline   *transcode.Pipeline
	Containers []*ContainerHandle
	Pool       *buffer.Pool
	Metrics    *Metrics
	Logger     *zap.Logger
}

// Server holds the API server state
type Server struct {
	env        *storage.Env
	pipeline   *transcode.Pipeline
	containers map[string]*ContainerHandle
	names      []string
	pool       *buffer.Pool
	config     ServerConfig
	metrics    *Metrics
	logger     *zap.Logger
}

// NewServer creates a new API server
func NewServer(deps Deps, config ServerConfig) *Server {
	s := &Server{
		env:        deps.Env,
		pipeline:   deps.Pipeline,
		containers: make(map[string]*ContainerHandle, len(deps.Containers)),
		pool:       deps.Pool,
		config:     config,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pool == nil {
		s.pool = buffer.NewPool(defaultUnsafeBufferSize)
	}
	if s.pipeline == nil {
		s.pipeline = transcode.New(transcode.WithLogger(s.logger), transcode.WithObserver(s.metrics))
	}
	for _, h := range deps.Containers {
		s.containers[h.Container.Name()] = h
		s.names = append(s.names, h.Container.Name())
	}
	sort.Strings(s.names)
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	infos := make([]ContainerInfo, 0, len(s.names))
	for _, name := range s.names {
		infos = append(infos, s.containers[name].Info())
	}
	sendSuccess(w, map[string]interface{}{"containers": infos})
}

// target resolves the container and key path parameters and takes the
// container's gate. The returned release must be called when ok.
func (s *Server) target(w http.ResponseWriter, r *http.Request) (h *ContainerHandle, key []byte, release func(), ok bool) {
	name := chi.URLParam(r, "name")
	h, found := s.containers[name]
	if !found {
		sendError(w, "Unknown container: "+name, http.StatusNotFound)
		return nil, nil, nil, false
	}

	// chi routes on RawPath when the request has one, otherwise on the
	// already decoded Path
	param := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(param)
		if err != nil {
			sendError(w, "Invalid key", http.StatusBadRequest)
			return nil, nil, nil, false
		}
		param = unescaped
	}
	if param == "" {
		sendError(w, "Invalid key", http.StatusBadRequest)
		return nil, nil, nil, false
	}

	if !h.gate.Acquire(s.config.LockTimeout) {
		s.metrics.RecordLockTimeout(name)
		sendError(w, "Container busy", http.StatusServiceUnavailable)
		return nil, nil, nil, false
	}
	return h, []byte(param), h.gate.Release, true
}

func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	code := dberror.CodeOf(err)
	if code != 0 {
		s.metrics.RecordStoreError(code)
	}
	status := httpStatusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("store operation failed", zap.Error(err))
	}
	sendErrorCode(w, err.Error(), code, status)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	switch q.Get("encoding") {
	case "", encodingRaw:
	case encodingUTF16:
		body, err = text.EncodeUTF16(string(body))
		if err != nil {
			sendError(w, "Body is not valid UTF-8", http.StatusBadRequest)
			return
		}
	default:
		sendError(w, "Unsupported encoding for writes: "+q.Get("encoding"), http.StatusBadRequest)
		return
	}

	var flags storage.PutFlags
	if q.Get("overwrite") == "false" {
		flags |= storage.NoOverwrite
	}

	h, key, release, ok := s.target(w, r)
	if !ok {
		return
	}
	defer release()

	var version float64
	rawVersion := q.Get("version")
	switch {
	case h.Container.HasVersions && rawVersion == "":
		sendError(w, "version is required for this container", http.StatusBadRequest)
		return
	case !h.Container.HasVersions && rawVersion != "":
		sendError(w, "container does not store versions", http.StatusBadRequest)
		return
	case rawVersion != "":
		version, err = strconv.ParseFloat(rawVersion, 64)
		if err != nil {
			sendError(w, "Invalid version: "+rawVersion, http.StatusBadRequest)
			return
		}
	}

	txn := s.env.Begin(false)
	defer txn.Abort()

	if h.Container.HasVersions {
		err = s.pipeline.WriteVersioned(txn, h.Container, key, body, version, flags)
	} else {
		err = s.pipeline.Write(txn, h.Container, key, body, flags)
	}
	if err == nil {
		err = dberror.FromError(txn.Commit())
	}
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.logger.Debug("value stored",
		zap.String("container", h.Container.Name()),
		zap.Int("key_len", len(key)),
		zap.Int("size", len(body)),
		zap.String("txn", txn.ID().String()))
	sendSuccess(w, map[string]interface{}{"message": "Value stored", "size": len(body)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	enc := r.URL.Query().Get("encoding")
	switch enc {
	case "":
		enc = encodingRaw
	case encodingRaw, encodingUTF8, encodingUTF16, encodingLatin1:
	default:
		sendError(w, "Unsupported encoding: "+enc, http.StatusBadRequest)
		return
	}

	h, key, release, ok := s.target(w, r)
	if !ok {
		return
	}
	defer release()

	txn := s.env.Begin(true)
	defer txn.Abort()

	scope := s.pool.Get()
	defer s.pool.Put(scope)

	path := readPathFast
	res, err := s.pipeline.ReadAndTranscode(txn, h.Container, key, scope)
	if err == nil && res.Kind == transcode.TooLarge {
		path = readPathAlloc
		res, err = s.pipeline.ReadAlloc(txn, h.Container, key)
	}
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.logger.Debug("value read",
		zap.String("container", h.Container.Name()),
		zap.Int("key_len", len(key)),
		zap.Stringer("kind", res.Kind),
		zap.String("read_path", path),
		zap.String("scope", scope.ID().String()))

	if enc == encodingRaw {
		w.Header().Set("Content-Type", "application/octet-stream")
		if res.HasVersion {
			w.Header().Set(headerVersion, strconv.FormatFloat(res.Version, 'g', -1, 64))
		}
		w.Header().Set(headerReadPath, path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Value.Bytes())
		return
	}

	resp := ValueResponse{
		Container: h.Container.Name(),
		Key:       string(key),
		Encoding:  enc,
		Size:      res.Value.Len(),
		ReadPath:  path,
	}
	if res.HasVersion {
		v := res.Version
		resp.Version = &v
	}
	switch enc {
	case encodingUTF8:
		resp.Value = text.UTF8(res.Value)
	case encodingLatin1:
		resp.Value = text.Unsafe(res.Value).String()
	case encodingUTF16:
		resp.Value, err = text.UTF16(res.Value)
		if err != nil {
			s.sendStoreError(w, err)
			return
		}
	}
	sendSuccess(w, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	h, key, release, ok := s.target(w, r)
	if !ok {
		return
	}
	defer release()

	txn := s.env.Begin(false)
	defer txn.Abort()

	err := s.pipeline.Delete(txn, h.Container, key)
	if err == nil {
		err = dberror.FromError(txn.Commit())
	}
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, map[string]string{"message": "Value deleted"})
}
