// Package server exposes loaded models over HTTP for inspection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Faultbox/srcmodel/internal/export"
	"github.com/Faultbox/srcmodel/internal/inspect"
	"github.com/Faultbox/srcmodel/pkg/sourcemodel"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Loader loads a model by name.
type Loader interface {
	Load(name string) (*sourcemodel.SourceModel, error)
}

// Lister lists model files by extension.
type Lister interface {
	List(ext string) ([]string, error)
}

// Config holds server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DefaultLOD   int
}

// Server serves model summaries, dumps and glTF exports.
type Server struct {
	loader Loader
	lister Lister
	cfg    Config
	log    *zap.Logger
	router *mux.Router
}

// New creates a server. lister may be nil, which disables the model listing.
func New(loader Loader, lister Lister, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		loader: loader,
		lister: lister,
		cfg:    cfg,
		log:    log,
		router: mux.NewRouter(),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/models", s.handleModels).Methods(http.MethodGet)
	s.router.HandleFunc("/api/summary/{name:.+}", s.handleSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/api/dump/{name:.+}", s.handleDump).Methods(http.MethodGet)
	s.router.HandleFunc("/api/glb/{name:.+}", s.handleGLB).Methods(http.MethodGet)
	return s
}

// Handler returns the router wrapped with request id, access logging and
// panic recovery.
func (s *Server) Handler() http.Handler {
	stdLog := zap.NewStdLog(s.log)

	var h http.Handler = s.router
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(stdLog))(h)
	h = handlers.LoggingHandler(stdLog.Writer(), h)
	return s.requestID(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("model listing is disabled"))
		return
	}

	files, err := s.lister.List(sourcemodel.ExtMDL)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f[:len(f)-len(sourcemodel.ExtMDL)]
	}
	s.writeJSON(w, names)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	model, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, inspect.Summarize(model))
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	model, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	inspect.DumpHeaders(w, model)
}

func (s *Server) handleGLB(w http.ResponseWriter, r *http.Request) {
	lod := s.cfg.DefaultLOD
	if v := r.URL.Query().Get("lod"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, errors.New("lod must be an integer"))
			return
		}
		lod = n
	}

	model, ok := s.load(w, r)
	if !ok {
		return
	}

	doc, err := export.BuildDocument(model, lod)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	name := model.Name
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.glb"`)
	if err := export.WriteGLB(w, doc); err != nil {
		s.log.Error("writing glb", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	}
}

// load resolves the {name} route variable into a model, writing the error
// response itself on failure.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*sourcemodel.SourceModel, bool) {
	name := mux.Vars(r)["name"]
	model, err := s.loader.Load(name)
	if err == nil {
		return model, true
	}

	status := http.StatusUnprocessableEntity
	var loadErr *sourcemodel.LoadError
	if errors.As(err, &loadErr) && loadErr.Kind == sourcemodel.KindIO {
		status = http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			status = http.StatusNotFound
		}
	}
	s.writeError(w, r, status, err)
	return nil, false
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := RequestID(r.Context())
	s.log.Warn("request failed",
		zap.String("request_id", id),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)

	resp := errorResponse{Error: err.Error(), RequestID: id}
	var loadErr *sourcemodel.LoadError
	if errors.As(err, &loadErr) {
		resp.Kind = loadErr.Kind.String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Error("encoding response", zap.Error(err))
	}
}
