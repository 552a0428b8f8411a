package apihttp

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sites-spectral/internal/audit"
	"sites-spectral/internal/auth"
	"sites-spectral/internal/masterdata/application"
	"sites-spectral/internal/observability/metrics"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Catalog       *application.Catalog
	Login         *auth.LoginService
	Limiter       *audit.RateLimiter
	Recorder      *audit.Recorder
	Log           *logrus.Logger
	JWTSecret     []byte
	ImportSecret  []byte
	ImportMaxSkew time.Duration
	Version       string
	Now           func() time.Time
}

// Server routes API requests onto the catalog.
type Server struct {
	catalog  *application.Catalog
	login    *auth.LoginService
	limiter  *audit.RateLimiter
	recorder *audit.Recorder
	log      *logrus.Logger
	authn    *auth.Middleware
	imports  *auth.ImportAuthMiddleware
	version  string
	now      func() time.Time
}

// NewServer validates deps and constructs a server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Catalog == nil {
		return nil, errors.New("apihttp: nil catalog")
	}
	if deps.Login == nil {
		return nil, errors.New("apihttp: nil login service")
	}
	if deps.Limiter == nil {
		return nil, errors.New("apihttp: nil rate limiter")
	}
	if len(deps.JWTSecret) == 0 {
		return nil, errors.New("apihttp: empty jwt secret")
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Recorder == nil {
		deps.Recorder = audit.NewRecorder(nil, deps.Log)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	policy := auth.NewDefaultPolicy([]string{"/api/health", "/api/auth/login", "/metrics"}, []string{"/api/import/"})
	return &Server{
		catalog:  deps.Catalog,
		login:    deps.Login,
		limiter:  deps.Limiter,
		recorder: deps.Recorder,
		log:      deps.Log,
		authn:    auth.NewMiddleware(deps.JWTSecret, policy),
		imports:  auth.NewImportAuthMiddleware(deps.ImportSecret, deps.ImportMaxSkew),
		version:  deps.Version,
		now:      deps.Now,
	}, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument, s.authn.Wrap)
	s.RegisterRoutes(router)
	return s.withRequestID(s.recoverPanics(s.accessLog(router)))
}

// RegisterRoutes registers every API route on router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/login", s.serve(s.handleLogin)).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/verify", s.serve(s.handleVerify)).Methods(http.MethodGet)

	router.HandleFunc("/api/fields/{kind}", s.serve(s.handleFields)).Methods(http.MethodGet)
	router.HandleFunc("/api/export/station/{id}", s.handleExport).Methods(http.MethodGet)
	router.Handle("/api/import/{station}", s.imports.Wrap(s.serve(s.handleImport))).Methods(http.MethodPost)

	admin := router.PathPrefix("/api/admin").Subrouter()
	s.registerResources(admin, s.adminServe)
	s.registerResources(router.PathPrefix("/api").Subrouter(), s.resourceServe)
}

const kindPattern = "{kind:stations|platforms|instruments|rois}"

func (s *Server) registerResources(r *mux.Router, wrap func(apiFunc) http.HandlerFunc) {
	r.HandleFunc("/"+kindPattern, wrap(s.handleList)).Methods(http.MethodGet)
	r.HandleFunc("/"+kindPattern, wrap(s.handleCreate)).Methods(http.MethodPost)
	r.HandleFunc("/"+kindPattern+"/{id}", wrap(s.handleGet)).Methods(http.MethodGet)
	r.HandleFunc("/"+kindPattern+"/{id}", wrap(s.handleUpdate)).Methods(http.MethodPut)
	r.HandleFunc("/"+kindPattern+"/{id}", wrap(s.handleDelete)).Methods(http.MethodDelete)
	r.HandleFunc("/"+kindPattern+"/{id}/dependencies", wrap(s.handleDependencies)).Methods(http.MethodGet)
	r.HandleFunc("/stations/{id}/tree", wrap(s.handleTree)).Methods(http.MethodGet)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"version":   s.version,
	})
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned to the request, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": RequestIDFromContext(r.Context()),
					"panic":      rec,
				}).Error(string(debug.Stack()))
				writeEnvelope(w, http.StatusInternalServerError, envelope{Error: codeInternal, Message: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      resp.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  RequestIDFromContext(r.Context()),
		}).Info("http")
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		route := ""
		if current := mux.CurrentRoute(r); current != nil {
			route, _ = current.GetPathTemplate()
		}
		metrics.ObserveHTTP(r.Method, route, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
