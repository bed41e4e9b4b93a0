// Package api provides the local HTTP and WebSocket control surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nguctl/internal/config"
	"nguctl/internal/logging"
	"nguctl/internal/session"
	"nguctl/internal/ui"
)

const maxBodyBytes = 64 << 10

type ctxKey int

const opIDKey ctxKey = iota

// Options configures a Server.
type Options struct {
	// Token, when set, must be presented as a bearer token
	Token string

	// Config, when set, enables GET and POST /api/config
	Config *config.Manager

	// Version is shown on the control panel
	Version string

	Logger logrus.FieldLogger
}

// Server exposes a Session over HTTP
type Server struct {
	sess    *session.Session
	cfgMgr  *config.Manager
	token   string
	version string
	hub     *hub
	actions map[string]action
	log     logrus.FieldLogger
}

// NewServer creates a new API server and subscribes to the session's command
// stream for WebSocket events.
func NewServer(sess *session.Session, opts Options) *Server {
	s := &Server{
		sess:    sess,
		cfgMgr:  opts.Config,
		token:   opts.Token,
		version: opts.Version,
		log:     logging.Component(opts.Logger, "api"),
	}
	s.actions = s.buildActions()
	s.hub = newHub(s)
	sess.Channel().SetObserver(s.hub.publishCommand)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.opID)
	r.Use(s.requestLog)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/", ui.Panel{Version: s.version})

	r.Group(func(r chi.Router) {
		r.Use(s.sameOrigin)
		r.Use(s.auth)
		r.Use(requireJSON)

		r.Get("/ws", s.hub.handleWebSocket)

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handle("status"))
			r.Get("/geometry", s.handle("geometry"))
			r.Post("/hooks/enable", s.handle("hooks.enable"))
			r.Post("/hooks/disable", s.handle("hooks.disable"))
			r.Post("/rearm", s.handle("rearm"))
			r.Post("/restore", s.handle("restore"))
			r.Post("/click", s.handle("click"))
			r.Post("/drag", s.handle("drag"))
			r.Post("/type", s.handle("type"))
			r.Post("/arrow", s.handle("arrow"))
			if s.cfgMgr != nil {
				r.Get("/config", s.handleGetConfig)
				r.Post("/config", s.handlePostConfig)
			}
		})
	})
	return r
}

// Start serves on the loopback interface until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("API shutdown")
		}
	}()

	s.log.Infof("API listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type response struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handle adapts a named action to an HTTP handler.
func (s *Server) handle(name string) http.HandlerFunc {
	act := s.actions[name]
	return func(w http.ResponseWriter, r *http.Request) {
		id := opIDFrom(r.Context())

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{ID: id, Error: err.Error()})
			return
		}

		result, err := act(raw)
		if err != nil {
			code := statusFor(err)
			s.log.WithError(err).WithField("op", id).Warnf("%s failed (%d)", name, code)
			writeJSON(w, code, response{ID: id, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, response{ID: id, OK: true, Result: result})
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{ID: opIDFrom(r.Context()), OK: true, Result: s.cfgMgr.Get()})
}

// handlePostConfig validates, applies and saves a full configuration.
func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	id := opIDFrom(r.Context())

	var cfg config.Config
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, response{ID: id, Error: "invalid configuration: " + err.Error()})
		return
	}
	if err := s.cfgMgr.Set(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, response{ID: id, Error: err.Error()})
		return
	}
	s.log.WithField("op", id).Info("Configuration updated")
	if err := s.cfgMgr.Save(); err != nil {
		writeJSON(w, http.StatusInternalServerError, response{ID: id, Error: "save: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response{ID: id, OK: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// opID tags every request with an operation ID, echoed in X-Request-ID.
func (s *Server) opID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), opIDKey, id)))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"op":     opIDFrom(r.Context()),
			"status": ww.Status(),
			"took":   time.Since(start),
		}).Debugf("%s %s", r.Method, r.URL.Path)
	})
}

// auth checks the API token if configured. Browsers cannot set headers on a
// WebSocket upgrade, so the token is also accepted as a query parameter.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.token && r.URL.Query().Get("token") != s.token {
				writeJSON(w, http.StatusUnauthorized, response{ID: opIDFrom(r.Context()), Error: "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sameOrigin rejects browser requests coming from another site. Requests
// without an Origin header come from non-browser clients and pass.
func (s *Server) sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !originAllowed(r) {
			s.log.WithField("op", opIDFrom(r.Context())).Warnf("Rejected request from origin %q", r.Header.Get("Origin"))
			writeJSON(w, http.StatusForbidden, response{ID: opIDFrom(r.Context()), Error: "cross-origin request"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// requireJSON rejects POSTs a browser could send cross-site without a
// preflight (form and text/plain bodies).
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				writeJSON(w, http.StatusUnsupportedMediaType, response{ID: opIDFrom(r.Context()), Error: "content type must be application/json"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func opIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
