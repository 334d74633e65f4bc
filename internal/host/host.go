// Package host serves a store over HTTP.
//
// Routes:
//
//	GET    /state/*   read the value at a slash-separated path
//	PUT    /state/*   set the value (JSON body)
//	PATCH  /state/*   merge into the value (JSON body)
//	DELETE /state/*   delete the key
//	GET    /watch     websocket; ?path=a.b streams the value on every change
//	GET    /metrics   Prometheus metrics, when a gatherer is configured
//	GET    /healthz   liveness
//
// A store is single-threaded, so the host serialises every access,
// including asynchronous settlements routed through Dispatch.
package host

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/trackstate/internal/source"
	"github.com/vango-dev/trackstate/pkg/state"
)

// maxBodySize bounds PUT and PATCH bodies.
const maxBodySize = 4 << 20

// Options configures a Host.
type Options struct {
	// Logger receives request and websocket errors (default: slog.Default()).
	Logger *slog.Logger

	// AllowedOrigins lists origins allowed to open /watch. Empty allows
	// same-origin requests only; "*" allows any origin.
	AllowedOrigins []string

	// PingInterval is the websocket keepalive interval (default: 30s).
	PingInterval time.Duration

	// ReadOnly rejects writes with 405.
	ReadOnly bool

	// Gatherer enables /metrics.
	Gatherer prometheus.Gatherer
}

// Host serves one store.
type Host struct {
	mu    sync.Mutex
	store *state.Store

	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a host. Attach the store before serving.
func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	h := &Host{opts: opts, logger: opts.Logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Attach sets the served store.
func (h *Host) Attach(s *state.Store) {
	h.mu.Lock()
	h.store = s
	h.mu.Unlock()
}

// Dispatch runs fn with exclusive access to the store. Pass it to
// state.WithDispatcher so Future settlements are serialised with requests.
func (h *Host) Dispatch(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

// Do runs fn against the store with exclusive access.
func (h *Host) Do(fn func(s *state.Store) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.store)
}

// Handler returns the HTTP routes.
func (h *Host) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/state", func(r chi.Router) {
		r.Get("/*", h.handleGet)
		r.Put("/*", h.handleWrite(opSet))
		r.Patch("/*", h.handleWrite(opMerge))
		r.Delete("/*", h.handleWrite(opDelete))
	})
	r.Get("/watch", h.handleWatch)
	if h.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// =============================================================================
// State routes
// =============================================================================

type op string

const (
	opSet    op = "set"
	opMerge  op = "merge"
	opDelete op = "delete"
)

// valueResponse is the body of a successful read.
type valueResponse struct {
	Path    string `json:"path"`
	Edition int64  `json:"edition"`
	Value   any    `json:"value"`
}

// mutationResponse is the body of a successful write.
type mutationResponse struct {
	Path    string            `json:"path"`
	Actions map[string]string `json:"actions,omitempty"`
	Edition int64             `json:"edition"`
}

// pathFromRequest converts the wildcard of /state/* into a Path.
func pathFromRequest(r *http.Request) (state.Path, error) {
	raw := strings.Trim(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return state.Root, nil
	}
	parts := strings.Split(raw, "/")
	p := make(state.Path, 0, len(parts))
	for _, part := range parts {
		seg, err := url.PathUnescape(part)
		if err != nil {
			return nil, err
		}
		p = append(p, state.Field(seg))
	}
	return p, nil
}

func (h *Host) handleGet(w http.ResponseWriter, r *http.Request) {
	path, err := pathFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The value is the store's own tree, so it is encoded under the lock.
	var (
		body      []byte
		encodeErr error
	)
	err = h.Do(func(s *state.Store) error {
		n := s.Node(path)
		v, err := n.GetWith(state.ReadOptions{Stealth: true})
		if err != nil {
			return err
		}
		body, encodeErr = json.Marshal(valueResponse{Path: path.String(), Edition: s.Edition(), Value: v})
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if encodeErr != nil {
		writeError(w, http.StatusInternalServerError, encodeErr)
		return
	}
	writeBody(w, http.StatusOK, body)
}

func (h *Host) handleWrite(kind op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.opts.ReadOnly {
			writeError(w, http.StatusMethodNotAllowed, stderrors.New("host is read-only"))
			return
		}
		path, err := pathFromRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var value any
		if kind != opDelete {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			value, err = source.Decode(source.JSON, body)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		var resp mutationResponse
		err = h.Do(func(s *state.Store) error {
			var (
				m   state.Mutation
				err error
			)
			switch kind {
			case opSet:
				m, err = s.Set(path, value)
			case opMerge:
				m, err = s.Merge(path, value)
			case opDelete:
				m, err = s.Set(path, state.None)
			}
			if err != nil {
				return err
			}
			resp = mutationResponse{Path: m.Path.String(), Edition: s.Edition()}
			if len(m.Actions) > 0 {
				resp.Actions = make(map[string]string, len(m.Actions))
				for k, a := range m.Actions {
					resp.Actions[string(k)] = string(a)
				}
			}
			return nil
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// statusFor maps store errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case state.IsCode(err, state.CodeGetWhenPending), state.IsCode(err, state.CodeSetWhenPending):
		return http.StatusServiceUnavailable
	case state.IsCode(err, state.CodeSetWhenDestroyed):
		return http.StatusGone
	case state.IsCode(err, state.CodePresetVetoed):
		return http.StatusForbidden
	}
	var e *state.Error
	if stderrors.As(err, &e) {
		return http.StatusBadRequest
	}
	// A rejected asynchronous root surfaces its own error.
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeBody writes an already encoded JSON body.
func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, err error) {
	var e *state.Error
	if stderrors.As(err, &e) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, e.FormatJSON()+"\n")
		return
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

// checkOrigin applies AllowedOrigins, falling back to a same-origin check.
func (h *Host) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || r.Host == "" {
		return false
	}
	return u.Host == r.Host
}
