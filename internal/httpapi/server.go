// Package httpapi exposes the monitor over a small JSON API meant for
// loopback use by local tools such as smctl.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
	apimw "github.com/hamed0406/servermonitor/internal/httpapi/middleware"
	"github.com/hamed0406/servermonitor/internal/registry"
)

// Monitor is what the API needs from monitor.Monitor.
type Monitor interface {
	Snapshot() []domain.Target
	Get(id domain.TargetID) (domain.Target, bool)
	AddTarget(ctx context.Context, name, url string) (domain.Target, error)
	UpdateTarget(ctx context.Context, id domain.TargetID, name, url string) (domain.Target, error)
	RemoveTarget(ctx context.Context, id domain.TargetID) error
	TriggerManualCheck() bool
	Checking() bool
	Summary() domain.Summary
	Reload(ctx context.Context) error
	Save(ctx context.Context) error
}

type Options struct {
	Keys           apimw.Keys
	AllowedOrigins []string
	AdminLimit     apimw.Limit
}

type Server struct {
	Logger  *zap.Logger
	Monitor Monitor
	opts    Options
}

func NewServer(l *zap.Logger, m Monitor, opts Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Monitor: m, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(apimw.RequestID)
	r.Use(apimw.AccessLog(s.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", apimw.RequestIDHeader},
		ExposedHeaders: []string{apimw.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RequireAny(s.opts.Keys))

		r.Get("/targets", s.handleListTargets)
		r.Get("/targets/{id}", s.handleGetTarget)
		r.Get("/summary", s.handleSummary)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(s.opts.Keys))
			r.Use(apimw.RateLimit(s.opts.AdminLimit))

			r.Post("/targets", s.handleAddTarget)
			r.Patch("/targets/{id}", s.handleUpdateTarget)
			r.Delete("/targets/{id}", s.handleRemoveTarget)
			r.Post("/checks", s.handleTriggerCheck)
			r.Post("/store/reload", s.handleReload)
			r.Post("/store/save", s.handleSave)
		})
	})

	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("api_listen", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type targetPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// targetView is the API shape of a target. Unlike the stored record it
// reports Checking while a probe is outstanding.
type targetView struct {
	ID          domain.TargetID `json:"id"`
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	Status      string          `json:"status"`
	StatusCode  int             `json:"status_code,omitempty"`
	Display     string          `json:"display"`
	LastChecked *time.Time      `json:"last_checked,omitempty"`
}

func viewOf(t domain.Target) targetView {
	v := targetView{
		ID:      t.ID,
		Name:    t.Name,
		URL:     t.URL,
		Status:  t.Status.Label(),
		Display: t.Status.String(),
	}
	if t.Status.Kind == domain.StatusError {
		v.StatusCode = t.Status.Code
	}
	if !t.LastChecked.IsZero() {
		at := t.LastChecked.UTC()
		v.LastChecked = &at
	}
	return v
}

func viewsOf(ts []domain.Target) []targetView {
	out := make([]targetView, len(ts))
	for i, t := range ts {
		out[i] = viewOf(t)
	}
	return out
}

type targetResponse struct {
	Target  targetView `json:"target"`
	Warning string     `json:"warning,omitempty"`
}

type summaryResponse struct {
	domain.Summary
	Checking bool `json:"checking"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewsOf(s.Monitor.Snapshot()))
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	t, found := s.Monitor.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, registry.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summaryResponse{Summary: s.Monitor.Summary(), Checking: s.Monitor.Checking()})
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p targetPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Name == "" {
		p.Name = p.URL
	}
	t, err := s.Monitor.AddTarget(r.Context(), p.Name, p.URL)
	warning, ok := s.mutationResult(w, err)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, targetResponse{Target: viewOf(t), Warning: warning})
}

// handleUpdateTarget treats an empty field as unchanged.
func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	var p targetPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	cur, found := s.Monitor.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, registry.ErrNotFound.Error())
		return
	}
	if p.Name == "" {
		p.Name = cur.Name
	}
	if p.URL == "" {
		p.URL = cur.URL
	}
	t, err := s.Monitor.UpdateTarget(r.Context(), id, p.Name, p.URL)
	warning, ok := s.mutationResult(w, err)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, targetResponse{Target: viewOf(t), Warning: warning})
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	warning, ok := s.mutationResult(w, s.Monitor.RemoveTarget(r.Context(), id))
	if !ok {
		return
	}
	if warning != "" {
		writeJSON(w, http.StatusOK, map[string]string{"warning": warning})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	if !s.Monitor.TriggerManualCheck() {
		writeError(w, http.StatusConflict, "check already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Monitor.Reload(r.Context()); err != nil {
		s.Logger.Warn("store_reload_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(s.Monitor.Snapshot()))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.Monitor.Save(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(s.Monitor.Snapshot())})
}

// mutationResult maps a monitor error to a response. A failed save is not a
// failed request: the change is live and the save error becomes a warning.
func (s *Server) mutationResult(w http.ResponseWriter, err error) (warning string, ok bool) {
	switch {
	case err == nil:
		return "", true
	case registry.IsSaveError(err):
		return err.Error(), true
	case errors.Is(err, registry.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.Logger.Error("mutation_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return "", false
}

func targetID(w http.ResponseWriter, r *http.Request) (domain.TargetID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		writeError(w, http.StatusBadRequest, "bad target id")
		return 0, false
	}
	return domain.TargetID(n), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
