package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/auth"
	"velora-scenario-service/internal/logger"
)

// TokenVerifier turns a bearer token into a user id; an empty token yields "".
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Config wires dependencies for the HTTP API.
type Config struct {
	Sessions *app.SessionService
	Catalog  *app.CatalogService
	Tokens   TokenVerifier
	Logger   *logger.Logger
}

type handler struct {
	sessions *app.SessionService
	catalog  *app.CatalogService
	tokens   TokenVerifier
	log      *logger.Logger
}

// NewRouter builds the REST and websocket routes.
func NewRouter(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	h := &handler{sessions: cfg.Sessions, catalog: cfg.Catalog, tokens: cfg.Tokens, log: log.With("component", "http")}
	ws := NewWSHandler(cfg.Sessions, log)

	r := mux.NewRouter()
	r.Use(requestLogger(h.log))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tracks", h.listTracks).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{slug}", h.getTrack).Methods(http.MethodGet)
	api.HandleFunc("/scenarios/first", h.firstScenario).Methods(http.MethodGet)
	api.HandleFunc("/scenarios/{id}", h.getScenario).Methods(http.MethodGet)
	api.HandleFunc("/scenarios/{id}/sessions", h.startSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{sid}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sid}", h.endSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{sid}/select", h.selectAnswer).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{sid}/submit", h.submit).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{sid}/next", h.next).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{sid}/identity", h.identity).Methods(http.MethodPost)
	api.HandleFunc("/dashboard", h.dashboard).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func (h *handler) listTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.ListTracks(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

func (h *handler) getTrack(w http.ResponseWriter, r *http.Request) {
	track, err := h.catalog.Track(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (h *handler) firstScenario(w http.ResponseWriter, r *http.Request) {
	ref, err := h.catalog.FirstScenario(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *handler) getScenario(w http.ResponseWriter, r *http.Request) {
	scenario, err := h.catalog.Scenario(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Start(r.Context(), mux.Vars(r)["id"], r.Header.Get("X-Device-ID"), bearer(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("X-Device-ID", snap.DeviceID)
	writeJSON(w, http.StatusCreated, snap)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(r.Context(), mux.Vars(r)["sid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) endSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.End(r.Context(), mux.Vars(r)["sid"])
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	AnswerID string `json:"answerId"`
}

func (h *handler) selectAnswer(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AnswerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "answerId is required")
		return
	}
	snap, err := h.sessions.Select(r.Context(), mux.Vars(r)["sid"], req.AnswerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type submitResponse struct {
	Outcome app.Outcome `json:"outcome"`
	app.Snapshot
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	snap, outcome, err := h.sessions.Submit(r.Context(), mux.Vars(r)["sid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Outcome: outcome, Snapshot: snap})
}

type nextResponse struct {
	Moved bool `json:"moved"`
	app.Snapshot
}

func (h *handler) next(w http.ResponseWriter, r *http.Request) {
	snap, moved, err := h.sessions.Next(r.Context(), mux.Vars(r)["sid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nextResponse{Moved: moved, Snapshot: snap})
}

// identity applies a sign-in (bearer present) or sign-out (absent) to a live session.
func (h *handler) identity(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.SetToken(r.Context(), mux.Vars(r)["sid"], bearer(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := h.tokens.Verify(bearer(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dash, err := h.catalog.Dashboard(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func bearer(r *http.Request) string {
	return auth.BearerToken(r.Header.Get("Authorization"))
}
