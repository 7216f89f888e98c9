package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/internal/tracker"
	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/queue"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

const maxBodyBytes = 1 << 20

// Enqueuer accepts mutations for asynchronous apply.
type Enqueuer interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
}

// TrackersHandler serves the tracker session API.
type TrackersHandler struct {
	trackers *tracker.Manager
	queue    Enqueuer
	logger   *slog.Logger
}

// NewTrackersHandler builds the handler. queue may be nil, in which case
// async mutations are refused.
func NewTrackersHandler(trackers *tracker.Manager, queue Enqueuer, logger *slog.Logger) *TrackersHandler {
	return &TrackersHandler{trackers: trackers, queue: queue, logger: logger}
}

// Register mounts the routes:
//
//	GET    /v1/trackers
//	POST   /v1/trackers
//	GET    /v1/trackers/{id}
//	DELETE /v1/trackers/{id}
//	POST   /v1/trackers/{id}/mutations[?async=true]
//	GET    /v1/trackers/{id}/snapshot
//	PUT    /v1/trackers/{id}/snapshot
//	GET    /v1/trackers/{id}/nodes
//	GET    /v1/trackers/{id}/locations/{location}
//	GET    /v1/trackers/{id}/dungeons/{dungeon}
func (h *TrackersHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/trackers", h.handleList)
	mux.HandleFunc("POST /v1/trackers", h.handleCreate)
	mux.HandleFunc("GET /v1/trackers/{id}", h.withID(h.handleRead))
	mux.HandleFunc("DELETE /v1/trackers/{id}", h.withID(h.handleDelete))
	mux.HandleFunc("POST /v1/trackers/{id}/mutations", h.withID(h.handleMutation))
	mux.HandleFunc("GET /v1/trackers/{id}/snapshot", h.withID(h.handleSnapshot))
	mux.HandleFunc("PUT /v1/trackers/{id}/snapshot", h.withID(h.handleRestore))
	mux.HandleFunc("GET /v1/trackers/{id}/nodes", h.withID(h.handleNodes))
	mux.HandleFunc("GET /v1/trackers/{id}/locations/{location}", h.withID(h.handleLocation))
	mux.HandleFunc("GET /v1/trackers/{id}/dungeons/{dungeon}", h.withID(h.handleDungeon))
}

func (h *TrackersHandler) withID(fn func(http.ResponseWriter, *http.Request, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			h.logger.Warn("Invalid tracker ID", "id", r.PathValue("id"), "error", err)
			writeError(w, h.logger, http.StatusBadRequest, "Invalid tracker ID format")
			return
		}
		fn(w, r, id)
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type ListTrackersResponse struct {
	Trackers []uuid.UUID `json:"trackers"`
}

func (h *TrackersHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.trackers.List(r.Context())
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, h.logger, http.StatusOK, ListTrackersResponse{Trackers: ids})
}

// CreateTrackerRequest names the world to track. Empty means the default.
type CreateTrackerRequest struct {
	World string `json:"world"`
}

func (h *TrackersHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTrackerRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
	}

	info, err := h.trackers.Create(r.Context(), req.World)
	if err != nil {
		h.logger.Warn("Failed to create tracker", "world", req.World, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Location", "/v1/trackers/"+info.ID.String())
	writeJSON(w, h.logger, http.StatusCreated, info)
}

// TrackerResponse is the full read model of one tracker.
type TrackerResponse struct {
	tracker.Info
	Items          []engine.ItemStatus    `json:"items"`
	Settings       []engine.SettingStatus `json:"settings"`
	SequenceBreaks []engine.BreakStatus   `json:"sequence_breaks"`
	Locations      []location.Summary     `json:"locations"`
	Dungeons       []string               `json:"dungeons"`
}

func (h *TrackersHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var resp TrackerResponse
	info, err := h.trackers.View(r.Context(), id, func(e *engine.Engine) {
		resp.Items = e.Items()
		resp.Settings = e.Settings()
		resp.SequenceBreaks = e.SequenceBreaks()
		resp.Locations = e.Summaries()
		resp.Dungeons = e.DungeonIDs()
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	resp.Info = *info
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *TrackersHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.trackers.Delete(r.Context(), id); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MutationResponse is returned for a synchronous mutation. Change is
// absent when the mutation was queued.
type MutationResponse struct {
	RequestID string         `json:"request_id"`
	Queued    bool           `json:"queued,omitempty"`
	Change    *engine.Change `json:"change,omitempty"`
}

func (h *TrackersHandler) handleMutation(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var m engine.Mutation
	if err := decodeBody(r, &m); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := m.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		h.enqueue(w, r, id, m)
		return
	}

	requestID := uuid.NewString()
	change, err := h.trackers.Apply(r.Context(), id, requestID, m)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MutationResponse{RequestID: requestID, Change: &change})
}

func (h *TrackersHandler) enqueue(w http.ResponseWriter, r *http.Request, id uuid.UUID, m engine.Mutation) {
	if h.queue == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "Mutation queue is not configured")
		return
	}
	// Fail fast on trackers that do not exist; the worker would only dead-letter them.
	if _, err := h.trackers.View(r.Context(), id, func(*engine.Engine) {}); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	req := queue.NewRequest(id, queue.SourceAPI, m)
	if err := h.queue.EnqueueRequest(r.Context(), req); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, MutationResponse{RequestID: req.RequestID, Queued: true})
}

func (h *TrackersHandler) handleSnapshot(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	snap, err := h.trackers.Snapshot(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}

func (h *TrackersHandler) handleRestore(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var snap snapshot.Snapshot
	if err := decodeBody(r, &snap); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	change, err := h.trackers.Restore(r.Context(), id, &snap)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, change)
}

func (h *TrackersHandler) handleNodes(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var levels map[string]access.Level
	if _, err := h.trackers.View(r.Context(), id, func(e *engine.Engine) {
		levels = e.NodeLevels()
	}); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, levels)
}

func (h *TrackersHandler) handleLocation(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var (
		summary location.Summary
		lookup  error
	)
	if _, err := h.trackers.View(r.Context(), id, func(e *engine.Engine) {
		var loc *location.Location
		loc, lookup = e.Location(r.PathValue("location"))
		if lookup == nil {
			summary = loc.Summary()
		}
	}); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	if lookup != nil {
		writeError(w, h.logger, http.StatusNotFound, lookup.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summary)
}

func (h *TrackersHandler) handleDungeon(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var (
		view   engine.DungeonView
		lookup error
	)
	if _, err := h.trackers.View(r.Context(), id, func(e *engine.Engine) {
		view, lookup = e.Dungeon(r.PathValue("dungeon"))
	}); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	if lookup != nil {
		writeError(w, h.logger, http.StatusNotFound, lookup.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, view)
}
