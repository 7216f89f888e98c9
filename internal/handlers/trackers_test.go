package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/internal/storage"
	"github.com/jwebster45206/tracker-engine/internal/tracker"
	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/queue"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

type recordingQueue struct {
	requests []*queue.Request
}

func (q *recordingQueue) EnqueueRequest(_ context.Context, req *queue.Request) error {
	q.requests = append(q.requests, req)
	return nil
}

type apiFixture struct {
	mux      *http.ServeMux
	trackers *tracker.Manager
	queue    *recordingQueue
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	f := &apiFixture{
		mux:      http.NewServeMux(),
		trackers: tracker.NewManager(storage.NewMockStorage(), nil, nil, logger),
		queue:    &recordingQueue{},
	}
	NewTrackersHandler(f.trackers, f.queue, logger).Register(f.mux)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) create(t *testing.T) uuid.UUID {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/trackers", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var info tracker.Info
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.Equal(t, "/v1/trackers/"+info.ID.String(), rr.Header().Get("Location"))
	return info.ID
}

func TestTrackers_CreateReadDelete(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)

	rr := f.do(t, http.MethodGet, "/v1/trackers/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got TrackerResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "alttp_lite", got.World)
	assert.NotEmpty(t, got.Items)
	assert.NotEmpty(t, got.Locations)
	assert.Contains(t, got.Dungeons, "eastern_palace")

	rr = f.do(t, http.MethodGet, "/v1/trackers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ListTrackersResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Equal(t, []uuid.UUID{id}, list.Trackers)

	rr = f.do(t, http.MethodDelete, "/v1/trackers/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/trackers/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrackers_CreateUnknownWorld(t *testing.T) {
	f := newAPI(t)
	rr := f.do(t, http.MethodPost, "/v1/trackers", CreateTrackerRequest{World: "no_such_world"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrackers_Mutation(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)
	path := "/v1/trackers/" + id.String() + "/mutations"

	tests := []struct {
		name       string
		mutation   engine.Mutation
		wantStatus int
	}{
		{"collect", engine.Mutation{Op: engine.OpCollect, Location: "links_house", Section: "chest"}, http.StatusOK},
		{"missing fields", engine.Mutation{Op: engine.OpCollect}, http.StatusBadRequest},
		{"unknown op", engine.Mutation{Op: "teleport"}, http.StatusBadRequest},
		{"unknown item", engine.Mutation{Op: engine.OpSetItem, Name: "ocarina", Count: 1}, http.StatusUnprocessableEntity},
		{"nothing left", engine.Mutation{Op: engine.OpCollect, Location: "links_house", Section: "chest"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, path, tt.mutation)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}

	rr := f.do(t, http.MethodGet, "/v1/trackers/"+id.String()+"/locations/links_house", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var loc location.Summary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&loc))
	assert.Equal(t, access.Cleared, loc.Level)
}

func TestTrackers_MutationResponseCarriesChange(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)

	rr := f.do(t, http.MethodPost, "/v1/trackers/"+id.String()+"/mutations",
		engine.Mutation{Op: engine.OpSetItem, Name: "lamp", Count: 1})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp MutationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.RequestID)
	require.NotNil(t, resp.Change)
	assert.Equal(t, []string{"eastern_palace"}, resp.Change.Dungeons)
}

func TestTrackers_AsyncMutation(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)

	rr := f.do(t, http.MethodPost, "/v1/trackers/"+id.String()+"/mutations?async=true",
		engine.Mutation{Op: engine.OpSetItem, Name: "hookshot", Count: 1})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp MutationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Queued)
	require.Len(t, f.queue.requests, 1)
	assert.Equal(t, resp.RequestID, f.queue.requests[0].RequestID)
	assert.Equal(t, queue.SourceAPI, f.queue.requests[0].Source)

	rr = f.do(t, http.MethodPost, "/v1/trackers/"+uuid.NewString()+"/mutations?async=true",
		engine.Mutation{Op: engine.OpReset})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Len(t, f.queue.requests, 1)
}

func TestTrackers_SnapshotRoundTrip(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)
	base := "/v1/trackers/" + id.String()

	f.do(t, http.MethodPost, base+"/mutations", engine.Mutation{Op: engine.OpSetItem, Name: "flippers", Count: 1})
	rr := f.do(t, http.MethodGet, base+"/snapshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap snapshot.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, 1, snap.Items["flippers"])

	f.do(t, http.MethodPost, base+"/mutations", engine.Mutation{Op: engine.OpReset})

	rr = f.do(t, http.MethodPut, base+"/snapshot", snap)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var change engine.Change
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&change))
	assert.True(t, change.Reset)

	bad := snap
	bad.Items = map[string]int{"ocarina": 1}
	rr = f.do(t, http.MethodPut, base+"/snapshot", bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, base+"/snapshot", nil)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, 1, snap.Items["flippers"], "rejected restore leaves state alone")
}

func TestTrackers_Queries(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)
	base := "/v1/trackers/" + id.String()

	rr := f.do(t, http.MethodGet, base+"/dungeons/eastern_palace", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view engine.DungeonView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	assert.Equal(t, "eastern_palace", view.ID)
	assert.NotEmpty(t, view.Doors)

	rr = f.do(t, http.MethodGet, base+"/nodes", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var nodes map[string]access.Level
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&nodes))
	assert.NotEmpty(t, nodes)

	tests := []struct {
		path string
		want int
	}{
		{base + "/dungeons/ganons_tower", http.StatusNotFound},
		{base + "/locations/moon", http.StatusNotFound},
		{"/v1/trackers/not-a-uuid", http.StatusBadRequest},
		{"/v1/trackers/" + uuid.NewString() + "/snapshot", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.path, base), func(t *testing.T) {
			assert.Equal(t, tt.want, f.do(t, http.MethodGet, tt.path, nil).Code)
		})
	}
}

func TestTrackers_BadJSON(t *testing.T) {
	f := newAPI(t)
	id := f.create(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/trackers/"+id.String()+"/mutations", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Error)
}
