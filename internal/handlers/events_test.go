package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

// readEvent reads one SSE frame, skipping keepalive comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsHandler_StreamsTrackerEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.DiscardHandler)
	b := events.NewBroadcaster(client, logger)

	mux := http.NewServeMux()
	NewEventsHandler(b, logger).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/trackers/"+id.String()+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)

	// The subscription is confirmed before "connected" is written.
	require.NoError(t, b.PublishChange(ctx, id, "req-9", engine.Change{Locations: []string{"links_house"}}))

	name, data := readEvent(t, reader)
	assert.Equal(t, string(events.EventTypeTrackerUpdated), name)
	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "req-9", ev.RequestID)
	require.NotNil(t, ev.Change)
	assert.Equal(t, []string{"links_house"}, ev.Change.Locations)

	require.NoError(t, b.Publish(ctx, id, events.Event{Type: events.EventTypeTrackerDeleted}))
	name, _ = readEvent(t, reader)
	assert.Equal(t, string(events.EventTypeTrackerDeleted), name)
}

func TestEventsHandler_BadID(t *testing.T) {
	mux := http.NewServeMux()
	NewEventsHandler(nil, slog.New(slog.DiscardHandler)).Register(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/trackers/xyz/events", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
