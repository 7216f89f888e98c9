package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/internal/storage"
)

type fakeQueue struct {
	depth int
	err   error
}

func (f fakeQueue) RequestQueueDepth(context.Context) (int, error) { return f.depth, f.err }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name           string
		pingErr        error
		queue          QueueDepther
		expectedStatus int
		expectedHealth string
		expectedStore  string
	}{
		{
			name:           "all healthy",
			queue:          fakeQueue{depth: 3},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
		},
		{
			name:           "no queue configured",
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
		},
		{
			name:           "unhealthy storage",
			pingErr:        errors.New("connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "unhealthy",
		},
		{
			name:           "unhealthy queue",
			queue:          fakeQueue{err: errors.New("timeout")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMockStorage()
			store.SetPingError(tt.pingErr)
			handler := NewHealthHandler(store, tt.queue, logger)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
			assert.Equal(t, tt.expectedHealth, response.Status)
			assert.Equal(t, "tracker-engine", response.Service)
			assert.Equal(t, tt.expectedStore, response.Components["storage"])
			assert.WithinDuration(t, time.Now(), response.Timestamp, time.Second)

			if tt.queue != nil {
				q, ok := response.Components["queue"].(map[string]any)
				require.True(t, ok)
				assert.NotEmpty(t, q["status"])
			} else {
				assert.NotContains(t, response.Components, "queue")
			}
		})
	}
}
