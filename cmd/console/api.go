package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/internal/handlers"
	"github.com/jwebster45206/tracker-engine/internal/tracker"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

// apiClient talks to the tracker API.
type apiClient struct {
	client  *http.Client
	baseURL string
}

func (a *apiClient) testConnection() bool {
	resp, err := a.client.Get(a.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a JSON request and decodes a JSON reply into out. Any status
// other than want is turned into an error carrying the API's message.
func (a *apiClient) do(method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s %s: %s", method, path, errorResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (a *apiClient) listTrackers() ([]uuid.UUID, error) {
	var resp handlers.ListTrackersResponse
	if err := a.do(http.MethodGet, "/v1/trackers", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Trackers, nil
}

func (a *apiClient) createTracker(world string) (uuid.UUID, error) {
	var info tracker.Info
	err := a.do(http.MethodPost, "/v1/trackers", handlers.CreateTrackerRequest{World: world}, http.StatusCreated, &info)
	if err != nil {
		return uuid.Nil, err
	}
	return info.ID, nil
}

func (a *apiClient) getTracker(id uuid.UUID) (*handlers.TrackerResponse, error) {
	var resp handlers.TrackerResponse
	if err := a.do(http.MethodGet, "/v1/trackers/"+id.String(), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) applyMutation(id uuid.UUID, m engine.Mutation) (*handlers.MutationResponse, error) {
	var resp handlers.MutationResponse
	err := a.do(http.MethodPost, "/v1/trackers/"+id.String()+"/mutations", m, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) getSnapshot(id uuid.UUID) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := a.do(http.MethodGet, "/v1/trackers/"+id.String()+"/snapshot", nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *apiClient) putSnapshot(id uuid.UUID, snap *snapshot.Snapshot) error {
	return a.do(http.MethodPut, "/v1/trackers/"+id.String()+"/snapshot", snap, http.StatusOK, nil)
}

// listenToSSE streams tracker events into eventChan until ctx ends or the
// server closes the stream.
func (a *apiClient) listenToSSE(ctx context.Context, id uuid.UUID, eventChan chan<- events.Event) error {
	url := fmt.Sprintf("%s/v1/trackers/%s/events", a.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a timeout; a stream must not.
	stream := *a.client
	stream.Timeout = 0
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}
	return readSSE(ctx, resp.Body, eventChan)
}

// readSSE parses "event:"/"data:" frames. Frames without a tracker event
// payload, such as the connected greeting, are skipped.
func readSSE(ctx context.Context, r io.Reader, eventChan chan<- events.Event) error {
	scanner := bufio.NewScanner(r)
	var data string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				var ev events.Event
				if err := json.Unmarshal([]byte(data), &ev); err == nil && ev.Type != "" {
					select {
					case eventChan <- ev:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			data = ""
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
