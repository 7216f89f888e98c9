package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/internal/handlers"
	"github.com/jwebster45206/tracker-engine/internal/tracker"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

const (
	// PollInterval is how often to check a tracker for updates
	PollInterval = 250 * time.Millisecond
	// MutationTimeout is max time to wait for a queued mutation to land
	MutationTimeout = 30 * time.Second
)

// doJSON sends in as JSON and decodes the reply into out when the status
// matches want.
func doJSON(ctx context.Context, client *http.Client, method, url string, in any, want int, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%s %s returned %d (expected %d): %s", method, url, resp.StatusCode, want, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// CreateTracker creates a tracker for world and returns its info.
func CreateTracker(ctx context.Context, client *http.Client, baseURL, world string) (*tracker.Info, error) {
	var info tracker.Info
	_, err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/trackers", handlers.CreateTrackerRequest{World: world}, http.StatusCreated, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetTracker retrieves the current tracker view
func GetTracker(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (*handlers.TrackerResponse, error) {
	var tr handlers.TrackerResponse
	if _, err := doJSON(ctx, client, http.MethodGet, baseURL+"/v1/trackers/"+id.String(), nil, http.StatusOK, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// PutSnapshot restores a tracker from a snapshot.
func PutSnapshot(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, snap *snapshot.Snapshot) error {
	_, err := doJSON(ctx, client, http.MethodPut, baseURL+"/v1/trackers/"+id.String()+"/snapshot", snap, http.StatusOK, nil)
	return err
}

// PostMutation applies a mutation. With async set the API queues it and
// answers 202.
func PostMutation(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, m engine.Mutation, async bool, want int) (*handlers.MutationResponse, error) {
	url := baseURL + "/v1/trackers/" + id.String() + "/mutations"
	if async {
		url += "?async=true"
	}
	var resp handlers.MutationResponse
	out := &resp
	if want >= http.StatusBadRequest {
		out = nil
	}
	if _, err := doJSON(ctx, client, http.MethodPost, url, m, want, out); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PollForUpdate polls the tracker until its UpdatedAt moves past since.
// Returns the updated tracker
func PollForUpdate(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, since time.Time) (*handlers.TrackerResponse, error) {
	timeout := time.After(MutationTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for queued mutation (waited %v)", MutationTimeout)
		case <-ticker.C:
			tr, err := GetTracker(ctx, client, baseURL, id)
			if err != nil {
				// Keep polling; the API may be busy
				continue
			}
			if tr.UpdatedAt.After(since) {
				return tr, nil
			}
		}
	}
}
