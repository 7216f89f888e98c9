package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/internal/config"
)

func TestSetup_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithError(WithTracker(log, "abc"), errors.New("boom")).Info("Snapshot saved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Snapshot saved", line["msg"])
	assert.Equal(t, "abc", line["tracker_id"])
	assert.Equal(t, "boom", line["error"])
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("quiet")
	assert.Empty(t, buf.String())
	WithRequestID(log, "r1").Warn("loud")
	assert.Contains(t, buf.String(), "request_id=r1")
}
