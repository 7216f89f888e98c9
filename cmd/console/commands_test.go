package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    engine.Mutation
		wantErr error
	}{
		{"item hookshot 1", engine.Mutation{Op: engine.OpSetItem, Name: "hookshot", Count: 1}, nil},
		{"+ sword", engine.Mutation{Op: engine.OpCycleItem, Name: "sword", Delta: 1}, nil},
		{"- sword", engine.Mutation{Op: engine.OpCycleItem, Name: "sword", Delta: -1}, nil},
		{"collect links_house chest", engine.Mutation{Op: engine.OpCollect, Location: "links_house", Section: "chest"}, nil},
		{"UNCOLLECT links_house chest", engine.Mutation{Op: engine.OpUncollect, Location: "links_house", Section: "chest"}, nil},
		{"mark kakariko_well cave needs bombs", engine.Mutation{Op: engine.OpSetMarking, Location: "kakariko_well", Section: "cave", Value: "needs bombs"}, nil},
		{"mark kakariko_well cave", engine.Mutation{Op: engine.OpSetMarking, Location: "kakariko_well", Section: "cave"}, nil},
		{"prize eastern_palace prize pendant", engine.Mutation{Op: engine.OpSetPrize, Location: "eastern_palace", Section: "prize", Value: "pendant"}, nil},
		{"setting mode open", engine.Mutation{Op: engine.OpSetSetting, Name: "mode", Value: "open"}, nil},
		{"break fake_flipper on", engine.Mutation{Op: engine.OpSetSequenceBreak, Name: "fake_flipper", Enabled: true}, nil},
		{"door eastern_palace big_door open", engine.Mutation{Op: engine.OpSetDoor, Dungeon: "eastern_palace", Door: "big_door", Enabled: true}, nil},
		{"door eastern_palace big_door closed", engine.Mutation{Op: engine.OpSetDoor, Dungeon: "eastern_palace", Door: "big_door"}, nil},
		{"door eastern_palace big_door clear", engine.Mutation{Op: engine.OpClearDoor, Dungeon: "eastern_palace", Door: "big_door"}, nil},
		{"reset", engine.Mutation{Op: engine.OpReset}, nil},

		{"", engine.Mutation{}, errUsage},
		{"item hookshot", engine.Mutation{}, errUsage},
		{"item hookshot lots", engine.Mutation{}, errUsage},
		{"break fake_flipper maybe", engine.Mutation{}, errUsage},
		{"teleport", engine.Mutation{}, errUsage},
		{"item hookshot -1", engine.Mutation{}, engine.ErrInvalidMutation},
		{"prize eastern_palace prize triforce", engine.Mutation{}, engine.ErrInvalidMutation},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		"event: connected",
		`data: {"tracker_id":"abc","message":"Connected to event stream"}`,
		"",
		": keepalive",
		"",
		"event: tracker.updated",
		`data: {"type":"tracker.updated","tracker_id":"abc","change":{"inputs":["hookshot"]}}`,
		"",
		"event: tracker.deleted",
		`data: {"type":"tracker.deleted","tracker_id":"abc"}`,
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	require.NoError(t, readSSE(context.Background(), strings.NewReader(stream), ch))
	close(ch)

	var got []events.EventType
	for ev := range ch {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []events.EventType{events.EventTypeTrackerUpdated, events.EventTypeTrackerDeleted}, got)
}
