package autotrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/pkg/catalog"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

// fakeReader serves an inventory block and records what was asked.
type fakeReader struct {
	block []byte
	err   error
	addrs []uint32
}

func (f *fakeReader) Read(_ context.Context, addr uint32, size int) ([]byte, error) {
	f.addrs = append(f.addrs, addr)
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte(nil), f.block[:size]...), nil
}

type recordingSink struct {
	got  []engine.Mutation
	fail error
}

func (s *recordingSink) Submit(_ context.Context, m engine.Mutation) error {
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, m)
	return nil
}

func emptyBlock() []byte {
	b := make([]byte, InventorySize)
	b[0x19] = 0xFF // no sword
	return b
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		value  byte
		want   map[string]int
	}{
		{"bow only", 0x00, 1, map[string]int{"bow": 1}},
		{"silver bow", 0x00, 4, map[string]int{"bow": 2}},
		{"red boomerang", 0x01, 2, map[string]int{"boomerang": 2}},
		{"shovel", 0x0C, 1, map[string]int{"shovel": 1, "flute": 0}},
		{"activated flute", 0x0C, 3, map[string]int{"shovel": 0, "flute": 1}},
		{"mirror scroll is not a mirror", 0x13, 1, map[string]int{"mirror": 0}},
		{"mirror", 0x13, 2, map[string]int{"mirror": 1}},
		{"titans mitt", 0x14, 2, map[string]int{"gloves": 2}},
		{"fighter sword", 0x19, 1, map[string]int{"sword": 1}},
		{"bombs count", 0x03, 10, map[string]int{"bombs": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := emptyBlock()
			block[tt.offset] = tt.value
			got, err := Decode(ALttPItems, block, nil)
			require.NoError(t, err)
			for item, want := range tt.want {
				assert.Equal(t, want, got[item], item)
			}
		})
	}
}

func TestDecode_ClampsAndShortBlock(t *testing.T) {
	block := emptyBlock()
	block[0x19] = 4
	got, err := Decode(ALttPItems, block, map[string]int{"sword": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, got["sword"])

	_, err = Decode(ALttPItems, block[:4], nil)
	assert.Error(t, err)
}

func TestForWorld(t *testing.T) {
	w, err := catalog.Default()
	require.NoError(t, err)

	extra := append([]ItemRule{{"ocarina", 0x0C, flag}}, ALttPItems...)
	rules, limits := ForWorld(extra, w)
	assert.Len(t, rules, len(ALttPItems))
	assert.Equal(t, 4, limits["sword"])
}

func TestPoller_DiffsReads(t *testing.T) {
	reader := &fakeReader{block: emptyBlock()}
	sink := &recordingSink{}
	p := NewPoller(reader, sink, ALttPItems, nil, time.Second, nil)
	ctx := context.Background()

	n, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ALttPItems), n, "first poll sends everything")
	assert.Equal(t, []uint32{InventoryBase}, reader.addrs)

	sink.got = nil
	n, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	reader.block[0x0A] = 1 // lamp
	reader.block[0x19] = 2 // master sword
	n, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []engine.Mutation{
		{Op: engine.OpSetItem, Name: "lamp", Count: 1},
		{Op: engine.OpSetItem, Name: "sword", Count: 2},
	}, sink.got)

	p.Forget()
	n, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ALttPItems), n)
}

func TestPoller_Errors(t *testing.T) {
	reader := &fakeReader{block: emptyBlock(), err: errors.New("device gone")}
	sink := &recordingSink{}
	p := NewPoller(reader, sink, ALttPItems, nil, time.Second, nil)
	ctx := context.Background()

	_, err := p.Poll(ctx)
	assert.Error(t, err)

	reader.err = nil
	sink.fail = errors.New("queue down")
	_, err = p.Poll(ctx)
	assert.Error(t, err)

	sink.fail = nil
	n, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ALttPItems), n, "failed submits are retried")
}

func TestSessionSink(t *testing.T) {
	w, err := catalog.Default()
	require.NoError(t, err)
	rules, limits := ForWorld(ALttPItems, w)
	e, err := engine.New(w, nil)
	require.NoError(t, err)
	session := engine.NewSession(e)

	reader := &fakeReader{block: emptyBlock()}
	reader.block[0x16] = 1 // flippers
	p := NewPoller(reader, SessionSink{Session: session}, rules, limits, time.Second, nil)

	_, err = p.Poll(context.Background())
	require.NoError(t, err)
	session.View(func(e *engine.Engine) {
		assert.Equal(t, 1, e.ItemCount("flippers"))
	})
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	reader := &fakeReader{block: emptyBlock()}
	p := NewPoller(reader, &recordingSink{}, ALttPItems, nil, 5*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, len(reader.addrs), 2)
}

func TestPoller_RunGivesUp(t *testing.T) {
	reader := &fakeReader{block: emptyBlock(), err: errors.New("socket closed")}
	p := NewPoller(reader, &recordingSink{}, ALttPItems, nil, time.Millisecond, nil)
	p.MaxFailures = 3

	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "socket closed")
	assert.Len(t, reader.addrs, 3)
}
