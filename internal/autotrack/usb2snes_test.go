package autotrack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/pkg/memaddr"
)

// fakeUSB2SNES speaks enough of the protocol for the client. Memory is
// keyed by FXPak address; replies are split into 4-byte frames.
type fakeUSB2SNES struct {
	devices []string
	memory  map[uint32]byte

	mu       sync.Mutex
	attached string
	name     string
}

func (f *fakeUSB2SNES) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var req usb2snesRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Opcode {
			case "DeviceList":
				_ = conn.WriteJSON(usb2snesResults{Results: f.devices})
			case "Attach":
				f.mu.Lock()
				f.attached = req.Operands[0]
				f.mu.Unlock()
			case "Name":
				f.mu.Lock()
				f.name = req.Operands[0]
				f.mu.Unlock()
			case "GetAddress":
				addr, _ := strconv.ParseUint(req.Operands[0], 16, 32)
				size, _ := strconv.ParseUint(req.Operands[1], 16, 32)
				data := make([]byte, size)
				for i := range data {
					data[i] = f.memory[uint32(addr)+uint32(i)]
				}
				for len(data) > 0 {
					n := min(4, len(data))
					_ = conn.WriteMessage(websocket.BinaryMessage, data[:n])
					data = data[n:]
				}
			}
		}
	})
}

func dialFake(t *testing.T, f *fakeUSB2SNES, device string) (*USB2SNES, error) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return DialUSB2SNES(ctx, url, device, "tracker-engine", nil)
}

func TestUSB2SNES_ReadInventory(t *testing.T) {
	fx, err := memaddr.ToFXPak(InventoryBase)
	require.NoError(t, err)
	f := &fakeUSB2SNES{
		devices: []string{"SD2SNES COM3", "EMUNW"},
		memory: map[uint32]byte{
			fx + 0x0A: 1,    // lamp
			fx + 0x19: 0xFF, // no sword
			fx + 0x1B: 2,    // red mail
		},
	}

	c, err := dialFake(t, f, "")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "SD2SNES COM3", c.Device())

	block, err := c.Read(context.Background(), InventoryBase, InventorySize)
	require.NoError(t, err)
	require.Len(t, block, InventorySize)

	counts, err := Decode(ALttPItems, block, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["lamp"])
	assert.Equal(t, 0, counts["sword"])
	assert.Equal(t, 2, counts["armor"])

	f.mu.Lock()
	assert.Equal(t, "SD2SNES COM3", f.attached)
	assert.Equal(t, "tracker-engine", f.name)
	f.mu.Unlock()
}

func TestUSB2SNES_DeviceSelection(t *testing.T) {
	tests := []struct {
		name    string
		devices []string
		device  string
		wantErr bool
	}{
		{"named device", []string{"A", "B"}, "B", false},
		{"missing device", []string{"A"}, "B", true},
		{"no devices", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := dialFake(t, &fakeUSB2SNES{devices: tt.devices}, tt.device)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoDevice)
				return
			}
			require.NoError(t, err)
			defer c.Close()
			assert.Equal(t, tt.device, c.Device())
		})
	}
}

func TestUSB2SNES_UnmappedAddress(t *testing.T) {
	c, err := dialFake(t, &fakeUSB2SNES{devices: []string{"A"}}, "")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Read(context.Background(), 0x400000, 4)
	assert.ErrorIs(t, err, memaddr.ErrUnmapped)
}
