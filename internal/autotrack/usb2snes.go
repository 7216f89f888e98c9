package autotrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jwebster45206/tracker-engine/pkg/memaddr"
)

var ErrNoDevice = errors.New("usb2snes: no device")

const defaultTimeout = 5 * time.Second

// usb2snesRequest is the JSON command frame of the usb2snes protocol.
type usb2snesRequest struct {
	Opcode   string   `json:"Opcode"`
	Space    string   `json:"Space"`
	Operands []string `json:"Operands,omitempty"`
}

type usb2snesResults struct {
	Results []string `json:"Results"`
}

// USB2SNES is a Reader talking to a usb2snes/QUsb2Snes server over a
// websocket. Calls are serialized; the protocol has no request IDs.
type USB2SNES struct {
	conn    *websocket.Conn
	device  string
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex
}

var _ Reader = (*USB2SNES)(nil)

// DialUSB2SNES connects, attaches to device (the first listed when empty)
// and registers the client name.
func DialUSB2SNES(ctx context.Context, url, device, name string, logger *slog.Logger) (*USB2SNES, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dialer := websocket.Dialer{HandshakeTimeout: defaultTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to usb2snes: %w", err)
	}
	c := &USB2SNES{conn: conn, timeout: defaultTimeout, logger: logger}

	devices, err := c.DeviceList(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if device == "" {
		if len(devices) == 0 {
			_ = conn.Close()
			return nil, ErrNoDevice
		}
		device = devices[0]
	} else if !slices.Contains(devices, device) {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s not in %v", ErrNoDevice, device, devices)
	}

	if err := c.send(ctx, usb2snesRequest{Opcode: "Attach", Space: "SNES", Operands: []string{device}}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := c.send(ctx, usb2snesRequest{Opcode: "Name", Space: "SNES", Operands: []string{name}}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.device = device
	logger.Info("Attached to usb2snes device", "device", device, "url", url)
	return c, nil
}

func (c *USB2SNES) Device() string { return c.device }

func (c *USB2SNES) Close() error { return c.conn.Close() }

func (c *USB2SNES) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func (c *USB2SNES) send(ctx context.Context, req usb2snesRequest) error {
	if err := c.conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("usb2snes %s: %w", req.Opcode, err)
	}
	return nil
}

// DeviceList asks the server which devices it can see.
func (c *USB2SNES) DeviceList(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(ctx, usb2snesRequest{Opcode: "DeviceList", Space: "SNES"}); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return nil, err
	}
	var res usb2snesResults
	if err := c.conn.ReadJSON(&res); err != nil {
		return nil, fmt.Errorf("usb2snes DeviceList: %w", err)
	}
	return res.Results, nil
}

// Read fetches size bytes at a SNES bus address. The reply may arrive as
// several binary frames.
func (c *USB2SNES) Read(ctx context.Context, addr uint32, size int) ([]byte, error) {
	fx, err := memaddr.ToFXPak(addr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	req := usb2snesRequest{
		Opcode:   "GetAddress",
		Space:    "SNES",
		Operands: []string{fmt.Sprintf("%X", fx), fmt.Sprintf("%X", size)},
	}
	if err := c.send(ctx, req); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return nil, err
	}

	out := make([]byte, 0, size)
	for len(out) < size {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("usb2snes GetAddress: %w", err)
		}
		if kind != websocket.BinaryMessage {
			return nil, fmt.Errorf("usb2snes GetAddress: unexpected message type %d", kind)
		}
		out = append(out, data...)
	}
	c.logger.Debug("usb2snes read", "addr", fmt.Sprintf("$%06X", addr), "fxpak", fmt.Sprintf("$%06X", fx), "size", size)
	return out[:size], nil
}
