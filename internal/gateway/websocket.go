package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/transport"
)

const (
	// writeWait bounds a single WebSocket write to the gateway.
	writeWait = 10 * time.Second

	// controlWait bounds a control round trip (MTU negotiation).
	controlWait = 10 * time.Second
)

// control is the JSON envelope for non-data messages on the socket. Binary
// messages carry raw device frames; text messages carry control exchanges.
type control struct {
	Op    string `json:"op"`
	Value int    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// WSAdapter dials devices exposed by a gateway daemon. Each device gets its
// own WebSocket at <base>/device/<mac>.
type WSAdapter struct {
	// Base is the gateway endpoint, e.g. "ws://192.168.1.20:8321".
	Base string

	// Dialer is used for the upgrade handshake; nil means the default.
	Dialer *websocket.Dialer
}

var _ transport.Adapter = (*WSAdapter)(nil)

// Connect opens the per-device socket on the gateway.
func (a *WSAdapter) Connect(ctx context.Context, address string) (transport.Conn, error) {
	dialer := a.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	url := fmt.Sprintf("%s/device/%s", a.Base, address)
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("gateway dial %s: %w", url, err)
	}

	c := &wsConn{
		ws:     ws,
		mtuCh:  make(chan control, 1),
		closed: make(chan struct{}),
		log:    logging.GetLogger(),
	}
	go c.readLoop()
	return c, nil
}

// wsConn is one bridged device connection.
type wsConn struct {
	ws  *websocket.Conn
	log *zap.Logger

	writeMu sync.Mutex

	notifyMu sync.Mutex
	notify   func(data []byte)

	mtuCh chan control

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("gateway write: %w", err)
	}
	return nil
}

func (c *wsConn) Subscribe(fn func(data []byte)) error {
	c.notifyMu.Lock()
	c.notify = fn
	c.notifyMu.Unlock()
	return nil
}

func (c *wsConn) NegotiateMTU(ctx context.Context, requested int) (int, error) {
	req, err := json.Marshal(control{Op: "mtu", Value: requested})
	if err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(controlWait)); err != nil {
		c.writeMu.Unlock()
		return 0, err
	}
	err = c.ws.WriteMessage(websocket.TextMessage, req)
	c.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("mtu request: %w", err)
	}

	timer := time.NewTimer(controlWait)
	defer timer.Stop()
	select {
	case reply := <-c.mtuCh:
		if reply.Error != "" {
			return 0, fmt.Errorf("gateway refused mtu: %s", reply.Error)
		}
		return reply.Value, nil
	case <-timer.C:
		return 0, errors.New("mtu negotiation timed out")
	case <-c.closed:
		return 0, transport.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *wsConn) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		err = c.ws.Close()
	})
	return err
}

// readLoop dispatches inbound traffic: binary messages go to the notify
// callback, text messages are control replies.
func (c *wsConn) readLoop() {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Debug("gateway socket closed", zap.Error(err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.notifyMu.Lock()
			fn := c.notify
			c.notifyMu.Unlock()
			if fn != nil {
				fn(data)
			} else {
				logging.LogRawBytes("gateway frame before subscribe", data)
			}

		case websocket.TextMessage:
			var ctl control
			if err := json.Unmarshal(data, &ctl); err != nil {
				c.log.Warn("unparseable gateway control message", zap.Error(err))
				continue
			}
			if ctl.Op == "mtu" {
				select {
				case c.mtuCh <- ctl:
				default:
				}
			}
		}
	}
}
