package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/transport"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the radio link to answer an MTU request.
	mtuWait = 5 * time.Second
)

// Gateway bridges run on a trusted LAN; the Origin header carries no
// meaningful information for non-browser clients.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// control is a text-message control request or response. It mirrors the
// client side in internal/gateway.
type control struct {
	Op    string `json:"op"`
	Value int    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// deviceLink relays frames between one websocket client and one device
// reached over the radio backend.
type deviceLink struct {
	id     string
	device string
	ws     *websocket.Conn
	conn   transport.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// newDeviceLink connects to the device first, then upgrades the request, so
// an unreachable device is reported as a plain HTTP error rather than an
// immediately closed socket.
func newDeviceLink(ctx context.Context, backend transport.Adapter, device string, w http.ResponseWriter, r *http.Request) (*deviceLink, error) {
	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	conn, err := backend.Connect(connCtx, device)
	if err != nil {
		http.Error(w, fmt.Sprintf("device %s unreachable", device), http.StatusBadGateway)
		return nil, err
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = conn.Disconnect()
		return nil, err
	}

	l := &deviceLink{
		id:     r.RemoteAddr + "/" + device,
		device: device,
		ws:     ws,
		conn:   conn,
	}
	conn.Subscribe(l.onNotify)
	return l, nil
}

// run pumps client messages toward the device until the socket closes.
func (l *deviceLink) run() {
	defer l.close()

	for {
		msgType, data, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Client connection lost",
					zap.String("device", l.device),
					zap.Error(err),
				)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			logging.LogFrame("client->device", data)
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := l.conn.Write(ctx, data)
			cancel()
			if err != nil {
				logging.Error("Radio write failed",
					zap.String("device", l.device),
					zap.Error(err),
				)
				return
			}
		case websocket.TextMessage:
			l.handleControl(data)
		}
	}
}

func (l *deviceLink) handleControl(data []byte) {
	var req control
	if err := json.Unmarshal(data, &req); err != nil {
		logging.Warn("Bad control message",
			zap.String("device", l.device),
			zap.Error(err),
		)
		return
	}

	switch req.Op {
	case "mtu":
		resp := control{Op: "mtu"}
		ctx, cancel := context.WithTimeout(context.Background(), mtuWait)
		granted, err := l.conn.NegotiateMTU(ctx, req.Value)
		cancel()
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Value = granted
		}
		l.writeJSON(resp)
	default:
		l.writeJSON(control{Op: req.Op, Error: "unknown operation"})
	}
}

// onNotify forwards device notifications to the client.
func (l *deviceLink) onNotify(data []byte) {
	logging.LogFrame("device->client", data)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := l.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		logging.Warn("Client write failed",
			zap.String("device", l.device),
			zap.Error(err),
		)
	}
}

func (l *deviceLink) writeJSON(msg control) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = l.ws.WriteMessage(websocket.TextMessage, data)
}

func (l *deviceLink) close() {
	l.closeOnce.Do(func() {
		_ = l.conn.Disconnect()

		l.writeMu.Lock()
		_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = l.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.writeMu.Unlock()
		_ = l.ws.Close()
	})
}
