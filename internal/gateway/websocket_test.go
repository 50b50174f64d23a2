package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeGateway upgrades connections, answers MTU control messages, and
// echoes every binary frame back as a notification.
func fakeGateway(t *testing.T, grantMTU int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/device/") {
			http.NotFound(w, r)
			return
		}
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()

		for {
			msgType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			switch msgType {
			case websocket.TextMessage:
				var ctl control
				if err := json.Unmarshal(data, &ctl); err != nil {
					continue
				}
				if ctl.Op == "mtu" {
					granted := ctl.Value
					if granted > grantMTU {
						granted = grantMTU
					}
					reply, _ := json.Marshal(control{Op: "mtu", Value: granted})
					_ = ws.WriteMessage(websocket.TextMessage, reply)
				}
			case websocket.BinaryMessage:
				_ = ws.WriteMessage(websocket.BinaryMessage, data)
			}
		}
	}))
}

func wsBase(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSAdapterRoundTrip(t *testing.T) {
	srv := fakeGateway(t, 128)
	defer srv.Close()

	adapter := &WSAdapter{Base: wsBase(srv)}
	conn, err := adapter.Connect(context.Background(), "E4:98:BB:95:EE:8E")
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer conn.Disconnect()

	granted, err := conn.NegotiateMTU(context.Background(), 512)
	if err != nil {
		t.Fatalf("NegotiateMTU error: %v", err)
	}
	if granted != 128 {
		t.Errorf("granted mtu = %d, want 128", granted)
	}

	var mu sync.Mutex
	var got [][]byte
	received := make(chan struct{}, 8)
	if err := conn.Subscribe(func(data []byte) {
		mu.Lock()
		got = append(got, append([]byte(nil), data...))
		mu.Unlock()
		received <- struct{}{}
	}); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	frame := []byte{0x0A, 0x00, 0x01, 0x02, 0x71, 0x23, 0x0F, 0xA3}
	if err := conn.Write(context.Background(), frame); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("no echoed notification within 2s")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || string(got[0]) != string(frame) {
		t.Errorf("notification = % X, want % X", got, frame)
	}
}

func TestWSAdapterConnectRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	adapter := &WSAdapter{Base: wsBase(srv)}
	if _, err := adapter.Connect(context.Background(), "00:11:22:33:44:55"); err == nil {
		t.Error("Connect succeeded against a non-gateway endpoint")
	}
}

func TestWSConnDisconnectIdempotent(t *testing.T) {
	srv := fakeGateway(t, 64)
	defer srv.Close()

	adapter := &WSAdapter{Base: wsBase(srv)}
	conn, err := adapter.Connect(context.Background(), "00:11:22:33:44:55")
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if err := conn.Disconnect(); err != nil {
		t.Errorf("first Disconnect error: %v", err)
	}
	if err := conn.Disconnect(); err != nil {
		t.Errorf("second Disconnect error: %v", err)
	}
}
