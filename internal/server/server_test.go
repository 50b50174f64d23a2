package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/ledble/internal/gateway"
	"github.com/muurk/ledble/internal/transport"
)

// fakeRadio stands in for the BLE co-processor link.
type fakeRadio struct {
	mu       sync.Mutex
	writes   [][]byte
	notify   func([]byte)
	mtuGrant int
}

func (r *fakeRadio) Write(ctx context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, append([]byte(nil), data...))
	return nil
}

func (r *fakeRadio) Subscribe(fn func(data []byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = fn
	return nil
}

func (r *fakeRadio) NegotiateMTU(ctx context.Context, requested int) (int, error) {
	if requested > r.mtuGrant {
		return r.mtuGrant, nil
	}
	return requested, nil
}

func (r *fakeRadio) Disconnect() error { return nil }

func (r *fakeRadio) push(data []byte) {
	r.mu.Lock()
	fn := r.notify
	r.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (r *fakeRadio) written() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.writes))
	copy(out, r.writes)
	return out
}

type fakeBackend struct {
	radio      *fakeRadio
	connectErr error
	lastDevice string
}

func (b *fakeBackend) Connect(ctx context.Context, address string) (transport.Conn, error) {
	b.lastDevice = address
	if b.connectErr != nil {
		return nil, b.connectErr
	}
	return b.radio, nil
}

func newTestServer(t *testing.T, backend *fakeBackend) (*Server, string) {
	t.Helper()
	s := &Server{
		config:  &Config{},
		backend: backend,
		links:   make(map[string]*deviceLink),
	}
	srv := httptest.NewServer(http.HandlerFunc(s.handleDevice))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDeviceLinkRelay(t *testing.T) {
	radio := &fakeRadio{mtuGrant: 128}
	backend := &fakeBackend{radio: radio}
	_, base := newTestServer(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adapter := &gateway.WSAdapter{Base: base}
	conn, err := adapter.Connect(ctx, "E4:98:BB:95:EE:8E")
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer conn.Disconnect()

	if backend.lastDevice != "E4:98:BB:95:EE:8E" {
		t.Errorf("backend connected to %q, want the requested device", backend.lastDevice)
	}

	granted, err := conn.NegotiateMTU(ctx, 512)
	if err != nil {
		t.Fatalf("NegotiateMTU() error: %v", err)
	}
	if granted != 128 {
		t.Errorf("NegotiateMTU() = %d, want 128", granted)
	}

	received := make(chan []byte, 1)
	conn.Subscribe(func(data []byte) {
		select {
		case received <- data:
		default:
		}
	})

	frame := []byte{0x40, 0x01, 0xFF, 0x00, 0x00, 0x09, 0x00, 0x0A, 0x31}
	if err := conn.Write(ctx, frame); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(radio.written()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("frame never reached the radio")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := radio.written()[0]; !bytes.Equal(got, frame) {
		t.Errorf("radio received % X, want % X", got, frame)
	}

	push := []byte{0x40, 0x02, 0xFF, 0x00, 0x00, 0x03, 0x00, 0x0B, 0x81}
	radio.push(push)
	select {
	case got := <-received:
		if !bytes.Equal(got, push) {
			t.Errorf("client received % X, want % X", got, push)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached the client")
	}
}

func TestHandleDeviceBadAddress(t *testing.T) {
	_, base := newTestServer(t, &fakeBackend{radio: &fakeRadio{}})

	url := strings.Replace(base, "ws", "http", 1) + "/device/not-a-mac"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleDeviceUnreachable(t *testing.T) {
	backend := &fakeBackend{connectErr: errors.New("no response from device")}
	_, base := newTestServer(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adapter := &gateway.WSAdapter{Base: base}
	if _, err := adapter.Connect(ctx, "E4:98:BB:95:EE:8E"); err == nil {
		t.Fatal("Connect() should fail when the device is unreachable")
	}
}
