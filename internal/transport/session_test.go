package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. Tests script its behavior by assigning
// onWrite, which sees every raw frame the session transmits.
type fakeConn struct {
	mu      sync.Mutex
	writes  [][]byte
	notify  func(data []byte)
	granted int
	onWrite func(raw []byte)
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{granted: 255}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	cp := append([]byte{}, data...)
	c.writes = append(c.writes, cp)
	fn := c.onWrite
	c.mu.Unlock()
	if fn != nil {
		fn(cp)
	}
	return nil
}

func (c *fakeConn) Subscribe(fn func(data []byte)) error {
	c.notify = fn
	return nil
}

func (c *fakeConn) NegotiateMTU(_ context.Context, requested int) (int, error) {
	if requested < c.granted {
		return requested, nil
	}
	return c.granted, nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// respond delivers a logical message to the session as a single frame.
func (c *fakeConn) respond(v Version, data []byte) {
	var seq SeqCounter
	frames, err := Encode(CmdQuery, data, false, v, v.MTUCeiling(), &seq)
	if err != nil {
		panic(err)
	}
	for i := range frames {
		c.notify(frames[i].Marshal())
	}
}

func validState(data []byte) bool {
	if len(data) < 2 || data[0] != 0x81 {
		return false
	}
	var sum byte
	for _, b := range data[:len(data)-1] {
		sum += b
	}
	return sum == data[len(data)-1]
}

// stateMsg builds a minimal checksummed 0x81 message.
func stateMsg(fill byte) []byte {
	data := make([]byte, 13)
	data[0] = 0x81
	for i := 1; i < len(data); i++ {
		data[i] = fill
	}
	var sum byte
	for _, b := range data {
		sum += b
	}
	return append(data, sum)
}

func TestSessionRequestResponse(t *testing.T) {
	conn := newFakeConn()
	want := stateMsg(0x11)
	conn.onWrite = func(raw []byte) {
		conn.respond(VersionLegacy, want)
	}

	s, err := NewSession(context.Background(), conn, VersionLegacy)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	got, err := s.Request(context.Background(), []byte{0x81, 0x8A, 0x8B, 0x96}, validState)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Request() = % X, want % X", got, want)
	}
}

func TestSessionIgnoresStructurallyInvalidFrames(t *testing.T) {
	conn := newFakeConn()
	want := stateMsg(0x22)
	var ambient [][]byte
	var ambientMu sync.Mutex

	conn.onWrite = func(raw []byte) {
		// A corrupt message lands first; the real response follows. The
		// wait window must skip the corrupt one.
		bad := stateMsg(0x33)
		bad[len(bad)-1] ^= 0xFF
		conn.respond(VersionLegacy, bad)
		conn.respond(VersionLegacy, want)
	}

	s, err := NewSession(context.Background(), conn, VersionLegacy,
		WithNotificationHandler(func(data []byte) {
			ambientMu.Lock()
			ambient = append(ambient, data)
			ambientMu.Unlock()
		}))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	got, err := s.Request(context.Background(), []byte{0x81, 0x8A, 0x8B, 0x96}, validState)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Request() = % X, want % X", got, want)
	}

	ambientMu.Lock()
	defer ambientMu.Unlock()
	if len(ambient) != 1 {
		t.Errorf("ambient handler saw %d messages, want 1 (the corrupt frame)", len(ambient))
	}
}

func TestSessionAmbientNotification(t *testing.T) {
	conn := newFakeConn()
	got := make(chan []byte, 1)

	s, err := NewSession(context.Background(), conn, VersionModern,
		WithMTU(200),
		WithNotificationHandler(func(data []byte) { got <- data }))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	// A push with no wait window open, e.g. a physical remote keypress.
	push := stateMsg(0x44)
	conn.respond(VersionModern, push)

	select {
	case data := <-got:
		if string(data) != string(push) {
			t.Errorf("ambient = % X, want % X", data, push)
		}
	case <-time.After(time.Second):
		t.Fatal("ambient notification never delivered")
	}
}

func TestSessionRequestTimeout(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSession(context.Background(), conn, VersionLegacy,
		WithQueryTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	_, err = s.Request(context.Background(), []byte{0x81, 0x8A, 0x8B, 0x96}, validState)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Request() error = %v, want ErrTimeout", err)
	}
}

func TestSessionCloseResolvesOutstandingWait(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSession(context.Background(), conn, VersionLegacy,
		WithQueryTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background(), []byte{0x81, 0x8A, 0x8B, 0x96}, validState)
		errc <- err
	}()

	// Let the request open its wait window, then disconnect.
	time.Sleep(20 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrDisconnected) {
			t.Errorf("Request() error = %v, want ErrDisconnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("outstanding wait never resolved after Close")
	}

	if !conn.closed {
		t.Error("Close() did not disconnect the transport")
	}
}

func TestSessionRequestContextCancel(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSession(context.Background(), conn, VersionLegacy,
		WithQueryTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := s.Request(ctx, []byte{0x81, 0x8A, 0x8B, 0x96}, validState)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Request() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled wait never resolved")
	}
}

func TestSessionSendSegmentsLargePayload(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSession(context.Background(), conn, VersionModern, WithMTU(20))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	if err := s.Send(context.Background(), make([]byte, 100), false); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.writes) != 7 {
		t.Errorf("wrote %d frames, want 7", len(conn.writes))
	}
	for i, w := range conn.writes {
		if len(w) > 20 {
			t.Errorf("frame %d is %d bytes, exceeds mtu 20", i, len(w))
		}
	}
}
