package device

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
	"github.com/muurk/ledble/internal/probe"
	"github.com/muurk/ledble/internal/transport"
)

// simConn emulates a connected controller: it decodes inbound frames,
// applies commands to a little state model, and answers state queries.
type simConn struct {
	notify func(data []byte)
	reasm  transport.Reassembler
	seq    transport.SeqCounter

	version transport.Version
	mtu     int

	// device model
	r, g, b, ww, cw byte
	power           bool
	modeType        byte
	effectID        byte
	effectSpeed     byte
	effectBri       byte

	// first channel group only, to emulate an RGB-only board
	rgbOnly bool

	payloads [][]byte // every complete command payload received
}

func newSimConn() *simConn {
	return &simConn{
		version:  transport.VersionModern,
		mtu:      64,
		power:    true,
		modeType: 0x61,
	}
}

func (c *simConn) Write(_ context.Context, data []byte) error {
	f, err := transport.Unmarshal(data)
	if err != nil {
		return err
	}
	res, err := c.reasm.Add(f)
	if err != nil {
		return err
	}
	if res.Complete {
		c.handle(res.Data)
	}
	return nil
}

func (c *simConn) Subscribe(fn func(data []byte)) error {
	c.notify = fn
	return nil
}

func (c *simConn) NegotiateMTU(_ context.Context, requested int) (int, error) {
	return c.mtu, nil
}

func (c *simConn) Disconnect() error { return nil }

func (c *simConn) handle(payload []byte) {
	c.payloads = append(c.payloads, append([]byte(nil), payload...))
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case 0x31:
		mask := payload[6]
		if mask&0xF0 != 0 {
			c.r, c.g, c.b = payload[1], payload[2], payload[3]
		}
		if mask&0x0F != 0 && !c.rgbOnly {
			c.ww, c.cw = payload[4], payload[5]
		}
		c.modeType = 0x61
	case 0x38:
		c.effectID, c.effectSpeed, c.effectBri = payload[1], payload[2], payload[3]
		c.modeType = 0x25
	case 0x71:
		c.power = payload[1] == 0x23
	case 0x81:
		c.respondState()
	}
}

func (c *simConn) respondState() {
	power := byte(0x24)
	if c.power {
		power = 0x23
	}
	resp := []byte{
		0x81, 0x33, power, c.modeType,
		c.effectID, c.effectSpeed,
		c.r, c.g, c.b,
		c.ww, c.effectBri, c.cw,
		0x05,
	}
	sum := byte(0)
	for _, b := range resp {
		sum += b
	}
	resp = append(resp, sum)

	frames, err := transport.Encode(0x0B, resp, false, c.version, c.mtu, &c.seq)
	if err != nil {
		panic(fmt.Sprintf("sim encode: %v", err))
	}
	for i := range frames {
		c.notify(frames[i].Marshal())
	}
}

// lastPayload returns the most recent command the sim received.
func (c *simConn) lastPayload() []byte {
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

type memStore struct {
	entries map[advertise.MAC]*capability.Capabilities
	saves   int
}

func newMemStore() *memStore {
	return &memStore{entries: map[advertise.MAC]*capability.Capabilities{}}
}

func (s *memStore) Load(_ context.Context, mac advertise.MAC) (*capability.Capabilities, error) {
	caps, ok := s.entries[mac]
	if !ok {
		return nil, fmt.Errorf("%w: %s", capability.ErrNotCached, mac)
	}
	cp := *caps
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, mac advertise.MAC, caps *capability.Capabilities) error {
	cp := *caps
	s.entries[mac] = &cp
	s.saves++
	return nil
}

func newTestController(t *testing.T, conn *simConn, productID uint16, opts ...Option) *Controller {
	t.Helper()
	db, err := capability.Load()
	if err != nil {
		t.Fatalf("capability.Load error: %v", err)
	}
	session, err := transport.NewSession(context.Background(), conn, conn.version,
		transport.WithMTU(conn.mtu))
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	identity := &advertise.DeviceIdentity{
		MAC:       advertise.MAC{0xE4, 0x98, 0xBB, 0x95, 0xEE, 0x8E},
		ProductID: productID,
	}
	return NewController(session, db, identity, opts...)
}

func TestSetPower(t *testing.T) {
	conn := newSimConn()
	ctrl := newTestController(t, conn, 0x0035)
	ctx := context.Background()

	if err := ctrl.SetPower(ctx, false); err != nil {
		t.Fatalf("SetPower error: %v", err)
	}
	if conn.power {
		t.Error("device still on after SetPower(false)")
	}
	want := []byte{0x71, 0x24, 0x0F, 0xA4}
	got := conn.lastPayload()
	if len(got) != len(want) {
		t.Fatalf("payload = % X, want % X", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payload = % X, want % X", got, want)
		}
	}

	if err := ctrl.SetPower(ctx, true); err != nil {
		t.Fatalf("SetPower error: %v", err)
	}
	if !conn.power {
		t.Error("device still off after SetPower(true)")
	}
}

func TestSetRGBWWMaskSelection(t *testing.T) {
	tests := []struct {
		name            string
		r, g, b, ww, cw byte
		wantMask        byte
	}{
		{"colors only", 0xFF, 0x00, 0x10, 0, 0, 0xF0},
		{"whites only", 0, 0, 0, 0x80, 0x20, 0x0F},
		{"both groups", 0x10, 0, 0, 0x80, 0, 0xFF},
		{"all zero", 0, 0, 0, 0, 0, 0xFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newSimConn()
			ctrl := newTestController(t, conn, 0x0035)

			if err := ctrl.SetRGBWW(context.Background(), tt.r, tt.g, tt.b, tt.ww, tt.cw, false); err != nil {
				t.Fatalf("SetRGBWW error: %v", err)
			}
			payload := conn.lastPayload()
			if payload[6] != tt.wantMask {
				t.Errorf("mask = 0x%02X, want 0x%02X", payload[6], tt.wantMask)
			}
			if payload[7] != 0x0F {
				t.Errorf("persist = 0x%02X, want 0x0F", payload[7])
			}
		})
	}
}

func TestSetRGBWWPersist(t *testing.T) {
	conn := newSimConn()
	ctrl := newTestController(t, conn, 0x0035)

	if err := ctrl.SetRGBWW(context.Background(), 0xFF, 0, 0, 0, 0, true); err != nil {
		t.Fatalf("SetRGBWW error: %v", err)
	}
	if p := conn.lastPayload(); p[7] != 0xF0 {
		t.Errorf("persist = 0x%02X, want 0xF0", p[7])
	}
}

func TestQueryState(t *testing.T) {
	conn := newSimConn()
	conn.r, conn.g, conn.b = 100, 50, 16
	ctrl := newTestController(t, conn, 0x0035)

	st, err := ctrl.QueryState(context.Background())
	if err != nil {
		t.Fatalf("QueryState error: %v", err)
	}
	if !st.PowerOn || !st.IsStatic {
		t.Errorf("state = %+v, want powered-on static", st)
	}
	if st.Red != 100 || st.Green != 50 || st.Blue != 16 {
		t.Errorf("rgb = %d/%d/%d, want 100/50/16", st.Red, st.Green, st.Blue)
	}
	if st.Brightness != 100 {
		t.Errorf("brightness = %d, want 100", st.Brightness)
	}
	if !st.Valid {
		t.Error("state not marked valid despite checksummed response")
	}
}

func TestSetBrightnessStatic(t *testing.T) {
	conn := newSimConn()
	conn.r, conn.g, conn.b = 100, 50, 16
	ctrl := newTestController(t, conn, 0x0035)

	if err := ctrl.SetBrightness(context.Background(), 200); err != nil {
		t.Fatalf("SetBrightness error: %v", err)
	}
	if conn.r != 200 || conn.g != 100 || conn.b != 32 {
		t.Errorf("rgb = %d/%d/%d, want 200/100/32", conn.r, conn.g, conn.b)
	}
}

func TestSetBrightnessWhites(t *testing.T) {
	conn := newSimConn()
	conn.ww, conn.cw = 200, 100
	ctrl := newTestController(t, conn, 0x0035)

	if err := ctrl.SetBrightness(context.Background(), 100); err != nil {
		t.Fatalf("SetBrightness error: %v", err)
	}
	if conn.ww != 100 || conn.cw != 50 {
		t.Errorf("whites = %d/%d, want 100/50", conn.ww, conn.cw)
	}
	if conn.r != 0 || conn.g != 0 || conn.b != 0 {
		t.Errorf("rgb disturbed: %d/%d/%d", conn.r, conn.g, conn.b)
	}
}

func TestSetBrightnessDuringEffect(t *testing.T) {
	conn := newSimConn()
	conn.modeType = 0x25
	conn.effectID, conn.effectSpeed, conn.effectBri = 0x25, 0x08, 50
	ctrl := newTestController(t, conn, 0x0035)

	if err := ctrl.SetBrightness(context.Background(), 255); err != nil {
		t.Fatalf("SetBrightness error: %v", err)
	}
	if conn.effectBri != 100 {
		t.Errorf("effect brightness = %d, want 100", conn.effectBri)
	}
	if conn.effectID != 0x25 || conn.effectSpeed != 0x08 {
		t.Errorf("effect id/speed disturbed: 0x%02X/0x%02X", conn.effectID, conn.effectSpeed)
	}
}

func TestSetEffect(t *testing.T) {
	conn := newSimConn()
	ctrl := newTestController(t, conn, 0x0035)

	if err := ctrl.SetEffect(context.Background(), 0x26, 0x10, 75); err != nil {
		t.Fatalf("SetEffect error: %v", err)
	}
	if conn.effectID != 0x26 || conn.effectSpeed != 0x10 || conn.effectBri != 75 {
		t.Errorf("effect = 0x%02X/0x%02X/%d, want 0x26/0x10/75",
			conn.effectID, conn.effectSpeed, conn.effectBri)
	}
}

func TestSetEffectLegacyOpcode(t *testing.T) {
	conn := newSimConn()
	ctrl := newTestController(t, conn, 0x0004)

	if err := ctrl.SetEffect(context.Background(), 0x26, 0x10, 75); err != nil {
		t.Fatalf("SetEffect error: %v", err)
	}
	p := conn.lastPayload()
	if p[0] != 0x61 {
		t.Errorf("opcode = 0x%02X, want legacy 0x61", p[0])
	}
}

func TestResolveCapabilitiesDeclared(t *testing.T) {
	conn := newSimConn()
	store := newMemStore()
	ctrl := newTestController(t, conn, 0x0035, WithStore(store))

	caps, err := ctrl.ResolveCapabilities(context.Background(), false)
	if err != nil {
		t.Fatalf("ResolveCapabilities error: %v", err)
	}
	if !caps.HasRGB || !caps.HasWarmWhite || !caps.HasCoolWhite {
		t.Errorf("caps = %+v, want full declared set", caps)
	}
	if caps.Provenance != capability.ProvenanceDeclared {
		t.Errorf("provenance = %q, want declared", caps.Provenance)
	}
	if len(conn.payloads) != 0 {
		t.Errorf("declared resolution sent %d commands, want 0", len(conn.payloads))
	}
	if store.saves != 1 {
		t.Errorf("store saves = %d, want 1", store.saves)
	}
}

func TestResolveCapabilitiesProbesUndeclared(t *testing.T) {
	conn := newSimConn()
	conn.rgbOnly = true
	store := newMemStore()
	ctrl := newTestController(t, conn, 0x0004,
		WithStore(store),
		WithProbeOptions(probe.WithClock(instantClock{})))

	caps, err := ctrl.ResolveCapabilities(context.Background(), false)
	if err != nil {
		t.Fatalf("ResolveCapabilities error: %v", err)
	}
	if !caps.HasRGB || caps.HasWarmWhite || caps.HasCoolWhite {
		t.Errorf("caps = %+v, want rgb only", caps)
	}
	if caps.Provenance != capability.ProvenanceProbed {
		t.Errorf("provenance = %q, want probed", caps.Provenance)
	}
	if store.saves != 1 {
		t.Errorf("store saves = %d, want 1", store.saves)
	}
}

func TestResolveCapabilitiesUsesStore(t *testing.T) {
	conn := newSimConn()
	store := newMemStore()
	mac := advertise.MAC{0xE4, 0x98, 0xBB, 0x95, 0xEE, 0x8E}
	store.entries[mac] = &capability.Capabilities{
		HasRGB:     true,
		Provenance: capability.ProvenanceProbed,
	}

	ctrl := newTestController(t, conn, 0x0004, WithStore(store))
	caps, err := ctrl.ResolveCapabilities(context.Background(), false)
	if err != nil {
		t.Fatalf("ResolveCapabilities error: %v", err)
	}
	if !caps.HasRGB || caps.Provenance != capability.ProvenanceProbed {
		t.Errorf("caps = %+v, want cached probed set", caps)
	}
	if len(conn.payloads) != 0 {
		t.Errorf("cached resolution sent %d commands, want 0", len(conn.payloads))
	}
}

func TestResolveCapabilitiesForceProbe(t *testing.T) {
	conn := newSimConn()
	store := newMemStore()
	ctrl := newTestController(t, conn, 0x0035,
		WithStore(store),
		WithProbeOptions(probe.WithClock(instantClock{})))

	caps, err := ctrl.ResolveCapabilities(context.Background(), true)
	if err != nil {
		t.Fatalf("ResolveCapabilities error: %v", err)
	}
	if caps.Provenance != capability.ProvenanceProbed {
		t.Errorf("provenance = %q, want probed despite declared entry", caps.Provenance)
	}
	if len(conn.payloads) == 0 {
		t.Error("force probe sent no commands")
	}
}

type instantClock struct{}

func (instantClock) Sleep(context.Context, time.Duration) error { return nil }
