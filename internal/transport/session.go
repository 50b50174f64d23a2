package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/logging"
)

// DefaultQueryTimeout bounds how long a solicited response is awaited.
const DefaultQueryTimeout = 3 * time.Second

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithQueryTimeout overrides the default response wait window.
func WithQueryTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.queryTimeout = d }
}

// WithNotificationHandler registers a callback for ambient updates:
// structurally valid messages arriving outside any wait window, such as
// pushes triggered by a physical remote.
func WithNotificationHandler(fn func(data []byte)) SessionOption {
	return func(s *Session) { s.ambient = fn }
}

// WithMTU pins the MTU instead of negotiating one.
func WithMTU(mtu int) SessionOption {
	return func(s *Session) { s.mtu = mtu }
}

// Session drives one connected device. The protocol has no per-command
// response identifier, so the session serializes writes: a single command
// is in flight at a time and the first structurally valid message arriving
// inside its wait window is taken as its response.
//
// Multiple devices are independent; give each its own Session and drive
// them concurrently.
type Session struct {
	conn    Conn
	version Version
	mtu     int
	log     *zap.Logger

	queryTimeout time.Duration
	ambient      func(data []byte)

	// cmdMu serializes command issuance per the single in-flight model.
	cmdMu sync.Mutex
	seq   SeqCounter
	reasm Reassembler

	waitMu sync.Mutex
	waiter chan []byte // non-nil while a wait window is open
	valid  func([]byte) bool

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession wraps an open connection. version selects the framing; the
// MTU is negotiated up to the framing's ceiling unless pinned by WithMTU.
func NewSession(ctx context.Context, conn Conn, version Version, opts ...SessionOption) (*Session, error) {
	s := &Session{
		conn:         conn,
		version:      version,
		log:          logging.GetLogger(),
		queryTimeout: DefaultQueryTimeout,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.mtu == 0 {
		granted, err := conn.NegotiateMTU(ctx, version.MTUCeiling())
		if err != nil {
			return nil, fmt.Errorf("mtu negotiation: %w", err)
		}
		s.mtu = granted
	}
	if s.mtu > version.MTUCeiling() {
		s.mtu = version.MTUCeiling()
	}

	if err := conn.Subscribe(s.onNotify); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s.log.Debug("session open",
		zap.Int("mtu", s.mtu),
		zap.Int("framing", int(version)))
	return s, nil
}

// MTU returns the negotiated MTU.
func (s *Session) MTU() int { return s.mtu }

// Send issues a fire-and-forget command.
func (s *Session) Send(ctx context.Context, payload []byte, ackRequired bool) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return s.writeFrames(ctx, CmdWrite, payload, ackRequired)
}

// Request issues a command and waits for its response. valid is the
// structural check a candidate response must pass (marker byte, checksum);
// frames failing it inside the window are ambient noise, not the response.
// The wait resolves with ErrTimeout on window expiry, ErrDisconnected when
// the session closes, or ctx's error on cancellation.
func (s *Session) Request(ctx context.Context, payload []byte, valid func([]byte) bool) ([]byte, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	select {
	case <-s.closed:
		return nil, ErrDisconnected
	default:
	}

	waiter := make(chan []byte, 1)
	s.waitMu.Lock()
	s.waiter = waiter
	s.valid = valid
	s.reasm.Reset()
	s.waitMu.Unlock()

	defer func() {
		s.waitMu.Lock()
		s.waiter = nil
		s.valid = nil
		s.waitMu.Unlock()
	}()

	if err := s.writeFrames(ctx, CmdQuery, payload, true); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.queryTimeout)
	defer timer.Stop()

	select {
	case data := <-waiter:
		return data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response within %s", ErrTimeout, s.queryTimeout)
	case <-s.closed:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the session down and resolves every outstanding wait with
// ErrDisconnected. Mandatory on disconnect.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Disconnect()
	})
	return err
}

func (s *Session) writeFrames(ctx context.Context, cmd uint16, payload []byte, ack bool) error {
	frames, err := Encode(cmd, payload, ack, s.version, s.mtu, &s.seq)
	if err != nil {
		return err
	}
	for i := range frames {
		raw := frames[i].Marshal()
		if err := s.conn.Write(ctx, raw); err != nil {
			return fmt.Errorf("%w: frame %d/%d: %v", ErrWriteFailed, i+1, len(frames), err)
		}
	}
	return nil
}

// onNotify runs on the adapter's notification path. It reassembles frames
// and routes each complete message: into the active wait window when it
// passes the structural check, to the ambient handler otherwise.
func (s *Session) onNotify(data []byte) {
	f, err := Unmarshal(data)
	if err != nil {
		s.log.Debug("dropping unparseable frame",
			zap.Int("len", len(data)), zap.Error(err))
		return
	}

	s.waitMu.Lock()
	res, err := s.reasm.Add(f)
	if err != nil {
		s.waitMu.Unlock()
		s.log.Debug("reassembly reset", zap.Error(err))
		return
	}
	if !res.Complete {
		s.waitMu.Unlock()
		return
	}

	if s.waiter != nil && (s.valid == nil || s.valid(res.Data)) {
		waiter := s.waiter
		s.waiter = nil
		s.valid = nil
		s.waitMu.Unlock()
		waiter <- res.Data
		return
	}
	s.waitMu.Unlock()

	// No wait window, or structurally not the awaited response: an
	// out-of-band notification.
	if s.ambient != nil {
		s.ambient(res.Data)
	} else {
		logging.LogRawBytes("ambient update ignored", res.Data)
	}
}
