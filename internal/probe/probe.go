package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/capability"
	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/state"
	"github.com/muurk/ledble/internal/transport"
)

// ErrAborted is returned when a transport failure cuts a probe run short.
// Negative probe results do not abort; they are recorded as unsupported.
var ErrAborted = errors.New("capability probe aborted")

const (
	// TestValue is written to the channel under test. Dim enough not to
	// light a room, far enough from zero to separate a live channel from
	// a dead one.
	TestValue byte = 0x1A

	// Tolerance is the accepted deviation between the written test value
	// and the read-back channel value, about 10% of full scale.
	Tolerance = 26

	// DefaultSettle is how long to wait after a test write before querying,
	// covering the device's internal fade.
	DefaultSettle = 200 * time.Millisecond
)

// Device is the minimal surface the prober drives. The device controller
// satisfies it; tests substitute a simulated device.
type Device interface {
	SetPower(ctx context.Context, on bool) error
	WriteChannels(ctx context.Context, r, g, b, ww, cw byte) error
	SetEffect(ctx context.Context, id, speed, brightness byte) error
	QueryState(ctx context.Context) (*state.DeviceState, error)
}

// Step identifies a position in the probe sequence.
type Step int

const (
	StepInit Step = iota
	StepSaveState
	StepProbeRGB
	StepProbeWarmWhite
	StepProbeCoolWhite
	StepRestore
	StepDone
	StepAborted
)

func (s Step) String() string {
	switch s {
	case StepInit:
		return "init"
	case StepSaveState:
		return "save_state"
	case StepProbeRGB:
		return "probe_rgb"
	case StepProbeWarmWhite:
		return "probe_warm_white"
	case StepProbeCoolWhite:
		return "probe_cool_white"
	case StepRestore:
		return "restore"
	case StepDone:
		return "done"
	case StepAborted:
		return "aborted"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Option configures a Prober.
type Option func(*Prober)

// WithClock substitutes the delay source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(p *Prober) { p.clock = c }
}

// WithSettle overrides the post-write settle delay.
func WithSettle(d time.Duration) Option {
	return func(p *Prober) { p.settle = d }
}

// Prober runs the capability probe sequence against one device.
// A Prober is single-use; construct a new one per run.
type Prober struct {
	dev    Device
	clock  Clock
	settle time.Duration

	step  Step
	saved *state.DeviceState
	caps  capability.Capabilities
}

// New returns a Prober for the given device.
func New(dev Device, opts ...Option) *Prober {
	p := &Prober{
		dev:    dev,
		clock:  realClock{},
		settle: DefaultSettle,
		step:   StepInit,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Step reports the prober's current position, for diagnostics.
func (p *Prober) Step() Step {
	return p.step
}

// Run executes the probe sequence and returns the resolved capabilities.
// On transport failure it attempts a best-effort restore, then returns an
// error wrapping ErrAborted.
func (p *Prober) Run(ctx context.Context) (*capability.Capabilities, error) {
	log := logging.GetLogger()

	for {
		switch p.step {
		case StepInit:
			p.caps = capability.Capabilities{Provenance: capability.ProvenanceProbed}
			p.step = StepSaveState

		case StepSaveState:
			saved, err := p.dev.QueryState(ctx)
			if err != nil {
				// Without a saved state there is nothing to restore to.
				p.step = StepAborted
				return nil, fmt.Errorf("%w: saving state: %v", ErrAborted, err)
			}
			p.saved = saved
			if !saved.PowerOn {
				if err := p.dev.SetPower(ctx, true); err != nil {
					p.step = StepAborted
					return nil, fmt.Errorf("%w: powering on: %v", ErrAborted, err)
				}
			}
			p.step = StepProbeRGB

		case StepProbeRGB:
			ok, err := p.probeChannel(ctx, StepProbeRGB)
			if err != nil {
				return nil, p.abort(ctx, err)
			}
			p.caps.HasRGB = ok
			p.step = StepProbeWarmWhite

		case StepProbeWarmWhite:
			ok, err := p.probeChannel(ctx, StepProbeWarmWhite)
			if err != nil {
				return nil, p.abort(ctx, err)
			}
			p.caps.HasWarmWhite = ok
			p.step = StepProbeCoolWhite

		case StepProbeCoolWhite:
			ok, err := p.probeChannel(ctx, StepProbeCoolWhite)
			if err != nil {
				return nil, p.abort(ctx, err)
			}
			p.caps.HasCoolWhite = ok
			p.step = StepRestore

		case StepRestore:
			if err := p.restore(ctx); err != nil {
				p.step = StepAborted
				return nil, fmt.Errorf("%w: restoring state: %v", ErrAborted, err)
			}
			p.step = StepDone

		case StepDone:
			log.Info("capability probe complete",
				zap.Bool("rgb", p.caps.HasRGB),
				zap.Bool("warm_white", p.caps.HasWarmWhite),
				zap.Bool("cool_white", p.caps.HasCoolWhite))
			caps := p.caps
			return &caps, nil

		default:
			return nil, fmt.Errorf("%w: unexpected step %s", ErrAborted, p.step)
		}
	}
}

// probeChannel writes the test value to one channel group, waits for the
// device to settle, then checks the read-back value. A false result with a
// nil error means the channel is unsupported; a non-nil error means the
// transport failed.
func (p *Prober) probeChannel(ctx context.Context, step Step) (bool, error) {
	log := logging.GetLogger()

	var r, g, b, ww, cw byte
	switch step {
	case StepProbeRGB:
		r, g, b = TestValue, TestValue, TestValue
	case StepProbeWarmWhite:
		ww = TestValue
	case StepProbeCoolWhite:
		cw = TestValue
	}

	if err := p.dev.WriteChannels(ctx, r, g, b, ww, cw); err != nil {
		if fatal(err) {
			return false, err
		}
		log.Debug("probe write rejected", zap.String("step", step.String()), zap.Error(err))
		return false, nil
	}

	if err := p.clock.Sleep(ctx, p.settle); err != nil {
		return false, err
	}

	got, err := p.dev.QueryState(ctx)
	if err != nil {
		if fatal(err) {
			return false, err
		}
		// Timed-out or unparseable reply: record as unsupported, move on.
		log.Debug("probe query failed", zap.String("step", step.String()), zap.Error(err))
		return false, nil
	}

	switch step {
	case StepProbeRGB:
		return within(got.Red) && within(got.Green) && within(got.Blue), nil
	case StepProbeWarmWhite:
		return within(got.WarmWhite), nil
	case StepProbeCoolWhite:
		return within(got.CoolWhite), nil
	}
	return false, nil
}

// abort attempts a best-effort restore before reporting the failure.
func (p *Prober) abort(ctx context.Context, cause error) error {
	if ctx.Err() == nil && !errors.Is(cause, transport.ErrDisconnected) {
		_ = p.restore(ctx)
	}
	p.step = StepAborted
	return fmt.Errorf("%w: %v", ErrAborted, cause)
}

// restore re-applies the state captured before probing.
func (p *Prober) restore(ctx context.Context) error {
	saved := p.saved
	if saved == nil {
		return nil
	}

	if saved.IsStatic {
		if err := p.dev.WriteChannels(ctx,
			saved.Red, saved.Green, saved.Blue, saved.WarmWhite, saved.CoolWhite); err != nil {
			return err
		}
	} else {
		// Brightness was scaled to 0-255 on decode; the effect command
		// takes a percentage.
		pct := byte((int(saved.Brightness)*100 + 127) / 255)
		if err := p.dev.SetEffect(ctx, saved.EffectID, saved.EffectSpeed, pct); err != nil {
			return err
		}
	}

	if !saved.PowerOn {
		return p.dev.SetPower(ctx, false)
	}
	return nil
}

// within is strict so a dead channel reading zero never lands inside the
// band (TestValue and Tolerance are both 26).
func within(observed byte) bool {
	d := int(observed) - int(TestValue)
	if d < 0 {
		d = -d
	}
	return d < Tolerance
}

func fatal(err error) bool {
	return errors.Is(err, transport.ErrDisconnected) ||
		errors.Is(err, transport.ErrWriteFailed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
