package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
	"github.com/muurk/ledble/internal/command"
	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/probe"
	"github.com/muurk/ledble/internal/state"
	"github.com/muurk/ledble/internal/transport"
)

// Controller drives a single connected device. All commands go through the
// session's serialized queue; the controller itself is safe for concurrent
// use.
type Controller struct {
	session  *transport.Session
	db       *capability.Database
	identity *advertise.DeviceIdentity

	store capability.Store // optional persistent capability cache

	probeOpts []probe.Option

	mu   sync.Mutex
	caps *capability.Capabilities
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore attaches a persistent capability cache.
func WithStore(s capability.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithProbeOptions forwards options to capability probes the controller
// starts.
func WithProbeOptions(opts ...probe.Option) Option {
	return func(c *Controller) { c.probeOpts = opts }
}

// NewController wraps an established session for the identified device.
func NewController(session *transport.Session, db *capability.Database, identity *advertise.DeviceIdentity, opts ...Option) *Controller {
	c := &Controller{
		session:  session,
		db:       db,
		identity: identity,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Identity returns the advertisement-derived identity of the device.
func (c *Controller) Identity() *advertise.DeviceIdentity {
	return c.identity
}

// SetPower switches the device on or off.
func (c *Controller) SetPower(ctx context.Context, on bool) error {
	power := command.PowerOff
	if on {
		power = command.PowerOn
	}
	return c.send(ctx, command.FuncSetPower, map[string]int{"power": int(power)})
}

// SetRGBWW writes all five channels. The write mask covers only the channel
// groups actually in use, so a colour write leaves the white channels alone
// and vice versa. persist controls whether the device keeps the setting
// across power cycles.
func (c *Controller) SetRGBWW(ctx context.Context, r, g, b, ww, cw byte, persist bool) error {
	mask := command.MaskAll
	colors := r != 0 || g != 0 || b != 0
	whites := ww != 0 || cw != 0
	switch {
	case colors && !whites:
		mask = command.MaskColors
	case whites && !colors:
		mask = command.MaskWhites
	}
	return c.writeChannels(ctx, r, g, b, ww, cw, mask, persist)
}

// WriteChannels writes all five channels unconditionally, without
// persisting. The capability prober uses this to get deterministic
// read-backs.
func (c *Controller) WriteChannels(ctx context.Context, r, g, b, ww, cw byte) error {
	return c.writeChannels(ctx, r, g, b, ww, cw, command.MaskAll, false)
}

func (c *Controller) writeChannels(ctx context.Context, r, g, b, ww, cw, mask byte, persist bool) error {
	persistFlag := command.PersistDiscard
	if persist {
		persistFlag = command.PersistSave
	}
	return c.send(ctx, command.FuncSetColor, map[string]int{
		"red":        int(r),
		"green":      int(g),
		"blue":       int(b),
		"warm_white": int(ww),
		"cool_white": int(cw),
		"mask":       int(mask),
		"persist":    int(persistFlag),
	})
}

// SetBrightness queries the current state and rescales it to the target
// level (0-255). In a static mode the active channel group is scaled
// proportionally; in an effect mode the effect is re-issued with the new
// brightness.
func (c *Controller) SetBrightness(ctx context.Context, level byte) error {
	cur, err := c.QueryState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state before brightness change: %w", err)
	}

	if !cur.IsStatic {
		pct := byte((int(level)*100 + 127) / 255)
		return c.SetEffect(ctx, cur.EffectID, cur.EffectSpeed, pct)
	}

	if m := max3(cur.Red, cur.Green, cur.Blue); m > 0 {
		return c.SetRGBWW(ctx,
			scale(cur.Red, level, m), scale(cur.Green, level, m), scale(cur.Blue, level, m),
			0, 0, false)
	}
	if m := maxByte(cur.WarmWhite, cur.CoolWhite); m > 0 {
		return c.SetRGBWW(ctx, 0, 0, 0,
			scale(cur.WarmWhite, level, m), scale(cur.CoolWhite, level, m), false)
	}

	// All channels dark: treat the level as a white warm-white set.
	return c.SetRGBWW(ctx, 0, 0, 0, level, 0, false)
}

// SetEffect starts a preset effect. brightness is a percentage (0-100).
func (c *Controller) SetEffect(ctx context.Context, id, speed, brightness byte) error {
	return c.send(ctx, command.FuncSetEffect, map[string]int{
		"effect":     int(id),
		"speed":      int(speed),
		"brightness": int(brightness),
	})
}

// QueryState requests and decodes the device's current state.
func (c *Controller) QueryState(ctx context.Context) (*state.DeviceState, error) {
	tmpl, err := c.db.ResolveTemplate(c.identity.ProductID, command.FuncQueryState)
	if err != nil {
		return nil, err
	}
	payload, err := command.Build(tmpl, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.session.Request(ctx, payload, func(data []byte) bool {
		_, perr := state.Parse(data)
		return perr == nil
	})
	if err != nil {
		return nil, err
	}
	return state.Parse(resp)
}

// ResolveCapabilities returns the device's capability set. Resolution
// order: in-memory value, persistent cache, the product table's declared
// set, and finally an active probe. forceProbe skips straight to probing
// and overwrites any cached value.
func (c *Controller) ResolveCapabilities(ctx context.Context, forceProbe bool) (*capability.Capabilities, error) {
	log := logging.GetLogger()

	if !forceProbe {
		c.mu.Lock()
		cached := c.caps
		c.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		if c.store != nil {
			caps, err := c.store.Load(ctx, c.identity.MAC)
			if err == nil {
				c.remember(caps)
				return caps, nil
			}
			if !errors.Is(err, capability.ErrNotCached) {
				log.Warn("capability cache lookup failed", zap.Error(err))
			}
		}

		rec, err := c.db.Lookup(c.identity.ProductID)
		if err == nil && rec.Declared != nil {
			caps := *rec.Declared
			caps.Provenance = capability.ProvenanceDeclared
			c.remember(&caps)
			c.persist(ctx, &caps)
			return &caps, nil
		}
		if err != nil && !errors.Is(err, capability.ErrUnknownProduct) {
			return nil, err
		}
		log.Info("no declared capabilities, probing",
			zap.Uint16("product_id", c.identity.ProductID))
	}

	caps, err := probe.New(c, c.probeOpts...).Run(ctx)
	if err != nil {
		return nil, err
	}
	c.remember(caps)
	c.persist(ctx, caps)
	return caps, nil
}

func (c *Controller) remember(caps *capability.Capabilities) {
	c.mu.Lock()
	c.caps = caps
	c.mu.Unlock()
}

func (c *Controller) persist(ctx context.Context, caps *capability.Capabilities) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, c.identity.MAC, caps); err != nil {
		logging.GetLogger().Warn("capability cache save failed", zap.Error(err))
	}
}

// Close releases the underlying session.
func (c *Controller) Close() error {
	return c.session.Close()
}

func (c *Controller) send(ctx context.Context, fn command.Function, params map[string]int) error {
	tmpl, err := c.db.ResolveTemplate(c.identity.ProductID, fn)
	if err != nil {
		return err
	}
	payload, err := command.Build(tmpl, params)
	if err != nil {
		return err
	}
	return c.session.Send(ctx, payload, false)
}

func scale(v, level, m byte) byte {
	return byte(int(v) * int(level) / int(m))
}

func max3(a, b, c byte) byte {
	return maxByte(maxByte(a, b), c)
}

func maxByte(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}
