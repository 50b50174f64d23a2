package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
	"github.com/muurk/ledble/internal/capstore"
	"github.com/muurk/ledble/internal/config"
	"github.com/muurk/ledble/internal/device"
	"github.com/muurk/ledble/internal/gateway"
	"github.com/muurk/ledble/internal/state"
	"github.com/muurk/ledble/internal/transport"
	"github.com/muurk/ledble/internal/ui"
	"github.com/muurk/ledble/internal/urls"
)

// Connection flags shared by the device commands.
var (
	gatewayURL   string
	serialPort   string
	productFlag  string
	protoVersion int
	noCache      bool

	persistColor bool
	forceProbe   bool

	effectSpeed      int
	effectBrightness int

	monitorInterval int
)

func init() {
	for _, cmd := range []*cobra.Command{powerCmd, colorCmd, brightnessCmd, effectCmd, resolveCmd, monitorCmd} {
		cmd.Flags().StringVar(&gatewayURL, "gateway", "", "Gateway endpoint, e.g. ws://192.168.1.20:8321 (skips discovery)")
		cmd.Flags().StringVar(&serialPort, "serial", "", "Serial bridge port, e.g. /dev/ttyUSB0 (overrides gateway)")
		cmd.Flags().StringVar(&productFlag, "product", "", "Product identifier (defaults to the configured one)")
		cmd.Flags().IntVar(&protoVersion, "proto-version", 4, "Advertised protocol version, selects framing")
		cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the capability cache")
		rootCmd.AddCommand(cmd)
	}

	colorCmd.Flags().BoolVar(&persistColor, "persist", false, "Keep the color across power cycles")
	resolveCmd.Flags().BoolVar(&forceProbe, "probe", false, "Force an active probe even when capabilities are known")
	effectCmd.Flags().IntVar(&effectSpeed, "speed", 16, "Effect speed (1-31)")
	effectCmd.Flags().IntVar(&effectBrightness, "brightness", 100, "Effect brightness percent (0-100)")
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 5, "State poll interval in seconds")
}

// connect establishes a session with a device and wraps it in a controller.
// ambient, when non-nil, receives unsolicited notification payloads.
func connect(ctx context.Context, macStr string, ambient func([]byte)) (*device.Controller, func(), error) {
	mac, err := advertise.ParseMAC(macStr)
	if err != nil {
		return nil, nil, err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, nil, err
	}
	prefs := reg.Preferences

	productID, err := resolveProductID(reg, mac)
	if err != nil {
		return nil, nil, err
	}

	adapter, gwName, err := pickAdapter(ctx, prefs)
	if err != nil {
		return nil, nil, err
	}

	conn, err := adapter.Connect(ctx, mac.String())
	if err != nil {
		return nil, nil, err
	}

	var opts []transport.SessionOption
	if ambient != nil {
		opts = append(opts, transport.WithNotificationHandler(ambient))
	}
	session, err := transport.NewSession(ctx, conn, transport.FramingFor(uint8(protoVersion)), opts...)
	if err != nil {
		_ = conn.Disconnect()
		return nil, nil, err
	}

	db, err := capability.Load()
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}

	store, closeStore, err := openStore(ctx, prefs)
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}

	identity := &advertise.DeviceIdentity{
		MAC:       mac,
		ProductID: productID,
		Version:   uint8(protoVersion),
	}
	var ctrlOpts []device.Option
	if store != nil {
		ctrlOpts = append(ctrlOpts, device.WithStore(store))
	}
	ctrl := device.NewController(session, db, identity, ctrlOpts...)

	reg.UpdateDeviceLastSeen(mac.String(), gwName, productID)
	if err := reg.Save(); err != nil {
		fmt.Printf("Warning: could not save config: %v\n", err)
	}

	cleanup := func() {
		_ = ctrl.Close()
		if closeStore != nil {
			closeStore()
		}
	}
	return ctrl, cleanup, nil
}

func resolveProductID(reg *config.Registry, mac advertise.MAC) (uint16, error) {
	if productFlag != "" {
		return parseUint16(productFlag)
	}
	if dev := reg.GetDevice(mac.String()); dev != nil {
		return dev.ProductID, nil
	}
	return 0, nil
}

// pickAdapter chooses serial bridge, explicit gateway, configured gateway,
// or mDNS discovery, in that order.
func pickAdapter(ctx context.Context, prefs *config.Preferences) (transport.Adapter, string, error) {
	port := serialPort
	if port == "" && prefs != nil {
		port = prefs.SerialPort
	}
	if port != "" {
		baud := 0
		if prefs != nil {
			baud = prefs.SerialBaud
		}
		return &gateway.SerialAdapter{Port: port, BaudRate: baud}, "serial:" + port, nil
	}

	base := gatewayURL
	if base == "" && prefs != nil {
		base = prefs.DefaultGateway
	}
	if base != "" {
		return &gateway.WSAdapter{Base: base}, base, nil
	}

	if prefs == nil || !prefs.AutoDiscover {
		return nil, "", fmt.Errorf("no gateway configured; pass --gateway or enable auto_discover")
	}

	scanner := gateway.NewScanner()
	if prefs.DiscoverTimeout > 0 {
		scanner.Timeout = time.Duration(prefs.DiscoverTimeout) * time.Second
	}
	gateways, err := scanner.Scan(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(gateways) == 0 {
		return nil, "", fmt.Errorf("no gateways found; run 'ledble gateways' to troubleshoot")
	}
	gw := gateways[0]
	return gw.Adapter(), gw.Instance, nil
}

func openStore(ctx context.Context, prefs *config.Preferences) (capability.Store, func(), error) {
	if noCache || prefs == nil || prefs.Cache == nil {
		return nil, nil, nil
	}
	switch prefs.Cache.Backend {
	case "":
		return nil, nil, nil
	case "sqlite":
		path := prefs.Cache.Path
		if path == "" {
			var err error
			path, err = config.DefaultCachePath()
			if err != nil {
				return nil, nil, err
			}
		}
		store, err := capstore.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "redis":
		store, err := capstore.OpenRedis(ctx, prefs.Cache.RedisAddr, prefs.Cache.RedisPassword, prefs.Cache.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q (want sqlite or redis)", prefs.Cache.Backend)
	}
}

var powerCmd = &cobra.Command{
	Use:   "power <mac> <on|off>",
	Short: "Switch a device on or off",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch args[1] {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("bad power state %q (want on or off)", args[1])
		}

		ctx := cmd.Context()
		ctrl, cleanup, err := connect(ctx, args[0], nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return ctrl.SetPower(ctx, on)
	},
}

var colorCmd = &cobra.Command{
	Use:   "color <mac> <r> <g> <b> [ww [cw]]",
	Short: "Set the color and white channels",
	Args:  cobra.RangeArgs(4, 6),
	RunE: func(cmd *cobra.Command, args []string) error {
		channels := make([]byte, 5)
		for i, arg := range args[1:] {
			v, err := strconv.ParseUint(arg, 0, 8)
			if err != nil {
				return fmt.Errorf("bad channel value %q: %w", arg, err)
			}
			channels[i] = byte(v)
		}

		ctx := cmd.Context()
		ctrl, cleanup, err := connect(ctx, args[0], nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return ctrl.SetRGBWW(ctx, channels[0], channels[1], channels[2], channels[3], channels[4], persistColor)
	},
}

var brightnessCmd = &cobra.Command{
	Use:   "brightness <mac> <0-255>",
	Short: "Rescale the current output to a brightness level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("bad brightness %q: %w", args[1], err)
		}

		ctx := cmd.Context()
		ctrl, cleanup, err := connect(ctx, args[0], nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return ctrl.SetBrightness(ctx, byte(level))
	},
}

var effectCmd = &cobra.Command{
	Use:   "effect <mac> <id>",
	Short: "Start a preset effect",
	Long:  "Start a preset effect. Run 'ledble effects' to list the ids.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("bad effect id %q: %w", args[1], err)
		}

		ctx := cmd.Context()
		ctrl, cleanup, err := connect(ctx, args[0], nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return ctrl.SetEffect(ctx, byte(id), byte(effectSpeed), byte(effectBrightness))
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <mac>",
	Short: "Resolve a device's capabilities",
	Long: `Resolve a device's capabilities from the product table or, when the
product is unknown, by actively probing its channels. Results are cached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ctrl, cleanup, err := connect(ctx, args[0], nil)
		if err != nil {
			return err
		}
		defer cleanup()

		caps, err := ctrl.ResolveCapabilities(ctx, forceProbe)
		if err != nil {
			return err
		}

		fmt.Println(ui.TitleStyle.Render("Capabilities"))
		printKV("RGB", yesNo(caps.HasRGB))
		printKV("Warm white", yesNo(caps.HasWarmWhite))
		printKV("Cool white", yesNo(caps.HasCoolWhite))
		printKV("Effects", yesNo(caps.HasEffects))
		if caps.HasEffects {
			printKV("Max effect", fmt.Sprintf("0x%02X", caps.MaxEffectID))
		}
		if caps.WiringOrder != "" {
			printKV("Wiring", caps.WiringOrder)
		}
		if caps.ChipType != "" {
			printKV("Chip", caps.ChipType)
		}
		printKV("Source", string(caps.Provenance))
		if caps.Provenance == capability.ProvenanceProbed {
			fmt.Printf("\nCapabilities were probed. To add this product to the table, see\n%s\n", urls.ContributingProducts)
		}
		return nil
	},
	Args: cobra.ExactArgs(1),
}

var monitorCmd = &cobra.Command{
	Use:   "monitor <mac>",
	Short: "Watch a device's state live",
	Long: `Watch a device's state live. Unsolicited pushes (e.g. from a physical
remote) appear immediately; the state is also polled periodically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		updates := make(chan *state.DeviceState, 8)
		ambient := func(data []byte) {
			if st, err := state.Parse(data); err == nil {
				select {
				case updates <- st:
				default:
				}
			}
		}

		ctrl, cleanup, err := connect(ctx, args[0], ambient)
		if err != nil {
			return err
		}
		defer cleanup()

		// Poll loop keeps the view fresh between pushes. The channel is
		// never closed: the ambient handler may fire until the session
		// shuts down, and the view exits on a keypress anyway.
		go func() {
			ticker := time.NewTicker(time.Duration(monitorInterval) * time.Second)
			defer ticker.Stop()
			for {
				if st, err := ctrl.QueryState(ctx); err == nil {
					select {
					case updates <- st:
					default:
					}
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()

		return ui.RunMonitor(args[0], updates)
	},
}

func yesNo(v bool) string {
	if v {
		return ui.OnStyle.Render("yes")
	}
	return ui.OffStyle.Render("no")
}
