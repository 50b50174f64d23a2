package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
	"github.com/muurk/ledble/internal/command"
	"github.com/muurk/ledble/internal/gateway"
	"github.com/muurk/ledble/internal/state"
	"github.com/muurk/ledble/internal/ui"
	"github.com/muurk/ledble/internal/urls"
)

var (
	advLayout  string
	advCompany string

	buildProduct string
	buildParams  []string

	gwTimeout int
)

func init() {
	advCmd.Flags().StringVar(&advLayout, "layout", "b", "Advertisement layout (a or b)")
	advCmd.Flags().StringVar(&advCompany, "company", "0x5A00", "Company identifier for layout b (out-of-band)")

	buildCmd.Flags().StringVar(&buildProduct, "product", "0", "Product identifier selecting template overrides")
	buildCmd.Flags().StringSliceVar(&buildParams, "param", nil, "Template parameter as name=value (repeatable)")

	gatewaysCmd.Flags().IntVar(&gwTimeout, "timeout", 10, "Scan timeout in seconds")

	rootCmd.AddCommand(advCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(effectsCmd)
	rootCmd.AddCommand(gatewaysCmd)
}

// advCmd decodes a raw advertisement payload.
var advCmd = &cobra.Command{
	Use:   "adv <hex>",
	Short: "Decode a raw advertisement payload",
	Long: `Decode a raw manufacturer-data advertisement payload.

Layout "a" is the 29-byte form with the company identifier embedded at
offset 0; layout "b" is the 27-byte form whose company identifier arrives
out-of-band (pass it with --company).`,
	Example: `  # 27-byte payload, company id from the scan layer
  ledble adv --layout b --company 0x5A00 5b05e498bb95ee8e0033290a0102242f2308000000000a000f0000

  # 29-byte payload with embedded company id
  ledble adv --layout a 005a5b05e498bb95ee8e0033290a0102242f2308000000000a000f0000`,
	Args: cobra.ExactArgs(1),
	RunE: runAdv,
}

func runAdv(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
	if err != nil {
		return fmt.Errorf("bad hex payload: %w", err)
	}

	var layout advertise.Layout
	switch strings.ToLower(advLayout) {
	case "a":
		layout = advertise.LayoutA
	case "b":
		layout = advertise.LayoutB
	default:
		return fmt.Errorf("unknown layout %q (want a or b)", advLayout)
	}

	company, err := parseUint16(advCompany)
	if err != nil {
		return fmt.Errorf("bad company id: %w", err)
	}

	identity, err := advertise.Parse(raw, layout, company)
	if err != nil {
		return err
	}

	fmt.Println(ui.TitleStyle.Render("Advertisement"))
	printKV("MAC", identity.MAC.String())
	printKV("Company", fmt.Sprintf("0x%04X", identity.CompanyID))
	printKV("Product", fmt.Sprintf("0x%04X", identity.ProductID))
	printKV("Version", strconv.Itoa(int(identity.Version)))
	printKV("Firmware", fmt.Sprintf("0x%04X", identity.Firmware))
	printKV("LED ver", strconv.Itoa(int(identity.LEDVersion)))

	if db, err := capability.Load(); err == nil {
		if rec, err := db.Lookup(identity.ProductID); err == nil {
			printKV("Known as", rec.Name)
		}
	}

	if len(identity.Snapshot) == state.SnapshotLen {
		snap, err := state.ParseSnapshot(identity.Snapshot)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(ui.TitleStyle.Render("Embedded state snapshot"))
		fmt.Println(ui.RenderState(snap))
	}
	return nil
}

// buildCmd renders a command template to wire bytes.
var buildCmd = &cobra.Command{
	Use:   "build <function>",
	Short: "Build a protocol command from its template",
	Long: `Render a command template to the final wire bytes, checksum included.

The function is the command opcode (0x31 color, 0x38 effect, 0x71 power,
0x81 query). Parameters are substituted into the template's placeholders.`,
	Example: `  # Power-on command
  ledble build 0x71 --param power=0x23

  # Full-color write, colors-only mask, do not persist
  ledble build 0x31 --param red=255 --param green=0 --param blue=0 \
      --param warm_white=0 --param cool_white=0 --param mask=0xF0 --param persist=0x0F`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	fn, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("bad function %q: %w", args[0], err)
	}
	product, err := parseUint16(buildProduct)
	if err != nil {
		return fmt.Errorf("bad product id: %w", err)
	}

	params := make(map[string]int, len(buildParams))
	for _, p := range buildParams {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("bad --param %q (want name=value)", p)
		}
		v, err := strconv.ParseInt(value, 0, 32)
		if err != nil {
			return fmt.Errorf("bad value in --param %q: %w", p, err)
		}
		params[name] = int(v)
	}

	db, err := capability.Load()
	if err != nil {
		return err
	}
	tmpl, err := db.ResolveTemplate(product, command.Function(fn))
	if err != nil {
		return err
	}
	frame, err := command.Build(tmpl, params)
	if err != nil {
		return err
	}

	fmt.Printf("%X\n", frame)
	return nil
}

// decodeCmd decodes a state response.
var decodeCmd = &cobra.Command{
	Use:     "decode <hex>",
	Short:   "Decode a state response",
	Example: `  ledble decode 813323612308643210000a000518`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return fmt.Errorf("bad hex payload: %w", err)
		}
		st, err := state.Parse(raw)
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderState(st))
		return nil
	},
}

// effectsCmd lists the built-in effect presets.
var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "List the built-in effect presets",
	Run: func(cmd *cobra.Command, args []string) {
		for id := state.EffectIDMin; id <= state.EffectIDMax; id++ {
			fmt.Printf("  0x%02X  %s\n", id, state.EffectName(uint8(id)))
		}
	},
}

// gatewaysCmd discovers bridge gateways over mDNS.
var gatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "Discover bridge gateways on the local network",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Scanning for gateways (timeout: %ds)...\n\n", gwTimeout)

		scanner := gateway.NewScanner()
		scanner.Timeout = time.Duration(gwTimeout) * time.Second
		gateways, err := scanner.Scan(context.Background())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if len(gateways) == 0 {
			fmt.Println("No gateways found.")
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Ensure the gateway daemon is running")
			fmt.Println("  - Check that mDNS traffic is allowed on your network")
			fmt.Println("  - Try increasing --timeout for slower networks")
			fmt.Println("  - Use --gateway ws://<host>:<port> on device commands to skip discovery")
			fmt.Printf("\nSee %s for more help.\n", urls.TroubleshootingGuide)
			return nil
		}

		fmt.Printf("Found %d gateway(s):\n\n", len(gateways))
		for i, gw := range gateways {
			fmt.Printf("%d. %s\n", i+1, gw.Instance)
			fmt.Printf("   Endpoint: %s\n", gw.BaseURL())
			if v := gw.GetMetadata("version"); v != "" {
				fmt.Printf("   Version:  %s\n", v)
			}
			if d := gw.GetMetadata("devices"); d != "" {
				fmt.Printf("   Devices:  %s\n", d)
			}
			fmt.Println()
		}
		return nil
	},
}

func printKV(key, value string) {
	fmt.Println(ui.KeyStyle.Render(key) + ui.ValueStyle.Render(value))
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
