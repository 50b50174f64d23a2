// Ledble-gw is the websocket gateway daemon for LED BLE controllers.
//
// It runs on a machine with a UART-attached BLE co-processor, exposes one
// websocket endpoint per device and announces itself over mDNS so the
// 'ledble' CLI can find it. See 'ledble-gw serve --help' for options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ledble/internal/gateway"
	"github.com/muurk/ledble/internal/server"
	"github.com/muurk/ledble/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ledble-gw",
	Short:   "LED BLE websocket gateway",
	Long:    "A websocket gateway that bridges LAN clients to BLE LED controllers\nreached through a serial-attached radio.",
	Version: version.Version,
}

var (
	host       string
	port       int
	instance   string
	serialDev  string
	serialBaud int
	certPath   string
	keyPath    string
	logLevel   string
	noAnnounce bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serialDev == "" {
			return fmt.Errorf("--serial is required (the radio link)")
		}
		if (certPath == "") != (keyPath == "") {
			return fmt.Errorf("--cert and --key must be given together")
		}

		backend := &gateway.SerialAdapter{Port: serialDev, BaudRate: serialBaud}
		srv, err := server.New(&server.Config{
			Host:     host,
			Port:     port,
			Instance: instance,
			CertPath: certPath,
			KeyPath:  keyPath,
			Announce: !noAnnounce,
			LogLevel: logLevel,
		}, backend)
		if err != nil {
			return err
		}
		return srv.Start()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "Listen address")
	serveCmd.Flags().IntVar(&port, "port", gateway.DefaultPort, "Listen port")
	serveCmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default: hostname)")
	serveCmd.Flags().StringVar(&serialDev, "serial", "", "Serial port of the radio, e.g. /dev/ttyUSB0")
	serveCmd.Flags().IntVar(&serialBaud, "baud", gateway.DefaultBaudRate, "Serial baud rate")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "TLS certificate file (enables wss://)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "TLS private key file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&noAnnounce, "no-announce", false, "Skip mDNS registration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
