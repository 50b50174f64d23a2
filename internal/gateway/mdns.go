package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service gateways advertise.
	ServiceType = "_ledble-gw._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a discovery round.
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the gateway listener port when the advertisement
	// omits one.
	DefaultPort = 8321
)

// Gateway is a discovered bridge daemon.
type Gateway struct {
	// Instance is the advertised service instance name.
	Instance string

	// Hostname is the mDNS hostname.
	Hostname string

	// IP is the address, preferring IPv4.
	IP string

	// Port is the WebSocket listener port.
	Port int

	// Metadata holds the TXT record key/value pairs. Gateways publish
	// "version" and "devices" (number of connected controllers).
	Metadata map[string]string

	// DiscoveredAt is when the gateway was seen.
	DiscoveredAt time.Time
}

// String returns a human-readable summary.
func (g *Gateway) String() string {
	return fmt.Sprintf("Gateway %s (%s) at %s:%d", g.Instance, g.Hostname, g.IP, g.Port)
}

// BaseURL returns the WebSocket endpoint for the gateway.
func (g *Gateway) BaseURL() string {
	return fmt.Sprintf("ws://%s:%d", g.IP, g.Port)
}

// Adapter returns a transport adapter dialing through this gateway.
func (g *Gateway) Adapter() *WSAdapter {
	return &WSAdapter{Base: g.BaseURL()}
}

// GetMetadata retrieves a TXT value by key, or "" if absent.
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}

// Scanner discovers gateways over mDNS.
type Scanner struct {
	// Timeout is the maximum time to wait for responses.
	Timeout time.Duration
}

// NewScanner returns a Scanner with the default timeout.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

// Scan discovers all gateways on the local network.
func (s *Scanner) Scan(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	gateways := make([]*Gateway, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if gw := parseServiceEntry(entry); gw != nil {
				gateways = append(gateways, gw)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for gateways: %w", err)
	}

	<-ctx.Done()
	<-done
	return gateways, nil
}

// WaitFor blocks until a gateway with the given instance name appears.
func (s *Scanner) WaitFor(ctx context.Context, instance string) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Gateway, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if gw := parseServiceEntry(entry); gw != nil && gw.Instance == instance {
				found <- gw
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for gateways: %w", err)
	}

	select {
	case gw := <-found:
		return gw, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("gateway %q not found within timeout", instance)
	}
}

// parseServiceEntry converts a zeroconf entry into a Gateway, or nil when
// the entry is unusable.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Gateway{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
