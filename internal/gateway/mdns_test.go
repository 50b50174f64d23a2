package gateway

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "gateway with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "ledble-gw-kitchen.local.",
				Port:     8321,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
				Text:     []string{"version=1.2.0", "devices=3"},
			},
			wantIP:   "192.168.1.20",
			wantPort: 8321,
		},
		{
			name: "no port advertised uses default",
			entry: &zeroconf.ServiceEntry{
				HostName: "ledble-gw.local",
				Port:     0,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "ledble-gw.local",
				Port:     9000,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				HostName: "ledble-gw.local",
				Port:     8321,
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if gw != nil {
					t.Fatalf("parseServiceEntry = %+v, want nil", gw)
				}
				return
			}
			if gw == nil {
				t.Fatal("parseServiceEntry = nil")
			}
			if gw.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", gw.IP, tt.wantIP)
			}
			if gw.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", gw.Port, tt.wantPort)
			}
		})
	}
}

func TestGatewayMetadataAndURL(t *testing.T) {
	gw := parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "ledble-gw-kitchen.local.",
		Port:     8321,
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
		Text:     []string{"version=1.2.0", "devices=3", "flag"},
	})
	if gw == nil {
		t.Fatal("parseServiceEntry = nil")
	}

	if got := gw.GetMetadata("version"); got != "1.2.0" {
		t.Errorf("version = %q, want 1.2.0", got)
	}
	if got := gw.GetMetadata("flag"); got != "" {
		t.Errorf("flag = %q, want empty value", got)
	}
	if got := gw.GetMetadata("missing"); got != "" {
		t.Errorf("missing = %q, want empty", got)
	}

	if got := gw.BaseURL(); got != "ws://192.168.1.20:8321" {
		t.Errorf("BaseURL = %q", got)
	}
	if a := gw.Adapter(); a.Base != gw.BaseURL() {
		t.Errorf("Adapter base = %q, want %q", a.Base, gw.BaseURL())
	}
}
