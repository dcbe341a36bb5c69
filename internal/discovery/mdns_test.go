// ABOUTME: Tests for gateway mDNS discovery
// ABOUTME: Covers TXT parsing and entry conversion without touching the network
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "Test Gateway",
		Port:        8927,
		Path:        "/sc-api",
	})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.BrowseTimeout != 3*time.Second {
		t.Errorf("default browse timeout = %v", mgr.config.BrowseTimeout)
	}
	txt := mgr.TXTRecords()
	if len(txt) != 1 || txt[0] != "path=/sc-api" {
		t.Errorf("TXTRecords() = %v", txt)
	}
}

func TestPathFromTXT(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{"present", []string{"version=1", "path=/sc-api"}, "/sc-api"},
		{"missing", []string{"version=1"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pathFromTXT(tt.fields); got != tt.want {
				t.Errorf("pathFromTXT(%v) = %q, want %q", tt.fields, got, tt.want)
			}
		})
	}
}

func TestEntryToGateway(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "gw._visuallock-gw._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8927,
		InfoFields: []string{"path=/sc-api"},
	}

	info := entryToGateway(entry)
	if info == nil {
		t.Fatal("expected gateway info")
	}
	if got := info.BaseURL(); got != "http://192.168.1.20:8927/sc-api" {
		t.Errorf("BaseURL() = %q", got)
	}

	if entryToGateway(&mdns.ServiceEntry{Port: 1}) != nil {
		t.Error("entry without IPv4 address should be skipped")
	}
}
