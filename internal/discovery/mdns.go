// ABOUTME: mDNS discovery for the proxy gateway
// ABOUTME: Gateways advertise themselves, visualizers browse for one
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/visual-lock/visuallock/internal/logger"
)

// ServiceType is the mDNS service advertised by gateways
const ServiceType = "_visuallock-gw._tcp"

// ErrNoGateway is returned when browsing finds nothing before the deadline
var ErrNoGateway = errors.New("no gateway discovered")

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// Path is the gateway prefix published as the TXT record path=<prefix>
	Path string
	// BrowseTimeout bounds a single mDNS query round
	BrowseTimeout time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
	gateways chan *GatewayInfo
	server   *mdns.Server
}

// GatewayInfo describes a discovered gateway
type GatewayInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// BaseURL is the resolver base URL for the gateway
func (g *GatewayInfo) BaseURL() string {
	return "http://" + net.JoinHostPort(g.Host, strconv.Itoa(g.Port)) + g.Path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = 3 * time.Second
	}

	return &Manager{
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		gateways: make(chan *GatewayInfo, 10),
	}
}

// TXTRecords returns the TXT records published for the gateway
func (m *Manager) TXTRecords() []string {
	return []string{"path=" + m.config.Path}
}

// Advertise publishes this gateway via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.TXTRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	logger.Info("Advertising gateway via mDNS",
		logger.String("name", m.config.ServiceName),
		logger.Int("port", m.config.Port),
		logger.String("type", ServiceType))

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for gateways until Stop
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				info := entryToGateway(entry)
				if info == nil {
					continue
				}
				logger.Info("Discovered gateway",
					logger.String("name", info.Name),
					logger.String("url", info.BaseURL()))

				select {
				case m.gateways <- info:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Entries = entries
		params.Timeout = m.config.BrowseTimeout
		params.DisableIPv6 = true
		if err := mdns.Query(params); err != nil {
			logger.Debug("mDNS query failed", logger.ErrorField(err))
		}
		close(entries)
		<-done

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func entryToGateway(entry *mdns.ServiceEntry) *GatewayInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	return &GatewayInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: pathFromTXT(entry.InfoFields),
	}
}

// pathFromTXT extracts path=<prefix> from TXT fields
func pathFromTXT(fields []string) string {
	for _, f := range fields {
		if v, ok := strings.CutPrefix(f, "path="); ok {
			return v
		}
	}
	return ""
}

// Gateways returns the channel of discovered gateways
func (m *Manager) Gateways() <-chan *GatewayInfo {
	return m.gateways
}

// FindGateway browses until the first gateway appears or ctx ends
func FindGateway(ctx context.Context, timeout time.Duration) (*GatewayInfo, error) {
	m := NewManager(Config{BrowseTimeout: timeout})
	defer m.Stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.Browse()
	select {
	case info := <-m.Gateways():
		return info, nil
	case <-ctx.Done():
		return nil, ErrNoGateway
	}
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
