// Package discovery advertises the sorter's debug server over mDNS so it can
// be found on the workshop network without knowing the controller's address.
package discovery

import (
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"

	"github.com/banshee-data/brick-sorter/internal/monitoring"
	"github.com/banshee-data/brick-sorter/internal/version"
)

const (
	ServiceType   = "_brick-sorter._tcp"
	ServiceDomain = "local."
)

// Advertiser is a running mDNS registration.
type Advertiser struct {
	server *zeroconf.Server
}

// ListenPort returns the TCP port of a listen address such as ":8080" or
// "localhost:8080".
func ListenPort(addr string) (int, error) {
	_, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in listen address %q", addr)
	}
	return port, nil
}

// TXTRecords describes this sorter in the service's TXT records.
func TXTRecords(sensors int, kickerOutput string) []string {
	return []string{
		"version=" + version.Version,
		"sha=" + version.GitSHA,
		"sensors=" + strconv.Itoa(sensors),
		"kicker=" + kickerOutput,
		"path=/debug/",
	}
}

// Advertise registers instance on every interface.
func Advertise(instance string, port int, txt []string) (*Advertiser, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	monitoring.Logf("advertising %s.%s%s on port %d", instance, ServiceType, ServiceDomain, port)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the registration.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}
