package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// EndpointPolicy restricts which hosts outbound model calls may reach.
type EndpointPolicy struct {
	// AllowedHosts lists hostnames that may be dialled. Empty allows any host
	// that passes the address checks.
	AllowedHosts []string
	// AllowedSchemes defaults to http and https.
	AllowedSchemes []string
	// AllowLoopback permits 127.0.0.0/8 and ::1.
	AllowLoopback bool
	// BlockPrivateIPs rejects RFC1918 addresses for hosts that are not allowlisted.
	BlockPrivateIPs bool
}

// DefaultModelHosts are the hostnames a local Ollama install is usually reached at.
var DefaultModelHosts = []string{
	"localhost",
	"127.0.0.1",
	"::1",
	"ollama",
	"ollama-service",
}

// ModelHostAllowlist returns DefaultModelHosts plus extra and any
// comma-separated hosts in OLLAMA_ALLOWED_HOSTS.
func ModelHostAllowlist(extra ...string) []string {
	hosts := append([]string(nil), DefaultModelHosts...)
	for _, h := range extra {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if env := os.Getenv("OLLAMA_ALLOWED_HOSTS"); env != "" {
		for _, h := range strings.Split(env, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}

// DefaultEndpointPolicy allows loopback and blocks private ranges.
func DefaultEndpointPolicy() EndpointPolicy {
	return EndpointPolicy{
		AllowedSchemes:  []string{"http", "https"},
		AllowLoopback:   true,
		BlockPrivateIPs: true,
	}
}

// EndpointGuard validates model endpoints and re-checks every dial, so a DNS
// answer that changes after validation is still caught.
type EndpointGuard struct {
	policy  EndpointPolicy
	allowed map[string]bool
}

// NewEndpointGuard builds a guard for policy.
func NewEndpointGuard(policy EndpointPolicy) *EndpointGuard {
	if len(policy.AllowedSchemes) == 0 {
		policy.AllowedSchemes = []string{"http", "https"}
	}
	allowed := make(map[string]bool, len(policy.AllowedHosts))
	for _, h := range policy.AllowedHosts {
		allowed[strings.ToLower(h)] = true
	}
	return &EndpointGuard{policy: policy, allowed: allowed}
}

// NewModelEndpointGuard returns a guard allowing the default model hosts plus extra.
func NewModelEndpointGuard(extra ...string) *EndpointGuard {
	p := DefaultEndpointPolicy()
	p.AllowedHosts = ModelHostAllowlist(extra...)
	return NewEndpointGuard(p)
}

// CheckURL validates the scheme and host of rawURL.
func (g *EndpointGuard) CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	ok := false
	for _, s := range g.policy.AllowedSchemes {
		if strings.EqualFold(u.Scheme, s) {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid URL scheme: %s (only %v allowed)", u.Scheme, g.policy.AllowedSchemes)
	}
	return g.CheckHost(u.Hostname())
}

// CheckHost validates host against the allowlist and its resolved addresses.
func (g *EndpointGuard) CheckHost(host string) error {
	h := strings.ToLower(host)
	listed := g.allowed[h]
	if len(g.allowed) > 0 && !listed {
		return fmt.Errorf("host not in allowlist: %s", host)
	}

	if g.policy.AllowLoopback && h == "localhost" {
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Compose service names may not resolve outside their network.
		if listed && (h == "ollama" || h == "ollama-service" || strings.HasSuffix(h, ".local")) {
			return nil
		}
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if err := g.checkIP(ip, listed); err != nil {
			return fmt.Errorf("invalid IP address: %w", err)
		}
	}
	return nil
}

func (g *EndpointGuard) checkIP(ip net.IP, listed bool) error {
	if ip.IsLoopback() {
		if g.policy.AllowLoopback {
			return nil
		}
		return fmt.Errorf("loopback addresses not allowed: %s", ip)
	}
	if ip.String() == "169.254.169.254" {
		return fmt.Errorf("metadata service address blocked: %s", ip)
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("link-local addresses not allowed: %s", ip)
	}
	if ip.IsMulticast() {
		return fmt.Errorf("multicast addresses not allowed: %s", ip)
	}
	// Explicitly allowlisted hosts may live on a private network.
	if g.policy.BlockPrivateIPs && ip.IsPrivate() && !listed {
		return fmt.Errorf("private IP addresses not allowed: %s", ip)
	}
	return nil
}

// Transport returns an http.Transport whose dialer re-validates each host.
func (g *EndpointGuard) Transport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			if err := g.CheckHost(host); err != nil {
				return nil, fmt.Errorf("connection blocked: %w", err)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
