package action

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrBlockedURL is returned for webhook targets that are not public HTTPS endpoints.
var ErrBlockedURL = errors.New("blocked webhook url")

var blockedNetworks = mustParseCIDRs(
	"0.0.0.0/8",
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// IsBlockedIP reports whether ip is loopback, private, link-local or unspecified.
// IPv4-mapped IPv6 addresses are checked as IPv4.
func IsBlockedIP(ip net.IP) bool {
	if ip == nil || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range blockedNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// URLGuard decides whether a webhook target may be called.
type URLGuard struct {
	resolver Resolver
}

func NewURLGuard(resolver Resolver) *URLGuard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &URLGuard{resolver: resolver}
}

// Check parses raw and rejects anything but HTTPS URLs whose host resolves
// only to public addresses.
func (g *URLGuard) Check(ctx context.Context, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL", ErrBlockedURL)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only https URLs are allowed", ErrBlockedURL)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrBlockedURL)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, fmt.Errorf("%w: localhost is not allowed", ErrBlockedURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: address %s is private or reserved", ErrBlockedURL, ip)
		}
		return u, nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrBlockedURL, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrBlockedURL, host)
	}
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s resolves to private or reserved address %s", ErrBlockedURL, host, a.IP)
		}
	}
	return u, nil
}

const maxWebhookRedirects = 5

// NewWebhookClient returns an HTTP client that re-validates every redirect and
// refuses to dial blocked addresses, which also covers DNS answers that change
// between Check and the connection.
func NewWebhookClient(guard *URLGuard, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if IsBlockedIP(net.ParseIP(host)) {
				return fmt.Errorf("%w: dial to %s refused", ErrBlockedURL, host)
			}
			return nil
		},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: redirectPolicy(guard),
	}
}

func redirectPolicy(guard *URLGuard) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxWebhookRedirects {
			return fmt.Errorf("stopped after %d redirects", maxWebhookRedirects)
		}
		_, err := guard.Check(req.Context(), req.URL.String())
		return err
	}
}
