// Package drone implements the drone runtime: checkin loop, GetJobs
// stream consumption, outbound HTTP dispatch through a
// DNS-rebinding-resistant client, and local result buffering.
package drone

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// NewHardenedClient builds an http.Client whose DialContext resolves
// the target host itself, rejects loopback/link-local/private/
// unspecified addresses, and then dials the exact IP it validated —
// closing the TOCTOU gap a plain Transport has if the resolver
// re-resolves between the SSRF check and the connect call.
func NewHardenedClient(timeout time.Duration) *http.Client {
	resolver := &net.Resolver{}
	dialer := &net.Dialer{Timeout: timeout}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("drone: split host/port %q: %w", addr, err)
			}

			ips, err := resolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("drone: resolve %q: %w", host, err)
			}

			var allowed net.IP
			for _, ip := range ips {
				if isSafeTarget(ip.IP) {
					allowed = ip.IP
					break
				}
			}
			if allowed == nil {
				return nil, fmt.Errorf("drone: %q resolves only to disallowed addresses", host)
			}

			return dialer.DialContext(ctx, network, net.JoinHostPort(allowed.String(), port))
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// isSafeTarget rejects loopback, link-local, private, and unspecified
// ranges — the classes a scheduled outbound webhook must never reach.
func isSafeTarget(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return false
	}
	if ip.IsPrivate() {
		return false
	}
	return true
}
