// internal/lifecycle/dns.go
//
// Live DNS verification.
//
// Context
// -------
// A tenant domain counts as DNS-configured once its public records point at
// the platform: either a CNAME onto one of the canonical platform hostnames
// or A/AAAA records overlapping the platform's own addresses.  Verification
// issues real resolver queries bounded by a deadline; a timeout or lookup
// failure is "not yet configured", never "configured".
//
// The lookuper seam exists so tests can fake the resolver; production wires
// *net.Resolver straight in.
package lifecycle

import (
	"context"
	"strings"
	"time"
)

// lookuper is the subset of *net.Resolver the checker needs.
type lookuper interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSChecker verifies that a domain's records reference the platform.
type DNSChecker struct {
	resolver      lookuper
	platformHosts []string
	timeout       time.Duration
}

// NewDNSChecker builds a checker.  platformHosts are canonical hostnames
// tenants are told to CNAME at; they are also resolved for the A-record
// comparison path.
func NewDNSChecker(resolver lookuper, platformHosts []string, timeout time.Duration) *DNSChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DNSChecker{
		resolver:      resolver,
		platformHosts: platformHosts,
		timeout:       timeout,
	}
}

// PointsAtPlatform reports whether domain's DNS references the platform.
// Errors (including deadline expiry) yield (false, err).
func (c *DNSChecker) PointsAtPlatform(ctx context.Context, domain string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// CNAME path first: cheap and what the onboarding docs prescribe.
	if cname, err := c.resolver.LookupCNAME(ctx, domain); err == nil {
		target := canonical(cname)
		for _, h := range c.platformHosts {
			if target == canonical(h) {
				return true, nil
			}
		}
	}

	// Apex domains cannot CNAME; compare resolved addresses instead.
	addrs, err := c.resolver.LookupHost(ctx, domain)
	if err != nil {
		return false, err
	}
	want := make(map[string]struct{})
	for _, h := range c.platformHosts {
		pAddrs, err := c.resolver.LookupHost(ctx, h)
		if err != nil {
			continue
		}
		for _, a := range pAddrs {
			want[a] = struct{}{}
		}
	}
	for _, a := range addrs {
		if _, ok := want[a]; ok {
			return true, nil
		}
	}
	return false, nil
}

// canonical lower-cases and strips the trailing dot from a DNS name.
func canonical(h string) string {
	return strings.ToLower(strings.TrimSuffix(h, "."))
}
