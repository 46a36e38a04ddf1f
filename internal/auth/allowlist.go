package auth

import (
	"fmt"
	"net/netip"
	"strings"
)

// AllowList restricts clients to a set of addresses and networks. An empty
// list allows every client.
type AllowList struct {
	prefixes []netip.Prefix
}

// NewAllowList parses entries as CIDR prefixes or single addresses.
func NewAllowList(entries []string) (*AllowList, error) {
	a := &AllowList{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAllowList, e, err)
			}
			a.prefixes = append(a.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAllowList, e, err)
		}
		addr = addr.Unmap()
		a.prefixes = append(a.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return a, nil
}

// Enabled reports whether any restriction is configured.
func (a *AllowList) Enabled() bool { return a != nil && len(a.prefixes) > 0 }

// Allowed reports whether ip may connect. Unparseable addresses are refused
// when the list is enabled.
func (a *AllowList) Allowed(ip string) bool {
	if !a.Enabled() {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
