package webhook

import (
	"net"
	"net/netip"
	"net/url"

	"github.com/cronback-io/cronback/internal/domain"
)

// ValidateDestination rejects a webhook URL whose scheme is not http/https,
// or whose host resolves to any address that is not globally routable. It
// runs before every attempt rather than being cached, since DNS answers for
// a destination can change between runs.
func ValidateDestination(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.ErrNonRoutableDestination
	}

	host := u.Hostname()
	if host == "" {
		return domain.ErrNonRoutableDestination
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !isGloballyRoutable(addr) {
			return domain.ErrNonRoutableDestination
		}
		return nil
	}

	addrs, err := net.LookupIP(host)
	if err != nil || len(addrs) == 0 {
		return domain.ErrNonRoutableDestination
	}
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a)
		if !ok || !isGloballyRoutable(addr) {
			return domain.ErrNonRoutableDestination
		}
	}
	return nil
}

// isGloballyRoutable rejects private, loopback, link-local, multicast,
// unspecified, and other IANA-reserved ranges (this-network, shared address
// space, IETF protocol assignments, documentation, benchmarking, and the
// 240.0.0.0/4 reserved block).
func isGloballyRoutable(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range []string{"0.0.0.0/8", "100.64.0.0/10", "192.0.0.0/24", "192.0.2.0/24",
		"198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24", "240.0.0.0/4", "2001:db8::/32"} {
		if netip.MustParsePrefix(p).Contains(addr) {
			return false
		}
	}
	switch {
	case addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified():
		return false
	}
	return true
}
