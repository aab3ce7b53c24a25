// Package privacy masks personal data before it reaches logs.
package privacy

import "net/netip"

// AnonymizeIP reduces an IP address to its network prefix so log lines can
// correlate abuse without storing the full client address. IPv4 keeps the
// first three octets, IPv6 keeps the /48 routing prefix.
func AnonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "unknown"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "unknown"
	}
	return prefix.String()
}
