package policy

import (
	"net"
	"net/http"
	"strings"
)

const ipv4MappedPrefix = "::ffff:"

// ClientIP extracts the caller IP: the leftmost X-Forwarded-For entry when present,
// otherwise the transport peer address. The IPv4-mapped IPv6 prefix is stripped.
func ClientIP(r *http.Request) string {
	var ip string
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else {
		ip = peerHost(r.RemoteAddr)
	}
	return NormalizeIP(ip)
}

// NormalizeIP trims whitespace and strips the IPv4-mapped IPv6 prefix.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	return strings.TrimPrefix(ip, ipv4MappedPrefix)
}

func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// AllowList is an immutable set of IP literals permitted to authenticate.
type AllowList struct {
	ips map[string]struct{}
}

// NewAllowList builds an AllowList. Entries are normalized; empty entries are ignored.
func NewAllowList(ips []string) *AllowList {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if n := NormalizeIP(ip); n != "" {
			set[n] = struct{}{}
		}
	}
	return &AllowList{ips: set}
}

// Check reports whether ip is on the list, returning the normalized IP for logging.
func (a *AllowList) Check(ip string) (bool, string) {
	n := NormalizeIP(ip)
	if a == nil {
		return false, n
	}
	_, ok := a.ips[n]
	return ok, n
}

// Len returns the number of allowed IPs.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ips)
}
