// internal/resolve/dns.go
package resolve

import (
	"context"
	"net"
	"strings"
)

// ReverseDNS resolves ip to its PTR name. The first name wins and the domain
// suffix is stripped, so "printer-01.corp.example.com." becomes "printer-01".
func ReverseDNS(ctx context.Context, ip string) (string, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, DNSTimeout)
	defer cancel()

	var resolver net.Resolver
	names, err := resolver.LookupAddr(lookupCtx, ip)
	if err != nil || len(names) == 0 {
		return "", false
	}

	name := strings.TrimSuffix(names[0], ".")
	if name == "" {
		return "", false
	}
	return strings.Split(name, ".")[0], true
}
