// internal/resolve/resolve.go - best-effort auxiliary lookups
//
// Every resolver in this package returns (value, ok) and swallows its own
// failures: a dead DNS server or a missing nmblookup binary must never keep
// the other resolvers from running or a device row from being written.
package resolve

import (
	"context"
	"time"
)

// Timeouts per resolver. NetBIOS and ARP shell out, so they get more room
// than the in-process lookups.
const (
	DNSTimeout     = 2 * time.Second
	ARPTimeout     = 4 * time.Second
	NetBIOSTimeout = 6 * time.Second
	SNMPTimeout    = 2 * time.Second
)

// NetBIOSInfo is the parsed result of a name-table query.
type NetBIOSInfo struct {
	Name      string
	User      string
	Workgroup string
}

// SNMPInfo holds the system group values of an SNMP GET.
type SNMPInfo struct {
	SysName    string
	SysDescr   string
	SysContact string
}

// Set bundles the resolvers the discovery engine composes per device. Fields
// are swappable so tests can substitute fakes for the network-touching ones.
type Set struct {
	ReverseDNS func(ctx context.Context, ip string) (string, bool)
	MAC        func(ctx context.Context, ip string) (string, bool)
	Vendor     func(mac string) (string, bool)
	NetBIOS    func(ctx context.Context, ip string) (NetBIOSInfo, bool)
	SNMP       func(ctx context.Context, ip string) (SNMPInfo, bool)
}

// DefaultSet wires the real resolvers.
func DefaultSet(snmpCommunity string) Set {
	return Set{
		ReverseDNS: ReverseDNS,
		MAC:        LookupMAC,
		Vendor:     VendorForMAC,
		NetBIOS:    QueryNetBIOS,
		SNMP:       NewSNMPClient(snmpCommunity).Query,
	}
}
