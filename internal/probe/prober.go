// internal/probe/prober.go
package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// LivenessPorts is the small prioritized set whose response alone counts as
// "host is up". They lead the fingerprint list so a liveness answer arrives
// as early as possible within the single scan pass.
var LivenessPorts = []int{80, 443, 22, 135}

// FingerprintPorts is the full candidate list probed during enrichment.
var FingerprintPorts = []int{
	80, 443, 22, 135, // liveness set first
	21, 23, 25, 53, 110, 143, // ftp, telnet, smtp, dns, pop3, imap
	139, 445, // netbios / smb
	515, 631, 9100, 10001, 10002, // printing
	3306, 5432, // mysql, postgres
	3389, // rdp
	161,  // snmp
	8080, // web admin alternates
	554,  // rtsp / cameras
}

// Prober is the single-port probe contract. Implementations must be safe for
// concurrent use with disjoint (ip, port) pairs.
type Prober interface {
	Probe(ctx context.Context, ip string, port int, timeout time.Duration) bool
	ScanPorts(ctx context.Context, ip string, ports []int, timeout time.Duration) []int
}

// TCPProber opens one TCP connection attempt per probe. A successful connect
// is closed immediately; nothing is written or read.
type TCPProber struct{}

func NewTCPProber() *TCPProber {
	return &TCPProber{}
}

func (p *TCPProber) Probe(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
	if err != nil {
		// Refused/timeout/unreachable all mean "not listening" here.
		return false
	}
	conn.Close()
	return true
}

// ScanPorts probes every candidate port concurrently and returns the sorted
// open set. One pass answers both liveness and the fingerprint.
func (p *TCPProber) ScanPorts(ctx context.Context, ip string, ports []int, timeout time.Duration) []int {
	var (
		mu   sync.Mutex
		open []int
		wg   sync.WaitGroup
	)

	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			if p.Probe(ctx, ip, port, timeout) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()

	sort.Ints(open)
	return open
}

// IsAlive reports whether the host answered on any probed port. The
// fingerprint pass includes the prioritized liveness set, so a host that is
// up on any service is caught in the same sweep.
func IsAlive(openPorts []int) bool {
	return len(openPorts) > 0
}

// HasPort reports whether port is in the open set.
func HasPort(openPorts []int, port int) bool {
	for _, p := range openPorts {
		if p == port {
			return true
		}
	}
	return false
}
