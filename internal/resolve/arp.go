// internal/resolve/arp.go - ARP table MAC extraction
package resolve

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

const procNetARP = "/proc/net/arp"

var macPattern = regexp.MustCompile(`(?i)([0-9a-f]{2}[:-]){5}[0-9a-f]{2}`)

// LookupMAC finds the neighbor's hardware address for ip, preferring the
// kernel ARP table and falling back to the arp command on systems without
// /proc/net/arp. The result is normalized to uppercase colon-separated hex.
func LookupMAC(ctx context.Context, ip string) (string, bool) {
	if mac, ok := lookupProcARP(ip); ok {
		return mac, true
	}
	return lookupARPCommand(ctx, ip)
}

// lookupProcARP parses the Linux ARP table. Format:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func lookupProcARP(ip string) (string, bool) {
	file, err := os.Open(procNetARP)
	if err != nil {
		return "", false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || fields[0] != ip {
			continue
		}
		// 0x0 flags mean an incomplete entry
		if fields[2] == "0x0" {
			continue
		}
		return normalizeMAC(fields[3])
	}
	return "", false
}

func lookupARPCommand(ctx context.Context, ip string) (string, bool) {
	cmdCtx, cancel := context.WithTimeout(ctx, ARPTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, "arp", "-a", ip).Output()
	if err != nil {
		return "", false
	}

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, ip) {
			continue
		}
		if match := macPattern.FindString(line); match != "" {
			return normalizeMAC(match)
		}
	}
	return "", false
}

func normalizeMAC(raw string) (string, bool) {
	mac := strings.ToUpper(strings.ReplaceAll(raw, "-", ":"))
	if mac == "00:00:00:00:00:00" || mac == "*" {
		return "", false
	}
	if _, err := net.ParseMAC(mac); err != nil {
		return "", false
	}
	return mac, true
}
