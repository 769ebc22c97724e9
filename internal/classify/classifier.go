// internal/classify/classifier.go - heuristic device-type scoring
package classify

import (
	"strconv"
	"strings"

	"lanmap/internal/database"
)

// Signals is the partial evidence gathered for one device.
type Signals struct {
	OpenPorts []int
	Hostname  string
	Name      string
	MAC       string
	Vendor    string
}

// Signature describes one device type. Scoring weights:
// port overlap 0.4, hostname substring 0.3, last-octet range 0.2,
// vendor match 0.1. Below MinConfidence the generic label wins.
type Signature struct {
	Type      string
	Ports     []int
	Hostnames []string
	Vendors   []string
	Ranges    []OctetRange
}

type OctetRange struct {
	Low  int
	High int
}

const (
	weightPorts    = 0.4
	weightHostname = 0.3
	weightIPRange  = 0.2
	weightVendor   = 0.1

	// MinConfidence is the floor a best score must clear; below it the
	// device stays "Dispositivo".
	MinConfidence = 0.3
)

// signatures is ordered: on equal score the earlier entry wins.
var signatures = []Signature{
	{
		Type:      database.TypeCashRegister,
		Ports:     []int{135, 139, 445, 10001},
		Hostnames: []string{"pdv", "caixa", "pos"},
		Vendors:   []string{"Positivo", "Bematech"},
		Ranges:    []OctetRange{{101, 150}},
	},
	{
		Type:      database.TypeFiscalPrinter,
		Ports:     []int{9100, 10001, 10002},
		Hostnames: []string{"fiscal", "bematech", "daruma"},
		Vendors:   []string{"Bematech", "Epson"},
		Ranges:    []OctetRange{{201, 220}},
	},
	{
		Type:      database.TypePrinter,
		Ports:     []int{515, 631, 9100, 161},
		Hostnames: []string{"printer", "imp", "hp", "epson", "brother", "laserjet"},
		Vendors:   []string{"HP", "Epson", "Samsung"},
	},
	{
		Type:      database.TypeServer,
		Ports:     []int{22, 3306, 5432, 80, 443},
		Hostnames: []string{"srv", "server", "dc", "sql", "nas"},
		Vendors:   []string{"VMware", "VirtualBox", "Hyper-V"},
	},
	{
		Type:      database.TypeComputer,
		Ports:     []int{135, 139, 445, 3389},
		Hostnames: []string{"pc", "desktop", "note", "win", "workstation"},
		Vendors:   []string{"Dell", "HP", "Positivo"},
	},
	{
		Type:      database.TypeRouter,
		Ports:     []int{80, 443, 23, 53},
		Hostnames: []string{"router", "gateway", "gw", "mikrotik", "rb"},
		Vendors:   []string{"TP-Link", "D-Link", "Cisco"},
	},
	{
		Type:      database.TypeSwitch,
		Ports:     []int{23, 161, 22},
		Hostnames: []string{"sw", "switch"},
		Vendors:   []string{"Cisco", "HP", "D-Link"},
	},
	{
		Type:      database.TypeIPCamera,
		Ports:     []int{554, 8080, 37777},
		Hostnames: []string{"cam", "camera", "dvr", "nvr", "hikvision", "intelbras"},
		Vendors:   []string{"D-Link", "TP-Link"},
	},
}

// rangeOverrides fire ahead of scoring: on these networks the addressing
// convention is a stronger signal than any port fingerprint.
var rangeOverrides = []struct {
	Range OctetRange
	Type  string
}{
	{OctetRange{101, 150}, database.TypeCashRegister},
	{OctetRange{201, 220}, database.TypeFiscalPrinter},
}

// Classify scores the signals against every signature and returns the best
// type label, falling back to "Dispositivo" below the confidence floor.
// Deterministic: same input, same output.
func Classify(ip string, signals Signals) string {
	octet, octetOK := lastOctet(ip)

	if octetOK {
		for _, override := range rangeOverrides {
			if octet >= override.Range.Low && octet <= override.Range.High {
				return override.Type
			}
		}
	}

	bestType := database.TypeUnknown
	bestScore := 0.0

	for _, sig := range signatures {
		score := scoreSignature(sig, signals, octet, octetOK)
		if score > bestScore {
			bestScore = score
			bestType = sig.Type
		}
	}

	if bestScore < MinConfidence {
		return database.TypeUnknown
	}
	return bestType
}

func scoreSignature(sig Signature, signals Signals, octet int, octetOK bool) float64 {
	score := 0.0

	if len(sig.Ports) > 0 && len(signals.OpenPorts) > 0 {
		matched := 0
		for _, want := range sig.Ports {
			for _, got := range signals.OpenPorts {
				if want == got {
					matched++
					break
				}
			}
		}
		// Normalize by the smaller set: a printer answering only on
		// 9100/631 is still a full port match for the printer signature.
		denom := len(sig.Ports)
		if len(signals.OpenPorts) < denom {
			denom = len(signals.OpenPorts)
		}
		score += weightPorts * float64(matched) / float64(denom)
	}

	if hostnameMatches(sig.Hostnames, signals.Hostname, signals.Name) {
		score += weightHostname
	}

	if octetOK {
		for _, r := range sig.Ranges {
			if octet >= r.Low && octet <= r.High {
				score += weightIPRange
				break
			}
		}
	}

	if signals.Vendor != "" {
		for _, vendor := range sig.Vendors {
			if strings.EqualFold(vendor, signals.Vendor) {
				score += weightVendor
				break
			}
		}
	}

	return score
}

func hostnameMatches(patterns []string, hostname, name string) bool {
	candidate := strings.ToLower(hostname)
	if candidate == "" {
		candidate = strings.ToLower(name)
	}
	if candidate == "" {
		return false
	}
	for _, pattern := range patterns {
		if strings.Contains(candidate, pattern) {
			return true
		}
	}
	return false
}

func lastOctet(ip string) (int, bool) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, false
	}
	octet, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, false
	}
	return octet, true
}
