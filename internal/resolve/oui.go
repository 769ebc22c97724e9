// internal/resolve/oui.go - OUI prefix to vendor mapping
package resolve

import (
	"strings"
)

// ouiVendors maps the first three MAC octets to a vendor label. The table is
// intentionally small: it covers the virtualization platforms and hardware
// makes seen on the networks this inventory targets.
var ouiVendors = map[string]string{
	"00:05:69": "VMware",
	"00:0C:29": "VMware",
	"00:1C:14": "VMware",
	"00:50:56": "VMware",
	"08:00:27": "VirtualBox",
	"00:15:5D": "Hyper-V",
	"00:03:93": "Apple",
	"00:1B:63": "Apple",
	"F0:18:98": "Apple",
	"00:14:22": "Dell",
	"00:1A:A0": "Dell",
	"18:A9:9B": "Dell",
	"00:1F:29": "HP",
	"00:25:B3": "HP",
	"3C:D9:2B": "HP",
	"00:05:5D": "D-Link",
	"00:26:5A": "D-Link",
	"00:27:19": "TP-Link",
	"50:C7:BF": "TP-Link",
	"00:40:96": "Cisco",
	"00:1B:54": "Cisco",
	"00:15:B9": "Samsung",
	"00:26:AB": "Epson",
	"00:00:48": "Epson",
	"00:90:FB": "Positivo",
	"00:40:45": "Bematech",
}

// VendorForMAC maps the OUI of mac against the vendor table. Unmapped OUIs
// yield no vendor rather than a guess.
func VendorForMAC(mac string) (string, bool) {
	if len(mac) < 8 {
		return "", false
	}
	vendor, ok := ouiVendors[strings.ToUpper(mac[:8])]
	return vendor, ok
}
