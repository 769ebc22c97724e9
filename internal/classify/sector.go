// internal/classify/sector.go
package classify

import (
	"strings"

	"lanmap/internal/database"
)

type sectorRule struct {
	Prefix string
	Low    int
	High   int
	Sector string
}

// sectorRules map addressing convention to organizational zones. Prefix
// matches first, then the last-octet sub-range. A zero High means the whole
// subnet belongs to the sector.
var sectorRules = []sectorRule{
	{Prefix: "10.0.11.", Low: 1, High: 30, Sector: "Administração"},
	{Prefix: "10.0.11.", Low: 31, High: 100, Sector: "Vendas"},
	{Prefix: "10.0.11.", Low: 101, High: 150, Sector: "Caixas"},
	{Prefix: "10.0.11.", Low: 151, High: 200, Sector: "Estoque"},
	{Prefix: "10.0.11.", Low: 201, High: 240, Sector: "TI"},
	{Prefix: "10.0.20.", Sector: "VLAN Corporativa"},
	{Prefix: "192.168.25.", Sector: "Rede Visitantes"},
}

// DetectSector derives the organizational zone from the IP alone. Pure
// function: no I/O, no state.
func DetectSector(ip string) string {
	octet, ok := lastOctet(ip)
	if !ok {
		return database.SectorNotIdentified
	}

	for _, rule := range sectorRules {
		if !strings.HasPrefix(ip, rule.Prefix) {
			continue
		}
		if rule.High == 0 || (octet >= rule.Low && octet <= rule.High) {
			return rule.Sector
		}
	}
	return database.SectorNotIdentified
}
