// internal/classify/classifier_test.go
package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lanmap/internal/database"
)

func TestClassifyPrinterByPorts(t *testing.T) {
	// Full signature overlap: perfect port score, no other signals needed.
	got := Classify("10.0.11.55", Signals{OpenPorts: []int{9100, 631, 515, 161}})
	assert.Equal(t, database.TypePrinter, got)

	// A printer that only answers on jetdirect and IPP still matches.
	got = Classify("10.0.11.3", Signals{OpenPorts: []int{631, 9100}})
	assert.Equal(t, database.TypePrinter, got)
}

func TestClassifyRangeOverrides(t *testing.T) {
	// No signals at all: the addressing convention alone decides.
	assert.Equal(t, database.TypeCashRegister, Classify("10.0.11.130", Signals{}))
	assert.Equal(t, database.TypeFiscalPrinter, Classify("10.0.11.210", Signals{}))

	// The override beats any port fingerprint.
	got := Classify("10.0.11.130", Signals{OpenPorts: []int{9100, 631, 515, 161}})
	assert.Equal(t, database.TypeCashRegister, got)
}

func TestClassifyBelowThresholdStaysGeneric(t *testing.T) {
	assert.Equal(t, database.TypeUnknown, Classify("10.0.11.50", Signals{}))
	assert.Equal(t, database.TypeUnknown, Classify("not-an-ip", Signals{}))
}

func TestClassifyHostnameSignal(t *testing.T) {
	got := Classify("10.0.11.10", Signals{
		OpenPorts: []int{22, 443},
		Hostname:  "srv-arquivos",
	})
	assert.Equal(t, database.TypeServer, got)

	// Name is the fallback when reverse DNS gave nothing.
	got = Classify("10.0.11.40", Signals{
		OpenPorts: []int{135, 445},
		Name:      "PC-VENDAS-02",
	})
	assert.Equal(t, database.TypeComputer, got)
}

func TestClassifyVendorSignal(t *testing.T) {
	got := Classify("10.0.11.60", Signals{
		OpenPorts: []int{135, 3389},
		Vendor:    "Dell",
	})
	assert.Equal(t, database.TypeComputer, got)
}

func TestClassifyDeterministic(t *testing.T) {
	signals := Signals{OpenPorts: []int{23, 161}, Hostname: "sw-core"}
	first := Classify("10.0.11.254", signals)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify("10.0.11.254", signals))
	}
}

func TestDetectSector(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"10.0.11.5", "Administração"},
		{"10.0.11.30", "Administração"},
		{"10.0.11.31", "Vendas"},
		{"10.0.11.100", "Vendas"},
		{"10.0.11.120", "Caixas"},
		{"10.0.11.160", "Estoque"},
		{"10.0.11.205", "TI"},
		{"10.0.11.250", database.SectorNotIdentified},
		{"10.0.20.7", "VLAN Corporativa"},
		{"192.168.25.10", "Rede Visitantes"},
		{"172.16.0.1", database.SectorNotIdentified},
		{"garbage", database.SectorNotIdentified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSector(tt.ip), "ip %s", tt.ip)
	}
}

func TestDetectSectorIsPure(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, "Caixas", DetectSector("10.0.11.110"))
	}
}
