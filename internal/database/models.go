// internal/database/models.go
package database

import (
	"time"
)

// Table selects which device table an operation targets. The devices and
// vlan tables share the same shape but hold disjoint id spaces.
type Table string

const (
	TableDevices Table = "devices"
	TableVLAN    Table = "vlan"
)

// Device type labels assigned by the classifier.
const (
	TypeUnknown         = "Dispositivo"
	TypeComputer        = "Computador"
	TypePrinter         = "Impressora"
	TypeRouter          = "Roteador"
	TypeServer          = "Servidor"
	TypeSwitch          = "Switch"
	TypeIPCamera        = "Camera IP"
	TypeFiscalPrinter   = "Impressora Fiscal"
	TypeCashRegister    = "PDV"
	UserNotIdentified   = "not identified"
	SectorNotIdentified = "not identified"
)

type Device struct {
	ID       int64  `json:"id"`
	IP       string `json:"ip"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	User     string `json:"user"`
	Sector   string `json:"sector"`
	Status   int    `json:"status"`
	MAC      string `json:"mac,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	Hostname string `json:"hostname,omitempty"`

	// OpenPorts is the fingerprint from the most recent probe. It is used
	// for classification and pushed with events, never persisted.
	OpenPorts []int `json:"open_ports,omitempty"`

	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PingHistory struct {
	ID           int64     `json:"id"`
	DeviceID     *int64    `json:"device_id,omitempty"`
	IP           string    `json:"ip"`
	Status       int       `json:"status"`
	ResponseTime float64   `json:"response_time_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

type DeviceFilters struct {
	Status *int
	Type   string
	Sector string
}

// ExecResult is what the query gateway hands back. On storage failure the
// gateway logs and returns the zero value, so callers treat "no data" and
// "error" uniformly.
type ExecResult struct {
	Rows         []map[string]interface{} `json:"rows"`
	RowsAffected int64                    `json:"rows_affected"`
}

// Settings keys the orchestrator reads at run start.
const (
	SettingDiscoveryInterval    = "discovery_interval"
	SettingPingTimeout          = "ping_timeout"
	SettingBatchSize            = "batch_size"
	SettingAutoDiscoveryEnabled = "auto_discovery_enabled"
)
