// internal/database/store.go
package database

import (
	"context"
	"time"
)

// Store defines the interface for database operations
type Store interface {
	// Device operations (table selects devices vs vlan)
	GetDevices(ctx context.Context, table Table, filters DeviceFilters) ([]Device, error)
	GetDevice(ctx context.Context, table Table, id int64) (*Device, error)
	GetDeviceByIP(ctx context.Context, table Table, ip string) (*Device, error)
	KnownIPs(ctx context.Context, table Table) (map[string]bool, error)
	InsertDevice(ctx context.Context, table Table, device *Device) error

	// UpdateDeviceDiscovery merges discovery results into an existing row.
	// Empty mac/vendor/hostname/name/user values never overwrite stored ones.
	UpdateDeviceDiscovery(ctx context.Context, table Table, device *Device) error
	SetDeviceStatus(ctx context.Context, table Table, ip string, status int) error

	// UpdateDeviceStatusWithRetry is the bulk-refresh path: it retries
	// lock/busy errors with capped exponential backoff and returns false
	// once retries are exhausted, never an error.
	UpdateDeviceStatusWithRetry(ctx context.Context, table Table, ip string, status int) bool

	// Ping history
	InsertPingHistory(ctx context.Context, entry *PingHistory) error
	GetPingHistory(ctx context.Context, ip string, limit int) ([]PingHistory, error)
	PrunePingHistory(ctx context.Context, before time.Time) (int64, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	SeedSetting(ctx context.Context, key, value string) error
	GetSettings(ctx context.Context) (map[string]string, error)

	// Execute runs an arbitrary parameterized statement through the
	// error-containing gateway. It never returns an error.
	Execute(ctx context.Context, query string, args ...interface{}) ExecResult

	// Close the database connection
	Close() error
}
