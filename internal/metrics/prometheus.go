// internal/metrics/prometheus.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lanmap/internal/database"
)

// Prometheus metrics
var (
	DiscoveryRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanmap_discovery_runs_total",
			Help: "Total discovery runs started",
		},
		[]string{"mode"},
	)

	DiscoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanmap_discovery_duration_seconds",
			Help:    "Wall time of discovery runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	DevicesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanmap_devices_found_total",
			Help: "Devices discovered or refreshed per run mode",
		},
		[]string{"mode"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanmap_probes_total",
			Help: "Port probes issued, by result",
		},
		[]string{"result"},
	)

	InventorySize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lanmap_inventory_devices",
			Help: "Devices in the inventory by table and status",
		},
		[]string{"table", "status"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanmap_store_operations_total",
			Help: "Store operations performed, by status",
		},
		[]string{"operation", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanmap_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

type Collector struct {
	store database.Store
}

func NewCollector(store database.Store) *Collector {
	return &Collector{store: store}
}

func (c *Collector) RecordRun(mode string, found int, duration time.Duration) {
	DiscoveryRuns.WithLabelValues(mode).Inc()
	DiscoveryDuration.WithLabelValues(mode).Observe(duration.Seconds())
	DevicesFound.WithLabelValues(mode).Add(float64(found))
}

func (c *Collector) RecordProbe(open bool) {
	if open {
		ProbesTotal.WithLabelValues("open").Inc()
	} else {
		ProbesTotal.WithLabelValues("closed").Inc()
	}
}

func (c *Collector) RecordStoreOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperations.WithLabelValues(operation, status).Inc()
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}

// UpdateInventoryMetrics refreshes the per-table online/offline gauges.
func (c *Collector) UpdateInventoryMetrics(ctx context.Context) error {
	for _, table := range []database.Table{database.TableDevices, database.TableVLAN} {
		devices, err := c.store.GetDevices(ctx, table, database.DeviceFilters{})
		if err != nil {
			c.RecordStoreOperation("get_devices", err)
			return err
		}
		c.RecordStoreOperation("get_devices", nil)

		online := 0
		for _, d := range devices {
			if d.Status == 1 {
				online++
			}
		}
		InventorySize.WithLabelValues(string(table), "online").Set(float64(online))
		InventorySize.WithLabelValues(string(table), "offline").Set(float64(len(devices) - online))
	}
	return nil
}
