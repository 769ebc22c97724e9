// internal/discovery/scheduler.go - periodic refresh and liveness recheck loops
package discovery

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"lanmap/internal/database"
	"lanmap/internal/probe"
)

// recheckConcurrency bounds the lightweight liveness loop so it never
// competes with a full discovery run for sockets.
const recheckConcurrency = 16

// runScheduler fires a refresh run on the configured interval. The interval
// and the enabled flag are re-read from settings before every cycle, so API
// edits take effect without a restart.
func (e *Engine) runScheduler(ctx context.Context) {
	for {
		interval := e.settingDuration(ctx, database.SettingDiscoveryInterval, e.cfg.Discovery.Interval)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if !e.settingBool(ctx, database.SettingAutoDiscoveryEnabled, e.cfg.Discovery.AutoEnabled) {
			logrus.Debug("Auto discovery disabled, skipping scheduled refresh")
			continue
		}

		if err := e.StartRefresh(); err != nil {
			logrus.WithError(err).Debug("Scheduled refresh skipped")
		}
	}
}

// runRecheckLoop is the cheap heartbeat between full runs: it probes only the
// prioritized liveness ports, records response times in ping history, and
// prunes entries past the retention window.
func (e *Engine) runRecheckLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Discovery.RecheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.recheckAll(ctx)
		}
	}
}

func (e *Engine) recheckAll(ctx context.Context) {
	timeout := e.settingTimeout(ctx)

	for _, table := range []database.Table{database.TableDevices, database.TableVLAN} {
		devices, err := e.store.GetDevices(ctx, table, database.DeviceFilters{})
		if err != nil {
			logrus.WithError(err).WithField("table", table).Error("Recheck failed to list devices")
			continue
		}

		sem := make(chan struct{}, recheckConcurrency)
		for i := range devices {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}
			go func(d database.Device) {
				defer func() { <-sem }()
				e.recheckDevice(ctx, table, d, timeout)
			}(devices[i])
		}
		for i := 0; i < recheckConcurrency; i++ {
			sem <- struct{}{}
		}
	}

	cutoff := time.Now().Add(-e.cfg.Database.HistoryRetention)
	if pruned, err := e.store.PrunePingHistory(ctx, cutoff); err != nil {
		logrus.WithError(err).Error("Failed to prune ping history")
	} else if pruned > 0 {
		logrus.WithField("pruned", pruned).Debug("Ping history pruned")
	}

	if err := e.metrics.UpdateInventoryMetrics(ctx); err != nil {
		logrus.WithError(err).Debug("Failed to update inventory metrics")
	}
}

func (e *Engine) recheckDevice(ctx context.Context, table database.Table, d database.Device, timeout time.Duration) {
	started := time.Now()
	alive := false
	for _, port := range probe.LivenessPorts {
		if e.prober.Probe(ctx, d.IP, port, timeout) {
			alive = true
			break
		}
	}
	responseTime := float64(time.Since(started).Microseconds()) / 1000.0
	e.metrics.RecordProbe(alive)

	status := 0
	if alive {
		status = 1
	}

	if status != d.Status {
		e.store.UpdateDeviceStatusWithRetry(ctx, table, d.IP, status)
	}

	entry := &database.PingHistory{
		IP:           d.IP,
		Status:       status,
		ResponseTime: responseTime,
		Timestamp:    time.Now(),
	}
	if table == database.TableDevices {
		entry.DeviceID = &d.ID
	}
	if err := e.store.InsertPingHistory(ctx, entry); err != nil {
		logrus.WithError(err).WithField("ip", d.IP).Error("Failed to record ping history")
	}
}

func (e *Engine) settingDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if raw, err := e.store.GetSetting(ctx, key); err == nil {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func (e *Engine) settingBool(ctx context.Context, key string, fallback bool) bool {
	if raw, err := e.store.GetSetting(ctx, key); err == nil {
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return fallback
}

func (e *Engine) settingTimeout(ctx context.Context) time.Duration {
	return e.settingDuration(ctx, database.SettingPingTimeout, e.cfg.Discovery.ProbeTimeout)
}
