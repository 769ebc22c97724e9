// internal/discovery/engine.go - the discovery orchestrator
package discovery

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lanmap/internal/classify"
	"lanmap/internal/config"
	"lanmap/internal/database"
	"lanmap/internal/metrics"
	"lanmap/internal/probe"
	"lanmap/internal/resolve"
)

type Mode string

const (
	ModeSweep   Mode = "sweep"
	ModeRefresh Mode = "refresh"
)

// ErrAlreadyRunning is the single-flight rejection: a second run is refused,
// never queued.
var ErrAlreadyRunning = errors.New("discovery already running")

// Status is the process-wide discovery record. The engine is its only
// writer; everyone else reads snapshots.
type Status struct {
	IsRunning    bool       `json:"isRunning"`
	Mode         Mode       `json:"mode,omitempty"`
	LastRun      *time.Time `json:"lastRun"`
	FoundDevices int        `json:"foundDevices"`
	Progress     int        `json:"progress"`
}

type Engine struct {
	cfg       *config.Config
	store     database.Store
	metrics   *metrics.Collector
	bus       *Bus
	prober    probe.Prober
	resolvers resolve.Set

	// running is the single-flight gate; status transitions happen only
	// between a successful CAS here and the deferred cleanup.
	running atomic.Bool
	mu      sync.RWMutex
	status  Status
}

func NewEngine(cfg *config.Config, store database.Store, metricsCollector *metrics.Collector) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		metrics:   metricsCollector,
		bus:       NewBus(),
		prober:    probe.NewTCPProber(),
		resolvers: resolve.DefaultSet(cfg.Discovery.SNMPCommunity),
	}
}

func (e *Engine) Bus() *Bus {
	return e.bus
}

// Start seeds the settings table and launches the periodic refresh and the
// lightweight recheck loops. Discovery runs themselves are triggered by the
// scheduler, the API, or tests.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.seedSettings(ctx); err != nil {
		return err
	}

	go e.runScheduler(ctx)
	go e.runRecheckLoop(ctx)

	logrus.WithField("ranges", len(e.cfg.Discovery.Ranges)).Info("Discovery engine started")
	return nil
}

func (e *Engine) seedSettings(ctx context.Context) error {
	seeds := map[string]string{
		database.SettingDiscoveryInterval:    e.cfg.Discovery.Interval.String(),
		database.SettingPingTimeout:          e.cfg.Discovery.ProbeTimeout.String(),
		database.SettingBatchSize:            strconv.Itoa(e.cfg.Discovery.RefreshBatchSize),
		database.SettingAutoDiscoveryEnabled: strconv.FormatBool(e.cfg.Discovery.AutoEnabled),
	}
	for key, value := range seeds {
		if err := e.store.SeedSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// StartSweep triggers a sweep run: every configured range is walked and
// unknown live IPs become new rows. Returns immediately.
func (e *Engine) StartSweep() error {
	return e.start(ModeSweep)
}

// StartRefresh triggers a refresh run over every persisted device/vlan row.
func (e *Engine) StartRefresh() error {
	return e.start(ModeRefresh)
}

func (e *Engine) start(mode Mode) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	e.mu.Lock()
	e.status.IsRunning = true
	e.status.Mode = mode
	e.status.FoundDevices = 0
	e.status.Progress = 0
	e.mu.Unlock()

	go e.run(mode)
	return nil
}

// GetStatus returns a read-only snapshot of the discovery record.
func (e *Engine) GetStatus() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

type target struct {
	ip     string
	table  database.Table
	device *database.Device // set in refresh mode
}

func (e *Engine) run(mode Mode) {
	ctx := context.Background()
	runID := uuid.New().String()
	started := time.Now()

	log := logrus.WithFields(logrus.Fields{"run_id": runID, "mode": mode})

	var processed, total int
	var found int64

	// Cleanup runs on every exit path, panics included: the status record
	// must never stay stuck in "running".
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Discovery run panicked")
		}

		now := time.Now()
		e.mu.Lock()
		e.status.IsRunning = false
		e.status.Progress = 100
		e.status.LastRun = &now
		finalFound := e.status.FoundDevices
		e.mu.Unlock()
		e.running.Store(false)

		duration := time.Since(started)
		e.metrics.RecordRun(string(mode), finalFound, duration)
		e.bus.Publish(Event{Type: EventComplete, RunID: runID, Data: CompleteData{
			FoundDevices:   finalFound,
			TotalProcessed: processed,
			DurationMs:     float64(duration.Milliseconds()),
		}})

		log.WithFields(logrus.Fields{
			"found":    finalFound,
			"duration": duration,
		}).Info("Discovery run complete")
	}()

	settings := e.readRunSettings(ctx, mode)

	targets, err := e.collectTargets(ctx, mode)
	if err != nil {
		log.WithError(err).Error("Failed to collect discovery targets")
		return
	}
	total = len(targets)
	log.WithField("targets", total).Info("Discovery run started")

	for start := 0; start < len(targets); start += settings.batchSize {
		end := start + settings.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]

		var wg sync.WaitGroup
		for _, t := range batch {
			wg.Add(1)
			go func(t target) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(logrus.Fields{"ip": t.ip, "panic": r}).
							Error("Device enrichment panicked")
					}
				}()

				if mode == ModeSweep {
					if e.discoverNew(ctx, t, settings, runID) {
						atomic.AddInt64(&found, 1)
					}
				} else {
					if e.refreshExisting(ctx, t, settings, runID) {
						atomic.AddInt64(&found, 1)
					}
				}
			}(t)
		}
		wg.Wait()

		processed += len(batch)
		progress := int(math.Round(float64(processed) / float64(total) * 100))
		e.publishProgress(runID, progress, processed, total, int(atomic.LoadInt64(&found)))

		if end < len(targets) {
			time.Sleep(settings.batchDelay)
		}
	}
}

func (e *Engine) publishProgress(runID string, progress, processed, total, found int) {
	e.mu.Lock()
	if progress > e.status.Progress {
		e.status.Progress = progress
	}
	e.status.FoundDevices = found
	progress = e.status.Progress
	e.mu.Unlock()

	e.bus.Publish(Event{Type: EventProgress, RunID: runID, Data: ProgressData{
		Progress:  progress,
		Processed: processed,
		Total:     total,
		Found:     found,
	}})
}

type runSettings struct {
	batchSize    int
	batchDelay   time.Duration
	probeTimeout time.Duration
}

// readRunSettings resolves tunables at run start: the settings table wins
// over config-file defaults, so API edits apply to the next run without a
// restart.
func (e *Engine) readRunSettings(ctx context.Context, mode Mode) runSettings {
	settings := runSettings{
		batchSize:    e.cfg.Discovery.SweepBatchSize,
		batchDelay:   e.cfg.Discovery.BatchDelay,
		probeTimeout: e.cfg.Discovery.ProbeTimeout,
	}
	if mode == ModeRefresh {
		settings.batchSize = e.cfg.Discovery.RefreshBatchSize
	}

	if raw, err := e.store.GetSetting(ctx, database.SettingBatchSize); err == nil {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			settings.batchSize = size
		}
	}
	if raw, err := e.store.GetSetting(ctx, database.SettingPingTimeout); err == nil {
		if timeout, err := time.ParseDuration(raw); err == nil && timeout > 0 {
			settings.probeTimeout = timeout
		}
	}
	return settings
}

func (e *Engine) collectTargets(ctx context.Context, mode Mode) ([]target, error) {
	if mode == ModeRefresh {
		var targets []target
		for _, table := range []database.Table{database.TableDevices, database.TableVLAN} {
			devices, err := e.store.GetDevices(ctx, table, database.DeviceFilters{})
			if err != nil {
				return nil, err
			}
			for i := range devices {
				targets = append(targets, target{ip: devices[i].IP, table: table, device: &devices[i]})
			}
		}
		return targets, nil
	}

	var targets []target
	for _, r := range e.cfg.Discovery.Ranges {
		table := database.TableDevices
		if r.Type == "vlan" {
			table = database.TableVLAN
		}

		known, err := e.store.KnownIPs(ctx, table)
		if err != nil {
			return nil, err
		}

		for octet := r.Start; octet <= r.End; octet++ {
			ip := r.Range + "." + strconv.Itoa(octet)
			// Sweep only looks for hosts we have never seen.
			if known[ip] {
				continue
			}
			targets = append(targets, target{ip: ip, table: table})
		}
	}
	return targets, nil
}

// discoverNew probes one candidate IP and inserts a row when it is alive.
// Reports whether a device was found.
func (e *Engine) discoverNew(ctx context.Context, t target, settings runSettings, runID string) bool {
	openPorts := e.prober.ScanPorts(ctx, t.ip, probe.FingerprintPorts, settings.probeTimeout)
	e.metrics.RecordProbe(len(openPorts) > 0)
	if !probe.IsAlive(openPorts) {
		return false
	}

	device := e.enrich(ctx, t.ip, openPorts)

	if err := e.store.InsertDevice(ctx, t.table, device); err != nil {
		e.metrics.RecordStoreOperation("insert_device", err)
		logrus.WithError(err).WithField("ip", t.ip).Error("Failed to insert device")
		return false
	}
	e.metrics.RecordStoreOperation("insert_device", nil)

	e.bus.Publish(Event{Type: EventNewDevice, RunID: runID, Data: device})
	logrus.WithFields(logrus.Fields{
		"ip":   device.IP,
		"type": device.Type,
		"name": device.Name,
	}).Info("New device found")
	return true
}

// refreshExisting re-probes one persisted row and updates it in place.
// Reports whether the device answered and its row was updated; a failed
// write does not count toward foundDevices.
func (e *Engine) refreshExisting(ctx context.Context, t target, settings runSettings, runID string) bool {
	openPorts := e.prober.ScanPorts(ctx, t.ip, probe.FingerprintPorts, settings.probeTimeout)
	e.metrics.RecordProbe(len(openPorts) > 0)

	if !probe.IsAlive(openPorts) {
		if e.store.UpdateDeviceStatusWithRetry(ctx, t.table, t.ip, 0) {
			e.bus.Publish(Event{Type: EventDeviceUpdate, RunID: runID, Data: map[string]interface{}{
				"id": t.device.ID, "table": string(t.table), "ip": t.ip, "status": 0,
			}})
		}
		return false
	}

	device := e.enrich(ctx, t.ip, openPorts)
	device.ID = t.device.ID

	if err := e.store.UpdateDeviceDiscovery(ctx, t.table, device); err != nil {
		e.metrics.RecordStoreOperation("update_device", err)
		logrus.WithError(err).WithField("ip", t.ip).Error("Failed to update device")
		return false
	}
	e.metrics.RecordStoreOperation("update_device", nil)

	e.bus.Publish(Event{Type: EventDeviceUpdate, RunID: runID, Data: device})
	return true
}

// enrich gathers every auxiliary signal for a live host and classifies it.
// Each resolver is isolated: one failing leaves the others' results intact.
func (e *Engine) enrich(ctx context.Context, ip string, openPorts []int) *database.Device {
	// Name stays empty unless a resolver produced one: the store defaults a
	// new row's name to the IP and a refresh must never clobber a learned
	// name with the bare address.
	device := &database.Device{
		IP:        ip,
		Status:    1,
		OpenPorts: openPorts,
		LastSeen:  time.Now(),
	}

	if hostname, ok := e.resolvers.ReverseDNS(ctx, ip); ok {
		device.Hostname = hostname
		device.Name = hostname
	}

	if mac, ok := e.resolvers.MAC(ctx, ip); ok {
		device.MAC = mac
		if vendor, ok := e.resolvers.Vendor(mac); ok {
			device.Vendor = vendor
		}
	}

	if probe.HasPort(openPorts, 139) || probe.HasPort(openPorts, 445) {
		if info, ok := e.resolvers.NetBIOS(ctx, ip); ok {
			if info.Name != "" {
				device.Name = info.Name
			}
			if info.User != "" {
				device.User = info.User
			}
		}
	}

	if probe.HasPort(openPorts, 161) {
		if info, ok := e.resolvers.SNMP(ctx, ip); ok && device.Hostname == "" && info.SysName != "" {
			device.Hostname = info.SysName
			if device.Name == "" {
				device.Name = info.SysName
			}
		}
	}

	device.Type = classify.Classify(ip, classify.Signals{
		OpenPorts: openPorts,
		Hostname:  device.Hostname,
		Name:      device.Name,
		MAC:       device.MAC,
		Vendor:    device.Vendor,
	})
	device.Sector = classify.DetectSector(ip)

	return device
}
