// internal/discovery/engine_test.go
package discovery

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanmap/internal/config"
	"lanmap/internal/database"
	"lanmap/internal/metrics"
	"lanmap/internal/resolve"
)

// fakeProber answers from a fixed ip -> open ports map.
type fakeProber struct {
	mu    sync.Mutex
	open  map[string][]int
	delay time.Duration
	panic map[string]bool
}

func (f *fakeProber) Probe(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	f.mu.Lock()
	ports := f.open[ip]
	f.mu.Unlock()
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

func (f *fakeProber) ScanPorts(ctx context.Context, ip string, ports []int, timeout time.Duration) []int {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic[ip] {
		panic("probe blew up")
	}
	return f.open[ip]
}

func emptyResolvers() resolve.Set {
	return resolve.Set{
		ReverseDNS: func(ctx context.Context, ip string) (string, bool) { return "", false },
		MAC:        func(ctx context.Context, ip string) (string, bool) { return "", false },
		Vendor:     func(mac string) (string, bool) { return "", false },
		NetBIOS:    func(ctx context.Context, ip string) (resolve.NetBIOSInfo, bool) { return resolve.NetBIOSInfo{}, false },
		SNMP:       func(ctx context.Context, ip string) (resolve.SNMPInfo, bool) { return resolve.SNMPInfo{}, false },
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{HistoryRetention: 24 * time.Hour},
		Discovery: config.DiscoveryConfig{
			Interval:         30 * time.Minute,
			SweepBatchSize:   2,
			RefreshBatchSize: 2,
			BatchDelay:       time.Millisecond,
			ProbeTimeout:     50 * time.Millisecond,
			RecheckInterval:  time.Hour,
			Ranges: []config.RangeConfig{
				{Range: "10.0.11", Start: 1, End: 3, Type: "devices"},
			},
		},
	}
}

func newTestEngine(t *testing.T, prober *fakeProber) (*Engine, database.Store) {
	t.Helper()
	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "lanmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := NewEngine(testConfig(), store, metrics.NewCollector(store))
	engine.prober = prober
	engine.resolvers = emptyResolvers()
	return engine, store
}

// runAndCollect starts one run and returns every event published up to and
// including the completion event.
func runAndCollect(t *testing.T, engine *Engine, start func() error) []Event {
	t.Helper()
	events, cancel := engine.Bus().Subscribe()
	defer cancel()

	require.NoError(t, start())

	var collected []Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case event := <-events:
			collected = append(collected, event)
			if event.Type == EventComplete {
				return collected
			}
		case <-deadline:
			t.Fatal("discovery run did not complete in time")
		}
	}
}

func TestSweepEndToEnd(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{
		"10.0.11.1": {80},
		"10.0.11.3": {631, 9100},
	}}
	engine, store := newTestEngine(t, prober)

	events := runAndCollect(t, engine, engine.StartSweep)

	newDevices := 0
	for _, event := range events {
		if event.Type == EventNewDevice {
			newDevices++
		}
	}
	assert.Equal(t, 2, newDevices)

	complete := events[len(events)-1].Data.(CompleteData)
	assert.Equal(t, 2, complete.FoundDevices)
	assert.Equal(t, 3, complete.TotalProcessed)

	ctx := context.Background()
	devices, err := store.GetDevices(ctx, database.TableDevices, database.DeviceFilters{})
	require.NoError(t, err)
	require.Len(t, devices, 2)

	printer, err := store.GetDeviceByIP(ctx, database.TableDevices, "10.0.11.3")
	require.NoError(t, err)
	assert.Equal(t, database.TypePrinter, printer.Type)
	assert.Equal(t, 1, printer.Status)
	assert.Equal(t, "Administração", printer.Sector)

	// .2 answered nothing: no row.
	_, err = store.GetDeviceByIP(ctx, database.TableDevices, "10.0.11.2")
	assert.Error(t, err)

	status := engine.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 2, status.FoundDevices)
	require.NotNil(t, status.LastRun)
}

func TestSweepNeverDuplicatesRows(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{
		"10.0.11.1": {80},
		"10.0.11.3": {631, 9100},
	}}
	engine, store := newTestEngine(t, prober)

	runAndCollect(t, engine, engine.StartSweep)
	events := runAndCollect(t, engine, engine.StartSweep)

	// The second sweep skips every known IP.
	complete := events[len(events)-1].Data.(CompleteData)
	assert.Equal(t, 0, complete.FoundDevices)
	assert.Equal(t, 1, complete.TotalProcessed) // only .2 is still unknown

	devices, err := store.GetDevices(context.Background(), database.TableDevices, database.DeviceFilters{})
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestSingleFlight(t *testing.T) {
	prober := &fakeProber{
		open:  map[string][]int{"10.0.11.1": {80}},
		delay: 100 * time.Millisecond,
	}
	engine, _ := newTestEngine(t, prober)

	events, cancel := engine.Bus().Subscribe()
	defer cancel()

	require.NoError(t, engine.StartSweep())
	assert.ErrorIs(t, engine.StartRefresh(), ErrAlreadyRunning)
	assert.ErrorIs(t, engine.StartSweep(), ErrAlreadyRunning)
	assert.True(t, engine.GetStatus().IsRunning)

	deadline := time.After(10 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == EventComplete {
				// Once idle again, a new run is accepted.
				require.NoError(t, engine.StartSweep())
				return
			}
		case <-deadline:
			t.Fatal("discovery run did not complete in time")
		}
	}
}

func TestProgressIsMonotonicAndEndsAt100(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{"10.0.11.2": {22}}}
	engine, _ := newTestEngine(t, prober)

	events := runAndCollect(t, engine, engine.StartSweep)

	last := -1
	for _, event := range events {
		if event.Type != EventProgress {
			continue
		}
		data := event.Data.(ProgressData)
		assert.GreaterOrEqual(t, data.Progress, last)
		last = data.Progress
	}
	assert.Equal(t, 100, last)
	assert.Equal(t, 100, engine.GetStatus().Progress)
}

func TestDevicePanicDoesNotAbortRun(t *testing.T) {
	prober := &fakeProber{
		open:  map[string][]int{"10.0.11.1": {80}, "10.0.11.3": {631, 9100}},
		panic: map[string]bool{"10.0.11.2": true},
	}
	engine, store := newTestEngine(t, prober)

	events := runAndCollect(t, engine, engine.StartSweep)

	complete := events[len(events)-1].Data.(CompleteData)
	assert.Equal(t, 2, complete.FoundDevices)

	devices, err := store.GetDevices(context.Background(), database.TableDevices, database.DeviceFilters{})
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	status := engine.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Equal(t, 100, status.Progress)
}

func TestRefreshUpdatesInPlace(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{"10.0.11.1": {135, 445}}}
	engine, store := newTestEngine(t, prober)
	ctx := context.Background()

	require.NoError(t, store.InsertDevice(ctx, database.TableDevices, &database.Device{
		IP: "10.0.11.1", Name: "pc-recepcao", Type: database.TypeComputer,
		MAC: "AA:BB:CC:00:11:22", Vendor: "Dell", Hostname: "pc-recepcao.local",
		Status: 1,
	}))
	require.NoError(t, store.InsertDevice(ctx, database.TableDevices, &database.Device{
		IP: "10.0.11.2", Name: "pc-gerencia", Status: 1,
	}))

	events := runAndCollect(t, engine, engine.StartRefresh)

	complete := events[len(events)-1].Data.(CompleteData)
	assert.Equal(t, 1, complete.FoundDevices)
	assert.Equal(t, 2, complete.TotalProcessed)

	// Enrichment found no MAC this pass: the stored one must survive.
	alive, err := store.GetDeviceByIP(ctx, database.TableDevices, "10.0.11.1")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:00:11:22", alive.MAC)
	assert.Equal(t, "Dell", alive.Vendor)
	assert.Equal(t, "pc-recepcao.local", alive.Hostname)
	assert.Equal(t, "pc-recepcao", alive.Name)
	assert.Equal(t, 1, alive.Status)

	// The silent host goes offline but keeps its identity.
	dead, err := store.GetDeviceByIP(ctx, database.TableDevices, "10.0.11.2")
	require.NoError(t, err)
	assert.Equal(t, 0, dead.Status)
	assert.Equal(t, "pc-gerencia", dead.Name)

	// No new rows appear during refresh.
	devices, err := store.GetDevices(ctx, database.TableDevices, database.DeviceFilters{})
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestRefreshFailedWriteNotCountedAsFound(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{"10.0.11.1": {80}}}
	engine, store := newTestEngine(t, prober)
	ctx := context.Background()

	device := &database.Device{IP: "10.0.11.1", Status: 1}
	require.NoError(t, store.InsertDevice(ctx, database.TableDevices, device))

	settings := engine.readRunSettings(ctx, ModeRefresh)

	// With the store gone the update write fails; the device answered but
	// must not be reported as refreshed.
	require.NoError(t, store.Close())
	ok := engine.refreshExisting(ctx, target{
		ip:     device.IP,
		table:  database.TableDevices,
		device: device,
	}, settings, "run-x")
	assert.False(t, ok)
}

func TestRunSettingsComeFromStore(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{}}
	engine, store := newTestEngine(t, prober)
	ctx := context.Background()

	require.NoError(t, store.SetSetting(ctx, database.SettingBatchSize, "7"))
	require.NoError(t, store.SetSetting(ctx, database.SettingPingTimeout, "250ms"))

	settings := engine.readRunSettings(ctx, ModeSweep)
	assert.Equal(t, 7, settings.batchSize)
	assert.Equal(t, 250*time.Millisecond, settings.probeTimeout)

	// Garbage values fall back to the config file.
	require.NoError(t, store.SetSetting(ctx, database.SettingBatchSize, "zero"))
	settings = engine.readRunSettings(ctx, ModeSweep)
	assert.Equal(t, 2, settings.batchSize)
}

func TestEnrichmentUsesNetBIOSAndSNMP(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{"10.0.11.5": {139, 161}}}
	engine, _ := newTestEngine(t, prober)

	engine.resolvers.NetBIOS = func(ctx context.Context, ip string) (resolve.NetBIOSInfo, bool) {
		return resolve.NetBIOSInfo{Name: "PC-ADM-01", User: "carlos"}, true
	}
	engine.resolvers.SNMP = func(ctx context.Context, ip string) (resolve.SNMPInfo, bool) {
		return resolve.SNMPInfo{SysName: "pc-adm-01"}, true
	}
	engine.resolvers.MAC = func(ctx context.Context, ip string) (string, bool) {
		return "00:14:22:01:02:03", true
	}
	engine.resolvers.Vendor = resolve.VendorForMAC

	device := engine.enrich(context.Background(), "10.0.11.5", []int{139, 161})
	assert.Equal(t, "PC-ADM-01", device.Name)
	assert.Equal(t, "carlos", device.User)
	assert.Equal(t, "00:14:22:01:02:03", device.MAC)
	assert.Equal(t, "Dell", device.Vendor)
	assert.Equal(t, "pc-adm-01", device.Hostname)
	assert.Equal(t, "Administração", device.Sector)
}

func TestEnrichmentSkipsGatedResolvers(t *testing.T) {
	prober := &fakeProber{open: map[string][]int{}}
	engine, _ := newTestEngine(t, prober)

	engine.resolvers.NetBIOS = func(ctx context.Context, ip string) (resolve.NetBIOSInfo, bool) {
		t.Error("NetBIOS queried without port 139/445 open")
		return resolve.NetBIOSInfo{}, false
	}
	engine.resolvers.SNMP = func(ctx context.Context, ip string) (resolve.SNMPInfo, bool) {
		t.Error("SNMP queried without port 161 open")
		return resolve.SNMPInfo{}, false
	}

	device := engine.enrich(context.Background(), "10.0.11.6", []int{80})
	assert.Empty(t, device.Name)
	assert.Equal(t, 1, device.Status)
}
