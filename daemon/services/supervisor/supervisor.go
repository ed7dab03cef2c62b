// Package supervisor implements the daemon's process lifecycle: CLI
// dispatch target for `start`, exclusive instance lock, signal handling,
// service-supervisor notification, and ordered startup/shutdown of the
// mode-specific controllers.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/lib"
	"github.com/systemd-swap/swapd/daemon/logger"
	"github.com/systemd-swap/swapd/daemon/services/kparam"
	"github.com/systemd-swap/swapd/daemon/services/meminfo"
	"github.com/systemd-swap/swapd/daemon/services/modeselect"
	"github.com/systemd-swap/swapd/daemon/services/sdnotify"
	"github.com/systemd-swap/swapd/daemon/services/status"
	"github.com/systemd-swap/swapd/daemon/services/swapfc"
	"github.com/systemd-swap/swapd/daemon/services/zram"
	"github.com/systemd-swap/swapd/daemon/services/zswap"
)

// Supervisor owns one running instance's controllers and the resources
// shared between them.
type Supervisor struct {
	appCtx *domain.Context
	mode   domain.Mode
	lock   *domain.InstanceLock

	sampler   *meminfo.Sampler
	zswapCtl  *zswap.Controller
	kparamCtl *kparam.Controller
	zramPool  *zram.Pool
	swapfcCtl *swapfc.Controller
	watcher   *swapfc.Watcher
	exporter  *status.Exporter

	kparams []kparam.Param

	mu           sync.Mutex
	latestSample meminfo.Sample
}

// New builds a Supervisor bound to an already-assembled application
// context. Controllers that depend on coerced config values aren't built
// until Start, since a bad value there is a fatal *domain.ConfigError that
// Start needs to be able to return rather than panic on.
func New(appCtx *domain.Context) *Supervisor {
	return &Supervisor{
		appCtx:   appCtx,
		exporter: status.NewExporter(),
	}
}

func (s *Supervisor) cfg() *domain.Config        { return s.appCtx.Config }
func (s *Supervisor) runtime() domain.RuntimeDir { return s.appCtx.Runtime }
func (s *Supervisor) hub() *domain.EventBus      { return s.appCtx.Hub }

// Start resolves the mode, acquires the instance lock, materializes the
// runtime snapshot, starts every controller the mode requires, and blocks
// until a shutdown signal arrives.
func (s *Supervisor) Start() error {
	lock, err := domain.AcquireLock(s.runtime())
	if err != nil {
		return domain.NewEnvironmentError("supervisor", err)
	}
	s.lock = lock
	defer s.lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	go s.handleReload()

	mode, err := ResolveMode(s.appCtx)
	if err != nil {
		return err
	}
	s.mode = mode
	s.appCtx.Mode = mode
	logger.Info("supervisor: resolved mode %s", s.mode)

	if err := s.checkEnvironment(); err != nil {
		return err
	}

	if err := s.persistConfigSnapshot(); err != nil {
		logger.Warning("supervisor: failed to persist config snapshot: %v", err)
	}
	if err := domain.WritePersistedMode(s.runtime(), s.mode); err != nil {
		logger.Warning("supervisor: failed to persist resolved mode: %v", err)
	}

	sdnotify.Status("starting")

	var wg sync.WaitGroup
	s.sampler = meminfo.New(s.hub())
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sampler.Run(ctx, 1*time.Second)
	}()

	sampleCh := domain.Subscribe(s.hub(), meminfo.Topic)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.trackSamples(ctx, sampleCh)
	}()

	if err := s.startControllers(ctx, &wg); err != nil {
		// A start-time fatal leaves no partial state behind: stop any
		// monitor loop already running, then tear down whatever was
		// brought up before surfacing the error.
		stop()
		wg.Wait()
		s.stopControllers()
		return err
	}

	if err := s.startMetricsExporter(ctx, &wg); err != nil {
		logger.Warning("supervisor: metrics exporter disabled: %v", err)
	}

	sdnotify.Ready()
	logger.Info("supervisor: ready")

	<-ctx.Done()
	stop()
	sdnotify.Stopping()
	logger.Info("supervisor: shutting down")

	// Monitor loops drain first so teardown never races an in-flight tick.
	wg.Wait()
	s.stopControllers()

	logger.Info("supervisor: shutdown complete")
	return nil
}

// handleReload logs and otherwise ignores SIGHUP.
func (s *Supervisor) handleReload() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	for range ch {
		logger.Info("supervisor: received SIGHUP, ignoring (no reloadable state)")
	}
}

// ResolveMode returns the concrete mode this host should run: the
// configured mode when it names one, or the autoconfig decision. Shared
// with the autoconfig CLI command, which reports the same decision
// `start` would act on.
func ResolveMode(appCtx *domain.Context) (domain.Mode, error) {
	configured, err := appCtx.Config.Enum("swap_mode", string(domain.ModeAuto),
		string(domain.ModeAuto), string(domain.ModeZswapSwapFC), string(domain.ModeZramSwapFC),
		string(domain.ModeZram), string(domain.ModeManual), string(domain.ModeDisabled))
	if err != nil {
		return "", err
	}
	if domain.Mode(configured).Concrete() {
		return domain.Mode(configured), nil
	}

	preferZswap, err := appCtx.Config.Bool("zswap_enabled", false)
	if err != nil {
		return "", err
	}
	swapfcDir := appCtx.Config.String("swapfc_directory", "/var/lib/swap")
	return modeselect.Resolve(swapfcDir, appCtx.RAMTotalBytes, preferZswap)
}

// requiredBinaries lists the external tools the resolved mode will invoke,
// checked up front so a missing binary is a clear start-time
// *domain.EnvironmentError rather than a confusing mid-run failure.
func (s *Supervisor) requiredBinaries() []string {
	bins := []string{"findmnt"}
	if s.mode.UsesZram() || s.mode.UsesSwapFC() {
		bins = append(bins, "mkswap", "swapon", "swapoff")
	}
	if s.mode.UsesZram() {
		bins = append(bins, "zramctl")
	}
	if s.mode.UsesSwapFC() {
		bins = append(bins, "fallocate", "chattr", "losetup")
	}
	return bins
}

func (s *Supervisor) checkEnvironment() error {
	for _, bin := range s.requiredBinaries() {
		if !lib.CommandExists(bin) {
			return domain.NewEnvironmentError("supervisor",
				fmt.Errorf("required binary %q not found in PATH", bin))
		}
	}
	return nil
}

func (s *Supervisor) persistConfigSnapshot() error {
	keys := s.cfg().Keys()
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = s.cfg().String(k, "")
	}
	return domain.WriteKeyValueFile(s.runtime().ConfigSnapshotPath(), keys, values)
}

func (s *Supervisor) trackSamples(ctx context.Context, ch chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sample, ok := msg.(meminfo.Sample)
			if !ok {
				continue
			}
			s.mu.Lock()
			s.latestSample = sample
			s.mu.Unlock()
		}
	}
}

func (s *Supervisor) sample() meminfo.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestSample
}

// controllerEnabled reports whether the named controller runs under the
// resolved mode. Manual mode starts exactly the controllers the config
// explicitly enables instead of a fixed combination.
func (s *Supervisor) controllerEnabled(modeWants bool, manualKey string) bool {
	if s.mode != domain.ModeManual {
		return modeWants
	}
	enabled, err := s.cfg().Bool(manualKey, false)
	if err != nil {
		logger.Warning("supervisor: bad %s value, treating as disabled: %v", manualKey, err)
		return false
	}
	return enabled
}

// startControllers dispatches mode-specific startup in dependency order:
// kernel parameters, then zswap, then zram, then swapfc.
func (s *Supervisor) startControllers(ctx context.Context, wg *sync.WaitGroup) error {
	s.kparamCtl = kparam.New(s.runtime())
	kparams, err := s.buildKparams()
	if err != nil {
		return err
	}
	s.kparams = kparams
	s.kparamCtl.Start(s.kparams)

	if s.controllerEnabled(s.mode.UsesZswap(), "zswap_enabled") {
		zswapParams, err := s.buildZswapParams()
		if err != nil {
			return err
		}
		s.zswapCtl = zswap.New(s.runtime())
		if err := s.zswapCtl.Start(zswapParams); err != nil {
			if _, ok := err.(*domain.EnvironmentError); !ok {
				return err
			}
			logger.Warning("supervisor: zswap unavailable, continuing without it: %v", err)
		}
	}

	if s.controllerEnabled(s.mode.UsesZram(), "zram_enabled") {
		if err := s.startZram(ctx, wg); err != nil {
			return err
		}
	}

	if s.controllerEnabled(s.mode.UsesSwapFC(), "swapfc_enabled") {
		if err := s.startSwapFC(ctx, wg); err != nil {
			return err
		}
	}

	return nil
}

func (s *Supervisor) startZram(ctx context.Context, wg *sync.WaitGroup) error {
	zcfg, err := BuildZramConfig(s.cfg(), s.appCtx.RAMTotalBytes)
	if err != nil {
		return err
	}
	s.zramPool = zram.New(zcfg, s.runtime(), s.hub())

	// Adopt devices a previous instance left behind before provisioning
	// new ones.
	s.zramPool.Adopt(zram.ExistingDeviceIndexes())

	count := zcfg.InitialCount(s.appCtx.NCPU)
	disksize := zcfg.PerDeviceDisksize(count)

	for i := len(s.zramPool.Devices()); i < count; i++ {
		if _, err := s.zramPool.CreateDevice(disksize); err != nil {
			logger.Warning("supervisor: zram initial device %d failed: %v", i, err)
		}
	}

	monInterval, err := s.cfg().Int("zram_monitor_interval", 5)
	if err != nil {
		return err
	}
	expandThreshold, err := s.cfg().Int("zram_expand_threshold", 85)
	if err != nil {
		return err
	}
	contractThreshold, err := s.cfg().Int("zram_contract_threshold", 20)
	if err != nil {
		return err
	}
	contractWindow, err := s.cfg().Int("zram_contract_stability_window", 120)
	if err != nil {
		return err
	}

	monCfg := zram.MonitorConfig{
		Interval:                time.Duration(monInterval) * time.Second,
		ExpandThreshold:         float64(expandThreshold),
		ContractThreshold:       float64(contractThreshold),
		ContractStabilityWindow: time.Duration(contractWindow) * time.Second,
		DrainDeadline:           10 * time.Second,
		SafetyFactor:            1.5,
	}
	pool := s.zramPool
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Monitor(ctx, monCfg, func() (int64, error) {
			return int64(s.sample().MemFree), nil
		})
	}()
	return nil
}

func (s *Supervisor) startSwapFC(ctx context.Context, wg *sync.WaitGroup) error {
	fcCfg, err := BuildSwapFCConfig(s.cfg(), s.appCtx.RAMTotalBytes)
	if err != nil {
		return err
	}
	s.swapfcCtl = swapfc.New(fcCfg, s.runtime())

	if err := s.swapfcCtl.CheckPrecondition(); err != nil {
		logger.Warning("supervisor: swapfc precondition failed, degrading: %v", err)
	}
	if s.swapfcCtl.Degraded() {
		return nil
	}

	s.swapfcCtl.Adopt()

	watcher, err := swapfc.NewWatcher(s.swapfcCtl)
	if err != nil {
		logger.Warning("supervisor: swapfc watcher unavailable: %v", err)
	} else {
		s.watcher = watcher
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
	}

	monInterval, err := s.cfg().Int("swapfc_monitor_interval", 1)
	if err != nil {
		return err
	}
	createRAM, err := s.cfg().Int("swapfc_create_ram_threshold", 20)
	if err != nil {
		return err
	}
	createSwap, err := s.cfg().Int("swapfc_create_swap_threshold", 40)
	if err != nil {
		return err
	}
	emergency, err := s.cfg().Int("swapfc_emergency_threshold", 5)
	if err != nil {
		return err
	}
	remove, err := s.cfg().Int("swapfc_remove_threshold", 70)
	if err != nil {
		return err
	}

	monCfg := swapfc.MonitorConfig{
		Interval:            time.Duration(monInterval) * time.Second,
		CreateRAMThreshold:  float64(createRAM),
		CreateSwapThreshold: float64(createSwap),
		EmergencyThreshold:  float64(emergency),
		RemoveThreshold:     float64(remove),
	}
	ctl := s.swapfcCtl
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctl.Monitor(ctx, monCfg, func() (swapfc.Stats, error) {
			sample := s.sample()
			return swapfc.Stats{
				FreeRAMPercent:  percent(sample.MemFree, sample.MemTotal),
				FreeSwapPercent: percent(sample.SwapFree, sample.SwapTotal),
			}, nil
		})
	}()
	return nil
}

// startMetricsExporter starts the Prometheus textfile-collector export loop
// if metrics_textfile_path is configured. An unset
// path disables the exporter entirely rather than erroring, since the
// daemon has no HTTP surface and a node-exporter textfile directory is not
// guaranteed to exist on every host.
func (s *Supervisor) startMetricsExporter(ctx context.Context, wg *sync.WaitGroup) error {
	path := s.cfg().String("metrics_textfile_path", "")
	if path == "" {
		return nil
	}
	interval, err := s.cfg().Int("metrics_interval_seconds", 15)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		<-ctx.Done()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.exporter.RunPeriodic(path, time.Duration(interval)*time.Second, s.report, done)
	}()
	return nil
}

func (s *Supervisor) report() status.Report {
	r := status.Report{
		Running:      true,
		PID:          os.Getpid(),
		Mode:         s.mode,
		Memory:       s.sample(),
		ZswapEnabled: s.mode.UsesZswap(),
	}
	if s.zramPool != nil {
		r.ZramDevices = s.zramPool.Devices()
	}
	if s.swapfcCtl != nil {
		r.SwapFiles = s.swapfcCtl.Files()
	}
	return r
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

// stopControllers drains every running controller in reverse dependency
// order: SwapFC, zram, zswap, kernel parameters. The
// signal.NotifyContext cancellation already told every monitor loop to
// return; this phase performs the resource teardown the monitor loops
// themselves don't own.
func (s *Supervisor) stopControllers() {
	if s.swapfcCtl != nil && !s.swapfcCtl.Degraded() {
		for _, f := range s.swapfcCtl.Files() {
			if err := s.swapfcCtl.RemoveFile(f.Index); err != nil {
				logger.Warning("supervisor: %v", domain.NewShutdownError("remove swap file "+strconv.Itoa(f.Index), err))
			}
		}
	}

	if s.zramPool != nil {
		for _, d := range s.zramPool.Devices() {
			if err := s.zramPool.RemoveDevice(d.Index, 10*time.Second); err != nil {
				logger.Warning("supervisor: %v", domain.NewShutdownError("remove zram device "+strconv.Itoa(d.Index), err))
			}
		}
	}

	if s.zswapCtl != nil {
		s.zswapCtl.Stop()
	}

	if s.kparamCtl != nil {
		s.kparamCtl.Stop(s.kparams)
	}
}

func (s *Supervisor) buildKparams() ([]kparam.Param, error) {
	var params []kparam.Param
	if mode := s.cfg().String("thp_mode", ""); mode != "" {
		if err := kparam.ValidateTHPMode(mode); err != nil {
			return nil, domain.NewConfigError("thp_mode", err)
		}
		params = append(params, kparam.THP(mode))
	}
	if ttl := s.cfg().String("mglru_min_ttl_ms", ""); ttl != "" {
		params = append(params, kparam.MGLRU(ttl))
	}
	for _, name := range []string{"swappiness", "watermark_scale_factor", "page-cluster"} {
		if value := s.cfg().String("vm_"+name, ""); value != "" {
			params = append(params, kparam.VMSysctl(name, value))
		}
	}
	return params, nil
}

func (s *Supervisor) buildZswapParams() (map[string]string, error) {
	maxPoolPercent, err := s.cfg().Int("zswap_max_pool_percent", 20)
	if err != nil {
		return nil, err
	}
	acceptThreshold, err := s.cfg().Int("zswap_accept_threshold_percent", 90)
	if err != nil {
		return nil, err
	}
	shrinkerEnabled, err := s.cfg().Bool("zswap_shrinker_enabled", true)
	if err != nil {
		return nil, err
	}

	shrinker := "0"
	if shrinkerEnabled {
		shrinker = "1"
	}
	return map[string]string{
		"enabled":                  "Y",
		"compressor":               s.cfg().String("zswap_compressor", "lz4"),
		"zpool":                    s.cfg().String("zswap_zpool", "zsmalloc"),
		"max_pool_percent":         strconv.Itoa(maxPoolPercent),
		"accept_threshold_percent": strconv.Itoa(acceptThreshold),
		"shrinker_enabled":         shrinker,
	}, nil
}

// BuildZramConfig coerces the zram pool's configuration block.
// ramTotalBytes resolves percentage-suffixed sizes; when no size key is
// set at all, the pool defaults to half of RAM in aggregate.
func BuildZramConfig(cfg *domain.Config, ramTotalBytes int64) (zram.Config, error) {
	priority, err := cfg.Int("zram_priority", 100)
	if err != nil {
		return zram.Config{}, err
	}
	minCount, err := cfg.Int("zram_min_count", 1)
	if err != nil {
		return zram.Config{}, err
	}
	maxCount, err := cfg.Int("zram_max_count", 4)
	if err != nil {
		return zram.Config{}, err
	}
	perDeviceSize, err := cfg.Size("zram_device_size", 0, ramTotalBytes)
	if err != nil {
		return zram.Config{}, err
	}
	totalSize, err := cfg.Size("zram_size", 0, ramTotalBytes)
	if err != nil {
		return zram.Config{}, err
	}
	if totalSize == 0 && perDeviceSize == 0 {
		totalSize = ramTotalBytes / 2
	}
	return zram.Config{
		Algorithm:     cfg.String("zram_algorithm", "zstd"),
		Priority:      priority,
		MinCount:      minCount,
		MaxCount:      maxCount,
		WritebackDev:  cfg.String("zram_writeback_device", ""),
		PerDeviceSize: perDeviceSize,
		TotalSize:     totalSize,
	}, nil
}

// BuildSwapFCConfig coerces the swap-file controller's configuration block.
func BuildSwapFCConfig(cfg *domain.Config, ramTotalBytes int64) (swapfc.Config, error) {
	chunkSize, err := cfg.Size("swapfc_chunk_size", 256<<20, ramTotalBytes)
	if err != nil {
		return swapfc.Config{}, err
	}
	maxCount, err := cfg.Int("swapfc_max_count", 8)
	if err != nil {
		return swapfc.Config{}, err
	}
	sparse, err := cfg.Bool("swapfc_sparse", false)
	if err != nil {
		return swapfc.Config{}, err
	}
	useBtrfsCompression, err := cfg.Bool("use_btrfs_compression", false)
	if err != nil {
		return swapfc.Config{}, err
	}
	basePriority, err := cfg.Int("swapfc_base_priority", -2)
	if err != nil {
		return swapfc.Config{}, err
	}
	return swapfc.Config{
		Directory:           cfg.String("swapfc_directory", "/var/lib/swap"),
		ChunkSize:           chunkSize,
		MaxCount:            maxCount,
		Sparse:              sparse,
		UseBtrfsCompression: useBtrfsCompression,
		BasePriority:        basePriority,
	}, nil
}
