//  Copyright (c) 2018 Rackspace
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
//  implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package auditserver

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uber-go/tally"
	promreporter "github.com/uber-go/tally/prometheus"
	"go.uber.org/zap"

	"github.com/sunbird-storage/sunbird/common/conf"
	"github.com/sunbird-storage/sunbird/common/srv"
	"github.com/sunbird-storage/sunbird/middleware"
)

// AuditorDaemon keeps the configuration and state shared by audit passes.
type AuditorDaemon struct {
	kind           Kind
	logger         srv.LowLevelLogger
	logLevel       zap.AtomicLevel
	deviceRoot     string
	checkMounts    bool
	interval       time.Duration
	logTime        time.Duration
	reconCachePath string
	stop           chan struct{}
	stopOnce       sync.Once
	failed         int64
	metricsScope   tally.Scope
	metricsCloser  io.Closer
}

// Auditor runs audit passes over every database under the device root.
type Auditor struct {
	*AuditorDaemon
	mode      string
	passStart time.Time
	lastLog   time.Time
	// counters since the last stats report; the window carries over
	// from one pass to the next
	passes   int64
	failures int64
	skips    int64
	// counters for the whole pass
	totalPasses     int64
	totalFailures   int64
	totalSkips      int64
	totalErrors     int64
	totalMountSkips int64
}

func (d *AuditorDaemon) incMetric(name string) {
	if d.metricsScope != nil {
		d.metricsScope.Counter(name).Inc(1)
	}
}

// sleep waits for the given duration, returning false if the daemon was
// stopped while waiting.
func (d *AuditorDaemon) sleep(dur time.Duration) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-d.stop:
		return false
	}
}

func (a *Auditor) recordFailure(loc AuditLocation, err error) {
	a.failures++
	a.totalFailures++
	a.incMetric("failures")
	a.logger.Error("Audit failed",
		zap.String("dbFile", loc.Path),
		zap.String("device", loc.Device),
		zap.String("partition", loc.Partition),
		zap.Error(err))
}

// auditLocation audits a single database. Deleted databases are passed over;
// anything else that can't produce its info record is a failure.
func (a *Auditor) auditLocation(loc AuditLocation) {
	defer srv.LogPanics(a.logger, "PANIC WHILE AUDITING DATABASE")
	db, err := a.kind.Open(loc.Path)
	if err != nil {
		a.recordFailure(loc, err)
		return
	}
	defer db.Close()
	if deleted, err := db.IsDeleted(); err != nil {
		a.recordFailure(loc, err)
		return
	} else if deleted {
		a.skips++
		a.totalSkips++
		a.incMetric("skips")
		return
	}
	if _, err := db.GetInfo(); err != nil {
		a.recordFailure(loc, err)
		return
	}
	a.passes++
	a.totalPasses++
	a.incMetric("passes")
	a.logger.Debug("Audit passed", zap.String("dbFile", loc.Path))
}

// statsReport logs progress, updates the recon cache, and resets the
// since-last-report counters.
func (a *Auditor) statsReport() {
	now := time.Now()
	rate := float64(a.passes+a.failures+a.skips) / now.Sub(a.lastLog).Seconds()
	a.logger.Info("Audit pass progress",
		zap.String("mode", a.mode),
		zap.Duration("since", now.Sub(a.passStart)),
		zap.Int64("passed", a.passes),
		zap.Int64("failed", a.failures),
		zap.Int64("skipped", a.skips),
		zap.Float64("auditsPerSecond", rate))
	middleware.DumpReconCache(a.reconCachePath, a.kind.Name,
		map[string]interface{}{
			a.kind.Name + "_audits_passed": a.passes,
			a.kind.Name + "_audits_failed": a.failures,
			a.kind.Name + "_audits_since":  float64(a.lastLog.UnixNano()) / 1000000000.0,
		})
	a.passes = 0
	a.failures = 0
	a.skips = 0
	a.lastLog = now
}

func (a *Auditor) finalLog() {
	elapsed := time.Since(a.passStart)
	rate := float64(a.totalPasses+a.totalFailures+a.totalSkips) / elapsed.Seconds()
	a.logger.Info("Audit pass complete",
		zap.String("mode", a.mode),
		zap.Duration("elapsed", elapsed),
		zap.Int64("passed", a.totalPasses),
		zap.Int64("failed", a.totalFailures),
		zap.Int64("skipped", a.totalSkips),
		zap.Int64("errors", a.totalErrors),
		zap.Int64("unmounted", a.totalMountSkips),
		zap.Float64("auditsPerSecond", rate))
}

// audit performs one sweep of the device tree. The returned error is non-nil
// only if the device root itself couldn't be enumerated.
func (a *Auditor) audit() error {
	gen := &locationGenerator{
		deviceRoot:  a.deviceRoot,
		dataDir:     a.kind.DataDir,
		checkMounts: a.checkMounts,
		logger:      a.logger,
	}
	results := make(chan AuditLocation, 100)
	errc := make(chan error, 1)
	go func() {
		errc <- gen.run(results, a.stop)
	}()
	stopped := false
	for loc := range results {
		if !stopped {
			select {
			case <-a.stop:
				stopped = true
			default:
			}
		}
		if stopped {
			continue
		}
		a.auditLocation(loc)
		if time.Since(a.lastLog) >= a.logTime {
			a.statsReport()
		}
	}
	a.totalErrors += atomic.LoadInt64(&gen.errorCount)
	a.totalMountSkips += atomic.LoadInt64(&gen.mountSkips)
	return <-errc
}

// run performs one full audit pass. The pass totals start fresh each time;
// the report window keeps running across passes and only flushes when
// log_time elapses.
func (a *Auditor) run() error {
	a.passStart = time.Now()
	if a.lastLog.IsZero() {
		a.lastLog = a.passStart
	}
	a.totalPasses, a.totalFailures, a.totalSkips = 0, 0, 0
	a.totalErrors, a.totalMountSkips = 0, 0
	a.logger.Info("Begin audit pass",
		zap.String("mode", a.mode),
		zap.String("deviceRoot", a.deviceRoot))
	err := a.audit()
	if err != nil {
		a.logger.Error("Unable to list devices",
			zap.String("deviceRoot", a.deviceRoot), zap.Error(err))
		atomic.StoreInt64(&a.failed, 1)
	}
	a.finalLog()
	return err
}

// Run performs a single audit pass.
func (a *Auditor) Run() {
	a.run()
}

// pause sleeps off whatever remains of the interval after a pass that
// started at the given time. A pass that overran the interval doesn't sleep
// at all. Returns false if the daemon was stopped while waiting.
func (a *Auditor) pause(passStart time.Time) bool {
	if elapsed := time.Since(passStart); elapsed < a.interval {
		return a.sleep(a.interval - elapsed)
	}
	return true
}

// RunForever audits in a loop, pacing the start of each pass to the
// configured interval.
func (a *Auditor) RunForever() {
	// stagger startup so a fleet of auditors doesn't sweep in lockstep
	if !a.sleep(time.Duration(rand.Int63n(int64(a.interval)))) {
		return
	}
	for {
		start := time.Now()
		a.run()
		if !a.pause(start) {
			return
		}
		select {
		case <-a.stop:
			return
		default:
		}
	}
}

func (a *Auditor) Type() string {
	return a.kind.Name + "-auditor"
}

func (a *Auditor) Background(flags *flag.FlagSet) chan struct{} {
	once := false
	if f := flags.Lookup("once"); f != nil {
		once = f.Value.String() == "true"
	}
	if once {
		a.mode = "once"
		ch := make(chan struct{})
		go func() {
			defer close(ch)
			a.Run()
		}()
		return ch
	}
	a.mode = "forever"
	go a.RunForever()
	return nil
}

func (a *Auditor) GetHandler(config conf.Config, metricsPrefix string) http.Handler {
	var metricsScope tally.Scope
	metricsScope, a.metricsCloser = tally.NewRootScope(tally.ScopeOptions{
		Prefix:         metricsPrefix,
		Tags:           map[string]string{},
		CachedReporter: promreporter.NewReporter(promreporter.Options{}),
		Separator:      promreporter.DefaultSeparator,
	}, time.Second)
	a.metricsScope = metricsScope
	router := srv.NewRouter()
	router.Get("/metrics", promhttp.Handler())
	router.Get("/loglevel", a.logLevel)
	router.Put("/loglevel", a.logLevel)
	router.Get("/healthcheck", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	router.Get("/recon/:method", middleware.ReconHandler(a.reconCachePath, a.kind.Name))
	router.Get("/debug/pprof/:parm", http.DefaultServeMux)
	router.Post("/debug/pprof/:parm", http.DefaultServeMux)
	return alice.New(
		middleware.Recover(a.logger),
		middleware.Metrics(metricsScope),
	).Then(router)
}

func (a *Auditor) Finalize() {
	a.stopOnce.Do(func() { close(a.stop) })
	if a.metricsCloser != nil {
		a.metricsCloser.Close()
	}
}

func (a *Auditor) Failed() bool {
	return atomic.LoadInt64(&a.failed) == 1
}

// NewAuditorDaemon parses configuration for an auditor of the given kind.
func NewAuditorDaemon(kind Kind, serverconf conf.Config, flags *flag.FlagSet) (*AuditorDaemon, error) {
	section := kind.Name + "-auditor"
	if !serverconf.HasSection(section) {
		return nil, fmt.Errorf("Unable to find %s config section", section)
	}
	logLevelString := serverconf.GetDefault(section, "log_level", "INFO")
	logLevel := zap.NewAtomicLevel()
	logLevel.UnmarshalText([]byte(strings.ToLower(logLevelString)))
	logger, err := srv.SetupLogger(section, &logLevel, flags)
	if err != nil {
		return nil, fmt.Errorf("Error setting up logger: %v", err)
	}
	d := &AuditorDaemon{
		kind:           kind,
		logger:         logger,
		logLevel:       logLevel,
		deviceRoot:     serverconf.GetDefault(section, "devices", "/srv/node"),
		checkMounts:    serverconf.GetBool(section, "mount_check", true),
		interval:       time.Duration(serverconf.GetInt(section, "interval", 1800)) * time.Second,
		logTime:        time.Duration(serverconf.GetInt(section, "log_time", 3600)) * time.Second,
		reconCachePath: serverconf.GetDefault(section, "recon_cache_path", "/var/cache/sunbird"),
		stop:           make(chan struct{}),
	}
	if d.interval <= 0 {
		d.interval = 1800 * time.Second
	}
	if d.logTime <= 0 {
		d.logTime = 3600 * time.Second
	}
	return d, nil
}

func newAuditor(kind Kind, defaultPort int64, serverconf conf.Config, flags *flag.FlagSet) (*srv.IpPort, srv.Daemon, srv.LowLevelLogger, error) {
	d, err := NewAuditorDaemon(kind, serverconf, flags)
	if err != nil {
		return nil, nil, nil, err
	}
	section := kind.Name + "-auditor"
	ipPort := &srv.IpPort{
		Ip:       serverconf.GetDefault(section, "bind_ip", "0.0.0.0"),
		Port:     int(serverconf.GetInt(section, "bind_port", defaultPort)),
		CertFile: serverconf.GetDefault(section, "cert_file", ""),
		KeyFile:  serverconf.GetDefault(section, "key_file", ""),
	}
	return ipPort, &Auditor{AuditorDaemon: d, mode: "forever"}, d.logger, nil
}

// NewAccountAuditor constructs an auditor for account databases.
func NewAccountAuditor(serverconf conf.Config, flags *flag.FlagSet) (*srv.IpPort, srv.Daemon, srv.LowLevelLogger, error) {
	return newAuditor(AccountKind, 6062, serverconf, flags)
}

// NewContainerAuditor constructs an auditor for container databases.
func NewContainerAuditor(serverconf conf.Config, flags *flag.FlagSet) (*srv.IpPort, srv.Daemon, srv.LowLevelLogger, error) {
	return newAuditor(ContainerKind, 6061, serverconf, flags)
}
