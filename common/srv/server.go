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

package srv

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sunbird-storage/sunbird/common/conf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
)

// LowLevelLogger is the logger interface used throughout the daemons.
type LowLevelLogger interface {
	Error(msg string, fields ...zapcore.Field)
	Info(msg string, fields ...zapcore.Field)
	Debug(msg string, fields ...zapcore.Field)
	With(fields ...zapcore.Field) *zap.Logger
}

// LogPanics is meant to be deferred; it logs and swallows a panic.
func LogPanics(logger LowLevelLogger, msg string) {
	if e := recover(); e != nil {
		logger.Error(fmt.Sprintf("PANIC (%s)", msg), zap.Any("err", e))
	}
}

// SetupLogger configures structured logging using uber's zap library.
func SetupLogger(prefix string, atomicLevel *zap.AtomicLevel, flags *flag.FlagSet) (LowLevelLogger, error) {
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= atomicLevel.Level() && lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= atomicLevel.Level() && lvl < zapcore.ErrorLevel
	})

	openSink := func(flagName, dfl string, redirect *os.File) (zapcore.WriteSyncer, error) {
		name := dfl
		if f := flags.Lookup(flagName); f != nil {
			if v := f.Value.(flag.Getter).Get().(string); v != "" {
				name = v
			}
		}
		switch name {
		case "stdout", "stderr":
			sink, _, err := zap.Open(name)
			if err != nil {
				return nil, fmt.Errorf("Unable to open logger sink: %s %v", name, err)
			}
			return sink, nil
		default:
			fp, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
			if err != nil {
				return nil, fmt.Errorf("Unable to open log file: %s %v", name, err)
			}
			if err := syscall.Dup2(int(fp.Fd()), int(redirect.Fd())); err != nil {
				return nil, fmt.Errorf("Unable to redirect output: %s", err)
			}
			return zapcore.AddSync(fp), nil
		}
	}

	lowPrioFile, err := openSink("l", "stdout", os.Stdout)
	if err != nil {
		return nil, err
	}
	highPrioFile, err := openSink("e", "stderr", os.Stderr)
	if err != nil {
		return nil, err
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, lowPrioFile, lowPriority),
		zapcore.NewCore(encoder, highPrioFile, highPriority),
	)
	return zap.New(core).With(zap.String("name", prefix)), nil
}

// IpPort is the address a daemon's admin/metrics listener binds to.
type IpPort struct {
	Ip                string
	Port              int
	CertFile, KeyFile string
}

// Daemon is a background process with an admin/metrics HTTP surface.
type Daemon interface {
	Type() string
	// Background starts the daemon's work.  If it returns a non-nil channel,
	// the daemon is running a single pass and the channel closes on completion;
	// otherwise the daemon runs until signaled.
	Background(flags *flag.FlagSet) chan struct{}
	GetHandler(config conf.Config, metricsPrefix string) http.Handler
	// Finalize is called before stopping gracefully, so the daemon can clean up.
	Finalize()
	// Failed reports whether the daemon hit a fatal error; used for the batch-mode exit status.
	Failed() bool
}

type runningDaemon struct {
	*http.Server
	daemon Daemon
	logger LowLevelLogger
}

// RetryListen retries binding the address for up to 10 seconds, for fast restarts.
func RetryListen(ip string, port int) (net.Listener, error) {
	address := fmt.Sprintf("%s:%d", ip, port)
	started := time.Now()
	for {
		if sock, err := net.Listen("tcp", address); err == nil {
			return sock, nil
		} else if time.Since(started) > 10*time.Second {
			return nil, fmt.Errorf("Failed to bind for 10 seconds (%v)", err)
		}
		time.Sleep(time.Second / 5)
	}
}

// RunDaemons runs the daemons described by the config given with the -c flag,
// one per config instance.  It returns the process exit status: single-pass
// daemons report failure through Daemon.Failed, long-running daemons only exit
// on a signal.
func RunDaemons(getDaemon func(conf.Config, *flag.FlagSet) (*IpPort, Daemon, LowLevelLogger, error), flags *flag.FlagSet) int {
	var running []*runningDaemon

	if flags.NArg() != 0 {
		flags.Usage()
		return 1
	}
	configFile := flags.Lookup("c").Value.(flag.Getter).Get().(string)
	configs, err := conf.LoadConfigs(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding configs: %v\n", err)
		return 1
	}
	var wg *sync.WaitGroup

	for _, config := range configs {
		ipPort, daemon, logger, err := getDaemon(config, flags)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		var metricsPrefix string
		if len(configs) == 1 {
			metricsPrefix = fmt.Sprintf("sb_%s", daemon.Type())
		} else {
			metricsPrefix = fmt.Sprintf("sb_%s_%s_%d", daemon.Type(), ipPort.Ip, ipPort.Port)
		}
		metricsPrefix = metricsSafe(metricsPrefix)
		sock, err := RetryListen(ipPort.Ip, ipPort.Port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listening: %v\n", err)
			logger.Error("Error listening", zap.Error(err))
			return 1
		}
		srv := &runningDaemon{
			Server: &http.Server{
				Handler:      daemon.GetHandler(config, metricsPrefix),
				ReadTimeout:  24 * time.Hour,
				WriteTimeout: 24 * time.Hour,
			},
			daemon: daemon,
			logger: logger,
		}
		if ipPort.CertFile != "" && ipPort.KeyFile != "" {
			srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			if err := http2.ConfigureServer(srv.Server, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Error enabling http2 on server: %v\n", err)
				logger.Error("Error enabling http2 on server", zap.Error(err))
				return 1
			}
			go srv.ServeTLS(sock, ipPort.CertFile, ipPort.KeyFile)
		} else {
			go srv.Serve(sock)
		}
		if ch := daemon.Background(flags); ch != nil {
			if wg == nil {
				wg = &sync.WaitGroup{}
			}
			wg.Add(1)
			go func(done chan struct{}) {
				defer wg.Done()
				<-done
			}(ch)
		}
		running = append(running, srv)
		logger.Info("Daemon started", zap.String("type", daemon.Type()), zap.Int("port", ipPort.Port))
	}

	if wg != nil {
		// single-pass mode; wait for the passes to finish and report their status
		wg.Wait()
		status := 0
		for _, srv := range running {
			srv.daemon.Finalize()
			if srv.daemon.Failed() {
				status = 1
			}
		}
		return status
	}

	if len(running) > 0 {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		s := <-c
		switch s {
		case syscall.SIGTERM, syscall.SIGHUP:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute*5)
			defer cancel()
			var shutdownWg sync.WaitGroup
			for _, srv := range running {
				shutdownWg.Add(1)
				go func(srv *runningDaemon) {
					defer shutdownWg.Done()
					if err := srv.Shutdown(ctx); err != nil {
						srv.logger.Error("Error with graceful shutdown", zap.Error(err))
					}
					srv.daemon.Finalize()
				}(srv)
			}
			done := make(chan struct{})
			go func() {
				defer close(done)
				shutdownWg.Wait()
			}()
			select {
			case <-done:
				fmt.Println("Graceful shutdown complete.")
			case <-ctx.Done():
				fmt.Println("Forcing shutdown after timeout.")
			}
		default:
			for _, srv := range running {
				if err := srv.Close(); err != nil {
					srv.logger.Error("Error shutdown", zap.Error(err))
				}
				srv.daemon.Finalize()
			}
		}
	}
	return 0
}

func metricsSafe(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '-', '.', ':':
			out[i] = '_'
		default:
			out[i] = s[i]
		}
	}
	return string(out)
}
