package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/NickScherbakov/mufu/internal/backend"
	"github.com/NickScherbakov/mufu/internal/classify"
	"github.com/NickScherbakov/mufu/internal/command"
	"github.com/NickScherbakov/mufu/internal/config"
	"github.com/NickScherbakov/mufu/internal/governor"
	"github.com/NickScherbakov/mufu/internal/logger"
	"github.com/NickScherbakov/mufu/internal/metrics"
	"github.com/NickScherbakov/mufu/internal/pid"
	"github.com/NickScherbakov/mufu/internal/probe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel == "debug", cfg.LogLevel == "info", logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer pid.Remove()

	runner := newRunner(cfg)
	defer runner.Close()

	prober := newProber(cfg, runner)
	defer prober.Close()

	gov := governor.New(prober, governorConfig(cfg))

	collector, err := metrics.NewService(metrics.Config{
		DBPath:  cfg.Metrics.Database,
		Enabled: cfg.Metrics.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize selection audit")
	}
	defer collector.Close()

	registry := backend.New(descriptors(cfg), registryConfig(cfg),
		backend.WithAuditCollector(collector))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	go gov.Run(ctx)

	if cfg.Monitor {
		monitorLoop(ctx, cfg, gov, registry)
	} else {
		<-ctx.Done()
	}

	logger.Info().Msg("Exiting...")
}

func newRunner(cfg *config.Config) command.Runner {
	if !cfg.Remote() {
		return command.NewLocal(command.DefaultLocalTimeout)
	}

	remote := command.NewRemote(command.RemoteConfig{
		Host:     cfg.SSH.Host,
		Port:     cfg.SSH.Port,
		User:     cfg.SSH.User,
		KeyPath:  cfg.SSH.KeyPath,
		Password: cfg.SSH.Password,
		Timeout:  command.DefaultRemoteTimeout,
	})

	// Surface credential problems at startup rather than on the first probe.
	if err := remote.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("failed to establish SSH session")
	}

	return remote
}

func newProber(cfg *config.Config, runner command.Runner) *probe.SystemProber {
	osName := cfg.Probe.OS
	if osName == "" {
		if cfg.Remote() {
			osName = "linux"
		} else {
			osName = runtime.GOOS
		}
	}

	var opts []probe.Option
	if !cfg.Remote() {
		opts = append(opts, probe.WithNVML())
	}

	return probe.New(runner, osName, opts...)
}

func governorConfig(cfg *config.Config) governor.Config {
	t := cfg.Thermal

	return governor.Config{
		Thresholds: governor.Thresholds{
			CPUWarning:  t.CPUWarning,
			CPUCritical: t.CPUCritical,
			GPUWarning:  t.GPUWarning,
			GPUCritical: t.GPUCritical,
		},
		BaseDelay:        time.Duration(t.BaseDelayMS) * time.Millisecond,
		NormalInterval:   time.Duration(t.NormalInterval) * time.Second,
		WarningInterval:  time.Duration(t.WarningInterval) * time.Second,
		CriticalInterval: time.Duration(t.CriticalInterval) * time.Second,
		MonitorInterval:  time.Duration(cfg.Interval) * time.Second,
	}
}

func descriptors(cfg *config.Config) []backend.Descriptor {
	out := make([]backend.Descriptor, 0, len(cfg.Backends))
	for id, b := range cfg.Backends {
		kind := backend.Kind(b.Kind)
		if kind == "" {
			kind = backend.KindCustom
		}
		out = append(out, backend.Descriptor{
			ID:         id,
			Kind:       kind,
			BaseURL:    b.BaseURL,
			APIKey:     b.APIKey,
			HealthPath: b.HealthPath,
			DefaultModels: map[classify.ContentClass]string{
				classify.General: b.DefaultModel,
				classify.Code:    b.CodeModel,
				classify.Summary: b.SummaryModel,
			},
		})
	}

	return out
}

func registryConfig(cfg *config.Config) backend.Config {
	return backend.Config{
		Priority: map[classify.ContentClass][]string{
			classify.General: cfg.Routing.TextPriority,
			classify.Summary: cfg.Routing.TextPriority,
			classify.Code:    cfg.Routing.CodePriority,
		},
		AvailabilityTTL: time.Duration(cfg.Routing.AvailabilityTTL) * time.Second,
	}
}

// monitorLoop logs each sample and the current routing posture.
func monitorLoop(ctx context.Context, cfg *config.Config, gov *governor.Governor, registry *backend.Registry) {
	ticker := time.NewTicker(time.Duration(cfg.Interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := gov.Check(ctx)
			pause, reason := gov.ShouldPause(ctx)
			delay := gov.AdaptiveDelay(ctx)

			ev := logger.Info().
				Float64("cpu_temp", sample.CPUTemp).
				Float64("gpu_temp", sample.GPUTemp).
				Float64("load1", sample.Load.Load1).
				Float64("mem_used_pct", sample.Memory.UsedPercent).
				Str("status", string(sample.Status)).
				Bool("cached", sample.Cached).
				Dur("adaptive_delay", delay).
				Bool("paused", pause)
			if reason != "" {
				ev = ev.Str("pause_reason", reason)
			}
			ev.Msg("Telemetry")

			if sel, err := registry.Select(ctx, "", backend.Options{}); err == nil {
				logger.Debug().Msgf("Routing posture: %s/%s for general content", sel.BackendID, sel.Model)
			}
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
