package governor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/NickScherbakov/mufu/internal/logger"
	"github.com/NickScherbakov/mufu/internal/probe"
)

// Sample is one telemetry observation. Samples are immutable: each check
// produces a new value, it is never mutated in place.
type Sample struct {
	CPUTemp   float64
	GPUTemp   float64
	Load      probe.LoadAverages
	Memory    probe.MemoryUsage
	Status    Status
	SampledAt time.Time
	Cached    bool
}

type Config struct {
	Thresholds Thresholds
	// BaseDelay is the per-request delay under normal conditions.
	BaseDelay time.Duration
	// Check intervals per health state; the interval chosen after a check
	// applies to the next one.
	NormalInterval   time.Duration
	WarningInterval  time.Duration
	CriticalInterval time.Duration
	// MonitorInterval is the background loop sleep under normal status.
	MonitorInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Thresholds:       DefaultThresholds(),
		BaseDelay:        500 * time.Millisecond,
		NormalInterval:   5 * time.Second,
		WarningInterval:  2 * time.Second,
		CriticalInterval: time.Second,
		MonitorInterval:  10 * time.Second,
	}
}

// Governor owns the last telemetry sample and the adaptive check interval.
// The check-then-update sequence is serialized: the background loop and
// foreground callers race to cross the throttle boundary, and whichever
// gets there first re-probes while the other returns the cached sample.
type Governor struct {
	prober probe.Prober
	cfg    Config
	now    func() time.Time

	mu        sync.Mutex
	last      Sample
	lastCheck time.Time
	interval  time.Duration
}

type Option func(*Governor)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

func New(prober probe.Prober, cfg Config, opts ...Option) *Governor {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.NormalInterval <= 0 {
		cfg.NormalInterval = def.NormalInterval
	}
	if cfg.WarningInterval <= 0 {
		cfg.WarningInterval = def.WarningInterval
	}
	if cfg.CriticalInterval <= 0 {
		cfg.CriticalInterval = def.CriticalInterval
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = def.MonitorInterval
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}

	g := &Governor{
		prober:   prober,
		cfg:      cfg,
		now:      time.Now,
		interval: cfg.NormalInterval,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check returns the current telemetry sample. Inside the throttle window it
// returns the previous sample marked Cached; otherwise it re-probes,
// recomputes the status and retunes the check interval.
func (g *Governor) Check(ctx context.Context) Sample {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.lastCheck.IsZero() && now.Sub(g.lastCheck) < g.interval {
		cached := g.last
		cached.Cached = true
		return cached
	}
	g.lastCheck = now

	sample := Sample{
		CPUTemp:   g.prober.CPUTemperature(ctx),
		GPUTemp:   g.prober.GPUTemperature(ctx),
		Load:      g.prober.Load(ctx),
		Memory:    g.prober.Memory(ctx),
		SampledAt: now,
	}
	sample.Status = g.cfg.Thresholds.StatusFor(sample.CPUTemp, sample.GPUTemp)

	switch sample.Status {
	case StatusCritical:
		g.interval = g.cfg.CriticalInterval
	case StatusWarning:
		g.interval = g.cfg.WarningInterval
	default:
		g.interval = g.cfg.NormalInterval
	}

	g.last = sample
	logger.Debug().Msgf("Telemetry: CPU %.1f°C, GPU %.1f°C, load %.2f, status %s",
		sample.CPUTemp, sample.GPUTemp, sample.Load.Load1, sample.Status)

	return sample
}

// ShouldPause reports whether request processing must halt. Only a critical
// reading pauses; a sensor fault is logged but work continues.
func (g *Governor) ShouldPause(ctx context.Context) (bool, string) {
	s := g.Check(ctx)

	switch s.Status {
	case StatusCritical:
		return true, fmt.Sprintf("critical temperature: CPU %.1f°C, GPU %.1f°C", s.CPUTemp, s.GPUTemp)
	case StatusError:
		reason := fmt.Sprintf("temperature sensing failed: CPU %.1f°C, GPU %.1f°C", s.CPUTemp, s.GPUTemp)
		logger.Warn().Msg(reason)
		return false, reason
	default:
		return false, ""
	}
}

// AdaptiveDelay computes the pause to insert between outgoing requests,
// scaled linearly by how far each temperature sits between its warning and
// critical thresholds.
func (g *Governor) AdaptiveDelay(ctx context.Context) time.Duration {
	s := g.Check(ctx)

	if s.Status == StatusError {
		// Conservative fixed delay while sensing is unreliable.
		return 2 * g.cfg.BaseDelay
	}

	t := g.cfg.Thresholds
	factor := math.Max(
		delayFactor(s.CPUTemp, t.CPUWarning, t.CPUCritical),
		delayFactor(s.GPUTemp, t.GPUWarning, t.GPUCritical),
	)

	return time.Duration(float64(g.cfg.BaseDelay) * factor)
}

// Interval returns the currently tuned check interval.
func (g *Governor) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.interval
}

func delayFactor(reading, warning, critical float64) float64 {
	if reading <= warning {
		return 1
	}

	f := 1 + 4*(reading-warning)/(critical-warning)

	return math.Min(f, 5)
}
