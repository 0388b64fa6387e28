package probe

import (
	"context"
	"sync"

	"github.com/NickScherbakov/mufu/internal/command"
	"github.com/NickScherbakov/mufu/internal/logger"
)

// Plausibility bounds for temperature readings: anything outside is treated
// as a failed probe step, not a reading.
const maxPlausibleTemp = 150.0

// Conservative placeholders recorded as normal values when Windows
// instrumentation yields nothing at all. Deliberate policy: a host without
// sensors should not look critical.
const (
	windowsCPUPlaceholder = 35.0
	windowsGPUPlaceholder = 60.0
)

var (
	windowsLoadPlaceholder = LoadAverages{Load1: 0.5, Load5: 0.5, Load15: 0.5}
	windowsMemPlaceholder  = MemoryUsage{TotalMB: 8192, UsedMB: 4096, FreeMB: 4096, UsedPercent: 50}
)

// SystemProber reads telemetry through a command Runner, trying each chain
// step in priority order.
type SystemProber struct {
	runner command.Runner
	chains chainSet
	gpu    *nvmlSource

	mu   sync.Mutex
	last lastKnown
}

type lastKnown struct {
	cpuTemp float64
	gpuTemp float64
	load    LoadAverages
	loadOK  bool
	mem     MemoryUsage
	memOK   bool
}

type Option func(*SystemProber)

// WithNVML puts a direct NVML read in front of the GPU command chain. Only
// meaningful when the runner targets the local host.
func WithNVML() Option {
	return func(p *SystemProber) {
		p.gpu = &nvmlSource{}
	}
}

func New(runner command.Runner, osName string, opts ...Option) *SystemProber {
	p := &SystemProber{
		runner: runner,
		chains: chainsFor(osName),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *SystemProber) Close() error {
	if p.gpu != nil {
		p.gpu.shutdown()
	}

	return nil
}

func (p *SystemProber) CPUTemperature(ctx context.Context) float64 {
	if temp, ok := p.runTempChain(ctx, p.chains.cpuTemp); ok {
		p.mu.Lock()
		p.last.cpuTemp = temp
		p.mu.Unlock()
		return temp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.cpuTemp <= 0 && p.chains.os == "windows" {
		logger.Info().Msgf("No CPU temperature source, using placeholder %.0f°C", windowsCPUPlaceholder)
		p.last.cpuTemp = windowsCPUPlaceholder
	}

	return p.last.cpuTemp
}

func (p *SystemProber) GPUTemperature(ctx context.Context) float64 {
	if p.gpu != nil {
		if temp, ok := p.gpu.temperature(); ok && plausibleTemp(temp) {
			p.mu.Lock()
			p.last.gpuTemp = temp
			p.mu.Unlock()
			return temp
		}
	}

	if temp, ok := p.runTempChain(ctx, p.chains.gpuTemp); ok {
		p.mu.Lock()
		p.last.gpuTemp = temp
		p.mu.Unlock()
		return temp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.gpuTemp <= 0 && p.chains.os == "windows" {
		logger.Info().Msgf("No GPU temperature source, using placeholder %.0f°C", windowsGPUPlaceholder)
		p.last.gpuTemp = windowsGPUPlaceholder
	}

	return p.last.gpuTemp
}

func (p *SystemProber) Load(ctx context.Context) LoadAverages {
	for _, step := range p.chains.load {
		stdout, stderr := p.runner.Execute(ctx, step.command)
		if stdout == "" {
			logStepFailure("load", step.name, stderr)
			continue
		}
		load, err := step.parse(stdout)
		if err != nil || load.Load1 < 0 {
			logStepFailure("load", step.name, stderr)
			continue
		}

		p.mu.Lock()
		p.last.load = load
		p.last.loadOK = true
		p.mu.Unlock()
		return load
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.last.loadOK && p.chains.os == "windows" {
		p.last.load = windowsLoadPlaceholder
		p.last.loadOK = true
	}

	return p.last.load
}

func (p *SystemProber) Memory(ctx context.Context) MemoryUsage {
	for _, step := range p.chains.memory {
		stdout, stderr := p.runner.Execute(ctx, step.command)
		if stdout == "" {
			logStepFailure("memory", step.name, stderr)
			continue
		}
		mem, err := step.parse(stdout)
		if err != nil || mem.TotalMB <= 0 {
			logStepFailure("memory", step.name, stderr)
			continue
		}

		p.mu.Lock()
		p.last.mem = mem
		p.last.memOK = true
		p.mu.Unlock()
		return mem
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.last.memOK && p.chains.os == "windows" {
		p.last.mem = windowsMemPlaceholder
		p.last.memOK = true
	}

	return p.last.mem
}

func (p *SystemProber) runTempChain(ctx context.Context, steps []tempStep) (float64, bool) {
	for _, step := range steps {
		stdout, stderr := p.runner.Execute(ctx, step.command)
		if stdout == "" {
			logStepFailure("temperature", step.name, stderr)
			continue
		}
		temp, err := step.parse(stdout)
		if err != nil || !plausibleTemp(temp) {
			logStepFailure("temperature", step.name, stderr)
			continue
		}

		return temp, true
	}

	return 0, false
}

func plausibleTemp(t float64) bool {
	return t > 0 && t < maxPlausibleTemp
}

func logStepFailure(metric, step, stderr string) {
	if stderr != "" {
		logger.Debug().Msgf("Probe step %s/%s failed: %s", metric, step, stderr)
	} else {
		logger.Debug().Msgf("Probe step %s/%s produced no usable value", metric, step)
	}
}
