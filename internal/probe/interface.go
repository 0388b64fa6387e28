package probe

import "context"

// Prober reads host telemetry. Readers never fail: on a probing hiccup they
// return the last known good value for the metric so a transient failure
// does not surface as a false critical transition.
type Prober interface {
	CPUTemperature(ctx context.Context) float64
	GPUTemperature(ctx context.Context) float64
	Load(ctx context.Context) LoadAverages
	Memory(ctx context.Context) MemoryUsage
}

type LoadAverages struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

type MemoryUsage struct {
	TotalMB     float64
	UsedMB      float64
	FreeMB      float64
	UsedPercent float64
}
