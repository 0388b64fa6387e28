package governor_test

import (
	"context"
	"testing"
	"time"

	"github.com/NickScherbakov/mufu/internal/governor"
	"github.com/NickScherbakov/mufu/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProber returns fixed readings and counts how often it is asked.
type stubProber struct {
	cpu, gpu float64
	load     probe.LoadAverages
	mem      probe.MemoryUsage
	probes   int
}

func (s *stubProber) CPUTemperature(_ context.Context) float64 {
	s.probes++
	return s.cpu
}

func (s *stubProber) GPUTemperature(_ context.Context) float64 { return s.gpu }
func (s *stubProber) Load(_ context.Context) probe.LoadAverages {
	return s.load
}
func (s *stubProber) Memory(_ context.Context) probe.MemoryUsage { return s.mem }

func newTestGovernor(cpu, gpu float64) (*governor.Governor, *stubProber, *time.Time) {
	prober := &stubProber{cpu: cpu, gpu: gpu}
	current := time.Unix(1_700_000_000, 0)
	g := governor.New(prober, governor.DefaultConfig(), governor.WithClock(func() time.Time {
		return current
	}))

	return g, prober, &current
}

func TestStatusFor(t *testing.T) {
	th := governor.DefaultThresholds()

	tests := []struct {
		name     string
		cpu, gpu float64
		want     governor.Status
	}{
		{"both cool", 50, 50, governor.StatusNormal},
		{"cpu just below warning", 69.9, 50, governor.StatusNormal},
		{"cpu at warning", 70, 50, governor.StatusWarning},
		{"gpu at warning", 50, 75, governor.StatusWarning},
		{"cpu just below critical", 84.9, 50, governor.StatusWarning},
		{"cpu at critical", 85, 50, governor.StatusCritical},
		{"gpu at critical", 50, 90, governor.StatusCritical},
		{"cpu sensor dead", 0, 50, governor.StatusError},
		{"gpu sensor negative", 50, -1, governor.StatusError},
		{"sensor failure beats critical reading", 0, 95, governor.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.StatusFor(tt.cpu, tt.gpu))
		})
	}
}

func TestCheckCachesWithinWindow(t *testing.T) {
	g, prober, clock := newTestGovernor(50, 50)
	ctx := context.Background()

	first := g.Check(ctx)
	require.False(t, first.Cached, "First check must probe")
	require.Equal(t, 1, prober.probes)

	second := g.Check(ctx)
	assert.True(t, second.Cached, "Check inside the throttle window must not probe")
	assert.Equal(t, 1, prober.probes)
	assert.Equal(t, first.CPUTemp, second.CPUTemp)
	assert.Equal(t, first.SampledAt, second.SampledAt)

	*clock = clock.Add(6 * time.Second)
	third := g.Check(ctx)
	assert.False(t, third.Cached, "Check after the window must re-probe")
	assert.Equal(t, 2, prober.probes)
}

func TestCheckRetunesIntervalByStatus(t *testing.T) {
	g, prober, clock := newTestGovernor(90, 50)
	ctx := context.Background()

	s := g.Check(ctx)
	require.Equal(t, governor.StatusCritical, s.Status)
	assert.Equal(t, time.Second, g.Interval(), "Critical status tightens the interval")

	prober.cpu = 72
	*clock = clock.Add(2 * time.Second)
	s = g.Check(ctx)
	require.Equal(t, governor.StatusWarning, s.Status)
	assert.Equal(t, 2*time.Second, g.Interval())

	prober.cpu = 50
	*clock = clock.Add(3 * time.Second)
	s = g.Check(ctx)
	require.Equal(t, governor.StatusNormal, s.Status)
	assert.Equal(t, 5*time.Second, g.Interval())
}

func TestShouldPause(t *testing.T) {
	ctx := context.Background()

	t.Run("critical pauses", func(t *testing.T) {
		g, _, _ := newTestGovernor(90, 50)
		pause, reason := g.ShouldPause(ctx)
		assert.True(t, pause)
		assert.Contains(t, reason, "critical temperature")
	})

	t.Run("sensor failure does not pause", func(t *testing.T) {
		g, _, _ := newTestGovernor(0, 50)
		pause, reason := g.ShouldPause(ctx)
		assert.False(t, pause, "A sensor fault must not halt processing")
		assert.Contains(t, reason, "temperature sensing failed")
	})

	t.Run("normal does not pause", func(t *testing.T) {
		g, _, _ := newTestGovernor(50, 50)
		pause, reason := g.ShouldPause(ctx)
		assert.False(t, pause)
		assert.Empty(t, reason)
	})
}

func TestAdaptiveDelay(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cpu, gpu float64
		want     time.Duration
	}{
		{"cool runs at base delay", 60, 60, 500 * time.Millisecond},
		{"at warning still base delay", 70, 75, 500 * time.Millisecond},
		{"cpu midway scales linearly", 77.5, 50, 1500 * time.Millisecond},
		{"gpu midway scales linearly", 50, 82.5, 1500 * time.Millisecond},
		{"hotter sensor dominates", 77.5, 86.25, 2 * time.Second},
		{"above critical clamps at five times base", 100, 50, 2500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newTestGovernor(tt.cpu, tt.gpu)
			assert.Equal(t, tt.want, g.AdaptiveDelay(ctx))
		})
	}
}

func TestAdaptiveDelayOnSensorFailure(t *testing.T) {
	g, _, _ := newTestGovernor(-1, 80)
	assert.Equal(t, time.Second, g.AdaptiveDelay(context.Background()),
		"Sensor failure falls back to twice the base delay")
}

func TestCriticalEndToEnd(t *testing.T) {
	g, _, _ := newTestGovernor(90, 50)
	ctx := context.Background()

	s := g.Check(ctx)
	assert.Equal(t, governor.StatusCritical, s.Status)

	pause, _ := g.ShouldPause(ctx)
	assert.True(t, pause)
	assert.Equal(t, 2500*time.Millisecond, g.AdaptiveDelay(ctx))
	assert.Equal(t, time.Second, g.Interval())
}
