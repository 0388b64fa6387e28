package governor

import (
	"context"
	"time"

	"github.com/NickScherbakov/mufu/internal/logger"
)

// Background loop sleeps between checks; shorter whenever the host is not
// healthy so recovery is noticed quickly.
const (
	criticalSleep = 2 * time.Second
	warningSleep  = 5 * time.Second
	errorSleep    = 3 * time.Second
)

// Run checks telemetry until the context is cancelled. Failures are logged,
// never raised.
func (g *Governor) Run(ctx context.Context) {
	logger.Info().Msgf("Temperature monitor started (interval %s)", g.cfg.MonitorInterval)

	for {
		sample := g.Check(ctx)

		var sleep time.Duration
		switch sample.Status {
		case StatusCritical:
			logger.Error().Msgf("High server temperature: CPU %.1f°C, GPU %.1f°C",
				sample.CPUTemp, sample.GPUTemp)
			sleep = criticalSleep
		case StatusWarning:
			sleep = warningSleep
		case StatusError:
			logger.Warn().Msgf("Temperature sensing failed: CPU %.1f°C, GPU %.1f°C",
				sample.CPUTemp, sample.GPUTemp)
			sleep = errorSleep
		default:
			sleep = g.cfg.MonitorInterval
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Temperature monitor stopped")
			return
		case <-time.After(sleep):
		}
	}
}
