package governor

// Status describes the current thermal condition of the monitored host.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	// StatusError overlays any threshold state whenever a sensor reports a
	// non-positive temperature. It clears as soon as valid readings return.
	StatusError Status = "error"
)

type Thresholds struct {
	CPUWarning  float64
	CPUCritical float64
	GPUWarning  float64
	GPUCritical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:  70,
		CPUCritical: 85,
		GPUWarning:  75,
		GPUCritical: 90,
	}
}

// StatusFor computes the health status for a pair of temperature readings.
// Sensor failure takes precedence over every threshold comparison.
func (t Thresholds) StatusFor(cpuTemp, gpuTemp float64) Status {
	switch {
	case cpuTemp <= 0 || gpuTemp <= 0:
		return StatusError
	case cpuTemp >= t.CPUCritical || gpuTemp >= t.GPUCritical:
		return StatusCritical
	case cpuTemp >= t.CPUWarning || gpuTemp >= t.GPUWarning:
		return StatusWarning
	default:
		return StatusNormal
	}
}
