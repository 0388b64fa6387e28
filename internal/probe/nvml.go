package probe

import (
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/NickScherbakov/mufu/internal/logger"
)

// nvmlSource reads the local GPU temperature directly through NVML, ahead
// of any command-based step. Initialization happens once; a host without
// the NVML library simply falls through to the command chain.
type nvmlSource struct {
	once   sync.Once
	ready  bool
	device nvml.Device
}

func (n *nvmlSource) temperature() (float64, bool) {
	n.once.Do(n.init)
	if !n.ready {
		return 0, false
	}

	temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		logger.Debug().Msgf("NVML temperature read failed: %v", nvml.ErrorString(ret))
		return 0, false
	}

	return float64(temp), true
}

func (n *nvmlSource) init() {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		logger.Debug().Msgf("NVML unavailable: %v", nvml.ErrorString(ret))
		return
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		logger.Debug().Msgf("No NVML device: %v", nvml.ErrorString(ret))
		nvml.Shutdown()
		return
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Msgf("Detected GPU: %v", name)
	}

	n.device = device
	n.ready = true
}

func (n *nvmlSource) shutdown() {
	if n.ready {
		nvml.Shutdown()
		n.ready = false
	}
}
