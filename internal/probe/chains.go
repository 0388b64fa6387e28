package probe

// A chain is an ordered list of probe steps per metric. Steps run until one
// produces a plausible value; command text is OS-dependent configuration,
// not protocol.

type tempStep struct {
	name    string
	command string
	parse   func(string) (float64, error)
}

type loadStep struct {
	name    string
	command string
	parse   func(string) (LoadAverages, error)
}

type memStep struct {
	name    string
	command string
	parse   func(string) (MemoryUsage, error)
}

type chainSet struct {
	os      string
	cpuTemp []tempStep
	gpuTemp []tempStep
	load    []loadStep
	memory  []memStep
}

func chainsFor(osName string) chainSet {
	if osName == "windows" {
		return windowsChains()
	}

	return linuxChains()
}

func linuxChains() chainSet {
	return chainSet{
		os: "linux",
		cpuTemp: []tempStep{
			{
				name:    "thermal-zone",
				command: "cat /sys/class/thermal/thermal_zone*/temp | head -n 1",
				parse:   parseThermalZone,
			},
			{
				name:    "lm-sensors",
				command: "sensors | grep 'Core' | awk '{print $3}' | grep -Eo '[0-9]+' | head -n 1",
				parse:   parseNumber,
			},
		},
		gpuTemp: []tempStep{
			{
				name:    "nvidia-smi",
				command: "nvidia-smi --query-gpu=temperature.gpu --format=csv,noheader",
				parse:   parseNumber,
			},
			{
				name:    "rocm-smi",
				command: "rocm-smi --showtemp",
				parse:   parseROCmTemp,
			},
			{
				name:    "vulkaninfo",
				command: "vulkaninfo | grep 'deviceTemperature'",
				parse:   parseVulkanTemp,
			},
		},
		load: []loadStep{
			{
				name:    "loadavg",
				command: "cat /proc/loadavg",
				parse:   parseLoadAvg,
			},
		},
		memory: []memStep{
			{
				name:    "free",
				command: "free -b | grep Mem",
				parse:   parseFreeMem,
			},
		},
	}
}

func windowsChains() chainSet {
	return chainSet{
		os: "windows",
		cpuTemp: []tempStep{
			{
				name:    "wmi-acpi",
				command: `powershell "Get-WmiObject MSAcpi_ThermalZoneTemperature -Namespace root/wmi | Select-Object CurrentTemperature"`,
				parse:   parseDeciKelvin,
			},
			{
				name:    "wmi-thermal-counters",
				command: `powershell "Get-CimInstance Win32_PerfFormattedData_Counters_ThermalZoneInformation | Select-Object Temperature"`,
				parse:   parseWMINumber,
			},
			{
				name:    "wmic-acpi",
				command: `wmic /namespace:\\root\wmi PATH MSAcpi_ThermalZoneTemperature get CurrentTemperature`,
				parse:   parseDeciKelvin,
			},
		},
		gpuTemp: []tempStep{
			{
				name:    "wmi-amd-thermal",
				command: `powershell "Get-WmiObject -Namespace root\WMI -Class AMD_ACPI_ThermalZoneInfo | Select-Object CurrentTemperature"`,
				parse:   parseWMINumber,
			},
			{
				name:    "amdgpu-utility",
				command: "amdgpu-utility -t",
				parse:   parseROCmTemp,
			},
			{
				name:    "wmic-acpi",
				command: `wmic /namespace:\\root\wmi PATH MSAcpi_ThermalZoneTemperature get CurrentTemperature`,
				parse:   parseDeciKelvin,
			},
		},
		load: []loadStep{
			{
				name:    "wmi-load",
				command: `powershell "Get-CimInstance -ClassName win32_processor | Measure-Object -Property LoadPercentage -Average | Select-Object Average"`,
				parse:   parseWMILoad,
			},
		},
		memory: []memStep{
			{
				name:    "wmi-memory",
				command: `powershell "Get-CimInstance -ClassName Win32_OperatingSystem | Select-Object TotalVisibleMemorySize, FreePhysicalMemory"`,
				parse:   parseWMIMemory,
			},
			{
				name:    "systeminfo",
				command: `systeminfo | findstr /C:"Total Physical Memory" /C:"Available Physical Memory"`,
				parse:   parseSysteminfoMemory,
			},
		},
	}
}
