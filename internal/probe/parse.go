package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// parseThermalZone handles /sys/class/thermal readings, which report
// millidegrees when the value has more than two digits.
func parseThermalZone(stdout string) (float64, error) {
	s := firstLine(stdout)
	if s == "" {
		return 0, fmt.Errorf("empty thermal zone output")
	}

	if isDigits(s) && len(s) > 2 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return v / 1000.0, nil
	}

	return strconv.ParseFloat(s, 64)
}

// parseNumber accepts output that is a bare number, as emitted by
// nvidia-smi and the sensors pipeline.
func parseNumber(stdout string) (float64, error) {
	return strconv.ParseFloat(firstLine(stdout), 64)
}

// parseROCmTemp extracts the value from a "Temperature: N" line of
// rocm-smi --showtemp output.
func parseROCmTemp(stdout string) (float64, error) {
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.Contains(line, "Temperature") {
			continue
		}
		_, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		return strconv.ParseFloat(strings.TrimSuffix(fields[0], "c"), 64)
	}

	return 0, fmt.Errorf("no temperature line in rocm-smi output")
}

// parseVulkanTemp extracts the value from a "deviceTemperature = N" line.
func parseVulkanTemp(stdout string) (float64, error) {
	_, rest, ok := strings.Cut(stdout, "=")
	if !ok {
		return 0, fmt.Errorf("no deviceTemperature assignment in output")
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty deviceTemperature value")
	}

	return strconv.ParseFloat(fields[0], 64)
}

// parseDeciKelvin handles WMI thermal zone output, which reports the value
// below a header line in tenths of a degree Kelvin.
func parseDeciKelvin(stdout string) (float64, error) {
	v, err := firstNumericLine(stdout)
	if err != nil {
		return 0, err
	}

	return v/10 - 273.15, nil
}

// parseWMINumber handles "Select-Object <field>" powershell output: a header
// line naming the field followed by the numeric value.
func parseWMINumber(stdout string) (float64, error) {
	return firstNumericLine(stdout)
}

func parseLoadAvg(stdout string) (LoadAverages, error) {
	fields := strings.Fields(stdout)
	if len(fields) < 3 {
		return LoadAverages{}, fmt.Errorf("short loadavg output: %q", stdout)
	}

	var vals [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return LoadAverages{}, err
		}
		vals[i] = v
	}

	return LoadAverages{Load1: vals[0], Load5: vals[1], Load15: vals[2]}, nil
}

// parseWMILoad normalizes a Win32_Processor LoadPercentage average to the
// Linux loadavg range.
func parseWMILoad(stdout string) (LoadAverages, error) {
	v, err := firstNumericLine(stdout)
	if err != nil {
		return LoadAverages{}, err
	}
	load := v / 100.0

	return LoadAverages{Load1: load, Load5: load, Load15: load}, nil
}

// parseFreeMem handles "free -b | grep Mem": total, used and free in bytes.
func parseFreeMem(stdout string) (MemoryUsage, error) {
	fields := strings.Fields(stdout)
	if len(fields) < 4 {
		return MemoryUsage{}, fmt.Errorf("short free output: %q", stdout)
	}

	const bytesPerMB = 1024 * 1024
	var vals [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return MemoryUsage{}, err
		}
		vals[i] = v / bytesPerMB
	}

	return withUsedPercent(MemoryUsage{TotalMB: vals[0], UsedMB: vals[1], FreeMB: vals[2]}), nil
}

// parseWMIMemory handles Win32_OperatingSystem output: a header, a separator
// and a data line with total and free physical memory in KB.
func parseWMIMemory(stdout string) (MemoryUsage, error) {
	for _, line := range strings.Split(stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !isDigits(fields[0]) || !isDigits(fields[1]) {
			continue
		}
		totalKB, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		freeKB, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}

		totalMB := totalKB / 1024
		freeMB := freeKB / 1024
		return withUsedPercent(MemoryUsage{TotalMB: totalMB, UsedMB: totalMB - freeMB, FreeMB: freeMB}), nil
	}

	return MemoryUsage{}, fmt.Errorf("no memory data line in WMI output")
}

// parseSysteminfoMemory handles the two findstr-filtered systeminfo lines,
// e.g. `Total Physical Memory:     16,315 MB`.
func parseSysteminfoMemory(stdout string) (MemoryUsage, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) < 2 {
		return MemoryUsage{}, fmt.Errorf("short systeminfo output: %q", stdout)
	}

	totalMB, err := numericTail(lines[0])
	if err != nil {
		return MemoryUsage{}, err
	}
	freeMB, err := numericTail(lines[1])
	if err != nil {
		return MemoryUsage{}, err
	}

	return withUsedPercent(MemoryUsage{TotalMB: totalMB, UsedMB: totalMB - freeMB, FreeMB: freeMB}), nil
}

func withUsedPercent(m MemoryUsage) MemoryUsage {
	if m.TotalMB > 0 {
		m.UsedPercent = m.UsedMB / m.TotalMB * 100
	}

	return m
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return strings.TrimSpace(line)
}

func firstNumericLine(s string) (float64, error) {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if v, err := strconv.ParseFloat(line, 64); err == nil {
			return v, nil
		}
	}

	return 0, fmt.Errorf("no numeric line in output")
}

// numericTail strips everything but digits and dots after the first colon.
func numericTail(line string) (float64, error) {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return 0, fmt.Errorf("no value in line %q", line)
	}

	var b strings.Builder
	for _, c := range rest {
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("no digits in line %q", line)
	}

	return strconv.ParseFloat(b.String(), 64)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
