package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThermalZone(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		want    float64
		wantErr bool
	}{
		{"millidegrees", "45000\n", 45, false},
		{"millidegrees boundary", "100\n", 0.1, false},
		{"plain degrees", "47\n", 47, false},
		{"fractional degrees", "47.5\n", 47.5, false},
		{"empty", "", 0, true},
		{"garbage", "n/a\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseThermalZone(tt.stdout)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestParseNumber(t *testing.T) {
	got, err := parseNumber("68\n")
	require.NoError(t, err)
	assert.Equal(t, 68.0, got)

	_, err = parseNumber("")
	assert.Error(t, err)
}

func TestParseROCmTemp(t *testing.T) {
	out := `========== ROCm System Management Interface ==========
Temperature: 64.0c
======================================================`
	got, err := parseROCmTemp(out)
	require.NoError(t, err)
	assert.Equal(t, 64.0, got)

	_, err = parseROCmTemp("no data here")
	assert.Error(t, err)
}

func TestParseVulkanTemp(t *testing.T) {
	got, err := parseVulkanTemp("	deviceTemperature = 58\n")
	require.NoError(t, err)
	assert.Equal(t, 58.0, got)

	_, err = parseVulkanTemp("deviceTemperature")
	assert.Error(t, err)
}

func TestParseDeciKelvin(t *testing.T) {
	// WMI reports tenths of a Kelvin below the header line.
	out := "CurrentTemperature\n------------------\n3182\n"
	got, err := parseDeciKelvin(out)
	require.NoError(t, err)
	assert.InDelta(t, 45.05, got, 0.01)
}

func TestParseLoadAvg(t *testing.T) {
	got, err := parseLoadAvg("0.52 0.58 0.59 1/257 30383\n")
	require.NoError(t, err)
	assert.Equal(t, LoadAverages{Load1: 0.52, Load5: 0.58, Load15: 0.59}, got)

	_, err = parseLoadAvg("0.52\n")
	assert.Error(t, err)
}

func TestParseWMILoad(t *testing.T) {
	got, err := parseWMILoad("Average\n-------\n35\n")
	require.NoError(t, err)
	assert.Equal(t, LoadAverages{Load1: 0.35, Load5: 0.35, Load15: 0.35}, got)
}

func TestParseFreeMem(t *testing.T) {
	// free -b: total, used, free in bytes.
	got, err := parseFreeMem("Mem: 16777216000 8388608000 4194304000 0 0 0\n")
	require.NoError(t, err)
	assert.InDelta(t, 16000, got.TotalMB, 1)
	assert.InDelta(t, 8000, got.UsedMB, 1)
	assert.InDelta(t, 4000, got.FreeMB, 1)
	assert.InDelta(t, 50, got.UsedPercent, 0.1)
}

func TestParseWMIMemory(t *testing.T) {
	out := "TotalVisibleMemorySize FreePhysicalMemory\n---------------------- ------------------\n16777216 4194304\n"
	got, err := parseWMIMemory(out)
	require.NoError(t, err)
	assert.InDelta(t, 16384, got.TotalMB, 0.1)
	assert.InDelta(t, 4096, got.FreeMB, 0.1)
	assert.InDelta(t, 12288, got.UsedMB, 0.1)
	assert.InDelta(t, 75, got.UsedPercent, 0.1)
}

func TestParseSysteminfoMemory(t *testing.T) {
	out := "Total Physical Memory:     16315 MB\nAvailable Physical Memory: 8210 MB\n"
	got, err := parseSysteminfoMemory(out)
	require.NoError(t, err)
	assert.Equal(t, 16315.0, got.TotalMB)
	assert.Equal(t, 8210.0, got.FreeMB)
	assert.Equal(t, 8105.0, got.UsedMB)
}
