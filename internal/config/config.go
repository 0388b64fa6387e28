package config

import (
	"os"
	"strings"

	"github.com/NickScherbakov/mufu/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultMonitorInterval = 10

	defaultCPUWarning  = 70.0
	defaultCPUCritical = 85.0
	defaultGPUWarning  = 75.0
	defaultGPUCritical = 90.0

	defaultBaseDelayMS     = 500
	defaultNormalInterval  = 5
	defaultWarningInterval = 2
	defaultCriticalCheck   = 1
)

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Monitor  bool   `mapstructure:"monitor"`
	Interval int    `mapstructure:"interval"`

	Thermal  ThermalConfig            `mapstructure:"thermal"`
	SSH      SSHConfig                `mapstructure:"ssh"`
	Probe    ProbeConfig              `mapstructure:"probe"`
	Routing  RoutingConfig            `mapstructure:"routing"`
	Backends map[string]BackendConfig `mapstructure:"backends"`
	Metrics  MetricsConfig            `mapstructure:"metrics"`
}

type ThermalConfig struct {
	CPUWarning       float64 `mapstructure:"cpu_warning"`
	CPUCritical      float64 `mapstructure:"cpu_critical"`
	GPUWarning       float64 `mapstructure:"gpu_warning"`
	GPUCritical      float64 `mapstructure:"gpu_critical"`
	BaseDelayMS      int     `mapstructure:"base_delay_ms"`
	NormalInterval   int     `mapstructure:"normal_interval"`
	WarningInterval  int     `mapstructure:"warning_interval"`
	CriticalInterval int     `mapstructure:"critical_interval"`
}

type SSHConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	KeyPath  string `mapstructure:"key_path"`
	Password string `mapstructure:"password"`
}

type ProbeConfig struct {
	// OS selects the probe command chains. Empty means the runtime OS for
	// local targets and linux for remote targets.
	OS string `mapstructure:"os"`
}

type RoutingConfig struct {
	TextPriority []string `mapstructure:"text_priority"`
	CodePriority []string `mapstructure:"code_priority"`
	// AvailabilityTTL is in seconds. Zero keeps availability results for
	// the lifetime of the process.
	AvailabilityTTL int `mapstructure:"availability_ttl"`
}

type BackendConfig struct {
	Kind         string `mapstructure:"kind"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	HealthPath   string `mapstructure:"health_path"`
	DefaultModel string `mapstructure:"default_model"`
	CodeModel    string `mapstructure:"code_model"`
	SummaryModel string `mapstructure:"summary_model"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Database string `mapstructure:"database"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("mufu", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("monitor", false, "Log telemetry samples without routing")
	fs.Int("interval", defaultMonitorInterval, "Background monitor interval in seconds")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MUFU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("MUFU_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	} else {
		v.SetConfigName("mufu")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("monitor", false)
	v.SetDefault("interval", defaultMonitorInterval)

	v.SetDefault("thermal.cpu_warning", defaultCPUWarning)
	v.SetDefault("thermal.cpu_critical", defaultCPUCritical)
	v.SetDefault("thermal.gpu_warning", defaultGPUWarning)
	v.SetDefault("thermal.gpu_critical", defaultGPUCritical)
	v.SetDefault("thermal.base_delay_ms", defaultBaseDelayMS)
	v.SetDefault("thermal.normal_interval", defaultNormalInterval)
	v.SetDefault("thermal.warning_interval", defaultWarningInterval)
	v.SetDefault("thermal.critical_interval", defaultCriticalCheck)

	v.SetDefault("ssh.port", 22)

	v.SetDefault("routing.text_priority", []string{"ollama", "llamacpp", "yandexgpt"})
	v.SetDefault("routing.code_priority", []string{"ollama", "llamacpp", "yandexgpt"})
	v.SetDefault("routing.availability_ttl", 0)

	v.SetDefault("backends.ollama.kind", "ollama")
	v.SetDefault("backends.ollama.base_url", "http://localhost:11434")
	v.SetDefault("backends.ollama.default_model", "llama3")
	v.SetDefault("backends.ollama.code_model", "codellama")
	v.SetDefault("backends.ollama.summary_model", "llama3")

	v.SetDefault("backends.llamacpp.kind", "openai")
	v.SetDefault("backends.llamacpp.base_url", "http://localhost:8080/v1")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.database", "/var/lib/mufu/selections.db")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"log_level": "log-level",
		"monitor":   "monitor",
		"interval":  "interval",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	t := c.Thermal
	if t.CPUWarning >= t.CPUCritical || t.GPUWarning >= t.GPUCritical {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "warning thresholds must be below critical thresholds")
	}
	if t.BaseDelayMS <= 0 || t.NormalInterval <= 0 || t.WarningInterval <= 0 || t.CriticalInterval <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "delays and check intervals must be positive")
	}

	for id, b := range c.Backends {
		if b.BaseURL == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "backend has no base_url").WithData(id)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Database == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "metrics enabled without a database path")
	}

	return nil
}

// Remote reports whether telemetry should be probed over SSH.
func (c *Config) Remote() bool {
	return c.SSH.Host != ""
}
