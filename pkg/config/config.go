// Package config loads and validates the server's configuration
// surface: the NFS wire options, the share list, and the ambient
// logging/metrics/telemetry settings layered on top of it.
//
// Configuration is loaded with github.com/spf13/viper, bound to a
// mapstructure-tagged Config struct, and validated with
// github.com/go-playground/validator/v10 struct tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/marmos91/nfsv3d/internal/bytesize"
)

// ShareConfig names one exported filesystem tree.
type ShareConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Path     string `mapstructure:"path" validate:"required"`
	ReadOnly bool   `mapstructure:"read_only"`
	Symlinks bool   `mapstructure:"symlinks"`
	DiskSize bool   `mapstructure:"disk_size"`
}

// NFSConfig is the configuration surface for the NFSv3 core plus the
// portmapper client it drives.
type NFSConfig struct {
	Port           int    `mapstructure:"port" validate:"min=1,max=65535"`
	UDPPort        int    `mapstructure:"udp_port" validate:"min=1,max=65535"`
	PortmapperHost string `mapstructure:"portmapper_host"`
	PortmapperPort int    `mapstructure:"portmapper_port"`

	// RPCRegisterPort is the local port the portmapper client binds when
	// dialing rpcbind (some rpcbind deployments require registrations to
	// originate from a privileged port); 0 picks an ephemeral port.
	RPCRegisterPort int `mapstructure:"rpc_register_port" validate:"min=0,max=65535"`

	ThreadPoolSize   int           `mapstructure:"thread_pool_size" validate:"min=0,max=50"`
	PacketPoolSize   bytesize.ByteSize `mapstructure:"packet_pool_size"`
	MaxRequestSize   bytesize.ByteSize `mapstructure:"max_request_size"`
	RescanInterval   time.Duration `mapstructure:"rescan_interval"`
	SearchSlotsLimit int           `mapstructure:"search_slots_per_session" validate:"min=0"`

	// DebugFlags enables per-topic wire/session debug logging on top of
	// the global log level.
	DebugFlags []string `mapstructure:"debug_flags" validate:"dive,oneof=RXDATA TXDATA DUMPDATA SEARCH INFO FILE FILEIO ERROR TIMING DIRECTORY SESSION"`
}

// LoggingConfig controls internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the loopback Prometheus scrape endpoint
// (internal/debugsrv).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// ProfilingConfig controls optional Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Endpoint     string   `mapstructure:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Endpoint   string           `mapstructure:"endpoint"`
	Insecure   bool             `mapstructure:"insecure"`
	SampleRate float64          `mapstructure:"sample_rate" validate:"omitempty,min=0,max=1"`
	Profiling  ProfilingConfig  `mapstructure:"profiling"`
}

// Config is the full bound configuration surface.
type Config struct {
	NFS             NFSConfig       `mapstructure:"nfs" validate:"required"`
	Shares          []ShareConfig   `mapstructure:"shares" validate:"dive"`
	Logging         LoggingConfig   `mapstructure:"logging"`
	Metrics         MetricsConfig   `mapstructure:"metrics"`
	Telemetry       TelemetryConfig `mapstructure:"telemetry"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

var validate = validator.New()

// setDefaults supplies the server's built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("nfs.port", 2049)
	v.SetDefault("nfs.udp_port", 2049)
	v.SetDefault("nfs.portmapper_host", "localhost")
	v.SetDefault("nfs.portmapper_port", 111)
	v.SetDefault("nfs.rpc_register_port", 0)
	v.SetDefault("nfs.thread_pool_size", 8)
	v.SetDefault("nfs.packet_pool_size", 0)
	v.SetDefault("nfs.max_request_size", 65535)
	v.SetDefault("nfs.rescan_interval", "30s")
	v.SetDefault("nfs.search_slots_per_session", 256)
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9049)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("shutdown_timeout", "10s")
}

// decodeHook lets viper/mapstructure decode "10s", "64KiB", etc. into
// the NFSConfig/Config field types above: durations via the v2
// mapstructure string-to-duration hook, byte sizes via
// bytesize.ByteSize's TextUnmarshaler.
func decodeHook(c *mapstructure.DecoderConfig) {
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// newViper builds a viper instance reading path (if set) or the
// default config search path, with DITTOFS_-prefixed environment
// variable overrides.
func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DITTOFS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(DefaultConfigPath()))
	}
	return v
}

// Load reads and validates the configuration at path (or the default
// location when path is empty).
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load, but returns a zero-value-defaulted Config instead
// of an error when no config file exists at all (so `config show`
// against a fresh checkout still prints something).
func MustLoad(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == "" && !DefaultConfigExists() {
		v := newViper(path)
		var empty Config
		if decErr := v.Unmarshal(&empty, decodeHook); decErr == nil {
			return &empty, nil
		}
	}
	return nil, err
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/dittofs/config.yaml (or
// ~/.config/dittofs/config.yaml).
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dittofs", "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}

// SampleOptions parameterize the generated sample configuration, used
// by the interactive `dittofs init` wizard.
type SampleOptions struct {
	Port      int
	ShareName string
	SharePath string
	ReadOnly  bool
}

// DefaultSampleOptions returns the values the non-interactive sample
// config is rendered with.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{Port: 2049, ShareName: "export", SharePath: "/srv/dittofs/export"}
}

// RenderSampleConfig renders a complete starter configuration file.
func RenderSampleConfig(opts SampleOptions) string {
	return fmt.Sprintf(`# DittoFS NFSv3 server configuration.
nfs:
  port: %d
  udp_port: %d
  portmapper_host: localhost
  portmapper_port: 111   # -1 disables portmapper registration
  thread_pool_size: 8    # floor 4, ceiling 50
  max_request_size: 65535   # also accepts 64KiB / 1Mi forms
  rescan_interval: 30s
  # debug_flags: [RXDATA, TXDATA, TIMING]

shares:
  - name: %s
    path: %s
    read_only: %t
    symlinks: true

logging:
  level: INFO
  format: text
  output: stdout

metrics:
  enabled: false
  port: 9049

telemetry:
  enabled: false

shutdown_timeout: 10s
`, opts.Port, opts.Port, opts.ShareName, opts.SharePath, opts.ReadOnly)
}

// InitConfig writes a sample config to the default location.
func InitConfig(force bool) (string, error) {
	return InitConfigToPath(DefaultConfigPath(), force)
}

// InitConfigToPath writes a sample config to path, refusing to
// overwrite an existing file unless force is set.
func InitConfigToPath(path string, force bool) (string, error) {
	return InitConfigWithOptions(path, force, DefaultSampleOptions())
}

// InitConfigWithOptions writes a sample config rendered from opts.
func InitConfigWithOptions(path string, force bool, opts SampleOptions) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(RenderSampleConfig(opts)), 0o644); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	return path, nil
}

// Watch installs a viper file-change watch (backed by fsnotify) on the
// configuration file, invoking onChange after every write. This is the
// hot-reload/share-rescan trigger layered on top of the server's own
// periodic rescan.
func Watch(path string, onChange func()) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		onChange()
	})
	v.WatchConfig()
	return nil
}
