package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"github.com/spf13/viper"
)

const devJWTSecret = "dev-secret-change-in-production-min-32-chars"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Vehicle  VehicleConfig  `mapstructure:"vehicle"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// BridgeConfig points at the websocket MAVLink bridge
type BridgeConfig struct {
	URL             string        `mapstructure:"url"`
	SystemID        uint8         `mapstructure:"system_id"`
	ComponentID     uint8         `mapstructure:"component_id"`
	TargetSystem    uint8         `mapstructure:"target_system"`
	TargetComponent uint8         `mapstructure:"target_component"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
}

type SyncConfig struct {
	WatchdogInterval      time.Duration `mapstructure:"watchdog_interval"`
	FlushInterval         time.Duration `mapstructure:"flush_interval"`
	MetadataCheckInterval time.Duration `mapstructure:"metadata_check_interval"`
	IdentityPollInterval  time.Duration `mapstructure:"identity_poll_interval"`
	ResolveTimeout        time.Duration `mapstructure:"resolve_timeout"`
	HeartbeatTimeout      time.Duration `mapstructure:"heartbeat_timeout"`
	VersionWait           time.Duration `mapstructure:"version_wait"`
}

type MetadataConfig struct {
	// Directories holding ArduPilot documents
	SearchPaths []string `mapstructure:"search_paths"`
	// On-device PX4 parameter document
	PX4URL string `mapstructure:"px4_url"`
	// Static PX4 document; empty uses the bundled copy
	PX4StaticPath string        `mapstructure:"px4_static_path"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// VehicleConfig pins identity fields instead of detecting them.
// Kind -1, empty firmware and empty version mean detect.
type VehicleConfig struct {
	Kind     int    `mapstructure:"kind"`
	Firmware string `mapstructure:"firmware"`
	Version  string `mapstructure:"version"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	Retention      int    `mapstructure:"retention"`
}

// Auth Configuration
type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// Load reads the YAML file at path, if any, and applies PB_ environment
// overrides such as PB_BRIDGE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("bridge.url", "ws://localhost:6040/v1/ws/mavlink")
	v.SetDefault("bridge.system_id", 255)
	v.SetDefault("bridge.component_id", 240)
	v.SetDefault("bridge.target_system", 1)
	v.SetDefault("bridge.target_component", 1)
	v.SetDefault("bridge.dial_timeout", "5s")
	v.SetDefault("bridge.initial_backoff", "1s")
	v.SetDefault("bridge.max_backoff", "30s")

	v.SetDefault("sync.watchdog_interval", "2s")
	v.SetDefault("sync.flush_interval", "300ms")
	v.SetDefault("sync.metadata_check_interval", "5s")
	v.SetDefault("sync.identity_poll_interval", "1s")
	v.SetDefault("sync.resolve_timeout", "30s")
	v.SetDefault("sync.heartbeat_timeout", "5s")
	v.SetDefault("sync.version_wait", "3s")

	v.SetDefault("metadata.search_paths", []string{"./metadata", "/usr/share/parambridge/metadata"})
	v.SetDefault("metadata.px4_url", "")
	v.SetDefault("metadata.px4_static_path", "")
	v.SetDefault("metadata.fetch_timeout", "10s")

	v.SetDefault("vehicle.kind", -1)
	v.SetDefault("vehicle.firmware", "")
	v.SetDefault("vehicle.version", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "parambridge")
	v.SetDefault("database.user", "parambridge")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.retention", 50)

	// Auth Defaults
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret_env", "PB_JWT_SECRET")
	v.SetDefault("auth.access_token_ttl", "60m")
	v.SetDefault("auth.issuer", "parambridge")
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Bridge.URL == "" {
		return fmt.Errorf("bridge.url must be set")
	}
	if c.Sync.WatchdogInterval <= 0 {
		return fmt.Errorf("sync.watchdog_interval must be positive")
	}
	if c.Sync.FlushInterval < 0 {
		return fmt.Errorf("sync.flush_interval must not be negative")
	}
	if c.Sync.MetadataCheckInterval <= 0 {
		return fmt.Errorf("sync.metadata_check_interval must be positive")
	}
	if _, err := c.Vehicle.Identity(); err != nil {
		return err
	}
	return nil
}

// Identity returns the pinned identity fields. Unset fields are left at
// their "detect" values.
func (v VehicleConfig) Identity() (vehicle.Identity, error) {
	id := vehicle.Identity{Kind: vehicle.Kind(v.Kind)}
	if v.Kind < 0 {
		id.Kind = vehicle.KindUnknown
	}

	switch fw := vehicle.Firmware(strings.ToLower(v.Firmware)); fw {
	case vehicle.FirmwareUnknown, vehicle.FirmwareArduPilot, vehicle.FirmwarePX4:
		id.Firmware = fw
	default:
		return id, fmt.Errorf("vehicle.firmware: unknown firmware %q", v.Firmware)
	}

	if v.Version != "" {
		ver, err := ParseVersion(v.Version)
		if err != nil {
			return id, fmt.Errorf("vehicle.version: %w", err)
		}
		id.Version = ver
	}
	return id, nil
}

// ParseVersion parses "major.minor[.patch]".
func ParseVersion(s string) (vehicle.Version, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return vehicle.Version{}, fmt.Errorf("invalid version %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return vehicle.Version{}, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return vehicle.Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// GetJWTSecret reads the signing secret from the configured environment
// variable, falling back to a development secret.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "PB_JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return devJWTSecret
	}
	return secret
}

// IsProductionReady reports whether a real secret of sufficient length is set
func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != devJWTSecret && len(secret) >= 32
}
