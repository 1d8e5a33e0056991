// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"plc-monitor/internal/driver/melsec"
	"plc-monitor/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	PLC      PLCConfig      `mapstructure:"plc"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// PLCConfig represents the controller connection
type PLCConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	ResponseTimeoutTicks int           `mapstructure:"response_timeout_ticks"`
	KeepAlive            bool          `mapstructure:"keep_alive"`
}

// MonitorConfig represents the optional target sequence run at startup
type MonitorConfig struct {
	Sequence []TargetConfig `mapstructure:"sequence"`
	Repeat   bool           `mapstructure:"repeat"`
}

// TargetConfig is one step of the target sequence
type TargetConfig struct {
	Name    string        `mapstructure:"name"`
	Address string        `mapstructure:"address"`
	Value   uint16        `mapstructure:"value"`
	Mask    uint16        `mapstructure:"mask"`
	Timeout time.Duration `mapstructure:"timeout"`
	Scale   string        `mapstructure:"scale"`
	Unit    string        `mapstructure:"unit"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	Retention    time.Duration `mapstructure:"retention"`
}

// MetricsConfig represents Prometheus exposition
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load loads configuration from file and environment variables. With an
// empty path the default locations are searched and a missing file is not
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/plc-monitor")
	}

	// Environment variable support
	v.SetEnvPrefix("PLC_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.applySequenceDefaults()

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "plc-monitor")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// PLC defaults
	v.SetDefault("plc.host", "127.0.0.1")
	v.SetDefault("plc.port", 5000)
	v.SetDefault("plc.poll_interval", "500ms")
	v.SetDefault("plc.retry_delay", "2s")
	v.SetDefault("plc.connect_timeout", "5s")
	v.SetDefault("plc.response_timeout_ticks", 100)
	v.SetDefault("plc.keep_alive", true)

	// Monitor defaults
	v.SetDefault("monitor.repeat", false)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "plc_monitor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.retention", "720h")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "plc_monitor")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// applySequenceDefaults fills the per-step fields viper cannot default
func (c *Config) applySequenceDefaults() {
	for i := range c.Monitor.Sequence {
		step := &c.Monitor.Sequence[i]
		if step.Mask == 0 {
			step.Mask = 0xFFFF
		}
		if step.Scale == "" {
			step.Scale = "1"
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("step-%d", i+1)
		}
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if err := protocol.ValidateTCPConfig(protocol.TCPConfig{
		Host:    config.PLC.Host,
		Port:    config.PLC.Port,
		Timeout: config.PLC.ConnectTimeout,
	}); err != nil {
		return fmt.Errorf("plc: %w", err)
	}
	if config.PLC.PollInterval <= 0 {
		return fmt.Errorf("plc.poll_interval must be positive")
	}
	if config.PLC.RetryDelay <= 0 {
		return fmt.Errorf("plc.retry_delay must be positive")
	}
	if config.PLC.ResponseTimeoutTicks <= 0 {
		return fmt.Errorf("plc.response_timeout_ticks must be positive")
	}
	if config.Server.Enabled && config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}

	for i, step := range config.Monitor.Sequence {
		if _, err := melsec.ParseAddress(step.Address); err != nil {
			return fmt.Errorf("monitor.sequence[%d]: %w", i, err)
		}
		if step.Value&^step.Mask != 0 {
			return fmt.Errorf("monitor.sequence[%d]: value 0x%04X has bits outside mask 0x%04X", i, step.Value, step.Mask)
		}
		if _, err := decimal.NewFromString(step.Scale); err != nil {
			return fmt.Errorf("monitor.sequence[%d]: invalid scale %q", i, step.Scale)
		}
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// GetPLCAddr returns the controller address
func (c *Config) GetPLCAddr() string {
	return net.JoinHostPort(c.PLC.Host, strconv.Itoa(c.PLC.Port))
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
