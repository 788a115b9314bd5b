// Package config loads the YAML configuration for each of the three
// processes that make up the backend: the auth service, the matchmaking
// coordinator, and the dedicated game server.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL connection parameters for the auth store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns          int32  `yaml:"max_conns"`
	MinConns          int32  `yaml:"min_conns"`
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`
	HealthCheckPeriod string `yaml:"health_check_period"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// AuthServer holds configuration for the auth service (C4).
type AuthServer struct {
	BindAddress string         `yaml:"bind_address"`
	Port        int            `yaml:"port"`
	LogLevel    string         `yaml:"log_level"`
	Database    DatabaseConfig `yaml:"database"`

	SessionTTLSec           int `yaml:"session_ttl_sec"`
	LoginTryBeforeBan       int `yaml:"login_try_before_ban"`
	FailureWindowSec        int `yaml:"failure_window_sec"`
	BcryptCost              int `yaml:"bcrypt_cost"`
	SessionSweepIntervalSec int `yaml:"session_sweep_interval_sec"`
}

// DefaultAuthServer returns sane defaults for the auth service.
func DefaultAuthServer() AuthServer {
	return AuthServer{
		BindAddress:       "0.0.0.0",
		Port:              27015,
		LogLevel:          "info",
		SessionTTLSec:           86400,
		LoginTryBeforeBan:       5,
		FailureWindowSec:        300,
		BcryptCost:              10,
		SessionSweepIntervalSec: 300,
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "arenamatch",
			Password: "arenamatch",
			DBName:  "arenamatch",
			SSLMode: "disable",
		},
	}
}

// LoadAuthServer loads the auth service config from a YAML file, falling
// back to defaults when the file does not exist.
func LoadAuthServer(path string) (AuthServer, error) {
	cfg := DefaultAuthServer()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Coordinator holds configuration for the matchmaking coordinator (C8).
type Coordinator struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`

	AuthHost string `yaml:"auth_host"`
	AuthPort int    `yaml:"auth_port"`

	RequiredPlayers      int `yaml:"required_players"`
	AcceptTimeoutSec     int `yaml:"accept_timeout_sec"`
	AuthTimeoutSec       int `yaml:"auth_timeout_sec"`
	ServerHeartbeatTTLSec int `yaml:"server_heartbeat_ttl_sec"`
	TickIntervalMs       int `yaml:"tick_interval_ms"`
}

// DefaultCoordinator returns sane defaults for the coordinator.
func DefaultCoordinator() Coordinator {
	return Coordinator{
		BindAddress:           "0.0.0.0",
		Port:                  27016,
		LogLevel:              "info",
		AuthHost:              "127.0.0.1",
		AuthPort:              27015,
		RequiredPlayers:       2,
		AcceptTimeoutSec:      20,
		AuthTimeoutSec:        5,
		ServerHeartbeatTTLSec: 15,
		TickIntervalMs:        1,
	}
}

// LoadCoordinator loads the coordinator config from a YAML file, falling
// back to defaults when the file does not exist.
func LoadCoordinator(path string) (Coordinator, error) {
	cfg := DefaultCoordinator()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GameServer holds configuration for a dedicated game server process (C11).
type GameServer struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`

	CoordinatorHost string `yaml:"coordinator_host"`
	CoordinatorPort int    `yaml:"coordinator_port"`

	Capacity          int `yaml:"capacity"`
	TickRateHz        int `yaml:"tick_rate_hz"`
	ClientTimeoutSec  int `yaml:"client_timeout_sec"`
	HeartbeatSec      int `yaml:"heartbeat_sec"`
}

// DefaultGameServer returns sane defaults for a dedicated game server.
func DefaultGameServer() GameServer {
	return GameServer{
		BindAddress:      "0.0.0.0",
		Port:             27500,
		LogLevel:         "info",
		CoordinatorHost:  "127.0.0.1",
		CoordinatorPort:  27016,
		Capacity:         10,
		TickRateHz:       30,
		ClientTimeoutSec: 10,
		HeartbeatSec:     2,
	}
}

// LoadGameServer loads a dedicated game server config from a YAML file,
// falling back to defaults when the file does not exist.
func LoadGameServer(path string) (GameServer, error) {
	cfg := DefaultGameServer()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}
