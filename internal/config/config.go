package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"qintegrity/internal/errors"
	"qintegrity/ports"
)

// Config represents the complete application configuration
type Config struct {
	Sweep  SweepConfig
	Sim    SimulationConfig
	Chart  ChartConfig
	Ledger LedgerConfig
	Server ServerConfig
	Log    LogConfig
	Paths  PathConfig

	Profiling ProfilingConfig
}

// SweepConfig holds the experiment parameters
type SweepConfig struct {
	MaxTotalQubits int
	NumTrials      int
	NumRepetitions int
	Seed           int64 // 0 selects a time-based seed
	Workers        int
	MaxRetries     int
	AttackQubit    int // -1 attacks a uniformly random qubit
}

// SimulationConfig holds simulator settings
type SimulationConfig struct {
	MaxResamples int
}

// ChartConfig holds chart rendering settings
type ChartConfig struct {
	Z         float64
	DPI       int
	NumTrials int // 0 reads the trial count from each matrix file name
}

// LedgerConfig selects the run ledger backend
type LedgerConfig struct {
	Driver string // sqlite or postgres
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// ProfilingConfig holds the pprof server settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Pretty bool
}

// PathConfig holds file system paths
type PathConfig struct {
	OutputDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Sweep:  *loadSweepConfig(),
		Sim:    *loadSimulationConfig(),
		Chart:  *loadChartConfig(),
		Server: *loadServerConfig(),
		Log:    *loadLogConfig(),
		Paths:  *loadPathConfig(),

		Profiling: *loadProfilingConfig(),
	}
	config.Ledger = *loadLedgerConfig(config.Paths.OutputDir)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadSweepConfig() *SweepConfig {
	return &SweepConfig{
		MaxTotalQubits: getEnvIntOrDefault("QI_MAX_TOTAL_QUBITS", 5),
		NumTrials:      getEnvIntOrDefault("QI_NUM_TRIALS", 50),
		NumRepetitions: getEnvIntOrDefault("QI_NUM_REPETITIONS", 1),
		Seed:           getEnvInt64OrDefault("QI_SEED", 0),
		Workers:        getEnvIntOrDefault("QI_WORKERS", 1),
		MaxRetries:     getEnvIntOrDefault("QI_MAX_RETRIES", 10000),
		AttackQubit:    getEnvIntOrDefault("QI_ATTACK_QUBIT", -1),
	}
}

func loadSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		MaxResamples: getEnvIntOrDefault("QI_MAX_RESAMPLES", 1000),
	}
}

func loadChartConfig() *ChartConfig {
	return &ChartConfig{
		Z:         getEnvFloatOrDefault("QI_CHART_Z", 1.96),
		DPI:       getEnvIntOrDefault("QI_CHART_DPI", 600),
		NumTrials: getEnvIntOrDefault("QI_CHART_TRIALS", 0),
	}
}

func loadLedgerConfig(outputDir string) *LedgerConfig {
	driver := getEnvOrDefault("LEDGER_DRIVER", "sqlite")
	url := os.Getenv("DATABASE_URL")
	if url == "" && driver == "sqlite" {
		url = filepath.Join(outputDir, "ledger.db")
	}
	return &LedgerConfig{Driver: driver, URL: url}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func loadLogConfig() *LogConfig {
	return &LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: getEnvBoolOrDefault("LOG_PRETTY", true),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		OutputDir: getEnvOrDefault("QI_OUTPUT_DIR", "."),
	}
}

// Validate checks values that cannot be corrected later
func (c *Config) Validate() error {
	if c.Sweep.MaxTotalQubits < 2 {
		return errors.ConfigInvalid("QI_MAX_TOTAL_QUBITS must be at least 2")
	}
	if c.Sweep.NumTrials < 1 {
		return errors.ConfigInvalid("QI_NUM_TRIALS must be positive")
	}
	if c.Sweep.NumRepetitions < 1 {
		return errors.ConfigInvalid("QI_NUM_REPETITIONS must be positive")
	}
	if c.Sweep.MaxRetries < 0 {
		return errors.ConfigInvalid("QI_MAX_RETRIES must not be negative")
	}
	if c.Sweep.AttackQubit < -1 || c.Sweep.AttackQubit > 1 {
		return errors.ConfigInvalid("QI_ATTACK_QUBIT must be -1, 0 or 1")
	}
	if c.Sim.MaxResamples < 1 {
		return errors.ConfigInvalid("QI_MAX_RESAMPLES must be positive")
	}
	if c.Chart.Z <= 0 {
		return errors.ConfigInvalid("QI_CHART_Z must be positive")
	}
	if c.Chart.DPI < 1 || c.Chart.DPI > ports.MaxChartDPI {
		return errors.ConfigInvalid(fmt.Sprintf("QI_CHART_DPI must be between 1 and %d", ports.MaxChartDPI))
	}
	switch c.Ledger.Driver {
	case "sqlite", "postgres", "none":
	default:
		return errors.ConfigInvalid("LEDGER_DRIVER must be sqlite, postgres or none")
	}
	if c.Ledger.Driver == "postgres" && c.Ledger.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required for the postgres ledger")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
