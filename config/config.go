// Package config loads monitor settings from the environment.
//
// A .env file in the working directory is read first when present; variables
// already set in the process environment win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hupe1980/knnmon/knn"
	"github.com/hupe1980/knnmon/snapshot"
)

// Environment variable names.
const (
	EnvClasses      = "KNNMON_CLASSES"
	EnvK            = "KNNMON_KNN_K"
	EnvTemperature  = "KNNMON_KNN_T"
	EnvDevice       = "KNNMON_DEVICE"
	EnvParallelism  = "KNNMON_PARALLELISM"
	EnvSnapshotDir  = "KNNMON_SNAPSHOT_DIR"
	EnvSnapshotKeep = "KNNMON_SNAPSHOT_KEEP"
	EnvCompression  = "KNNMON_COMPRESSION"
	EnvLogLevel     = "KNNMON_LOG_LEVEL"
)

// Device names the compute device. It is carried through to logs and never
// changes results.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// ErrInvalidDevice is returned for a device other than cpu or gpu.
var ErrInvalidDevice = errors.New("config: unknown device")

// Config holds the monitor settings.
type Config struct {
	Classes     int
	K           int
	Temperature float64
	Device      Device
	Parallelism int

	// SnapshotDir enables bank snapshots in a local directory when non-empty.
	SnapshotDir  string
	SnapshotKeep int
	Compression  snapshot.Compression

	LogLevel slog.Level
}

// Default returns the default configuration.
func Default() Config {
	p := knn.DefaultParams()
	return Config{
		Classes:      p.Classes,
		K:            p.K,
		Temperature:  p.Temperature,
		Device:       DeviceCPU,
		Parallelism:  1,
		SnapshotKeep: 3,
		Compression:  snapshot.CompressionLZ4,
		LogLevel:     slog.LevelInfo,
	}
}

// Load reads .env (if any) and the KNNMON_* variables on top of Default and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var err error
	if cfg.Classes, err = getInt(EnvClasses, cfg.Classes); err != nil {
		return nil, err
	}
	if cfg.K, err = getInt(EnvK, cfg.K); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = getFloat(EnvTemperature, cfg.Temperature); err != nil {
		return nil, err
	}
	cfg.Device = Device(strings.ToLower(getEnv(EnvDevice, string(cfg.Device))))
	if cfg.Parallelism, err = getInt(EnvParallelism, cfg.Parallelism); err != nil {
		return nil, err
	}
	cfg.SnapshotDir = getEnv(EnvSnapshotDir, "")
	if cfg.SnapshotKeep, err = getInt(EnvSnapshotKeep, cfg.SnapshotKeep); err != nil {
		return nil, err
	}
	if v := getEnv(EnvCompression, ""); v != "" {
		if cfg.Compression, err = snapshot.ParseCompression(v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvCompression, err)
		}
	}
	if v := getEnv(EnvLogLevel, ""); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// KNN returns the classifier parameters.
func (c Config) KNN() knn.Params {
	return knn.Params{Classes: c.Classes, K: c.K, Temperature: c.Temperature}
}

// Validate checks that classes > 1, k >= 1 and t > 0, and that the remaining
// fields are in range.
func (c Config) Validate() error {
	if err := c.KNN().Validate(); err != nil {
		return err
	}
	switch c.Device {
	case DeviceCPU, DeviceGPU:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDevice, c.Device)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("config: parallelism must be >= 0, got %d", c.Parallelism)
	}
	if c.SnapshotKeep < 0 {
		return fmt.Errorf("config: snapshot keep must be >= 0, got %d", c.SnapshotKeep)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
