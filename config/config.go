package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RocGit/appifi/internal/util"
	"gopkg.in/yaml.v3"
)

// Byte size units
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// CLI verbosity levels accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultSegmentSize is the content length at which hashing switches from a
	// single pass to per-segment leaf digests chained into one digest.
	DefaultSegmentSize int64 = 1 * GB

	// DefaultMaxFailures is the number of consecutive transient read failures
	// after which a file stops being hashed automatically.
	DefaultMaxFailures = 5

	DefaultAlgorithm = "sha256"

	// DefaultMaxJobs bounds how many hashing jobs read content at once
	DefaultMaxJobs = 4

	// DefaultJobTimeout of 0 disables the per-job deadline
	DefaultJobTimeout = 0.0

	DefaultReadBufferSize = 1 * MB

	// DefaultXattrName is the extended attribute holding the scanner's record
	DefaultXattrName = "user.appifi"

	DefaultLogLvl = util.InfoLevel
	DefaultFsName = "appifi"
	DefaultName   = "appifi-index"
)

// Config contains runtime configuration values for the forest and its hashing pipeline.
type Config struct {
	MountOptions

	LogLvl         util.LogLevel
	SegmentSize    int64   // Segment length for chunked hashing in bytes (Default 1GB)
	MaxFailures    int     // Consecutive transient failures before hashing stops (Default 5)
	Algorithm      string  // Digest algorithm: "sha256" or "blake3" (Default sha256)
	MaxJobs        int     // Concurrently reading hash jobs; 0 means unlimited (Default 4)
	JobTimeout     float64 // Per-job deadline in seconds; 0 disables (Default 0)
	ReadBufferSize int     // Read buffer per job in bytes (Default 1MB)
	XattrName      string  // Extended attribute used by the xstat scanner (Default user.appifi)
}

// JobTimeoutDuration returns JobTimeout as a time.Duration
func (c *Config) JobTimeoutDuration() time.Duration {
	return time.Duration(c.JobTimeout * float64(time.Second))
}

// Validate reports the first field holding an unusable value
func (c *Config) Validate() error {
	switch {
	case c.SegmentSize <= 0:
		return fmt.Errorf("segment_size must be positive, got %d", c.SegmentSize)
	case c.ReadBufferSize <= 0:
		return fmt.Errorf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	case c.MaxFailures < 0:
		return fmt.Errorf("max_failures must not be negative, got %d", c.MaxFailures)
	case c.MaxJobs < 0:
		return fmt.Errorf("max_jobs must not be negative, got %d", c.MaxJobs)
	case c.JobTimeout < 0:
		return fmt.Errorf("job_timeout must not be negative, got %v", c.JobTimeout)
	case c.Algorithm != "sha256" && c.Algorithm != "blake3":
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	case c.XattrName == "":
		return fmt.Errorf("xattr_name must not be empty")
	}
	return nil
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a CLI verbosity between 1 (error) and 5 (trace)
	LogLvl         *int     `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"`
	SegmentSize    *int64   `yaml:"segment_size,omitempty" json:"segment_size,omitempty"`
	MaxFailures    *int     `yaml:"max_failures,omitempty" json:"max_failures,omitempty"`
	Algorithm      *string  `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	MaxJobs        *int     `yaml:"max_jobs,omitempty" json:"max_jobs,omitempty"`
	JobTimeout     *float64 `yaml:"job_timeout,omitempty" json:"job_timeout,omitempty"`
	ReadBufferSize *int     `yaml:"read_buffer_size,omitempty" json:"read_buffer_size,omitempty"`
	XattrName      *string  `yaml:"xattr_name,omitempty" json:"xattr_name,omitempty"`
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		SegmentSize:    DefaultSegmentSize,
		MaxFailures:    DefaultMaxFailures,
		Algorithm:      DefaultAlgorithm,
		MaxJobs:        DefaultMaxJobs,
		JobTimeout:     DefaultJobTimeout,
		ReadBufferSize: DefaultReadBufferSize,
		XattrName:      DefaultXattrName,
	}
}

// NewConfig returns the defaults with override applied; override may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
	}
	if override.SegmentSize != nil {
		c.SegmentSize = *override.SegmentSize
	}
	if override.MaxFailures != nil {
		c.MaxFailures = *override.MaxFailures
	}
	if override.Algorithm != nil {
		c.Algorithm = *override.Algorithm
	}
	if override.MaxJobs != nil {
		c.MaxJobs = *override.MaxJobs
	}
	if override.JobTimeout != nil {
		c.JobTimeout = *override.JobTimeout
	}
	if override.ReadBufferSize != nil {
		c.ReadBufferSize = *override.ReadBufferSize
	}
	if override.XattrName != nil {
		c.XattrName = *override.XattrName
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults
// and validating the result.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(override)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
