package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RocGit/appifi/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	cfg := NewConfig(override)

	expCfg := &Config{
		MountOptions: MountOptions{
			Debug:  true,
			FsName: "test_fs",
			Name:   "test_name",
		},
		LogLvl:         util.TraceLevel,
		SegmentSize:    *override.SegmentSize,
		MaxFailures:    *override.MaxFailures,
		Algorithm:      "blake3",
		MaxJobs:        *override.MaxJobs,
		JobTimeout:     *override.JobTimeout,
		ReadBufferSize: *override.ReadBufferSize,
		XattrName:      "user.test",
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", ErrorVerbose, util.ErrorLevel},
		{"verbose_2_warn", WarnVerbose, util.WarnLevel},
		{"verbose_3_info", InfoVerbose, util.InfoLevel},
		{"verbose_4_debug", DebugVerbose, util.DebugLevel},
		{"verbose_5_trace", TraceVerbose, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig(&ConfigOverride{LogLvl: util.Pointer(tt.verboseValue)})

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		SegmentSize: util.Pointer(int64(4 * MB)),
		MaxJobs:     util.Pointer(0),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.SegmentSize = 4 * MB
	expCfg.MaxJobs = 0

	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"zero segment", func(c *Config) { c.SegmentSize = 0 }, "segment_size"},
		{"zero buffer", func(c *Config) { c.ReadBufferSize = 0 }, "read_buffer_size"},
		{"negative failures", func(c *Config) { c.MaxFailures = -1 }, "max_failures"},
		{"negative jobs", func(c *Config) { c.MaxJobs = -2 }, "max_jobs"},
		{"negative timeout", func(c *Config) { c.JobTimeout = -1 }, "job_timeout"},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "md5" }, "unknown algorithm"},
		{"empty xattr", func(c *Config) { c.XattrName = "" }, "xattr_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_JobTimeoutDuration(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	assert.Equal(t, time.Duration(0), cfg.JobTimeoutDuration())

	cfg.JobTimeout = 1.5
	assert.Equal(t, 1500*time.Millisecond, cfg.JobTimeoutDuration())
}

func TestLoadConfigOverrideFile_Valid(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext     string
		marshal func(v any) ([]byte, error)
	}

	cases := []tc{
		{ext: ".yaml", marshal: yaml.Marshal},
		{ext: ".yml", marshal: yaml.Marshal},
		{ext: ".json", marshal: json.Marshal},
	}

	for _, c := range cases {
		t.Run("valid"+c.ext, func(t *testing.T) {
			t.Parallel()
			override := createOverride()
			data, err := c.marshal(override)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

// TestLoadConfigOverrideFile_UnsupportedExtension tests error handling
// for file extensions that aren't supported (.txt, .xml, etc).
func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("segment_size: 1"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestNewConfigFromFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("algorithm: md5\n"), 0o600))
		_, err := NewConfigFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown algorithm")
	})
	t.Run("partial yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("segment_size: 1024\nmax_failures: 2\n"), 0o600))
		cfg, err := NewConfigFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, int64(1024), cfg.SegmentSize)
		assert.Equal(t, 2, cfg.MaxFailures)
		assert.Equal(t, DefaultAlgorithm, cfg.Algorithm)
	})
}

func createDefaultCfg() *Config {
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

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		LogLvl:         util.Pointer(TraceVerbose),
		SegmentSize:    util.Pointer(DefaultSegmentSize + 1),
		MaxFailures:    util.Pointer(DefaultMaxFailures + 1),
		Algorithm:      util.Pointer("blake3"),
		MaxJobs:        util.Pointer(DefaultMaxJobs + 1),
		JobTimeout:     util.Pointer(DefaultJobTimeout + 30),
		ReadBufferSize: util.Pointer(DefaultReadBufferSize + 1),
		XattrName:      util.Pointer("user.test"),
		Debug:          util.Pointer(true),
		FsName:         util.Pointer("test_fs"),
		Name:           util.Pointer("test_name"),
	}
}
