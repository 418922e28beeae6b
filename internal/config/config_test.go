package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Environment: "development",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Data: DataConfig{
			BasePath: "/some/path",
		},
		Playback: PlaybackConfig{
			SaveInterval: 5 * time.Second,
			MaxTickGap:   10 * time.Second,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data base path cannot be empty")
}

func TestValidate_PlaybackTunables(t *testing.T) {
	tests := []struct {
		name         string
		saveInterval time.Duration
		maxTickGap   time.Duration
		valid        bool
	}{
		{"defaults", 5 * time.Second, 10 * time.Second, true},
		{"equal is allowed", 5 * time.Second, 5 * time.Second, true},
		{"zero save interval", 0, 10 * time.Second, false},
		{"gap below interval", 5 * time.Second, 2 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Playback.SaveInterval = tt.saveInterval
			cfg.Playback.MaxTickGap = tt.maxTickGap

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExpandDataPath_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, "Soundleaf")
	assert.Equal(t, expected, cfg.Data.BasePath)
}

func TestExpandDataPath_TildeExpansion(t *testing.T) {
	cfg := &Config{
		Data: DataConfig{
			BasePath: "~/my-data",
		},
	}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, "my-data")
	assert.Equal(t, expected, cfg.Data.BasePath)
}

func TestExpandDataPath_AbsolutePath(t *testing.T) {
	cfg := &Config{
		Data: DataConfig{
			BasePath: "/absolute/path/to/data",
		},
	}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	assert.Equal(t, "/absolute/path/to/data", cfg.Data.BasePath)
}

func TestExpandFolderPath_EmptyStaysEmpty(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandFolderPath()
	require.NoError(t, err)
	assert.Empty(t, cfg.Library.FolderPath)
}

func TestExpandFolderPath_RelativePath(t *testing.T) {
	cfg := &Config{
		Library: LibraryConfig{
			FolderPath: "relative/audiobooks",
		},
	}

	err := cfg.expandFolderPath()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.Library.FolderPath))
	assert.Contains(t, cfg.Library.FolderPath, "relative/audiobooks")
}

func TestGetConfigValue_Precedence(t *testing.T) {
	// Flag value takes priority.
	result := getConfigValue("flag-value", "ENV_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	// Env var when flag is empty.
	os.Setenv("TEST_ENV_KEY", "env-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("TEST_ENV_KEY")      //nolint:errcheck // Test cleanup

	result = getConfigValue("", "TEST_ENV_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	// Default when both are empty.
	result = getConfigValue("", "NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestGetBoolConfigValue(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := getBoolConfigValue(tt.value, "NONEXISTENT_KEY", true)
			assert.Equal(t, tt.want, got)
		})
	}

	// Empty everywhere falls back to the default.
	assert.True(t, getBoolConfigValue("", "NONEXISTENT_KEY", true))
	assert.False(t, getBoolConfigValue("", "NONEXISTENT_KEY", false))
}

func TestParseDurationValue(t *testing.T) {
	d, err := parseDurationValue("250ms", "NONEXISTENT_KEY", "5s")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = parseDurationValue("", "NONEXISTENT_KEY", "5s")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	_, err = parseDurationValue("not-a-duration", "NONEXISTENT_KEY", "5s")
	assert.Error(t, err)
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
ENV=staging
LOG_LEVEL=debug
DATA_PATH=/test/path
# Comment line
QUOTED_VALUE="some value"
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	keys := []string{"ENV", "LOG_LEVEL", "DATA_PATH", "QUOTED_VALUE"}
	for _, k := range keys {
		os.Unsetenv(k) //nolint:errcheck // Test cleanup
	}
	defer func() {
		for _, k := range keys {
			os.Unsetenv(k) //nolint:errcheck // Test cleanup
		}
	}()

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "staging", os.Getenv("ENV"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "/test/path", os.Getenv("DATA_PATH"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	os.Setenv("TEST_VAR", "original-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("TEST_VAR")           //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte(`TEST_VAR=new-value`), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}
