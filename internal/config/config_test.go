// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/nzbridge/internal/domain"
)

func TestGenerateSecureTokenHexOutput(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{name: "api_key_length", length: apiKeyLength},
		{name: "small_token", length: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := generateSecureToken(tt.length)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			assert.Len(t, token, tt.length*2)
			_, err = hex.DecodeString(token)
			require.NoError(t, err)
		})
	}
}

func TestConfigDirResolution(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		setupFile      bool
		fileIsDir      bool
		expectedSuffix string
	}{
		{
			name:           "toml_file_extension",
			input:          "/path/to/custom.toml",
			expectedSuffix: "custom.toml",
		},
		{
			name:           "TOML_file_extension_uppercase",
			input:          "/path/to/CONFIG.TOML",
			expectedSuffix: "CONFIG.TOML",
		},
		{
			name:           "directory_path",
			input:          "/path/to/config",
			expectedSuffix: "config.toml",
		},
		{
			name:           "existing_file_without_toml",
			input:          "/path/to/configfile",
			setupFile:      true,
			expectedSuffix: "configfile",
		},
		{
			name:           "existing_directory",
			input:          "/path/to/configdir",
			setupFile:      true,
			fileIsDir:      true,
			expectedSuffix: "config.toml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputPath := filepath.Join(tmpDir, filepath.Base(tt.input))

			if tt.setupFile {
				if tt.fileIsDir {
					require.NoError(t, os.MkdirAll(inputPath, 0o755))
				} else {
					require.NoError(t, os.WriteFile(inputPath, []byte("test"), 0o644))
				}
			}

			c := &AppConfig{}
			result := c.resolveConfigPath(inputPath)
			assert.True(t, strings.HasSuffix(result, tt.expectedSuffix),
				"Expected result %s to end with %s", result, tt.expectedSuffix)
		})
	}
}

func TestNewLoadsConfigFromFileOrDirectory(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, tmpDir string) (inputPath string, expectedHost string, expectedPort int)
	}{
		{
			name: "config_file_path",
			prepare: func(t *testing.T, tmpDir string) (string, string, int) {
				configPath := filepath.Join(tmpDir, "myconfig.toml")
				content := "host = \"localhost\"\nport = 8080\napiKey = \"test-key\"\n"
				require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
				return configPath, "localhost", 8080
			},
		},
		{
			name: "config_directory_path",
			prepare: func(t *testing.T, tmpDir string) (string, string, int) {
				configDir := filepath.Join(tmpDir, "configdir")
				require.NoError(t, os.MkdirAll(configDir, 0o755))
				content := "host = \"0.0.0.0\"\nport = 9090\napiKey = \"dir-key\"\n"
				require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
				return configDir, "0.0.0.0", 9090
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputPath, expectedHost, expectedPort := tt.prepare(t, tmpDir)

			cfg, err := New(inputPath)
			require.NoError(t, err)

			assert.Equal(t, expectedHost, cfg.Config.Host)
			assert.Equal(t, expectedPort, cfg.Config.Port)
			assert.Equal(t, filepath.Dir(cfg.viper.ConfigFileUsed()), cfg.GetConfigDir())
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("apiKey = \"k\"\n"), 0o644))

	cfg, err := New(configPath, "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Config.Version)
	assert.Equal(t, "https://members.easynews.com", cfg.Config.EasynewsBaseURL)
	assert.Equal(t, 100, cfg.Config.MinSizeMB)
	assert.Equal(t, 250, cfg.Config.PerPage)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout())
	assert.Equal(t, 9075, cfg.Config.MetricsPort)
	assert.False(t, cfg.Config.MetricsEnabled)
}

func TestNewWritesDefaultConfigWhenMissing(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := New(configPath)
	require.NoError(t, err)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "apiKey = \""+cfg.Config.APIKey+"\"")
	assert.Len(t, cfg.Config.APIKey, apiKeyLength*2)
	assert.Equal(t, 8081, cfg.Config.Port)
}

func TestEnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("port = 8080\neasynewsUsername = \"file-user\"\n"), 0o644))

	t.Setenv(envPrefix+"PORT", "9999")
	t.Setenv("EASYNEWS_USER", "legacy-user")
	t.Setenv(envPrefix+"EASYNEWS_PASSWORD", "secret")
	t.Setenv(envPrefix+"MIN_SIZE_MB", "250")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Config.Port)
	assert.Equal(t, "legacy-user", cfg.Config.EasynewsUsername)
	assert.Equal(t, "secret", cfg.Config.EasynewsPassword)
	assert.Equal(t, 250, cfg.Config.MinSizeMB)
	assert.Equal(t, fmt.Sprintf("%s:9999", cfg.Config.Host), cfg.ListenAddr())
}

func TestBindOrReadFromFile(t *testing.T) {
	tmpKeyFile := func(t *testing.T) string {
		path := filepath.Join(t.TempDir(), "key-file.txt")
		require.NoError(t, os.WriteFile(path, []byte("key-from-file\n"), 0o644))
		return path
	}

	tests := []struct {
		name          string
		envVarValue   string
		useFile       bool
		expectedValue string
	}{
		{name: "only_file_env_var", useFile: true, expectedValue: "key-from-file"},
		{name: "only_plain_env_var", envVarValue: "key-not-from-file", expectedValue: "key-not-from-file"},
		{name: "file_wins_over_plain", envVarValue: "key-not-from-file", useFile: true, expectedValue: "key-from-file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envVar := envPrefix + "API_KEY"
			if tt.envVarValue != "" {
				t.Setenv(envVar, tt.envVarValue)
			}
			if tt.useFile {
				t.Setenv(envVar+"_FILE", tmpKeyFile(t))
			}

			configPath := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(configPath, []byte("apiKey = \"from-config\"\n"), 0o644))

			cfg, err := New(configPath)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, cfg.Config.APIKey)
		})
	}
}

func TestReloadListenersReceiveCopy(t *testing.T) {
	c := &AppConfig{Config: &domain.Config{Port: 1}}

	var got *domain.Config
	c.RegisterReloadListener(func(cfg *domain.Config) {
		got = cfg
		cfg.Port = 2
	})
	c.notifyListeners()

	require.NotNil(t, got)
	assert.Equal(t, 1, c.Config.Port)
}

func TestReloadPublishesNewSnapshot(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("apiKey = \"k\"\nport = 8081\n"), 0o644))

	cfg, err := New(configPath, "1.2.3")
	require.NoError(t, err)

	before := cfg.Current()
	require.Equal(t, 8081, before.Port)

	cfg.viper.Set("port", 9100)
	require.NoError(t, cfg.reload())

	after := cfg.Current()
	assert.NotSame(t, before, after)
	assert.Equal(t, 9100, after.Port)
	assert.Equal(t, "1.2.3", after.Version)
	assert.Equal(t, 8081, before.Port, "published snapshots are never modified")
	assert.Equal(t, 8081, cfg.Config.Port)
}

func TestSetLogPathSurvivesReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("apiKey = \"k\"\n"), 0o644))

	cfg, err := New(configPath, "dev")
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "nzbridge.log")
	cfg.SetLogPath(logPath)
	assert.Equal(t, logPath, cfg.Current().LogPath)

	require.NoError(t, cfg.reload())
	assert.Equal(t, logPath, cfg.Current().LogPath)
}

func TestCurrentFallsBackToConfig(t *testing.T) {
	c := &AppConfig{Config: &domain.Config{Port: 7}}
	assert.Same(t, c.Config, c.Current())

	c.Store(domain.Config{Port: 8})
	assert.Equal(t, 8, c.Current().Port)
	assert.Equal(t, 7, c.Config.Port)
}

func TestIsDevBuild(t *testing.T) {
	assert.True(t, isDevBuild(""))
	assert.True(t, isDevBuild("dev"))
	assert.True(t, isDevBuild("1.0.0-dev"))
	assert.False(t, isDevBuild("1.0.0"))
}
