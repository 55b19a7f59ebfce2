// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

type Config struct {
	Version string `toml:"-" mapstructure:"-"`

	Host    string `toml:"host" mapstructure:"host"`
	Port    int    `toml:"port" mapstructure:"port"`
	BaseURL string `toml:"baseUrl" mapstructure:"baseUrl"`
	APIKey  string `toml:"apiKey" mapstructure:"apiKey"`
	// TrustProxyHeaders lets X-Forwarded-Proto/Host pick the download link root.
	TrustProxyHeaders bool `toml:"trustProxyHeaders" mapstructure:"trustProxyHeaders"`

	EasynewsUsername string `toml:"easynewsUsername" mapstructure:"easynewsUsername"`
	EasynewsPassword string `toml:"easynewsPassword" mapstructure:"easynewsPassword"`
	EasynewsBaseURL  string `toml:"easynewsBaseUrl" mapstructure:"easynewsBaseUrl"`
	// UpstreamTimeout and SessionTTL are in seconds.
	UpstreamTimeout int `toml:"upstreamTimeout" mapstructure:"upstreamTimeout"`
	SessionTTL      int `toml:"sessionTTL" mapstructure:"sessionTTL"`
	PerPage         int `toml:"perPage" mapstructure:"perPage"`
	MinSizeMB       int `toml:"minSizeMB" mapstructure:"minSizeMB"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}
