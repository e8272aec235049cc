/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDownloadTimeout = 30 * time.Minute
	defaultConnectTimeout  = 15 * time.Second
)

var (
	Version = "unknown" // set this at link time
	Commit  = "unknown" // set this at link time
)

// Settings is the policy and transport configuration for resolving licenses
type Settings struct {
	// Refuse to download publications whose rights window does not include
	// the current time.
	HonorLicenseTimeLimits bool `yaml:"honor_license_time_limits"`
	// Keep going when the downloaded size or hash does not match.
	IgnoreContentErrors bool `yaml:"ignore_content_errors"`
	// Send CustomUserAgent instead of the platform default
	UseCustomUA     bool   `yaml:"use_custom_ua"`
	CustomUserAgent string `yaml:"useragent"`

	DownloadTimeout time.Duration `yaml:"download_timeout"` // Deadline for one GET, including the body
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	DownloadRetries int           `yaml:"download_retries"` // Transport retries for temporary failures
	TempDir         string        `yaml:"temp_dir"`         // Where downloads are staged

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Defaults returns the settings used when no configuration file exists
func Defaults() *Settings {
	return &Settings{
		HonorLicenseTimeLimits: true,
		CustomUserAgent:        DefaultUserAgent(runtime.GOOS),
		DownloadTimeout:        defaultDownloadTimeout,
		ConnectTimeout:         defaultConnectTimeout,
	}
}

func ReadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML settings. Keys that are absent keep their defaults.
func Parse(data []byte) (*Settings, error) {
	settings := Defaults()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Settings) Validate() error {
	var e []error
	if s.DownloadTimeout < 0 {
		e = append(e, errors.New("download_timeout must not be negative"))
	}
	if s.ConnectTimeout < 0 {
		e = append(e, errors.New("connect_timeout must not be negative"))
	}
	if s.DownloadRetries < 0 {
		e = append(e, errors.New("download_retries must not be negative"))
	}
	if s.TempDir != "" {
		if st, err := os.Stat(s.TempDir); err != nil {
			e = append(e, fmt.Errorf("temp_dir: %w", err))
		} else if !st.IsDir() {
			e = append(e, fmt.Errorf("temp_dir: %s is not a directory", s.TempDir))
		}
	}
	return errors.Join(e...)
}

// UserAgent returns the User-Agent header to send when downloading
func (s *Settings) UserAgent() string {
	if s.UseCustomUA && s.CustomUserAgent != "" {
		return s.CustomUserAgent
	}
	return DefaultUserAgent(runtime.GOOS)
}

func (s *Settings) GetDownloadTimeout() time.Duration {
	if s.DownloadTimeout == 0 {
		return defaultDownloadTimeout
	}
	return s.DownloadTimeout
}

func (s *Settings) GetConnectTimeout() time.Duration {
	if s.ConnectTimeout == 0 {
		return defaultConnectTimeout
	}
	return s.ConnectTimeout
}
