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

package shared

import (
	"errors"
	"io/fs"

	"github.com/spf13/pflag"

	"github.com/sassoftware/lcplinput/config"
)

// InitConfig loads the settings file named by --config. Without --config the
// default file is used if it exists, otherwise built-in defaults.
func InitConfig() error {
	if CurrentConfig != nil {
		return nil
	}
	usedDefault := false
	if ArgConfig == "" {
		ArgConfig = config.DefaultConfig()
		usedDefault = true
	}
	settings, err := config.ReadFile(ArgConfig)
	if err != nil {
		if !usedDefault || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		settings = config.Defaults()
	}
	CurrentConfig = settings
	return nil
}

// applyOverrides copies flags given on the command line over the settings
func applyOverrides(flags *pflag.FlagSet, s *config.Settings) {
	if flags.Changed("log-level") {
		s.LogLevel = argLogLevel
	}
	if flags.Changed("log-file") {
		s.LogFile = argLogFile
	}
	if flags.Changed("ignore-content-errors") {
		s.IgnoreContentErrors = argIgnoreContentErrors
	}
	if flags.Changed("ignore-time-limits") {
		s.HonorLicenseTimeLimits = !argIgnoreTimeLimits
	}
	if flags.Changed("user-agent") {
		s.UseCustomUA = argUserAgent != ""
		s.CustomUserAgent = argUserAgent
	}
}
