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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sassoftware/lcplinput/config"
	"github.com/sassoftware/lcplinput/internal/zhttp"
)

var (
	ArgConfig     string
	CurrentConfig *config.Settings

	argVersion             bool
	argLogLevel            string
	argLogFile             string
	argIgnoreContentErrors bool
	argIgnoreTimeLimits    bool
	argUserAgent           string
)

var RootCmd = &cobra.Command{
	Use:               "lcplinput",
	Short:             "Fetch LCP protected publications from their license files",
	PersistentPreRunE: setup,
	RunE:              bailUnlessVersion,
	SilenceUsage:      true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&ArgConfig, "config", "c", "", "Configuration file")
	flags.BoolVar(&argVersion, "version", false, "Show version and exit")
	flags.StringVar(&argLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&argLogFile, "log-file", "", "Write JSON logs to this file, or - for stderr")
	flags.BoolVar(&argIgnoreContentErrors, "ignore-content-errors", false, "Keep publications whose size or hash does not match the license")
	flags.BoolVar(&argIgnoreTimeLimits, "ignore-time-limits", false, "Download even when the license is outside its rights window")
	flags.StringVar(&argUserAgent, "user-agent", "", "User-Agent to send instead of the configured one")
}

func setup(cmd *cobra.Command, args []string) error {
	if argVersion {
		fmt.Printf("lcplinput version %s (%s)\n", config.Version, config.Commit)
		os.Exit(0)
	}
	if err := InitConfig(); err != nil {
		return err
	}
	applyOverrides(cmd.Flags(), CurrentConfig)
	return zhttp.SetupLogging(CurrentConfig.LogLevel, CurrentConfig.LogFile)
}

func bailUnlessVersion(cmd *cobra.Command, args []string) error {
	if !argVersion {
		return errors.New("expected a command")
	}
	return nil
}

func Main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
