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

package inspectcmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/sassoftware/lcplinput/cmdline/shared"
	"github.com/sassoftware/lcplinput/config"
	"github.com/sassoftware/lcplinput/lib/lcpl"
)

var InspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "Show what resolving a license would do, without downloading",
	Args:  cobra.MinimumNArgs(1),
	RunE:  inspectCmd,
}

var argDump bool

func init() {
	shared.RootCmd.AddCommand(InspectCmd)
	InspectCmd.Flags().BoolVar(&argDump, "dump", false, "Print the parsed license")
}

func inspectCmd(cmd *cobra.Command, args []string) error {
	now := time.Now()
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		Inspect(cmd.OutOrStdout(), path, raw, shared.CurrentConfig, now, argDump)
	}
	return nil
}

// Inspect describes a license file and what the settings would do with it
func Inspect(w io.Writer, path string, raw []byte, settings *config.Settings, now time.Time, dump bool) {
	lic, err := lcpl.Parse(raw)
	if errors.Is(err, lcpl.ErrNotLicense) {
		fmt.Fprintf(w, "%s: not a license\n", path)
		return
	} else if err != nil {
		fmt.Fprintf(w, "%s: %s\n", path, err)
		return
	}
	fmt.Fprintf(w, "%s:\n", path)
	fmt.Fprintf(w, "  id:       %s\n", lic.ID)
	if lic.Provider != "" {
		fmt.Fprintf(w, "  provider: %s\n", lic.Provider)
	}
	if profile := lic.Encryption.ProfileURI(); profile != "" {
		fmt.Fprintf(w, "  profile:  %s\n", profile)
	}
	validity := lic.Validity(now)
	fmt.Fprintf(w, "  rights:   %s\n", validity)
	if !validity.InRange {
		if settings.HonorLicenseTimeLimits {
			fmt.Fprintln(w, "  status:   outside rights window, would be skipped")
		} else {
			fmt.Fprintln(w, "  status:   outside rights window, time limits ignored")
		}
	}
	sel, err := lcpl.SelectPublication(lic.Links)
	if err != nil {
		fmt.Fprintf(w, "  link:     %s\n", err)
	} else {
		fmt.Fprintf(w, "  link:     %s (%s)\n", sel.Link.Href, sel.Link.Type)
		if sel.Templated {
			fmt.Fprintln(w, "  templated: yes")
		}
		if sel.Link.Length > 0 {
			fmt.Fprintf(w, "  length:   %d\n", sel.Link.Length)
		}
		if sel.Link.Hash != "" {
			fmt.Fprintf(w, "  hash:     %s\n", sel.Link.Hash)
		}
	}
	if dump {
		shown := *lic
		shown.Raw = nil
		pretty.Fprintf(w, "%# v\n", shown)
	}
}
