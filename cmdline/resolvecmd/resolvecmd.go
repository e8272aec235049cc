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

package resolvecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sassoftware/lcplinput/cmdline/shared"
	"github.com/sassoftware/lcplinput/internal/resolver"
	"github.com/sassoftware/lcplinput/lib/atomicfile"
)

var ResolveCmd = &cobra.Command{
	Use:   "resolve FILE...",
	Short: "Download the publications for license files and embed the licenses",
	Args:  cobra.MinimumNArgs(1),
	RunE:  resolveCmd,
}

var (
	argOutputDir string
	argJobs      int
)

func init() {
	shared.RootCmd.AddCommand(ResolveCmd)
	ResolveCmd.Flags().StringVarP(&argOutputDir, "output-dir", "o", "", "Move resolved publications into this directory")
	ResolveCmd.Flags().IntVarP(&argJobs, "jobs", "j", 1, "Number of licenses to resolve at once")
}

func resolveCmd(cmd *cobra.Command, args []string) error {
	if argJobs < 1 {
		return errors.New("--jobs must be at least 1")
	}
	r, err := resolver.New(shared.CurrentConfig)
	if err != nil {
		return err
	}
	return resolveAll(cmd.Context(), r, args, argOutputDir, argJobs, cmd.OutOrStdout())
}

// fileResolver is the part of resolver.Resolver the command needs
type fileResolver interface {
	ResolveFile(ctx context.Context, path string) string
}

func resolveAll(ctx context.Context, r fileResolver, args []string, outputDir string, jobs int, w io.Writer) error {
	var names *outputNames
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return err
		}
		names = newOutputNames(outputDir)
	}
	outputs := make([]string, len(args))
	var eg errgroup.Group
	eg.SetLimit(jobs)
	for i, path := range args {
		i, path := i, path
		eg.Go(func() error {
			out := r.ResolveFile(ctx, path)
			if out != path && names != nil {
				dest, err := names.claim(OutputName(path, out))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := atomicfile.Install(out, dest); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				out = dest
			}
			outputs[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	var failed int
	for i, path := range args {
		fmt.Fprintf(w, "%s -> %s\n", path, outputs[i])
		if outputs[i] == path {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d licenses could not be resolved", failed, len(args))
	}
	return nil
}

// outputNames hands out destination paths in the output directory. A path is
// never given out twice, and files that already exist are not overwritten.
type outputNames struct {
	dir     string
	mu      sync.Mutex
	claimed map[string]bool
}

func newOutputNames(dir string) *outputNames {
	return &outputNames{dir: dir, claimed: make(map[string]bool)}
}

func (o *outputNames) claim(name string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		dest := filepath.Join(o.dir, candidate)
		if o.claimed[dest] {
			continue
		}
		if _, err := os.Lstat(dest); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		o.claimed[dest] = true
		return dest, nil
	}
}

// OutputName names a resolved publication after the license it came from,
// with the extension of the downloaded container
func OutputName(licensePath, resolved string) string {
	base := filepath.Base(licensePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + filepath.Ext(resolved)
}
