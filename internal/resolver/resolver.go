// Copyright © SAS Institute Inc.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resolver turns a license file into the publication it licenses,
// with the license embedded.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sassoftware/lcplinput/config"
	"github.com/sassoftware/lcplinput/internal/fetch"
	"github.com/sassoftware/lcplinput/internal/integrity"
	"github.com/sassoftware/lcplinput/internal/patcher"
	"github.com/sassoftware/lcplinput/lib/lcpl"
)

var ErrOutsideWindow = errors.New("license is outside its rights window")

// Fetcher downloads the selected publication link into sink
type Fetcher interface {
	FetchPublication(ctx context.Context, sel lcpl.Selection, licenseID string, sink *os.File) (*fetch.Result, error)
}

// Result describes one run
type Result struct {
	State      State
	Path       string // the patched container, once Done
	License    *lcpl.License
	Validity   lcpl.Validity
	Selection  lcpl.Selection
	Download   *fetch.Result
	Mismatches []*integrity.Mismatch // tolerated integrity failures
}

type Resolver struct {
	settings *config.Settings
	sinks    SinkFactory
	fetcher  Fetcher
	now      func() time.Time
	logger   zerolog.Logger
}

type Option func(*Resolver)

func WithSinkFactory(f SinkFactory) Option {
	return func(r *Resolver) { r.sinks = f }
}

func WithFetcher(f Fetcher) Option {
	return func(r *Resolver) { r.fetcher = f }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a resolver. A nil settings uses the defaults.
func New(settings *config.Settings, opts ...Option) (*Resolver, error) {
	if settings == nil {
		settings = config.Defaults()
	}
	r := &Resolver{
		settings: settings,
		now:      time.Now,
		logger:   log.Logger,
	}
	for _, o := range opts {
		o(r)
	}
	if r.sinks == nil {
		r.sinks = TempSink(settings.TempDir)
	}
	if r.fetcher == nil {
		f, err := fetch.New(
			fetch.WithUserAgent(settings.UserAgent()),
			fetch.WithTimeout(settings.GetDownloadTimeout()),
			fetch.WithConnectTimeout(settings.GetConnectTimeout()),
			fetch.WithRetries(settings.DownloadRetries, time.Second, 30*time.Second),
			fetch.WithLogger(r.logger),
		)
		if err != nil {
			return nil, err
		}
		r.fetcher = f
	}
	return r, nil
}

// ResolveFile returns the path of the resolved container, or path itself if
// the file could not be resolved for any reason.
func (r *Resolver) ResolveFile(ctx context.Context, path string) string {
	res, err := r.Run(ctx, path)
	if err != nil {
		return path
	}
	return res.Path
}

// Run resolves the license file at path. Failures are returned as *Error.
func (r *Resolver) Run(ctx context.Context, path string) (*Result, error) {
	logger := r.runLogger().With().Str("license", path).Logger()
	raw, err := os.ReadFile(path)
	if err != nil {
		rerr := &Error{Kind: KindNotLicense, Stage: StateParsed, Err: err}
		logAbort(logger, rerr)
		return &Result{State: StateAborted}, rerr
	}
	return r.run(ctx, raw, logger)
}

// RunDescriptor resolves a license that is already in memory
func (r *Resolver) RunDescriptor(ctx context.Context, raw []byte) (*Result, error) {
	return r.run(ctx, raw, r.runLogger())
}

func (r *Resolver) runLogger() zerolog.Logger {
	return r.logger.With().Str("run", uuid.NewString()).Logger()
}

func (r *Resolver) run(ctx context.Context, raw []byte, logger zerolog.Logger) (res *Result, err error) {
	res = &Result{State: StateStart}
	var sink *os.File
	fail := func(kind Kind, stage State, cause error) error {
		return &Error{Kind: kind, Stage: stage, Err: cause}
	}
	defer func() {
		if err == nil {
			return
		}
		res.State = StateAborted
		if sink != nil {
			sink.Close()
			if rmErr := os.Remove(sink.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn().Err(rmErr).Str("path", sink.Name()).Msg("failed to remove partial download")
			}
		}
		var rerr *Error
		if errors.As(err, &rerr) {
			logAbort(logger, rerr)
		}
	}()

	// parse
	lic, err := lcpl.Parse(raw)
	if errors.Is(err, lcpl.ErrNotLicense) {
		return res, fail(KindNotLicense, StateParsed, err)
	} else if err != nil {
		return res, fail(KindMalformed, StateParsed, err)
	}
	res.License = lic
	res.State = StateParsed
	logger = logger.With().Str("id", lic.ID).Logger()
	ctx = logger.WithContext(ctx)

	// rights window
	res.Validity = lic.Validity(r.now())
	if !res.Validity.InRange {
		if r.settings.HonorLicenseTimeLimits {
			return res, fail(KindPolicyRejected, StateValidityChecked,
				fmt.Errorf("%w: %s", ErrOutsideWindow, res.Validity))
		}
		logger.Warn().
			Stringer("validity", res.Validity).
			Msg("license is outside its rights window, continuing because time limits are not honored")
	}
	res.State = StateValidityChecked

	// link selection
	res.Selection, err = lcpl.SelectPublication(lic.Links)
	if err != nil {
		return res, fail(KindMalformed, StateLinkSelected, err)
	}
	res.State = StateLinkSelected
	logger.Debug().
		Str("url", res.Selection.Link.Href).
		Str("type", res.Selection.Link.Type).
		Bool("templated", res.Selection.Templated).
		Msg("selected publication link")

	// download
	sink, err = r.sinks(res.Selection.Extension)
	if err != nil {
		return res, fail(KindArchiveWrite, StateDownloaded, fmt.Errorf("creating download file: %w", err))
	}
	res.Download, err = r.fetcher.FetchPublication(ctx, res.Selection, lic.ID, sink)
	if err != nil {
		return res, fail(KindNetwork, StateDownloaded, err)
	}
	res.State = StateDownloaded
	logger.Info().
		Str("url", res.Download.URL).
		Int64("size", res.Download.Size).
		Bool("substituted", res.Download.Substituted).
		Msg("downloaded publication")

	// integrity
	res.Mismatches, err = integrity.Verify(res.Download, integrity.ExpectationFor(res.Selection.Link),
		r.settings.IgnoreContentErrors, logger)
	if err != nil {
		return res, fail(KindIntegrity, StateVerified, err)
	}
	res.State = StateVerified

	// embed the license
	if err = sink.Close(); err != nil {
		return res, fail(KindArchiveWrite, StatePatched, err)
	}
	if err = patcher.Patch(sink.Name(), lic.Raw, r.now(), logger); err != nil {
		return res, fail(KindArchiveWrite, StatePatched, err)
	}
	res.State = StatePatched

	res.Path = sink.Name()
	res.State = StateDone
	logger.Info().Str("output", res.Path).Msg("license resolved")
	return res, nil
}

func logAbort(logger zerolog.Logger, rerr *Error) {
	var ev *zerolog.Event
	switch rerr.Kind {
	case KindNotLicense:
		ev = logger.Debug()
	case KindPolicyRejected:
		ev = logger.Warn()
	default:
		ev = logger.Error()
	}
	ev.Err(rerr.Err).
		Stringer("stage", rerr.Stage).
		Stringer("kind", rerr.Kind).
		Msg("license not resolved, passing input through")
}
