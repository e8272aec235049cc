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

// Package fetch downloads publications named by license links.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"github.com/sassoftware/lcplinput/internal/httperror"
	"github.com/sassoftware/lcplinput/internal/zhttp"
	"github.com/sassoftware/lcplinput/lib/lcpl"
)

// bodies are streamed to disk in chunks of this size
const chunkSize = 16 * 1024

const (
	defaultTimeout        = 30 * time.Minute
	defaultConnectTimeout = 15 * time.Second
	defaultHeaderTimeout  = 2 * time.Minute
)

// ErrTemplateUnused is returned when a download of a templated link failed
// and the href has no placeholder that could be filled in.
var ErrTemplateUnused = errors.New("templated link has no " + lcpl.LicenseIDPlaceholder + " placeholder")

// Result describes a completed download
type Result struct {
	Path          string        // file holding the body
	URL           string        // URL that was actually downloaded
	Size          int64         // bytes written to Path
	Digest        digest.Digest // SHA-256 of the bytes written
	StatusCode    int
	ContentLength int64 // as reported by the server, -1 if unknown
	Substituted   bool  // the license ID had to be spliced into the URL
}

type Fetcher struct {
	client         *retryablehttp.Client
	userAgent      string
	timeout        time.Duration
	connectTimeout time.Duration
	retries        int
	retryWaitMin   time.Duration
	retryWaitMax   time.Duration
	transport      http.RoundTripper
	logger         zerolog.Logger
}

type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithTimeout bounds a single download, including reading the body
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.connectTimeout = d
		}
	}
}

// WithRetries makes the transport repeat requests that failed in a temporary
// way. This is separate from the templated link recovery.
func WithRetries(n int, waitMin, waitMax time.Duration) Option {
	return func(f *Fetcher) {
		f.retries = n
		f.retryWaitMin = waitMin
		f.retryWaitMax = waitMax
	}
}

// WithTransport replaces the HTTP transport, mostly for tests
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		timeout:        defaultTimeout,
		connectTimeout: defaultConnectTimeout,
		retryWaitMin:   time.Second,
		retryWaitMax:   10 * time.Second,
		logger:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.transport == nil {
		transport, err := newTransport(f.connectTimeout)
		if err != nil {
			return nil, err
		}
		f.transport = transport
	}
	client := retryablehttp.NewClient()
	client.RetryMax = f.retries
	client.RetryWaitMin = f.retryWaitMin
	client.RetryWaitMax = f.retryWaitMax
	client.Logger = leveledLogger{f.logger}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient = &http.Client{
		Transport: zhttp.NewLoggingTransport(f.transport, f.logger),
	}
	f.client = client
	return f, nil
}

func newTransport(connectTimeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: defaultHeaderTimeout,
		IdleConnTimeout:       90 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}
	return transport, nil
}

// Fetch downloads rawURL into sink, replacing anything already in it. Any
// status other than 200 is an error. A body cut short of the server's
// Content-Length is returned as a completed download with Size less than
// ContentLength.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, sink *os.File) (*Result, error) {
	if _, err := sink.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := sink.Truncate(0); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download URL: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	// keep the server from compressing so the bytes on disk are the bytes
	// the license describes
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httperror.FromResponse(resp)
	}
	digester := digest.SHA256.Digester()
	size, err := copyChunks(io.MultiWriter(sink, digester.Hash()), resp.Body)
	if errors.Is(err, io.ErrUnexpectedEOF) && resp.ContentLength > size {
		// the server hung up early; the length check decides what happens
		// to a short body
		logger := f.loggerFor(ctx)
		logger.Warn().
			Str("url", redact(rawURL)).
			Int64("received", size).
			Int64("content_length", resp.ContentLength).
			Msg("connection closed before the full body arrived")
	} else if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", redact(rawURL), err)
	}
	if err := sink.Sync(); err != nil {
		return nil, err
	}
	return &Result{
		Path:          sink.Name(),
		URL:           rawURL,
		Size:          size,
		Digest:        digester.Digest(),
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
	}, nil
}

// FetchPublication downloads the selected publication link. If that fails and
// the link is marked as templated, the license ID is substituted into the
// href and the download is attempted exactly once more.
func (f *Fetcher) FetchPublication(ctx context.Context, sel lcpl.Selection, licenseID string, sink *os.File) (*Result, error) {
	logger := f.loggerFor(ctx)
	res, err := f.Fetch(ctx, sel.Link.Href, sink)
	if err == nil {
		return res, nil
	}
	if !sel.Templated {
		return nil, err
	}
	expanded, changed := sel.ExpandID(licenseID)
	if !changed {
		return nil, fmt.Errorf("%w: %w", ErrTemplateUnused, err)
	}
	logger.Warn().
		Err(err).
		Str("url", redact(expanded)).
		Msg("download of templated link failed, retrying with license ID filled in")
	res, err = f.Fetch(ctx, expanded, sink)
	if err != nil {
		return nil, fmt.Errorf("download failed even with license ID filled in: %w", err)
	}
	res.Substituted = true
	return res, nil
}

func (f *Fetcher) loggerFor(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return f.logger
}

// copyChunks streams src into dst one fixed-size chunk at a time
func copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			return written, nil
		} else if rerr != nil {
			return written, rerr
		}
	}
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}
