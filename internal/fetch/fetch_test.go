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

package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/lcplinput/internal/httperror"
	"github.com/sassoftware/lcplinput/lib/lcpl"
)

func newSink(t *testing.T) *os.File {
	f, err := os.Create(filepath.Join(t.TempDir(), "sink.epub"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func newFetcher(t *testing.T, opts ...Option) *Fetcher {
	f, err := New(append([]Option{WithUserAgent("lcplinput-test/1.0")}, opts...)...)
	require.NoError(t, err)
	return f
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestFetch(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789abcdef"), 5000) // several chunks
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lcplinput-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "identity", r.Header.Get("Accept-Encoding"))
		w.Write(body)
	}))
	defer srv.Close()

	sink := newSink(t)
	// leftovers from an earlier attempt must not survive
	_, err := sink.WriteString(strings.Repeat("x", 200000))
	require.NoError(t, err)

	res, err := newFetcher(t).Fetch(context.Background(), srv.URL+"/book.epub", sink)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, len(body), res.Size)
	assert.EqualValues(t, len(body), res.ContentLength)
	assert.Equal(t, sha256Hex(body), res.Digest.Encoded())
	assert.Equal(t, sink.Name(), res.Path)
	assert.False(t, res.Substituted)

	onDisk, err := os.ReadFile(sink.Name())
	require.NoError(t, err)
	assert.Equal(t, body, onDisk)
}

// shortBodyServer promises more bytes than it sends, then hangs up
func shortBodyServer(t *testing.T, body []byte, missing int, calls *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, buf, err := w.(http.Hijacker).Hijack()
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		fmt.Fprintf(buf, "HTTP/1.1 200 OK\r\nContent-Type: application/epub+zip\r\nContent-Length: %d\r\nConnection: close\r\n\r\n", len(body)+missing)
		buf.Write(body)
		buf.Flush()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchShortBody(t *testing.T) {
	body := bytes.Repeat([]byte("truncated "), 3000)
	var calls atomic.Int32
	srv := shortBodyServer(t, body, 100, &calls)

	var logs bytes.Buffer
	f := newFetcher(t, WithLogger(zerolog.New(&logs)))
	res, err := f.Fetch(context.Background(), srv.URL+"/book.epub", newSink(t))
	require.NoError(t, err)
	assert.EqualValues(t, len(body), res.Size)
	assert.EqualValues(t, len(body)+100, res.ContentLength)
	assert.Equal(t, sha256Hex(body), res.Digest.Encoded())
	onDisk, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, body, onDisk)
	assert.Contains(t, logs.String(), "connection closed before the full body arrived")
}

func TestFetchPublicationShortBodyNoRetry(t *testing.T) {
	var calls atomic.Int32
	body := []byte("partial publication")
	srv := shortBodyServer(t, body, 10, &calls)

	sel := selection(srv.URL+"/pub/{license_id}.epub", true)
	res, err := newFetcher(t).FetchPublication(context.Background(), sel, "lic-42", newSink(t))
	require.NoError(t, err)
	assert.False(t, res.Substituted)
	assert.EqualValues(t, len(body), res.Size)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchUnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("part one "))
		w.(http.Flusher).Flush()
		w.Write([]byte("part two"))
	}))
	defer srv.Close()

	res, err := newFetcher(t).Fetch(context.Background(), srv.URL, newSink(t))
	require.NoError(t, err)
	assert.EqualValues(t, -1, res.ContentLength)
	assert.EqualValues(t, 17, res.Size)
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newFetcher(t).Fetch(context.Background(), srv.URL, newSink(t))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.StatusCode(err))
	assert.Contains(t, err.Error(), "gone fishing")
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newFetcher(t, WithTimeout(50*time.Millisecond)).Fetch(context.Background(), srv.URL, newSink(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestFetchRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newFetcher(t, WithRetries(1, time.Millisecond, time.Millisecond))
	res, err := f.Fetch(context.Background(), srv.URL, newSink(t))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Size)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchNoRetriesByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newFetcher(t).Fetch(context.Background(), srv.URL, newSink(t))
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, httperror.StatusCode(err))
	assert.EqualValues(t, 1, calls.Load())
}

// templatedServer serves the publication only once the license ID has been
// filled into the path
func templatedServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/pub/lic-42.epub" {
			w.Write([]byte("publication"))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func selection(href string, templated bool) lcpl.Selection {
	return lcpl.Selection{
		Link:      lcpl.Link{Rel: lcpl.RelPublication, Href: href, Type: lcpl.MediaTypeEPUB},
		Extension: ".epub",
		Templated: templated,
	}
}

func TestFetchPublicationTemplated(t *testing.T) {
	var calls atomic.Int32
	srv := templatedServer(t, &calls)

	sel := selection(srv.URL+"/pub/{license_id}.epub", true)
	res, err := newFetcher(t).FetchPublication(context.Background(), sel, "lic-42", newSink(t))
	require.NoError(t, err)
	assert.True(t, res.Substituted)
	assert.Equal(t, srv.URL+"/pub/lic-42.epub", res.URL)
	assert.EqualValues(t, len("publication"), res.Size)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchPublicationNotTemplated(t *testing.T) {
	var calls atomic.Int32
	srv := templatedServer(t, &calls)

	sel := selection(srv.URL+"/pub/{license_id}.epub", false)
	_, err := newFetcher(t).FetchPublication(context.Background(), sel, "lic-42", newSink(t))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.StatusCode(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchPublicationNoPlaceholder(t *testing.T) {
	var calls atomic.Int32
	srv := templatedServer(t, &calls)

	sel := selection(srv.URL+"/pub/missing.epub", true)
	_, err := newFetcher(t).FetchPublication(context.Background(), sel, "lic-42", newSink(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateUnused)
	assert.Equal(t, http.StatusNotFound, httperror.StatusCode(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchPublicationSecondFailure(t *testing.T) {
	var calls atomic.Int32
	srv := templatedServer(t, &calls)

	sel := selection(srv.URL+"/other/{license_id}.epub", true)
	_, err := newFetcher(t).FetchPublication(context.Background(), sel, "lic-42", newSink(t))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.StatusCode(err))
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchPublicationFirstTry(t *testing.T) {
	var calls atomic.Int32
	srv := templatedServer(t, &calls)

	sel := selection(srv.URL+"/pub/lic-42.epub", true)
	res, err := newFetcher(t).FetchPublication(context.Background(), sel, "lic-42", newSink(t))
	require.NoError(t, err)
	assert.False(t, res.Substituted)
	assert.EqualValues(t, 1, calls.Load())
}
