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

// Package integrity cross-checks a download against what the license and the
// server said it would be.
package integrity

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"github.com/sassoftware/lcplinput/internal/fetch"
	"github.com/sassoftware/lcplinput/lib/lcpl"
)

// files are hashed in chunks of this size
const chunkSize = 8 * 1024

// Names of the individual checks
const (
	CheckDeclaredLength = "declared length"
	CheckServerLength   = "content-length"
	CheckHash           = "hash"
)

// Expectation holds the values a license declares for its publication. Zero
// values mean nothing was declared.
type Expectation struct {
	Length int64
	Hash   string
}

func ExpectationFor(link lcpl.Link) Expectation {
	return Expectation{Length: link.Length, Hash: link.Hash}
}

// Mismatch is a single failed check
type Mismatch struct {
	Check    string
	Expected string
	Actual   string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("%s mismatch: expected %s, got %s", m.Check, m.Expected, m.Actual)
}

// Check runs every applicable check against the downloaded file and returns
// all mismatches. The error is only for failures to read the file.
func Check(res *fetch.Result, exp Expectation) ([]*Mismatch, error) {
	st, err := os.Stat(res.Path)
	if err != nil {
		return nil, err
	}
	size := st.Size()
	var mismatches []*Mismatch
	if exp.Length > 0 && size != exp.Length {
		mismatches = append(mismatches, &Mismatch{
			Check:    CheckDeclaredLength,
			Expected: strconv.FormatInt(exp.Length, 10),
			Actual:   strconv.FormatInt(size, 10),
		})
	}
	if res.ContentLength >= 0 && size != res.ContentLength {
		mismatches = append(mismatches, &Mismatch{
			Check:    CheckServerLength,
			Expected: strconv.FormatInt(res.ContentLength, 10),
			Actual:   strconv.FormatInt(size, 10),
		})
	}
	if exp.Hash != "" {
		actual := res.Digest
		if actual == "" || res.Size != size {
			actual, err = HashFile(res.Path)
			if err != nil {
				return nil, err
			}
		}
		expected, ok := ParseHash(exp.Hash)
		if !ok || expected != actual {
			mismatches = append(mismatches, &Mismatch{
				Check:    CheckHash,
				Expected: strings.TrimSpace(exp.Hash),
				Actual:   actual.Encoded(),
			})
		}
	}
	return mismatches, nil
}

// Verify checks the download and logs every mismatch. Unless ignore is set the
// first mismatch is returned as an error.
func Verify(res *fetch.Result, exp Expectation, ignore bool, logger zerolog.Logger) ([]*Mismatch, error) {
	mismatches, err := Check(res, exp)
	if err != nil {
		return nil, fmt.Errorf("verifying download: %w", err)
	}
	for _, m := range mismatches {
		ev := logger.Error()
		if ignore {
			ev = logger.Warn().Bool("ignored", true)
		}
		ev.Str("check", m.Check).
			Str("expected", m.Expected).
			Str("actual", m.Actual).
			Msg("downloaded publication failed integrity check")
	}
	if len(mismatches) > 0 && !ignore {
		return mismatches, mismatches[0]
	}
	return mismatches, nil
}

// HashFile computes the SHA-256 digest of a file without loading it into
// memory
func HashFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	digester := digest.SHA256.Digester()
	h := digester.Hash()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		} else if rerr != nil {
			return "", rerr
		}
	}
	return digester.Digest(), nil
}

// ParseHash converts a declared SHA-256 value into a digest. Hex of any case
// is accepted, as is standard base64.
func ParseHash(declared string) (digest.Digest, bool) {
	declared = strings.TrimSpace(declared)
	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(declared))
	if d.Validate() == nil {
		return d, true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		raw, err := enc.DecodeString(declared)
		if err == nil && len(raw) == digest.SHA256.Size() {
			return digest.NewDigestFromEncoded(digest.SHA256, hex.EncodeToString(raw)), true
		}
	}
	return "", false
}
