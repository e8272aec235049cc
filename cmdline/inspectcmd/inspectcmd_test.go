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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sassoftware/lcplinput/config"
)

const sample = `{
  "id": "ef15e740-697f-11e3-949a-0800200c9a66",
  "provider": "https://books.example.com",
  "encryption": {"profile": "http://readium.org/lcp/basic-profile"},
  "links": [
    {"rel": "hint", "href": "https://books.example.com/hint", "type": "text/html"},
    {"rel": "publication", "href": "https://books.example.com/pub/{license_id}", "type": "application/epub+zip",
     "templated": true, "length": 2603944}
  ],
  "rights": {"end": "2024-01-01T00:00:00Z"}
}`

func TestInspect(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	Inspect(&buf, "book.lcpl", []byte(sample), config.Defaults(), now, false)
	out := buf.String()
	assert.Contains(t, out, "id:       ef15e740-697f-11e3-949a-0800200c9a66")
	assert.Contains(t, out, "profile:  http://readium.org/lcp/basic-profile")
	assert.Contains(t, out, "would be skipped")
	assert.Contains(t, out, "https://books.example.com/pub/{license_id} (application/epub+zip)")
	assert.Contains(t, out, "templated: yes")
	assert.Contains(t, out, "length:   2603944")
}

func TestInspectDump(t *testing.T) {
	var buf bytes.Buffer
	settings := config.Defaults()
	settings.HonorLicenseTimeLimits = false
	Inspect(&buf, "book.lcpl", []byte(sample), settings, time.Now(), true)
	assert.Contains(t, buf.String(), "time limits ignored")
	assert.Contains(t, buf.String(), "lcpl.License{")
}

func TestInspectNotLicense(t *testing.T) {
	var buf bytes.Buffer
	Inspect(&buf, "notes.txt", []byte("hello"), config.Defaults(), time.Now(), false)
	assert.Equal(t, "notes.txt: not a license\n", buf.String())
}
