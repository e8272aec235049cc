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

package lcpl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrNotLicense means the input does not look like a license document at
	// all. Callers should pass such files through untouched.
	ErrNotLicense = errors.New("not a license document")
	// ErrMalformed means the input looked like a license but could not be
	// decoded.
	ErrMalformed = errors.New("malformed license document")
)

// licenseShape recognizes a license by the presence of an id and an
// encryption profile. Nothing else is required at this point.
const licenseShape = `{
	"type": "object",
	"required": ["id", "encryption"],
	"properties": {
		"encryption": {
			"type": "object",
			"required": ["profile"]
		}
	}
}`

var shapeSchema = jsonschema.MustCompileString("lcpl-shape.json", licenseShape)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Parse classifies and decodes a license document. The input is decoded as
// ISO-8859-1 so that no byte sequence can fail to decode before JSON parsing
// begins. Errors wrap either ErrNotLicense or ErrMalformed.
func Parse(raw []byte) (*License, error) {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(bytes.TrimPrefix(raw, utf8BOM))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLicense, err)
	}
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLicense, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrNotLicense)
	}
	if err := shapeSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLicense, err)
	}
	lic := new(License)
	if err := json.Unmarshal(text, lic); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	lic.Raw = raw
	return lic, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an ISO 8601 timestamp. Values without a zone are taken to
// be UTC. The result is always in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
