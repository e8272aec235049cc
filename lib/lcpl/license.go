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

// Package lcpl decodes Readium LCP license documents and answers the
// questions needed to fetch the publication they describe: whether the
// license is currently usable and which link delivers the content.
package lcpl

import (
	"encoding/json"
	"strings"
	"time"
)

// License is a parsed LCP license document. Only the fields needed to locate
// and validate the publication are decoded; the rest stays in Raw.
type License struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider,omitempty"`
	Issued     string     `json:"issued,omitempty"`
	Updated    string     `json:"updated,omitempty"`
	Encryption Encryption `json:"encryption"`
	Links      []Link     `json:"links,omitempty"`
	Rights     *Rights    `json:"rights,omitempty"`

	// Raw holds the document exactly as it was read
	Raw []byte `json:"-"`
}

// Encryption is kept opaque. Its profile only takes part in recognizing the
// document as a license.
type Encryption struct {
	Profile json.RawMessage `json:"profile"`
}

// ProfileURI returns the profile when it is a plain string
func (e Encryption) ProfileURI() string {
	var s string
	if err := json.Unmarshal(e.Profile, &s); err != nil {
		return ""
	}
	return s
}

type Link struct {
	Rel       string    `json:"rel"`
	Href      string    `json:"href"`
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	Templated Templated `json:"templated,omitempty"`
	Length    int64     `json:"length,omitempty"`
	Hash      string    `json:"hash,omitempty"`
}

// Templated is true when a link's href still contains URI template
// placeholders. Servers send it either as a boolean or as a string.
type Templated bool

func (t *Templated) UnmarshalJSON(d []byte) error {
	var v interface{}
	if err := json.Unmarshal(d, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*t = Templated(x)
	case string:
		*t = Templated(strings.EqualFold(x, "true"))
	default:
		*t = false
	}
	return nil
}

// Rights is the usage window of the license. Print and Copy are decoded for
// display only.
type Rights struct {
	Start *time.Time
	End   *time.Time
	Print *int64
	Copy  *int64
}

type rawRights struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
	Print *int64  `json:"print"`
	Copy  *int64  `json:"copy"`
}

func (r *Rights) UnmarshalJSON(d []byte) error {
	var raw rawRights
	if err := json.Unmarshal(d, &raw); err != nil {
		return err
	}
	*r = Rights{Print: raw.Print, Copy: raw.Copy}
	if raw.Start != nil {
		ts, err := ParseTime(*raw.Start)
		if err != nil {
			return err
		}
		r.Start = &ts
	}
	if raw.End != nil {
		ts, err := ParseTime(*raw.End)
		if err != nil {
			return err
		}
		r.End = &ts
	}
	return nil
}
