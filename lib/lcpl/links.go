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
	"errors"
	"strings"
)

const (
	RelPublication = "publication"

	MediaTypeEPUB = "application/epub+zip"
	MediaTypePDF  = "application/pdf"

	// LicenseIDPlaceholder is the template variable some servers forget to
	// expand in publication links.
	LicenseIDPlaceholder = "{license_id}"

	fallbackExtension = ".zip"
)

var ErrNoPublication = errors.New("no publication link found in license")

var publicationTypes = map[string]string{
	MediaTypeEPUB: ".epub",
	MediaTypePDF:  ".pdf",
}

// Selection is the link chosen to download the publication
type Selection struct {
	Link      Link
	Extension string
	// Templated is advisory: the link's href may contain placeholders that
	// the server should have expanded.
	Templated bool
}

// Eligible reports whether the link delivers a supported publication
func (l Link) Eligible() bool {
	_, ok := publicationTypes[l.Type]
	return ok && l.Rel == RelPublication
}

// ExtensionFor returns the file extension for a publication media type
func ExtensionFor(mediaType string) string {
	if ext, ok := publicationTypes[mediaType]; ok {
		return ext
	}
	return fallbackExtension
}

// SelectPublication returns the first eligible link, in document order
func SelectPublication(links []Link) (Selection, error) {
	for _, link := range links {
		if !link.Eligible() {
			continue
		}
		return Selection{
			Link:      link,
			Extension: ExtensionFor(link.Type),
			Templated: bool(link.Templated),
		}, nil
	}
	return Selection{}, ErrNoPublication
}

// ExpandID substitutes the license ID into the link's href. The second
// result is false if nothing changed.
func (s Selection) ExpandID(licenseID string) (string, bool) {
	expanded := strings.ReplaceAll(s.Link.Href, LicenseIDPlaceholder, licenseID)
	return expanded, expanded != s.Link.Href
}
