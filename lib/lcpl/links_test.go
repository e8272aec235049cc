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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPublication(t *testing.T) {
	links := []Link{
		{Rel: "hint", Type: MediaTypeEPUB, Href: "https://example.com/hint"},
		{Rel: "publication", Type: "application/audiobook+zip", Href: "https://example.com/audio"},
		{Rel: "publication", Type: MediaTypePDF, Href: "https://example.com/first.pdf", Length: 42},
		{Rel: "publication", Type: MediaTypeEPUB, Href: "https://example.com/second.epub"},
	}
	sel, err := SelectPublication(links)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/first.pdf", sel.Link.Href)
	assert.Equal(t, ".pdf", sel.Extension)
	assert.Equal(t, int64(42), sel.Link.Length)
	assert.False(t, sel.Templated)

	sel, err = SelectPublication(links[3:])
	require.NoError(t, err)
	assert.Equal(t, ".epub", sel.Extension)
}

func TestSelectPublicationNone(t *testing.T) {
	for _, links := range [][]Link{
		nil,
		{{Rel: "status", Type: "application/vnd.readium.license.status.v1.0+json"}},
		{{Rel: "Publication", Type: MediaTypeEPUB}},
		{{Rel: "publication", Type: "application/EPUB+zip"}},
	} {
		_, err := SelectPublication(links)
		assert.ErrorIs(t, err, ErrNoPublication)
	}
}

func TestSelectTemplated(t *testing.T) {
	sel, err := SelectPublication([]Link{{
		Rel:       "publication",
		Type:      MediaTypeEPUB,
		Href:      "https://example.com/books/{license_id}/download",
		Templated: true,
	}})
	require.NoError(t, err)
	assert.True(t, sel.Templated)
	href, changed := sel.ExpandID("abc")
	assert.True(t, changed)
	assert.Equal(t, "https://example.com/books/abc/download", href)

	sel.Link.Href = "https://example.com/books/{id}"
	href, changed = sel.ExpandID("abc")
	assert.False(t, changed)
	assert.Equal(t, sel.Link.Href, href)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".epub", ExtensionFor(MediaTypeEPUB))
	assert.Equal(t, ".pdf", ExtensionFor(MediaTypePDF))
	assert.Equal(t, ".zip", ExtensionFor("application/x-future"))
}
