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

package magic

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipWithMimetype(t *testing.T, mimetype string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte(mimetype))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		blob []byte
		want FileType
	}{
		{"epub", zipWithMimetype(t, "application/epub+zip"), FileTypeEPUB},
		{"lcpdf", zipWithMimetype(t, "application/pdf+lcp"), FileTypeLCPDF},
		{"zip", zipWithMimetype(t, "text/plain"), FileTypeZIP},
		{"empty zip", []byte{0x50, 0x4b, 0x05, 0x06, 0, 0, 0, 0}, FileTypeZIP},
		{"pdf", []byte("%PDF-1.7\n..."), FileTypePDF},
		{"json", []byte("\r\n  {\"id\": \"x\"}"), FileTypeJSON},
		{"empty", nil, FileTypeUnknown},
		{"garbage", []byte("hello world"), FileTypeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(bytes.NewReader(tc.blob))
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.IsZip(), got.IsZip())
		})
	}
}

func TestDetectFileRewinds(t *testing.T) {
	r := bytes.NewReader([]byte("%PDF-1.4"))
	ft, err := DetectFile(r)
	require.NoError(t, err)
	assert.Equal(t, FileTypePDF, ft)
	pos, err := r.Seek(0, 1)
	require.NoError(t, err)
	assert.Zero(t, pos)
}
