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
	"bytes"
	"encoding/binary"
	"io"
)

type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeZIP
	FileTypeEPUB
	FileTypeLCPDF
	FileTypePDF
	FileTypeJSON
)

var typeNames = map[FileType]string{
	FileTypeUnknown: "unknown",
	FileTypeZIP:     "zip",
	FileTypeEPUB:    "epub",
	FileTypeLCPDF:   "lcpdf",
	FileTypePDF:     "pdf",
	FileTypeJSON:    "json",
}

func (t FileType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsZip reports whether the type is a ZIP container of some sort
func (t FileType) IsZip() bool {
	switch t {
	case FileTypeZIP, FileTypeEPUB, FileTypeLCPDF:
		return true
	}
	return false
}

// Detect reads the start of the stream and guesses what it contains.
func Detect(r io.Reader) FileType {
	var buf [1024]byte
	n, err := io.ReadFull(r, buf[:])
	if n == 0 && err != nil {
		return FileTypeUnknown
	}
	blob := buf[:n]
	switch {
	case bytes.HasPrefix(blob, []byte{0x50, 0x4b, 0x03, 0x04}):
		if len(blob) < 30 {
			return FileTypeZIP
		}
		fnLen := int(binary.LittleEndian.Uint16(blob[26:28]))
		exLen := int(binary.LittleEndian.Uint16(blob[28:30]))
		name := blob[30:]
		if fnLen <= len(name) && string(name[:fnLen]) == "mimetype" {
			start := 30 + fnLen + exLen
			if start < len(blob) {
				rest := blob[start:]
				switch {
				case bytes.HasPrefix(rest, []byte("application/epub+zip")):
					return FileTypeEPUB
				case bytes.HasPrefix(rest, []byte("application/pdf+lcp")):
					return FileTypeLCPDF
				}
			}
		}
		if bytes.Contains(blob, []byte("publication.json")) {
			return FileTypeLCPDF
		}
		return FileTypeZIP
	case bytes.HasPrefix(blob, []byte{0x50, 0x4b, 0x05, 0x06}):
		// empty archive
		return FileTypeZIP
	case bytes.HasPrefix(blob, []byte("%PDF-")):
		return FileTypePDF
	case bytes.HasPrefix(bytes.TrimLeft(blob, " \t\r\n\xef\xbb\xbf"), []byte("{")):
		return FileTypeJSON
	}
	return FileTypeUnknown
}

// DetectFile sniffs a seekable file and rewinds it afterwards.
func DetectFile(f io.ReadSeeker) (FileType, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FileTypeUnknown, err
	}
	fileType := Detect(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FileTypeUnknown, err
	}
	return fileType, nil
}
