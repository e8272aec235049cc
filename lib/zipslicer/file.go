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

package zipslicer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
)

const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

type File struct {
	CreatorVersion   uint16
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	ModifiedTime     uint16
	ModifiedDate     uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Name             string
	Extra            []byte
	Comment          []byte
	InternalAttrs    uint16
	ExternalAttrs    uint32
	Offset           uint64

	r   io.ReaderAt
	rs  int64
	raw []byte // central directory header exactly as read from the archive
	lfh []byte // local header and data for a file not yet written
}

// NewFile builds a new archive member holding data. The contents are
// deflated unless that fails to make them smaller.
func NewFile(name string, data []byte, modified time.Time) (*File, error) {
	if len(name) > uint16Max {
		return nil, errors.New("file name too long")
	}
	method := MethodDeflate
	body, err := deflate(data)
	if err != nil {
		return nil, err
	}
	if len(body) >= len(data) {
		method = MethodStore
		body = data
	}
	if uint64(len(body)) >= uint32Max || uint64(len(data)) >= uint32Max {
		return nil, errors.New("file too big to append")
	}
	mtime, mdate := timeToMsDos(modified)
	f := &File{
		CreatorVersion:   zip20,
		ReaderVersion:    zip20,
		Method:           method,
		ModifiedTime:     mtime,
		ModifiedDate:     mdate,
		CRC32:            crc32.ChecksumIEEE(data),
		CompressedSize:   uint64(len(body)),
		UncompressedSize: uint64(len(data)),
		Name:             name,
	}
	if !isASCII(name) && utf8.ValidString(name) {
		f.Flags |= flagUTF8
	}
	hdr := zipLocalHeader{
		Signature:        fileHeaderSignature,
		ReaderVersion:    f.ReaderVersion,
		Flags:            f.Flags,
		Method:           f.Method,
		ModifiedTime:     f.ModifiedTime,
		ModifiedDate:     f.ModifiedDate,
		CRC32:            f.CRC32,
		CompressedSize:   uint32(f.CompressedSize),
		UncompressedSize: uint32(f.UncompressedSize),
		FilenameLen:      uint16(len(name)),
	}
	buf := bytes.NewBuffer(make([]byte, 0, fileHeaderLen+len(name)+len(body)))
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	buf.WriteString(name)
	buf.Write(body)
	f.lfh = buf.Bytes()
	return f, nil
}

// GetDirectoryHeader returns the central directory record for the file.
// Records of files that were read from an archive are returned unchanged.
func (f *File) GetDirectoryHeader() ([]byte, error) {
	if f.raw != nil {
		return f.raw, nil
	}
	hdr := zipCentralDir{
		Signature:        directoryHeaderSignature,
		CreatorVersion:   f.CreatorVersion,
		ReaderVersion:    f.ReaderVersion,
		Flags:            f.Flags,
		Method:           f.Method,
		ModifiedTime:     f.ModifiedTime,
		ModifiedDate:     f.ModifiedDate,
		CRC32:            f.CRC32,
		CompressedSize:   uint32(f.CompressedSize),
		UncompressedSize: uint32(f.UncompressedSize),
		FilenameLen:      uint16(len(f.Name)),
		CommentLen:       uint16(len(f.Comment)),
		InternalAttrs:    f.InternalAttrs,
		ExternalAttrs:    f.ExternalAttrs,
		Offset:           uint32(f.Offset),
	}
	extra := f.Extra
	if f.Offset >= uint32Max {
		// only the offset can overflow since NewFile limits the sizes
		var z64 [12]byte
		binary.LittleEndian.PutUint16(z64[0:], zip64ExtraId)
		binary.LittleEndian.PutUint16(z64[2:], 8)
		binary.LittleEndian.PutUint64(z64[4:], f.Offset)
		extra = append(z64[:], extra...)
		hdr.Offset = uint32Max
		hdr.ReaderVersion = zip45
		hdr.CreatorVersion = zip45
	}
	hdr.ExtraLen = uint16(len(extra))
	buf := bytes.NewBuffer(make([]byte, 0, directoryHeaderLen+len(f.Name)+len(extra)+len(f.Comment)))
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	buf.WriteString(f.Name)
	buf.Write(extra)
	buf.Write(f.Comment)
	return buf.Bytes(), nil
}

// GetTotalSize returns the number of bytes the file occupies in the body of
// the archive, including the local header and any data descriptor.
func (f *File) GetTotalSize() (int64, error) {
	if f.lfh != nil {
		return int64(len(f.lfh)), nil
	}
	if f.r == nil {
		return 0, errors.New("file has no backing archive")
	}
	var lfhb [fileHeaderLen]byte
	if _, err := f.r.ReadAt(lfhb[:], int64(f.Offset)); err != nil {
		return 0, err
	}
	var hdr zipLocalHeader
	if err := binary.Read(bytes.NewReader(lfhb[:]), binary.LittleEndian, &hdr); err != nil {
		return 0, err
	}
	if hdr.Signature != fileHeaderSignature {
		return 0, fmt.Errorf("%s: local file header not found at offset %d", f.Name, f.Offset)
	}
	size := int64(fileHeaderLen) + int64(hdr.FilenameLen) + int64(hdr.ExtraLen) + int64(f.CompressedSize)
	if f.Flags&flagDataDescriptor != 0 {
		descLen := int64(12)
		if f.CompressedSize >= uint32Max || f.UncompressedSize >= uint32Max {
			descLen = 20
		}
		var sig [4]byte
		if _, err := f.r.ReadAt(sig[:], int64(f.Offset)+size); err != nil {
			return 0, err
		}
		if binary.LittleEndian.Uint32(sig[:]) == dataDescriptorSignature {
			descLen += 4
		}
		size += descLen
	}
	if f.rs > 0 && int64(f.Offset)+size > f.rs {
		return 0, fmt.Errorf("%s: entry extends past end of archive", f.Name)
	}
	return size, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MS-DOS timestamps have a two second resolution and start in 1980
func timeToMsDos(t time.Time) (fTime, fDate uint16) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	fDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	fTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
