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
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var ErrNotZip = errors.New("zip central directory not found")

type Directory struct {
	File   []*File
	Size   int64
	DirLoc int64
	r      io.ReaderAt
	end64  zip64End
	loc64  zip64Loc
	end    zipEndRecord
}

// Return the offset of the zip central directory
func FindDirectory(r io.ReaderAt, size int64) (int64, error) {
	if size < directoryEndLen {
		return 0, ErrNotZip
	}
	// the end record is followed by a comment of up to 64KiB
	tail := int64(directoryEndLen + maxCommentLen + directory64LocLen)
	if tail > size {
		tail = size
	}
	buf := make([]byte, tail)
	if _, err := r.ReadAt(buf, size-tail); err != nil && err != io.EOF {
		return 0, err
	}
	endPos := -1
	for i := len(buf) - directoryEndLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) == directoryEndSignature &&
			i+directoryEndLen+int(binary.LittleEndian.Uint16(buf[i+20:])) <= len(buf) {
			endPos = i
			break
		}
	}
	if endPos < 0 {
		return 0, ErrNotZip
	}
	var end zipEndRecord
	_ = binary.Read(bytes.NewReader(buf[endPos:]), binary.LittleEndian, &end)
	if end.TotalCDCount == uint16Max || end.CDSize == uint32Max || end.CDOffset == uint32Max {
		if endPos < directory64LocLen {
			return 0, errors.New("expected ZIP64 locator")
		}
		var loc64 zip64Loc
		_ = binary.Read(bytes.NewReader(buf[endPos-directory64LocLen:]), binary.LittleEndian, &loc64)
		if loc64.Signature != directory64LocSignature {
			return 0, errors.New("expected ZIP64 locator")
		}
		// ZIP64
		var end64b [directory64EndLen]byte
		if _, err := r.ReadAt(end64b[:], int64(loc64.Offset)); err != nil {
			return 0, err
		}
		var end64 zip64End
		_ = binary.Read(bytes.NewReader(end64b[:]), binary.LittleEndian, &end64)
		if end64.Signature != directory64EndSignature {
			return 0, ErrNotZip
		}
		return int64(end64.CDOffset), nil
	}
	if int64(end.CDOffset) > size {
		return 0, ErrNotZip
	}
	return int64(end.CDOffset), nil
}

func ReadWithDirectory(r io.ReaderAt, size int64, cd []byte) (*Directory, error) {
	files := make([]*File, 0)
	for len(cd) >= directoryHeaderLen {
		if binary.LittleEndian.Uint32(cd) != directoryHeaderSignature {
			break
		}
		var hdr zipCentralDir
		_ = binary.Read(bytes.NewReader(cd), binary.LittleEndian, &hdr)
		f := &File{
			CreatorVersion:   hdr.CreatorVersion,
			ReaderVersion:    hdr.ReaderVersion,
			Flags:            hdr.Flags,
			Method:           hdr.Method,
			ModifiedTime:     hdr.ModifiedTime,
			ModifiedDate:     hdr.ModifiedDate,
			CRC32:            hdr.CRC32,
			CompressedSize:   uint64(hdr.CompressedSize),
			UncompressedSize: uint64(hdr.UncompressedSize),
			InternalAttrs:    hdr.InternalAttrs,
			ExternalAttrs:    hdr.ExternalAttrs,
			Offset:           uint64(hdr.Offset),

			r:  r,
			rs: size,
		}
		total := directoryHeaderLen + int(hdr.FilenameLen) + int(hdr.ExtraLen) + int(hdr.CommentLen)
		if total > len(cd) {
			return nil, errors.New("truncated zip central directory")
		}
		f.raw = make([]byte, total)
		copy(f.raw, cd)
		cd = cd[directoryHeaderLen:]
		f.Name, cd = string(cd[:int(hdr.FilenameLen)]), cd[int(hdr.FilenameLen):]
		f.Extra, cd = cd[:int(hdr.ExtraLen)], cd[int(hdr.ExtraLen):]
		f.Comment, cd = cd[:int(hdr.CommentLen)], cd[int(hdr.CommentLen):]
		needUSize := f.UncompressedSize == uint32Max
		needCSize := f.CompressedSize == uint32Max
		needOffset := f.Offset == uint32Max
		extra := f.Extra
		for len(extra) >= 4 {
			tag := binary.LittleEndian.Uint16(extra[:2])
			size := binary.LittleEndian.Uint16(extra[2:4])
			if int(size) > len(extra)-4 {
				break
			}
			if tag == zip64ExtraId {
				// fields are present only for the values that overflowed, in order
				e := extra[4 : 4+size]
				if needUSize && len(e) >= 8 {
					f.UncompressedSize = binary.LittleEndian.Uint64(e)
					e = e[8:]
					needUSize = false
				}
				if needCSize && len(e) >= 8 {
					f.CompressedSize = binary.LittleEndian.Uint64(e)
					e = e[8:]
					needCSize = false
				}
				if needOffset && len(e) >= 8 {
					f.Offset = binary.LittleEndian.Uint64(e)
					needOffset = false
				}
				break
			}
			extra = extra[4+size:]
		}
		if needCSize || needOffset {
			return nil, errors.New("missing ZIP64 header")
		}
		files = append(files, f)
	}
	d := &Directory{
		File:   files,
		Size:   size,
		DirLoc: size - int64(len(cd)),
		r:      r,
	}
	if len(cd) < 4 {
		return nil, errors.New("expected end record")
	}
	rd := bytes.NewReader(cd)
	switch binary.LittleEndian.Uint32(cd) {
	case directory64EndSignature:
		_ = binary.Read(rd, binary.LittleEndian, &d.end64)
		_ = binary.Read(rd, binary.LittleEndian, &d.loc64)
	case directoryEndSignature:
	default:
		return nil, errors.New("expected end record")
	}
	if err := binary.Read(rd, binary.LittleEndian, &d.end); err != nil {
		return nil, err
	}
	// DirLoc is where the first directory header starts, not the end record
	d.DirLoc = size - int64(len(cd)) - d.dirSize()
	return d, nil
}

func (d *Directory) dirSize() (n int64) {
	for _, f := range d.File {
		n += int64(len(f.raw))
	}
	return
}

func Read(r io.ReaderAt, size int64) (*Directory, error) {
	loc, err := FindDirectory(r, size)
	if err != nil {
		return nil, err
	}
	cd := make([]byte, size-loc)
	if _, err := r.ReadAt(cd, loc); err != nil {
		return nil, err
	}
	return ReadWithDirectory(r, size, cd)
}

// Find returns the first file with the given name, or nil
func (d *Directory) Find(name string) *File {
	for _, f := range d.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (d *Directory) needZip64() bool {
	if d.end64.Signature != 0 {
		return true
	}
	if len(d.File) >= uint16Max || d.DirLoc >= uint32Max {
		return true
	}
	return d.dirSize() >= uint32Max
}

func (d *Directory) WriteDirectory(w io.Writer) error {
	buf := bufio.NewWriter(w)
	cdoff := d.DirLoc
	var count, size uint64
	for _, f := range d.File {
		blob, err := f.GetDirectoryHeader()
		if err != nil {
			return err
		}
		if _, err := buf.Write(blob); err != nil {
			return err
		}
		count++
		size += uint64(len(blob))
	}
	if !d.needZip64() {
		end := zipEndRecord{
			Signature:    directoryEndSignature,
			DiskCDCount:  uint16(count),
			TotalCDCount: uint16(count),
			CDSize:       uint32(size),
			CDOffset:     uint32(cdoff),
		}
		if err := binary.Write(buf, binary.LittleEndian, end); err != nil {
			return err
		}
		return buf.Flush()
	}
	end64off := cdoff + int64(size)
	end64 := zip64End{
		Signature:      directory64EndSignature,
		RecordSize:     directory64EndLen - 12,
		CreatorVersion: zip45,
		ReaderVersion:  zip45,
		DiskCDCount:    count,
		TotalCDCount:   count,
		CDSize:         size,
		CDOffset:       uint64(cdoff),
	}
	if err := binary.Write(buf, binary.LittleEndian, end64); err != nil {
		return err
	}
	loc64 := zip64Loc{
		Signature: directory64LocSignature,
		Offset:    uint64(end64off),
		DiskCount: 1,
	}
	if err := binary.Write(buf, binary.LittleEndian, loc64); err != nil {
		return err
	}
	end := zipEndRecord{
		Signature:    directoryEndSignature,
		DiskCDCount:  uint16Max,
		TotalCDCount: uint16Max,
		CDSize:       uint32Max,
		CDOffset:     uint32Max,
	}
	if err := binary.Write(buf, binary.LittleEndian, end); err != nil {
		return err
	}
	return buf.Flush()
}

func (d *Directory) AddFile(f *File) (*File, error) {
	size, err := f.GetTotalSize()
	if err != nil {
		return nil, err
	}
	f.Offset = uint64(d.DirLoc)
	d.DirLoc += size
	d.File = append(d.File, f)
	return f, nil
}

// AppendFile adds a new file to the archive in place. The new file's local
// header and contents overwrite the old central directory, and a new
// directory is written after them. Everything before the old directory is
// left untouched. Returns the new size of the archive, which the caller
// must truncate to.
func (d *Directory) AppendFile(w io.WriterAt, f *File) (int64, error) {
	if f.lfh == nil {
		return 0, errors.New("file was not created with NewFile")
	}
	if _, err := d.AddFile(f); err != nil {
		return 0, err
	}
	if _, err := w.WriteAt(f.lfh, int64(f.Offset)); err != nil {
		return 0, err
	}
	var dir bytes.Buffer
	if err := d.WriteDirectory(&dir); err != nil {
		return 0, err
	}
	if _, err := w.WriteAt(dir.Bytes(), d.DirLoc); err != nil {
		return 0, err
	}
	d.Size = d.DirLoc + int64(dir.Len())
	return d.Size, nil
}
