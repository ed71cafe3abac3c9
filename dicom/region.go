// Copyright 2024 the studyview authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dicom

import (
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
)

// RegionReader returns a reader positioned at the given byte region of a
// part-10 file. For most transfer syntaxes region offsets are absolute file
// offsets and this is a plain section read. For the deflated transfer syntax
// the main data set is compressed as a whole, so offsets refer to the
// inflated stream; the returned reader re-inflates from the end of the file
// meta group and discards up to the region start.
func RegionReader(src io.ReaderAt, transferSyntaxUID string, region ByteRegion) (io.Reader, error) {
	if transferSyntaxUID != DeflatedExplicitVRLittleEndianUID {
		return io.NewSectionReader(src, region.Offset, region.Length), nil
	}

	start, err := metaGroupEnd(src)
	if err != nil {
		return nil, err
	}
	inflated := flate.NewReader(io.NewSectionReader(src, start, 1<<62))
	if _, err := io.CopyN(io.Discard, inflated, region.Offset); err != nil {
		return nil, fmt.Errorf("dicom: seeking inflated stream to %d: %v", region.Offset, err)
	}
	return io.LimitReader(inflated, region.Length), nil
}

// ReadRegion reads the full byte region into memory.
func ReadRegion(src io.ReaderAt, transferSyntaxUID string, region ByteRegion) ([]byte, error) {
	r, err := RegionReader(src, transferSyntaxUID, region)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, region.Length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("dicom: reading %d bytes at %d: %v", region.Length, region.Offset, err)
	}
	return buf, nil
}

// metaGroupEnd returns the file offset of the first byte after the file meta
// group. The group length element is always the first element of the meta
// group and is encoded in explicit VR little endian.
func metaGroupEnd(src io.ReaderAt) (int64, error) {
	const headerEnd = 128 + 4
	var buf [12]byte
	if _, err := src.ReadAt(buf[:], 128); err != nil {
		return 0, fmt.Errorf("dicom: reading file meta header: %v", err)
	}
	if string(buf[:4]) != "DICM" {
		return 0, ErrNotDICOM
	}
	group := binary.LittleEndian.Uint16(buf[4:6])
	element := binary.LittleEndian.Uint16(buf[6:8])
	if tag := DataElementTag(uint32(group)<<16 | uint32(element)); tag != FileMetaInformationGroupLengthTag {
		return 0, fmt.Errorf("dicom: first element is %v, want %v", tag, FileMetaInformationGroupLengthTag)
	}
	var lenBuf [4]byte
	if _, err := src.ReadAt(lenBuf[:], headerEnd+8); err != nil {
		return 0, fmt.Errorf("dicom: reading file meta group length: %v", err)
	}
	metaLen := binary.LittleEndian.Uint32(lenBuf[:])
	return headerEnd + 12 + int64(metaLen), nil
}
