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
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"testing"
)

func dcmReaderFromBytes(data []byte) *dcmReader {
	return newDcmReader(bytes.NewBuffer(data))
}

func metaDataWithSyntax(syntax transferSyntax) dicomMetaData {
	return dicomMetaData{syntax, defaultCharacterRepertoire}
}

func TestParseDataElement(t *testing.T) {
	// see http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2
	// for byte structure
	testCases := []struct {
		name     string
		bytes    []byte
		syntax   transferSyntax
		expected *DataElement
		err      error
	}{
		{
			"unsigned long ExplicitVRLittleEndian",
			[]byte{0x02, 0x00, 0x00, 0x00, 'U', 'L', 0x04, 0x00, 0xCA, 0x00, 0x00, 0x00},
			explicitVRLittleEndian,
			&DataElement{0x00020000, ULVR, []uint32{202}, 4},
			nil,
		},
		{
			"unsigned short ImplicitVRLittleEndian uses dictionary VR",
			[]byte{0x28, 0x00, 0x10, 0x00, 0x02, 0x00, 0x00, 0x00, 0xB8, 0x0B},
			implicitVRLittleEndian,
			&DataElement{RowsTag, USVR, []uint16{3000}, 2},
			nil,
		},
		{
			"Item Delimitation Item",
			[]byte{0xFE, 0xFF, 0x0D, 0xE0, 0x00, 0x00, 0x00, 0x00},
			explicitVRLittleEndian,
			nil,
			io.EOF,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			element, err := parseDataElement(dcmReaderFromBytes(tc.bytes), metaDataWithSyntax(tc.syntax))
			if err != tc.err {
				t.Fatalf("parseDataElement(_, _) => (%v, %v), want (%v, %v)",
					element, err, tc.expected, tc.err)
			}

			if tc.expected != nil && !reflect.DeepEqual(*element, *tc.expected) {
				t.Fatalf("parseDataElement(_, _) => (%v, %v) want (%v, %v)",
					*element, err, *tc.expected, tc.err)
			}
		})
	}
}

func TestReadValueLength(t *testing.T) {
	// format outlined in Table 7.1-1 and 7.1-2 of
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
	testCases := []struct {
		name     string
		bytes    []byte
		vr       *VR
		syntax   transferSyntax
		expected uint32
	}{
		{
			"sequence explicitVRLittleEndian",
			[]byte{0x00, 0x00, 0x11, 0x22, 0x33, 0x44},
			SQVR,
			explicitVRLittleEndian,
			0x44332211,
		},
		{
			"sequence explicitVRBigEndian",
			[]byte{0x00, 0x00, 0x11, 0x22, 0x33, 0x44},
			SQVR,
			explicitVRBigEndian,
			0x11223344,
		},
		{
			"unsigned short explicitVRLittleEndian",
			[]byte{0x11, 0x22},
			USVR,
			explicitVRLittleEndian,
			0x2211,
		},
		{
			"unsigned short explicitVRBigEndian",
			[]byte{0x11, 0x22},
			USVR,
			explicitVRBigEndian,
			0x1122,
		},
		{
			"implicit always 32-bit",
			[]byte{0x11, 0x22, 0x33, 0x44},
			USVR,
			implicitVRLittleEndian,
			0x44332211,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			length, err := tc.syntax.readValueLength(dcmReaderFromBytes(tc.bytes), tc.vr)
			if err != nil {
				t.Fatalf("readValueLength(_, _) => %v", err)
			}
			if length != tc.expected {
				t.Fatalf("got %v, want %v", length, tc.expected)
			}
		})
	}
}

func TestParseText(t *testing.T) {
	testCases := []struct {
		name     string
		bytes    []byte
		vr       *VR
		expected []string
	}{
		{
			"trailing space, vm = 1",
			[]byte("ABC "),
			CSVR,
			[]string{"ABC"},
		},
		{
			"trailing space vm > 1",
			[]byte("ABC\\DEF "),
			CSVR,
			[]string{"ABC", "DEF"},
		},
		{
			"trailing null on UID",
			[]byte("1.2.840.10008.1.2\x00"),
			UIVR,
			[]string{"1.2.840.10008.1.2"},
		},
		{
			"multiple trailing spaces are not significant",
			[]byte("DERIVED \\SECONDARY\\OTHER  "),
			CSVR,
			[]string{"DERIVED", "SECONDARY", "OTHER"},
		},
		{
			"length 0",
			[]byte{},
			CSVR,
			[]string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := parseValue(dcmReaderFromBytes(tc.bytes), SOPClassUIDTag,
				tc.vr, uint32(len(tc.bytes)), metaDataWithSyntax(explicitVRLittleEndian))
			if err != nil {
				t.Fatalf("parseValue(_, _, _, _, _) => %v", err)
			}
			if !reflect.DeepEqual(value, tc.expected) {
				t.Fatalf("got %v, want %v", value, tc.expected)
			}
		})
	}
}

func TestParseNumberBinary(t *testing.T) {
	testCases := []struct {
		name     string
		bytes    []byte
		vr       *VR
		endian   binary.ByteOrder
		expected interface{}
	}{
		{
			"unsigned short, little endian, vm > 1",
			[]byte{0xAB, 0xCD, 0x12, 0x34},
			USVR,
			binary.LittleEndian,
			[]uint16{0xCDAB, 0x3412},
		},
		{
			"unsigned short, big endian, vm > 1",
			[]byte{0xAB, 0xCD, 0x12, 0x34},
			USVR,
			binary.BigEndian,
			[]uint16{0xABCD, 0x1234},
		},
		{
			"signed short, little endian",
			[]byte{0xFF, 0xFF},
			SSVR,
			binary.LittleEndian,
			[]int16{-1},
		},
		{
			"32-bit float, little endian",
			[]byte{0x00, 0x00, 0xC0, 0x3F},
			FLVR,
			binary.LittleEndian,
			[]float32{1.5},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := parseNumberBinary(dcmReaderFromBytes(tc.bytes),
				uint32(len(tc.bytes)), tc.vr, tc.endian)
			if err != nil {
				t.Fatalf("parseNumberBinary(_, _, _, _) => %v", err)
			}
			if !reflect.DeepEqual(result, tc.expected) {
				t.Fatalf("got %v, want %v", result, tc.expected)
			}
		})
	}
}

func TestParseBulkData(t *testing.T) {
	expected := []byte{0x01, 0x02, 0x03, 0x00}
	result, err := parseBulkData(dcmReaderFromBytes(expected), PixelDataTag, 4)
	if err != nil {
		t.Fatalf("parseBulkData(_, _, _) => %v", err)
	}

	reader, err := result.Next()
	if err != nil {
		t.Fatalf("Next() => %v", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading bulk data: %v", err)
	}

	if !bytes.Equal(data, expected) {
		t.Fatalf("got %v, want %v", data, expected)
	}
}

func TestReadVR(t *testing.T) {
	testCases := []struct {
		name   string
		bytes  []byte
		syntax transferSyntax
		tag    DataElementTag
		want   *VR
	}{
		{"explicit reads from stream", []byte("US"), explicitVRLittleEndian, RowsTag, USVR},
		{"implicit uses dictionary", nil, implicitVRLittleEndian, RowsTag, USVR},
		{"implicit unknown tag is UN", nil, implicitVRLittleEndian, 0x00091001, UNVR},
		{"implicit overlay repeating group", nil, implicitVRLittleEndian, 0x60020050, SSVR},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			vr, err := tc.syntax.readVR(dcmReaderFromBytes(tc.bytes), tc.tag)
			if err != nil {
				t.Fatalf("readVR(_, _) => %v", err)
			}
			if vr != tc.want {
				t.Fatalf("got %v, want %v", vr, tc.want)
			}
		})
	}
}

func TestReadVR_invalid(t *testing.T) {
	if _, err := explicitVRLittleEndian.readVR(dcmReaderFromBytes([]byte("ZZ")), RowsTag); err == nil {
		t.Fatalf("expected error to be returned")
	}
}
