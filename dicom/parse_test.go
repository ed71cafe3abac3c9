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

package dicom_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/studyview/studyview/dicom"
	"github.com/studyview/studyview/internal/dcmtest"
)

func TestParseHeader_nativePixelDataIsReferenced(t *testing.T) {
	pixels := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	file := dcmtest.File(dicom.ExplicitVRLittleEndianUID,
		dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
		dcmtest.El(0x0028, 0x0010, "US", uint16(2)),
		dcmtest.El(0x0028, 0x0011, "US", uint16(2)),
		dcmtest.El(0x0028, 0x0100, "US", uint16(16)),
		dcmtest.El(0x7FE0, 0x0010, "OW", pixels),
	)

	ds, err := dicom.ParseHeader(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("ParseHeader(_) => %v", err)
	}

	refs, err := ds.Refs(dicom.PixelDataTag)
	if err != nil {
		t.Fatalf("Refs(PixelDataTag) => %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %v references, want 1", len(refs))
	}

	region := refs[0].Reference
	if region.Length != int64(len(pixels)) {
		t.Fatalf("got region length %v, want %v", region.Length, len(pixels))
	}
	want := int64(bytes.Index(file, pixels))
	if region.Offset != want {
		t.Fatalf("got region offset %v, want %v", region.Offset, want)
	}

	// pixel bytes reachable through the reference only
	got := file[region.Offset : region.Offset+region.Length]
	if !bytes.Equal(got, pixels) {
		t.Fatalf("got %v, want %v", got, pixels)
	}
}

func TestParseHeader_encapsulatedFragmentsAreReferenced(t *testing.T) {
	frag0 := []byte{0x11, 0x11, 0x11, 0x11}
	frag1 := []byte{0x22, 0x22}
	file := dcmtest.File(dicom.JPEGBaselineUID,
		dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
		dcmtest.El(0x7FE0, 0x0010, "OB", dcmtest.Fragments{
			OffsetTable: []uint32{0, 12},
			Frames:      [][]byte{frag0, frag1},
		}),
	)

	ds, err := dicom.ParseHeader(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("ParseHeader(_) => %v", err)
	}

	refs, err := ds.Refs(dicom.PixelDataTag)
	if err != nil {
		t.Fatalf("Refs(PixelDataTag) => %v", err)
	}
	// basic offset table + 2 fragments
	if len(refs) != 3 {
		t.Fatalf("got %v references, want 3", len(refs))
	}
	if refs[0].Reference.Length != 8 {
		t.Fatalf("got offset table length %v, want 8", refs[0].Reference.Length)
	}
	if refs[1].Reference.Length != int64(len(frag0)) {
		t.Fatalf("got fragment 0 length %v, want %v", refs[1].Reference.Length, len(frag0))
	}
	if got := file[refs[2].Reference.Offset : refs[2].Reference.Offset+refs[2].Reference.Length]; !bytes.Equal(got, frag1) {
		t.Fatalf("got %v, want %v", got, frag1)
	}
}

func TestParseHeader_sequences(t *testing.T) {
	file := dcmtest.File(dicom.ExplicitVRLittleEndianUID,
		dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
		dcmtest.El(0x0008, 0x1115, "SQ", []dcmtest.Item{
			{
				dcmtest.El(0x0020, 0x000E, "UI", "1.2.3.4.5"),
				dcmtest.El(0x0008, 0x1140, "SQ", []dcmtest.Item{
					{dcmtest.El(0x0008, 0x1155, "UI", "9.8.7.6")},
				}),
			},
		}),
	)

	ds, err := dicom.ParseHeader(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("ParseHeader(_) => %v", err)
	}

	seq, err := ds.Sequence(dicom.ReferencedSeriesSequenceTag)
	if err != nil {
		t.Fatalf("Sequence(ReferencedSeriesSequenceTag) => %v", err)
	}
	if len(seq.Items) != 1 {
		t.Fatalf("got %v items, want 1", len(seq.Items))
	}

	item := seq.Items[0]
	seriesUID, err := item.StringValue(dicom.SeriesInstanceUIDTag)
	if err != nil {
		t.Fatalf("StringValue(SeriesInstanceUIDTag) => %v", err)
	}
	if seriesUID != "1.2.3.4.5" {
		t.Fatalf("got %q, want %q", seriesUID, "1.2.3.4.5")
	}

	nested, err := item.Sequence(dicom.ReferencedImageSequenceTag)
	if err != nil {
		t.Fatalf("Sequence(ReferencedImageSequenceTag) => %v", err)
	}
	sopUID, err := nested.Items[0].StringValue(dicom.ReferencedSOPInstanceUIDTag)
	if err != nil {
		t.Fatalf("StringValue(ReferencedSOPInstanceUIDTag) => %v", err)
	}
	if sopUID != "9.8.7.6" {
		t.Fatalf("got %q, want %q", sopUID, "9.8.7.6")
	}
}

func TestParseHeader_notDicom(t *testing.T) {
	_, err := dicom.ParseHeader(bytes.NewReader([]byte("definitely not a dicom file")))
	if !errors.Is(err, dicom.ErrNotDICOM) {
		t.Fatalf("got %v, want ErrNotDICOM", err)
	}
}

func TestParseHeader_truncated(t *testing.T) {
	file := dcmtest.File(dicom.ExplicitVRLittleEndianUID,
		dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
	)
	_, err := dicom.ParseHeader(bytes.NewReader(file[:140]))
	if err == nil {
		t.Fatalf("expected error for truncated file")
	}
}

func TestParseHeader_deflated(t *testing.T) {
	pixels := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	file := dcmtest.File(dicom.DeflatedExplicitVRLittleEndianUID,
		dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
		dcmtest.El(0x0028, 0x0010, "US", uint16(2)),
		dcmtest.El(0x0028, 0x0011, "US", uint16(2)),
		dcmtest.El(0x0028, 0x0100, "US", uint16(16)),
		dcmtest.El(0x7FE0, 0x0010, "OW", pixels),
	)

	ds, err := dicom.ParseHeader(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("ParseHeader(_) => %v", err)
	}

	uid, err := ds.StringValue(dicom.SOPInstanceUIDTag)
	if err != nil || uid != "1.2.3.4" {
		t.Fatalf("StringValue(SOPInstanceUIDTag) => (%q, %v), want (%q, nil)", uid, err, "1.2.3.4")
	}

	refs, err := ds.Refs(dicom.PixelDataTag)
	if err != nil {
		t.Fatalf("Refs(PixelDataTag) => %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %v references, want 1", len(refs))
	}
	region := refs[0].Reference
	if region.Length != int64(len(pixels)) {
		t.Fatalf("got region length %v, want %v", region.Length, len(pixels))
	}

	// region offsets index the inflated stream, so ReadRegion must
	// re-inflate rather than read the file at that offset
	got, err := dicom.ReadRegion(bytes.NewReader(file), dicom.DeflatedExplicitVRLittleEndianUID, region)
	if err != nil {
		t.Fatalf("ReadRegion(_, _, _) => %v", err)
	}
	if !bytes.Equal(got, pixels) {
		t.Fatalf("got %v, want %v", got, pixels)
	}
}

func TestParseHeader_specificCharacterSet(t *testing.T) {
	testCases := []struct {
		name    string
		charset string
		raw     string
		want    string
	}{
		{"latin-1", "ISO_IR 100", "caf\xe9", "café"},
		{"utf-8", "ISO_IR 192", "Grüß 中", "Grüß 中"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			file := dcmtest.File(dicom.ExplicitVRLittleEndianUID,
				dcmtest.El(0x0008, 0x0005, "CS", tc.charset),
				dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
				dcmtest.El(0x0070, 0x0081, "LO", tc.raw),
			)

			ds, err := dicom.ParseHeader(bytes.NewReader(file))
			if err != nil {
				t.Fatalf("ParseHeader(_) => %v", err)
			}
			got, err := ds.StringValue(dicom.ContentDescriptionTag)
			if err != nil {
				t.Fatalf("StringValue(ContentDescriptionTag) => %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDataSetAccessors(t *testing.T) {
	file := dcmtest.File(dicom.ExplicitVRLittleEndianUID,
		dcmtest.El(0x0008, 0x0018, "UI", "1.2.3.4"),
		dcmtest.El(0x0020, 0x0013, "IS", "7"),
		dcmtest.El(0x0028, 0x0008, "IS", "14"),
		dcmtest.El(0x0028, 0x0010, "US", uint16(3000)),
		dcmtest.El(0x0028, 0x1050, "DS", "40.5"),
	)

	ds, err := dicom.ParseHeader(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("ParseHeader(_) => %v", err)
	}

	if n, err := ds.Int(dicom.NumberOfFramesTag); err != nil || n != 14 {
		t.Fatalf("Int(NumberOfFramesTag) => (%v, %v), want (14, nil)", n, err)
	}
	if rows, err := ds.UInt16(dicom.RowsTag); err != nil || rows != 3000 {
		t.Fatalf("UInt16(RowsTag) => (%v, %v), want (3000, nil)", rows, err)
	}
	if wc, err := ds.Float(dicom.WindowCenterTag); err != nil || wc != 40.5 {
		t.Fatalf("Float(WindowCenterTag) => (%v, %v), want (40.5, nil)", wc, err)
	}

	_, err = ds.StringValue(dicom.ModalityTag)
	if !errors.Is(err, dicom.ErrTagAbsent) {
		t.Fatalf("got %v, want ErrTagAbsent", err)
	}
	var tagErr *dicom.TagError
	if !errors.As(err, &tagErr) || tagErr.Tag != dicom.ModalityTag {
		t.Fatalf("expected TagError for ModalityTag, got %v", err)
	}

	_, err = ds.UInt16(dicom.InstanceNumberTag) // IS held as string
	if !errors.Is(err, dicom.ErrWrongType) {
		t.Fatalf("got %v, want ErrWrongType", err)
	}
}
