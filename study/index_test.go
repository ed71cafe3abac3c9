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

package study

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyview/studyview/dicom"
	"github.com/studyview/studyview/internal/dcmtest"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func imageFile(sopUID, seriesUID string, instanceNumber string, extra ...dcmtest.Element) []byte {
	elements := []dcmtest.Element{
		dcmtest.El(0x0008, 0x0016, "UI", CTImageStorageUID),
		dcmtest.El(0x0008, 0x0018, "UI", sopUID),
		dcmtest.El(0x0020, 0x000D, "UI", "1.9.9.1"),
		dcmtest.El(0x0020, 0x000E, "UI", seriesUID),
		dcmtest.El(0x0020, 0x0013, "IS", instanceNumber),
		dcmtest.El(0x0028, 0x0002, "US", uint16(1)),
		dcmtest.El(0x0028, 0x0010, "US", uint16(2)),
		dcmtest.El(0x0028, 0x0011, "US", uint16(2)),
		dcmtest.El(0x0028, 0x0100, "US", uint16(8)),
	}
	elements = append(elements, extra...)
	elements = append(elements, dcmtest.El(0x7FE0, 0x0010, "OW", []byte{1, 2, 3, 4}))
	return dcmtest.File(dicom.ExplicitVRLittleEndianUID, elements...)
}

func TestScan_partialFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.dcm", imageFile("1.1", "2.1", "1"))
	writeFile(t, dir, "b.dcm", []byte("this is not a dicom file at all"))
	writeFile(t, dir, "c.dcm", imageFile("1.2", "2.1", "2"))

	paths := []string{
		filepath.Join(dir, "a.dcm"),
		filepath.Join(dir, "b.dcm"),
		filepath.Join(dir, "c.dcm"),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded())
	assert.Equal(t, 3, result.Scanned())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, paths[1], result.Failures[0].Path)
	var parseErr *ParseError
	assert.ErrorAs(t, result.Failures[0].Err, &parseErr)
	assert.ErrorIs(t, result.Failures[0].Err, dicom.ErrNotDICOM)
	assert.Equal(t, "2 of 3 files loaded, 1 failures", result.Summary())
}

func TestScan_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, []string{"does-not-matter.dcm"}, ScanOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex_seriesOrder(t *testing.T) {
	dir := t.TempDir()
	// instance numbers deliberately out of filesystem order
	paths := []string{
		writeFile(t, dir, "x.dcm", imageFile("1.3", "2.1", "3")),
		writeFile(t, dir, "y.dcm", imageFile("1.1", "2.1", "1")),
		writeFile(t, dir, "z.dcm", imageFile("1.2", "2.1", "2")),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	series := result.Index.InstancesInSeries("2.1")
	require.Len(t, series, 3)
	assert.Equal(t, "1.1", series[0].SOPInstanceUID)
	assert.Equal(t, "1.2", series[1].SOPInstanceUID)
	assert.Equal(t, "1.3", series[2].SOPInstanceUID)
}

func TestIndex_seriesOrderFallbackToPath(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "b.dcm", imageFile("1.2", "2.1", "5")),
		writeFile(t, dir, "a.dcm", imageFile("1.1", "2.1", "5")),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	series := result.Index.InstancesInSeries("2.1")
	require.Len(t, series, 2)
	assert.Equal(t, "1.1", series[0].SOPInstanceUID)
	assert.Equal(t, "1.2", series[1].SOPInstanceUID)
	_ = paths
}

func prFile(sopUID string, refs []dcmtest.Item, extra ...dcmtest.Element) []byte {
	elements := []dcmtest.Element{
		dcmtest.El(0x0008, 0x0016, "UI", GrayscaleSoftcopyPresentationStateUID),
		dcmtest.El(0x0008, 0x0018, "UI", sopUID),
		dcmtest.El(0x0020, 0x000E, "UI", "2.99"),
		dcmtest.El(0x0008, 0x1115, "SQ", refs),
	}
	elements = append(elements, extra...)
	return dcmtest.File(dicom.ExplicitVRLittleEndianUID, elements...)
}

func TestIndex_resolvesPresentationStateReferences(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		// PR first: add order must not matter
		writeFile(t, dir, "pr.dcm", prFile("3.1", []dcmtest.Item{
			{
				dcmtest.El(0x0020, 0x000E, "UI", "2.1"),
				dcmtest.El(0x0008, 0x1140, "SQ", []dcmtest.Item{
					{dcmtest.El(0x0008, 0x1155, "UI", "1.1")},
				}),
			},
			// same image again through a series-level reference
			{dcmtest.El(0x0020, 0x000E, "UI", "2.1")},
		})),
		writeFile(t, dir, "img.dcm", imageFile("1.1", "2.1", "1")),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	prs := result.Index.PresentationStatesFor("1.1")
	require.Len(t, prs, 1, "image- and series-level references must not duplicate")
	assert.Equal(t, "3.1", prs[0].SOPInstanceUID)
	assert.Empty(t, result.Index.Warnings())
}

func TestIndex_danglingReferenceWarns(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "pr.dcm", prFile("3.1", []dcmtest.Item{
			{
				dcmtest.El(0x0020, 0x000E, "UI", "2.1"),
				dcmtest.El(0x0008, 0x1140, "SQ", []dcmtest.Item{
					{dcmtest.El(0x0008, 0x1155, "UI", "no.such.uid")},
				}),
			},
		})),
		writeFile(t, dir, "img.dcm", imageFile("1.1", "2.1", "1")),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	assert.Empty(t, result.Index.PresentationStatesFor("1.1"))
	require.Len(t, result.Index.Warnings(), 1)
	w := result.Index.Warnings()[0]
	assert.Equal(t, "3.1", w.SourceUID)
	assert.Equal(t, "no.such.uid", w.MissingUID)
	assert.Equal(t, KindPresentationState, w.SourceKind)
}

func TestPresentationState_frameRestriction(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "img.dcm", imageFile("1.1", "2.1", "1",
			dcmtest.El(0x0028, 0x0008, "IS", "4"))),
		writeFile(t, dir, "pr.dcm", prFile("3.1", []dcmtest.Item{
			{
				dcmtest.El(0x0020, 0x000E, "UI", "2.1"),
				dcmtest.El(0x0008, 0x1140, "SQ", []dcmtest.Item{
					{
						dcmtest.El(0x0008, 0x1155, "UI", "1.1"),
						dcmtest.El(0x0008, 0x1160, "IS", []string{"2", "4"}),
					},
				}),
			},
		})),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	prs := result.Index.PresentationStatesFor("1.1")
	require.Len(t, prs, 1)
	pr := prs[0]
	assert.True(t, pr.FramesInScope("1.1", 1), "frame 2 is listed")
	assert.True(t, pr.FramesInScope("1.1", 3), "frame 4 is listed")
	assert.False(t, pr.FramesInScope("1.1", 0), "frame 1 is not listed")
	assert.True(t, pr.FramesInScope("other.uid", 0), "no restriction recorded for other images")
}

func TestPresentationState_displaySettings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pr.dcm", prFile("3.1", []dcmtest.Item{
		{dcmtest.El(0x0020, 0x000E, "UI", "2.1")},
	},
		dcmtest.El(0x0028, 0x1050, "DS", "40"),
		dcmtest.El(0x0028, 0x1051, "DS", "400"),
		dcmtest.El(0x0070, 0x0041, "CS", "Y"),
		dcmtest.El(0x0070, 0x0042, "US", uint16(90)),
		dcmtest.El(0x0070, 0x005A, "SQ", []dcmtest.Item{
			{
				dcmtest.El(0x0070, 0x0052, "SL", []int32{1, 1}),
				dcmtest.El(0x0070, 0x0053, "SL", []int32{512, 512}),
				dcmtest.El(0x0070, 0x0100, "CS", "SCALE TO FIT"),
			},
		}),
	))

	builder := NewBuilder()
	require.NoError(t, builder.AddFile(path))
	idx := builder.Build()

	inst, ok := idx.Instance("3.1")
	require.True(t, ok)
	assert.Equal(t, KindPresentationState, inst.Kind)

	// the PR itself was indexed even though its series reference dangles
	require.Len(t, idx.Warnings(), 1)

	var pr *PresentationState
	for _, candidate := range idx.presentationStates {
		if candidate.SOPInstanceUID == "3.1" {
			pr = candidate
		}
	}
	require.NotNil(t, pr)

	set := pr.Display
	assert.True(t, set.HasWindow)
	assert.Equal(t, 40.0, set.WindowCenter)
	assert.Equal(t, 400.0, set.WindowWidth)
	assert.True(t, set.FlipHorizontal)
	assert.Equal(t, 90, set.Rotation)
	require.True(t, set.HasDisplayedArea)
	assert.Equal(t, [2]int{1, 1}, set.AreaTopLeft)
	assert.Equal(t, [2]int{512, 512}, set.AreaBottomRight)
	assert.Equal(t, "SCALE TO FIT", set.SizeMode)
}

func TestKeyObjectSelection_contentItems(t *testing.T) {
	dir := t.TempDir()
	koBytes := dcmtest.File(dicom.ExplicitVRLittleEndianUID,
		dcmtest.El(0x0008, 0x0016, "UI", KeyObjectSelectionDocumentUID),
		dcmtest.El(0x0008, 0x0018, "UI", "4.1"),
		dcmtest.El(0x0040, 0xA043, "SQ", []dcmtest.Item{
			{dcmtest.El(0x0008, 0x0104, "LO", "Of Interest")},
		}),
		dcmtest.El(0x0040, 0xA730, "SQ", []dcmtest.Item{
			{
				dcmtest.El(0x0040, 0xA040, "CS", "NUM"),
				dcmtest.El(0x0040, 0xA043, "SQ", []dcmtest.Item{
					{dcmtest.El(0x0008, 0x0104, "LO", "Long Axis")},
				}),
				dcmtest.El(0x0040, 0xA300, "SQ", []dcmtest.Item{
					{
						dcmtest.El(0x0040, 0x08EA, "SQ", []dcmtest.Item{
							{dcmtest.El(0x0008, 0x0100, "SH", "mm")},
						}),
						dcmtest.El(0x0040, 0xA30A, "DS", "23.4"),
					},
				}),
				dcmtest.El(0x0008, 0x1199, "SQ", []dcmtest.Item{
					{dcmtest.El(0x0008, 0x1155, "UI", "1.1")},
				}),
			},
			{
				dcmtest.El(0x0040, 0xA040, "CS", "TEXT"),
				dcmtest.El(0x0040, 0xA160, "UT", "check prior study"),
			},
		}),
	)
	paths := []string{
		writeFile(t, dir, "img.dcm", imageFile("1.1", "2.1", "1")),
		writeFile(t, dir, "ko.dcm", koBytes),
	}
	result, err := Scan(context.Background(), paths, ScanOptions{})
	require.NoError(t, err)

	kos := result.Index.KeyObjectsFor("1.1")
	require.Len(t, kos, 1)
	ko := kos[0]
	assert.Equal(t, "Of Interest", ko.Title)
	require.Len(t, ko.Items, 2)

	num := ko.Items[0]
	assert.Equal(t, "NUM", num.ValueType)
	assert.Equal(t, "Long Axis", num.ConceptName)
	assert.Equal(t, 23.4, num.Value)
	assert.Equal(t, "mm", num.Unit)
	assert.Equal(t, []string{"1.1"}, num.RefSOPUIDs)

	text := ko.Items[1]
	assert.Equal(t, "TEXT", text.ValueType)
	assert.Equal(t, "check prior study", text.Text)

	// the unreferenced text item applies to the selected image too
	items := ko.ItemsFor("1.1")
	require.Len(t, items, 2)
}

func TestInstance_overlayPlanes(t *testing.T) {
	dir := t.TempDir()
	// 4x8 overlay: one bit per pixel, bit i of byte i/8
	overlayBits := []byte{0b00000001, 0b10000000, 0x00, 0x00}
	path := writeFile(t, dir, "img.dcm", imageFile("1.1", "2.1", "1",
		dcmtest.El(0x6000, 0x0010, "US", uint16(4)),
		dcmtest.El(0x6000, 0x0011, "US", uint16(8)),
		dcmtest.El(0x6000, 0x0050, "SS", []int16{1, 1}),
		dcmtest.El(0x6000, 0x3000, "OW", overlayBits),
		dcmtest.El(0x6002, 0x0010, "US", uint16(2)),
		dcmtest.El(0x6002, 0x0011, "US", uint16(8)),
		dcmtest.El(0x6002, 0x0050, "SS", []int16{3, 5}),
		dcmtest.El(0x6002, 0x3000, "OW", []byte{0xFF, 0xFF}),
	))

	builder := NewBuilder()
	require.NoError(t, builder.AddFile(path))
	idx := builder.Build()
	inst, ok := idx.Instance("1.1")
	require.True(t, ok)

	planes := inst.OverlayPlanes()
	require.Len(t, planes, 2)
	assert.Equal(t, uint16(0x6000), planes[0].Group)
	assert.Equal(t, uint16(0x6002), planes[1].Group)
	assert.Equal(t, 0, planes[0].OriginRow)
	assert.Equal(t, 2, planes[1].OriginRow)
	assert.Equal(t, 4, planes[1].OriginColumn)

	bits, err := planes[0].ReadBits(inst)
	require.NoError(t, err)
	require.Len(t, bits, 32)
	assert.Equal(t, byte(1), bits[0], "bit 0 of byte 0 set")
	assert.Equal(t, byte(1), bits[15], "bit 7 of byte 1 set")
	assert.Equal(t, byte(0), bits[1])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sopClass string
		hasPixel bool
		want     Kind
	}{
		{CTImageStorageUID, true, KindImage},
		{GrayscaleSoftcopyPresentationStateUID, false, KindPresentationState},
		{ColorSoftcopyPresentationStateUID, false, KindPresentationState},
		{KeyObjectSelectionDocumentUID, false, KindKeyObjectSelection},
		{"1.2.3.444", true, KindImage},
		{"1.2.3.444", false, KindUnknown},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.sopClass, tc.hasPixel), tc.sopClass)
	}
}
