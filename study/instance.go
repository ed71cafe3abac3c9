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
	"errors"
	"fmt"
	"os"

	"github.com/studyview/studyview/dicom"
)

// Kind classifies an indexed DICOM object.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindPresentationState
	KindKeyObjectSelection
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPresentationState:
		return "presentation state"
	case KindKeyObjectSelection:
		return "key object selection"
	}
	return "unknown"
}

// Instance is one parsed DICOM file. The pixel payload is untouched at parse
// time; PixelRefs records where it lives so frames can be materialized later.
// Instances are immutable after the scan that created them.
type Instance struct {
	Path string
	Kind Kind

	SOPInstanceUID    string
	SOPClassUID       string
	SeriesInstanceUID string
	StudyInstanceUID  string
	TransferSyntaxUID string
	Modality          string
	InstanceNumber    int

	// Image pixel description; zero values when the object carries no pixels.
	NumberOfFrames            int
	Rows, Columns             int
	BitsAllocated             int
	SamplesPerPixel           int
	PixelRepresentation       int
	PhotometricInterpretation string

	// PixelRefs are the byte regions of the pixel data element. Native
	// syntaxes yield one contiguous region; encapsulated syntaxes yield the
	// basic offset table first, then one region per fragment.
	PixelRefs []dicom.BulkDataReference

	// DataSet retains the full header (bulk payloads as references) for
	// overlay and annotation extraction.
	DataSet *dicom.DataSet
}

// newInstance builds an Instance from a parsed header. A header without a
// SOP Instance UID is rejected; everything else degrades to zero values.
func newInstance(path string, ds *dicom.DataSet) (*Instance, error) {
	sopUID, err := ds.StringValue(dicom.SOPInstanceUIDTag)
	if err != nil || sopUID == "" {
		return nil, fmt.Errorf("%w: SOP Instance UID", ErrMissingTag)
	}

	inst := &Instance{
		Path:              path,
		SOPInstanceUID:    sopUID,
		DataSet:           ds,
		TransferSyntaxUID: dicom.ExplicitVRLittleEndianUID,
		NumberOfFrames:    1,
		SamplesPerPixel:   1,
	}
	if uid, err := ds.StringValue(dicom.TransferSyntaxUIDTag); err == nil {
		inst.TransferSyntaxUID = uid
	}
	inst.SOPClassUID, _ = ds.StringValue(dicom.SOPClassUIDTag)
	inst.SeriesInstanceUID, _ = ds.StringValue(dicom.SeriesInstanceUIDTag)
	inst.StudyInstanceUID, _ = ds.StringValue(dicom.StudyInstanceUIDTag)
	inst.Modality, _ = ds.StringValue(dicom.ModalityTag)
	inst.InstanceNumber, _ = ds.Int(dicom.InstanceNumberTag)

	if refs, err := ds.Refs(dicom.PixelDataTag); err == nil {
		inst.PixelRefs = refs
	}
	if n, err := ds.Int(dicom.NumberOfFramesTag); err == nil && n > 0 {
		inst.NumberOfFrames = n
	}
	if v, err := ds.UInt16(dicom.RowsTag); err == nil {
		inst.Rows = int(v)
	}
	if v, err := ds.UInt16(dicom.ColumnsTag); err == nil {
		inst.Columns = int(v)
	}
	if v, err := ds.UInt16(dicom.BitsAllocatedTag); err == nil {
		inst.BitsAllocated = int(v)
	}
	if v, err := ds.UInt16(dicom.SamplesPerPixelTag); err == nil && v > 0 {
		inst.SamplesPerPixel = int(v)
	}
	if v, err := ds.UInt16(dicom.PixelRepresentationTag); err == nil {
		inst.PixelRepresentation = int(v)
	}
	inst.PhotometricInterpretation, _ = ds.StringValue(dicom.PhotometricInterpretationTag)

	inst.Kind = Classify(inst.SOPClassUID, len(inst.PixelRefs) > 0)
	return inst, nil
}

// BytesPerSample returns the stored size of one sample.
func (inst *Instance) BytesPerSample() int {
	if inst.BitsAllocated <= 8 {
		return 1
	}
	return (inst.BitsAllocated + 7) / 8
}

// FrameSize returns the byte length of one native frame.
func (inst *Instance) FrameSize() int64 {
	return int64(inst.Rows) * int64(inst.Columns) * int64(inst.BytesPerSample()) * int64(inst.SamplesPerPixel)
}

// ReadRegion reads a referenced byte region from the instance's source file.
func (inst *Instance) ReadRegion(region dicom.ByteRegion) ([]byte, error) {
	f, err := os.Open(inst.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dicom.ReadRegion(f, inst.TransferSyntaxUID, region)
}

// OverlayPlane describes one embedded 1-bit overlay bitmap. Data points at
// the packed bits in the source file; they are read only when a resolver
// asks for them.
type OverlayPlane struct {
	Group         uint16
	Rows, Columns int
	// Origin of the top-left overlay pixel in image pixel space, already
	// converted from the 1-based encoding.
	OriginRow, OriginColumn int
	BitsAllocated           int
	BitPosition             int
	Data                    []dicom.BulkDataReference
}

// OverlayPlanes extracts the overlay planes present on the instance, in
// ascending group order. Repeating groups 0x6000 through 0x601E are probed;
// a group missing its data element is skipped.
func (inst *Instance) OverlayPlanes() []OverlayPlane {
	var planes []OverlayPlane
	for group := uint16(0x6000); group <= 0x601E; group += 2 {
		plane, ok := inst.overlayPlane(group)
		if ok {
			planes = append(planes, plane)
		}
	}
	return planes
}

func (inst *Instance) overlayPlane(group uint16) (OverlayPlane, bool) {
	tag := func(base dicom.DataElementTag) dicom.DataElementTag {
		return dicom.DataElementTag(uint32(group)<<16 | uint32(base)&0xFFFF)
	}

	refs, err := inst.DataSet.Refs(tag(dicom.OverlayDataTag))
	if err != nil || len(refs) == 0 {
		return OverlayPlane{}, false
	}
	plane := OverlayPlane{
		Group:         group,
		Data:          refs,
		BitsAllocated: 1,
	}
	if v, err := inst.DataSet.UInt16(tag(dicom.OverlayRowsTag)); err == nil {
		plane.Rows = int(v)
	}
	if v, err := inst.DataSet.UInt16(tag(dicom.OverlayColumnsTag)); err == nil {
		plane.Columns = int(v)
	}
	if plane.Rows == 0 || plane.Columns == 0 {
		return OverlayPlane{}, false
	}
	if v, err := inst.DataSet.UInt16(tag(dicom.OverlayBitsAllocatedTag)); err == nil && v > 0 {
		plane.BitsAllocated = int(v)
	}
	if v, err := inst.DataSet.UInt16(tag(dicom.OverlayBitPositionTag)); err == nil {
		plane.BitPosition = int(v)
	}
	// OverlayOrigin is (row, column), 1-based
	if origin, err := inst.DataSet.Ints(tag(dicom.OverlayOriginTag)); err == nil && len(origin) == 2 {
		plane.OriginRow = origin[0] - 1
		plane.OriginColumn = origin[1] - 1
	}
	return plane, true
}

// ReadBits reads and unpacks the overlay bitmap into one byte per pixel in
// row-major order, value 0 or 1.
func (p *OverlayPlane) ReadBits(inst *Instance) ([]byte, error) {
	if len(p.Data) > 1 {
		return nil, errors.New("study: fragmented overlay data")
	}
	packed, err := inst.ReadRegion(p.Data[0].Reference)
	if err != nil {
		return nil, err
	}
	n := p.Rows * p.Columns
	if len(packed)*8 < n {
		return nil, fmt.Errorf("study: overlay group %04X: %d bytes for %d pixels", p.Group, len(packed), n)
	}
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = packed[i/8] >> (uint(i) % 8) & 1
	}
	return bits, nil
}
