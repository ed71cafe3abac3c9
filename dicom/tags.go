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

// Data Element tags used by this library. This is deliberately not a full
// DICOM data dictionary; it covers file meta information, object identity,
// image pixel description, cross-reference sequences, softcopy presentation
// state annotations, SR/KO content, overlays, and bulk payload groups.
// Tag values per http://dicom.nema.org/medical/dicom/current/output/html/part06.html
const (
	// File meta information (group 0002)
	FileMetaInformationGroupLengthTag DataElementTag = 0x00020000
	FileMetaInformationVersionTag     DataElementTag = 0x00020001
	MediaStorageSOPClassUIDTag        DataElementTag = 0x00020002
	MediaStorageSOPInstanceUIDTag     DataElementTag = 0x00020003
	TransferSyntaxUIDTag              DataElementTag = 0x00020010
	ImplementationClassUIDTag         DataElementTag = 0x00020012
	ImplementationVersionNameTag      DataElementTag = 0x00020013

	// Identity
	SpecificCharacterSetTag DataElementTag = 0x00080005
	SOPClassUIDTag          DataElementTag = 0x00080016
	SOPInstanceUIDTag       DataElementTag = 0x00080018
	ModalityTag             DataElementTag = 0x00080060
	StudyInstanceUIDTag     DataElementTag = 0x0020000D
	SeriesInstanceUIDTag    DataElementTag = 0x0020000E
	InstanceNumberTag       DataElementTag = 0x00200013

	// Code sequences
	CodeValueTag   DataElementTag = 0x00080100
	CodeMeaningTag DataElementTag = 0x00080104

	// Cross references
	ReferencedSeriesSequenceTag DataElementTag = 0x00081115
	ReferencedImageSequenceTag  DataElementTag = 0x00081140
	ReferencedStudySequenceTag  DataElementTag = 0x00081110
	ReferencedSOPClassUIDTag    DataElementTag = 0x00081150
	ReferencedSOPInstanceUIDTag DataElementTag = 0x00081155
	ReferencedFrameNumberTag    DataElementTag = 0x00081160
	ReferencedSOPSequenceTag    DataElementTag = 0x00081199
	TargetUIDTag                DataElementTag = 0x00081195

	// Image pixel description (group 0028)
	SamplesPerPixelTag           DataElementTag = 0x00280002
	PhotometricInterpretationTag DataElementTag = 0x00280004
	NumberOfFramesTag            DataElementTag = 0x00280008
	RowsTag                      DataElementTag = 0x00280010
	ColumnsTag                   DataElementTag = 0x00280011
	BitsAllocatedTag             DataElementTag = 0x00280100
	BitsStoredTag                DataElementTag = 0x00280101
	HighBitTag                   DataElementTag = 0x00280102
	PixelRepresentationTag       DataElementTag = 0x00280103
	WindowCenterTag              DataElementTag = 0x00281050
	WindowWidthTag               DataElementTag = 0x00281051
	RescaleInterceptTag          DataElementTag = 0x00281052
	RescaleSlopeTag              DataElementTag = 0x00281053

	// SR / Key Object Selection content (group 0040)
	RelationshipTypeTag             DataElementTag = 0x0040A010
	ValueTypeTag                    DataElementTag = 0x0040A040
	ConceptNameCodeSequenceTag      DataElementTag = 0x0040A043
	ContinuityOfContentTag          DataElementTag = 0x0040A050
	TextValueTag                    DataElementTag = 0x0040A160
	MeasurementUnitsCodeSequenceTag DataElementTag = 0x004008EA
	MeasuredValueSequenceTag        DataElementTag = 0x0040A300
	NumericValueTag                 DataElementTag = 0x0040A30A
	ContentSequenceTag              DataElementTag = 0x0040A730

	// Softcopy presentation state annotations (group 0070)
	GraphicAnnotationSequenceTag           DataElementTag = 0x00700001
	GraphicLayerTag                        DataElementTag = 0x00700002
	BoundingBoxAnnotationUnitsTag          DataElementTag = 0x00700003
	AnchorPointAnnotationUnitsTag          DataElementTag = 0x00700004
	GraphicAnnotationUnitsTag              DataElementTag = 0x00700005
	UnformattedTextValueTag                DataElementTag = 0x00700006
	TextObjectSequenceTag                  DataElementTag = 0x00700008
	GraphicObjectSequenceTag               DataElementTag = 0x00700009
	BoundingBoxTopLeftHandCornerTag        DataElementTag = 0x00700010
	BoundingBoxBottomRightHandCornerTag    DataElementTag = 0x00700011
	AnchorPointTag                         DataElementTag = 0x00700014
	AnchorPointVisibilityTag               DataElementTag = 0x00700015
	GraphicDimensionsTag                   DataElementTag = 0x00700020
	NumberOfGraphicPointsTag               DataElementTag = 0x00700021
	GraphicDataTag                         DataElementTag = 0x00700022
	GraphicTypeTag                         DataElementTag = 0x00700023
	GraphicFilledTag                       DataElementTag = 0x00700024
	ImageHorizontalFlipTag                 DataElementTag = 0x00700041
	ImageRotationTag                       DataElementTag = 0x00700042
	DisplayedAreaTopLeftHandCornerTag      DataElementTag = 0x00700052
	DisplayedAreaBottomRightHandCornerTag  DataElementTag = 0x00700053
	DisplayedAreaSelectionSequenceTag      DataElementTag = 0x0070005A
	ContentLabelTag                        DataElementTag = 0x00700080
	ContentDescriptionTag                  DataElementTag = 0x00700081
	PresentationSizeModeTag                DataElementTag = 0x00700100
	PresentationPixelSpacingTag            DataElementTag = 0x00700101
	PresentationPixelMagnificationRatioTag DataElementTag = 0x00700103

	// Overlay planes. The first repeating group; groups 0x6000 through
	// 0x601E in steps of 2 carry the same elements.
	OverlayRowsTag          DataElementTag = 0x60000010
	OverlayColumnsTag       DataElementTag = 0x60000011
	OverlayTypeTag          DataElementTag = 0x60000040
	OverlayOriginTag        DataElementTag = 0x60000050
	OverlayBitsAllocatedTag DataElementTag = 0x60000100
	OverlayBitPositionTag   DataElementTag = 0x60000102
	OverlayDataTag          DataElementTag = 0x60003000

	// Bulk payload tags (some are wildcard bases, see isBulkPayloadTag)
	PixelDataProviderURLTag DataElementTag = 0x00287FE0
	EncapsulatedDocumentTag DataElementTag = 0x00420011
	AudioSampleDataTag      DataElementTag = 0x50002000
	CurveDataTag            DataElementTag = 0x50003000
	WaveformDataTag         DataElementTag = 0x54001010
	SpectroscopyDataTag     DataElementTag = 0x56000020
	FloatPixelDataTag       DataElementTag = 0x7FE00008
	DoubleFloatPixelDataTag DataElementTag = 0x7FE00009
	PixelDataTag            DataElementTag = 0x7FE00010

	// Item structure tags
	ItemTag                     DataElementTag = 0xFFFEE000
	ItemDelimitationItemTag     DataElementTag = 0xFFFEE00D
	SequenceDelimitationItemTag DataElementTag = 0xFFFEE0DE
)

// dictionary maps tags to their VR for the implicit transfer syntax. Overlay
// group tags are stored against the 0x6000 base; DictionaryVR folds the
// repeating groups onto it.
var dictionary = map[DataElementTag]*VR{
	FileMetaInformationGroupLengthTag: ULVR,
	FileMetaInformationVersionTag:     OBVR,
	MediaStorageSOPClassUIDTag:        UIVR,
	MediaStorageSOPInstanceUIDTag:     UIVR,
	TransferSyntaxUIDTag:              UIVR,
	ImplementationClassUIDTag:         UIVR,
	ImplementationVersionNameTag:      SHVR,

	SpecificCharacterSetTag: CSVR,
	SOPClassUIDTag:          UIVR,
	SOPInstanceUIDTag:       UIVR,
	ModalityTag:             CSVR,
	StudyInstanceUIDTag:     UIVR,
	SeriesInstanceUIDTag:    UIVR,
	InstanceNumberTag:       ISVR,

	CodeValueTag:   SHVR,
	CodeMeaningTag: LOVR,

	ReferencedSeriesSequenceTag: SQVR,
	ReferencedImageSequenceTag:  SQVR,
	ReferencedStudySequenceTag:  SQVR,
	ReferencedSOPClassUIDTag:    UIVR,
	ReferencedSOPInstanceUIDTag: UIVR,
	ReferencedFrameNumberTag:    ISVR,
	ReferencedSOPSequenceTag:    SQVR,
	TargetUIDTag:                UIVR,

	SamplesPerPixelTag:           USVR,
	PhotometricInterpretationTag: CSVR,
	NumberOfFramesTag:            ISVR,
	RowsTag:                      USVR,
	ColumnsTag:                   USVR,
	BitsAllocatedTag:             USVR,
	BitsStoredTag:                USVR,
	HighBitTag:                   USVR,
	PixelRepresentationTag:       USVR,
	WindowCenterTag:              DSVR,
	WindowWidthTag:               DSVR,
	RescaleInterceptTag:          DSVR,
	RescaleSlopeTag:              DSVR,

	RelationshipTypeTag:             CSVR,
	ValueTypeTag:                    CSVR,
	ConceptNameCodeSequenceTag:      SQVR,
	ContinuityOfContentTag:          CSVR,
	TextValueTag:                    UTVR,
	MeasurementUnitsCodeSequenceTag: SQVR,
	MeasuredValueSequenceTag:        SQVR,
	NumericValueTag:                 DSVR,
	ContentSequenceTag:              SQVR,

	GraphicAnnotationSequenceTag:           SQVR,
	GraphicLayerTag:                        CSVR,
	BoundingBoxAnnotationUnitsTag:          CSVR,
	AnchorPointAnnotationUnitsTag:          CSVR,
	GraphicAnnotationUnitsTag:              CSVR,
	UnformattedTextValueTag:                STVR,
	TextObjectSequenceTag:                  SQVR,
	GraphicObjectSequenceTag:               SQVR,
	BoundingBoxTopLeftHandCornerTag:        FLVR,
	BoundingBoxBottomRightHandCornerTag:    FLVR,
	AnchorPointTag:                         FLVR,
	AnchorPointVisibilityTag:               CSVR,
	GraphicDimensionsTag:                   USVR,
	NumberOfGraphicPointsTag:               USVR,
	GraphicDataTag:                         FLVR,
	GraphicTypeTag:                         CSVR,
	GraphicFilledTag:                       CSVR,
	ImageHorizontalFlipTag:                 CSVR,
	ImageRotationTag:                       USVR,
	DisplayedAreaTopLeftHandCornerTag:      SLVR,
	DisplayedAreaBottomRightHandCornerTag:  SLVR,
	DisplayedAreaSelectionSequenceTag:      SQVR,
	ContentLabelTag:                        CSVR,
	ContentDescriptionTag:                  LOVR,
	PresentationSizeModeTag:                CSVR,
	PresentationPixelSpacingTag:            DSVR,
	PresentationPixelMagnificationRatioTag: FLVR,

	OverlayRowsTag:          USVR,
	OverlayColumnsTag:       USVR,
	OverlayTypeTag:          CSVR,
	OverlayOriginTag:        SSVR,
	OverlayBitsAllocatedTag: USVR,
	OverlayBitPositionTag:   USVR,
	OverlayDataTag:          OWVR,

	PixelDataProviderURLTag: URVR,
	EncapsulatedDocumentTag: OBVR,
	AudioSampleDataTag:      OWVR,
	CurveDataTag:            OWVR,
	WaveformDataTag:         OWVR,
	SpectroscopyDataTag:     OFVR,
	FloatPixelDataTag:       OFVR,
	DoubleFloatPixelDataTag: ODVR,
	PixelDataTag:            OWVR,
}

// DictionaryVR returns the VR the dictionary assigns the tag. Tags outside
// the dictionary subset return UN, which the parser treats as raw bytes.
func (t DataElementTag) DictionaryVR() *VR {
	if vr, ok := dictionary[t]; ok {
		return vr
	}
	if t.IsOverlay() {
		base := DataElementTag(uint32(t)&0x0000FFFF | 0x60000000)
		if vr, ok := dictionary[base]; ok {
			return vr
		}
	}
	if t.ElementNumber() == 0 {
		return ULVR // group length
	}
	return UNVR
}

// isBulkPayloadTag reports whether the tag carries a large non-metadata
// payload that header parsing should leave in the file as a byte-region
// reference instead of buffering.
//
// Tags in the DICOM data dictionary have wildcards (e.g. tags like
// (gggg,eexx), (ggxx,eeee)). The wildcard positions are stored as '0' in the
// constants above, so masking the tag before comparison folds the repeating
// groups onto their base constant.
func isBulkPayloadTag(tag DataElementTag) bool {
	for _, m := range []uint32{0xFFFFFF00, 0xFFFF0000, 0xFF00FFFF, 0xFFFFFFFF} {
		switch DataElementTag(uint32(tag) & m) {
		case PixelDataProviderURLTag, AudioSampleDataTag, CurveDataTag, SpectroscopyDataTag,
			EncapsulatedDocumentTag, FloatPixelDataTag, DoubleFloatPixelDataTag,
			PixelDataTag, WaveformDataTag:
			return true
		}
	}
	// overlay data across the repeating groups (60xx,3000)
	return tag.IsOverlay() && tag.ElementNumber() == 0x3000
}
