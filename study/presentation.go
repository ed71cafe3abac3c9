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
	"strings"

	"github.com/studyview/studyview/dicom"
)

// DisplaySettings is the plain record of viewing parameters a presentation
// state prescribes. The viewport applies them; this package only extracts.
type DisplaySettings struct {
	WindowCenter, WindowWidth float64
	HasWindow                 bool

	// Displayed area selection, image pixel coordinates (column, row).
	AreaTopLeft, AreaBottomRight [2]int
	HasDisplayedArea             bool
	SizeMode                     string

	Rotation       int // degrees clockwise, multiple of 90
	FlipHorizontal bool
	Magnification  float64
}

// imageReference is one entry of a PR's referenced series sequence: either a
// specific image (possibly restricted to frames) or a whole series.
type imageReference struct {
	seriesUID string
	sopUID    string // empty for a series-level reference
	frames    []int  // 1-based; empty means every frame
}

// PresentationState is a parsed softcopy presentation state object. It is
// cross-referenced from images through the index, never owned by them.
type PresentationState struct {
	SOPInstanceUID string
	SOPClassUID    string
	Label          string
	Description    string

	Display DisplaySettings

	// Annotations is the raw GraphicAnnotationSequence; the annotation
	// resolver decodes it against a concrete image geometry.
	Annotations *dicom.Sequence

	refs []imageReference

	// frames collects explicit frame restrictions per referenced SOP UID.
	frames map[string][]int
}

// newPresentationState parses the PR-specific parts of an instance header.
func newPresentationState(inst *Instance) *PresentationState {
	ds := inst.DataSet
	pr := &PresentationState{
		SOPInstanceUID: inst.SOPInstanceUID,
		SOPClassUID:    inst.SOPClassUID,
		frames:         make(map[string][]int),
	}
	pr.Label, _ = ds.StringValue(dicom.ContentLabelTag)
	pr.Description, _ = ds.StringValue(dicom.ContentDescriptionTag)
	pr.Annotations, _ = ds.Sequence(dicom.GraphicAnnotationSequenceTag)
	pr.Display = parseDisplaySettings(ds)

	if seq, err := ds.Sequence(dicom.ReferencedSeriesSequenceTag); err == nil {
		for _, item := range seq.Items {
			seriesUID, _ := item.StringValue(dicom.SeriesInstanceUIDTag)
			images, err := item.Sequence(dicom.ReferencedImageSequenceTag)
			if err != nil {
				// series-level reference: every image in the series
				pr.refs = append(pr.refs, imageReference{seriesUID: seriesUID})
				continue
			}
			for _, img := range images.Items {
				ref := imageReference{seriesUID: seriesUID}
				ref.sopUID, _ = img.StringValue(dicom.ReferencedSOPInstanceUIDTag)
				if ref.sopUID == "" {
					continue
				}
				ref.frames, _ = img.Ints(dicom.ReferencedFrameNumberTag)
				if len(ref.frames) > 0 {
					pr.frames[ref.sopUID] = append(pr.frames[ref.sopUID], ref.frames...)
				}
				pr.refs = append(pr.refs, ref)
			}
		}
	}
	return pr
}

// FramesInScope reports whether the PR applies to the given 0-based frame of
// the referenced image. A reference without an explicit Referenced Frame
// Number list keeps every frame in scope; when the list exists it wins.
func (pr *PresentationState) FramesInScope(sopUID string, frameIndex int) bool {
	restricted, ok := pr.frames[sopUID]
	if !ok {
		return true
	}
	for _, n := range restricted {
		if n == frameIndex+1 { // Referenced Frame Number is 1-based
			return true
		}
	}
	return false
}

func parseDisplaySettings(ds *dicom.DataSet) DisplaySettings {
	var set DisplaySettings
	if wc, err := ds.Float(dicom.WindowCenterTag); err == nil {
		if ww, err := ds.Float(dicom.WindowWidthTag); err == nil {
			set.WindowCenter, set.WindowWidth = wc, ww
			set.HasWindow = true
		}
	}
	if n, err := ds.Int(dicom.ImageRotationTag); err == nil {
		set.Rotation = n
	}
	if flip, err := ds.StringValue(dicom.ImageHorizontalFlipTag); err == nil {
		set.FlipHorizontal = strings.TrimSpace(flip) == "Y"
	}
	if mag, err := ds.Float(dicom.PresentationPixelMagnificationRatioTag); err == nil {
		set.Magnification = mag
	}
	if seq, err := ds.Sequence(dicom.DisplayedAreaSelectionSequenceTag); err == nil && len(seq.Items) > 0 {
		item := seq.Items[0]
		tl, errTL := item.Ints(dicom.DisplayedAreaTopLeftHandCornerTag)
		br, errBR := item.Ints(dicom.DisplayedAreaBottomRightHandCornerTag)
		if errTL == nil && errBR == nil && len(tl) == 2 && len(br) == 2 {
			set.AreaTopLeft = [2]int{tl[0], tl[1]}
			set.AreaBottomRight = [2]int{br[0], br[1]}
			set.HasDisplayedArea = true
		}
		set.SizeMode, _ = item.StringValue(dicom.PresentationSizeModeTag)
	}
	return set
}
