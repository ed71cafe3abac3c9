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

// SOP Class UIDs recognised by the index. Not a complete registry; image
// storage classes outside this list are still classified as images when the
// object carries pixel data.
const (
	CRImageStorageUID                    = "1.2.840.10008.5.1.4.1.1.1"
	DigitalXRayForPresentationUID        = "1.2.840.10008.5.1.4.1.1.1.1"
	DigitalMammographyForPresentationUID = "1.2.840.10008.5.1.4.1.1.1.2"
	CTImageStorageUID                    = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorageUID            = "1.2.840.10008.5.1.4.1.1.2.1"
	USMultiFrameImageStorageUID          = "1.2.840.10008.5.1.4.1.1.3.1"
	MRImageStorageUID                    = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorageUID            = "1.2.840.10008.5.1.4.1.1.4.1"
	USImageStorageUID                    = "1.2.840.10008.5.1.4.1.1.6.1"
	SecondaryCaptureImageStorageUID      = "1.2.840.10008.5.1.4.1.1.7"
	XRayAngiographicImageStorageUID      = "1.2.840.10008.5.1.4.1.1.12.1"
	XRayRadiofluoroscopicImageStorageUID = "1.2.840.10008.5.1.4.1.1.12.2"

	GrayscaleSoftcopyPresentationStateUID   = "1.2.840.10008.5.1.4.1.1.11.1"
	ColorSoftcopyPresentationStateUID       = "1.2.840.10008.5.1.4.1.1.11.2"
	PseudoColorSoftcopyPresentationStateUID = "1.2.840.10008.5.1.4.1.1.11.3"

	KeyObjectSelectionDocumentUID = "1.2.840.10008.5.1.4.1.1.88.59"
)

var imageStorageClasses = map[string]bool{
	CRImageStorageUID:                    true,
	DigitalXRayForPresentationUID:        true,
	DigitalMammographyForPresentationUID: true,
	CTImageStorageUID:                    true,
	EnhancedCTImageStorageUID:            true,
	USMultiFrameImageStorageUID:          true,
	MRImageStorageUID:                    true,
	EnhancedMRImageStorageUID:            true,
	USImageStorageUID:                    true,
	SecondaryCaptureImageStorageUID:      true,
	XRayAngiographicImageStorageUID:      true,
	XRayRadiofluoroscopicImageStorageUID: true,
}

var presentationStateClasses = map[string]bool{
	GrayscaleSoftcopyPresentationStateUID:   true,
	ColorSoftcopyPresentationStateUID:       true,
	PseudoColorSoftcopyPresentationStateUID: true,
}

// Classify maps a SOP Class UID to an object kind. hasPixelData lets
// unlisted image storage classes fall through to KindImage.
func Classify(sopClassUID string, hasPixelData bool) Kind {
	switch {
	case presentationStateClasses[sopClassUID]:
		return KindPresentationState
	case sopClassUID == KeyObjectSelectionDocumentUID:
		return KindKeyObjectSelection
	case imageStorageClasses[sopClassUID]:
		return KindImage
	case hasPixelData:
		return KindImage
	}
	return KindUnknown
}
