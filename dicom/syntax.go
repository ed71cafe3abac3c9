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
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding"
)

// list of transfer syntaxes obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_A
const (
	// ImplicitVRLittleEndianUID is the Implicit VR Little Endian UID
	ImplicitVRLittleEndianUID = "1.2.840.10008.1.2"
	// ExplicitVRLittleEndianUID is the Explicit VR Little Endian UID
	ExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1"
	// ExplicitVRBigEndianUID is the Explicit VR Big Endian UID
	ExplicitVRBigEndianUID = "1.2.840.10008.1.2.2"
	// DeflatedExplicitVRLittleEndianUID is the Deflated Explicit VR Little Endian UID
	DeflatedExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1.99"
	// JPEGBaselineUID is the JPEG Baseline (Process 1) transfer syntax UID
	JPEGBaselineUID = "1.2.840.10008.1.2.4.50"
	// JPEGLosslessSV1UID is the JPEG Lossless, Non-Hierarchical, First-Order
	// Prediction (Process 14, Selection Value 1) transfer syntax UID
	JPEGLosslessSV1UID = "1.2.840.10008.1.2.4.70"
	// JPEG2000LosslessUID is the JPEG 2000 Image Compression (Lossless Only) UID
	JPEG2000LosslessUID = "1.2.840.10008.1.2.4.90"
	// RLELosslessUID is the RLE Lossless transfer syntax UID
	RLELosslessUID = "1.2.840.10008.1.2.5"
)

// IsNativeTransferSyntax reports whether pixel data under the given transfer
// syntax UID is stored as raw interleaved samples with fixed-size frames.
// The deflated syntax counts as native: once inflated, its pixel data has
// the same layout. Everything else stores pixel data in the encapsulated
// fragment format.
func IsNativeTransferSyntax(uid string) bool {
	switch uid {
	case ImplicitVRLittleEndianUID, ExplicitVRLittleEndianUID, ExplicitVRBigEndianUID,
		DeflatedExplicitVRLittleEndianUID:
		return true
	}
	return false
}

// transferSyntax describes how data elements of a data set are laid out. A
// value of the zero struct is not meaningful; use lookupTransferSyntax.
type transferSyntax struct {
	implicit bool
	order    binary.ByteOrder
	deflated bool
}

var (
	implicitVRLittleEndian         = transferSyntax{true, binary.LittleEndian, false}
	explicitVRLittleEndian         = transferSyntax{false, binary.LittleEndian, false}
	explicitVRBigEndian            = transferSyntax{false, binary.BigEndian, false}
	deflatedExplicitVRLittleEndian = transferSyntax{false, binary.LittleEndian, true}
)

func lookupTransferSyntax(uid string) transferSyntax {
	switch uid {
	case ImplicitVRLittleEndianUID:
		return implicitVRLittleEndian
	case ExplicitVRBigEndianUID:
		return explicitVRBigEndian
	case DeflatedExplicitVRLittleEndianUID:
		return deflatedExplicitVRLittleEndian
	}

	// any other syntax is explicit VR little endian according to PS3.5 A.4
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
	return explicitVRLittleEndian
}

func (s transferSyntax) byteOrder() binary.ByteOrder {
	return s.order
}

func (s transferSyntax) readVR(dr *dcmReader, tag DataElementTag) (*VR, error) {
	if s.implicit {
		return tag.DictionaryVR(), nil
	}

	vrString, err := dr.String(2)
	if err != nil {
		return nil, fmt.Errorf("reading vr: %v", err)
	}
	return lookupVRByName(vrString)
}

func (s transferSyntax) readValueLength(dr *dcmReader, vr *VR) (uint32, error) {
	if s.implicit || s.has32BitLength(vr) {
		if !s.implicit {
			// explicit VRs with a 32-bit length carry a 2-byte reserved field
			if _, err := dr.UInt16(s.order); err != nil {
				return 0, fmt.Errorf("reading reserved field: %v", err)
			}
		}
		length, err := dr.UInt32(s.order)
		if err != nil {
			return 0, fmt.Errorf("reading 32 bit length: %v", err)
		}
		return length, nil
	}

	length, err := dr.UInt16(s.order)
	if err != nil {
		return 0, fmt.Errorf("reading 16 bit length: %v", err)
	}
	return uint32(length), nil
}

// has32BitLength reports whether the VR stores its value length in a 32-bit
// field under the explicit syntaxes. The two cases are defined at
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2
func (s transferSyntax) has32BitLength(vr *VR) bool {
	switch vr {
	case OBVR, ODVR, OFVR, OLVR, OWVR, SQVR, UCVR, URVR, UTVR, UNVR:
		return true
	default:
		return false
	}
}

// dicomMetaData carries how objects within the current data set are stored:
// the transfer syntax and the active specific character set.
type dicomMetaData struct {
	syntax   transferSyntax
	encoding encoding.Encoding
}

var defaultMetaData = dicomMetaData{explicitVRLittleEndian, defaultCharacterRepertoire}
