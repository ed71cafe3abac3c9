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
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

func parseDataElement(dr *dcmReader, metaData dicomMetaData) (*DataElement, error) {
	syntax := metaData.syntax

	tag, err := dr.Tag(syntax.byteOrder())
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading tag: %v", err)
	}

	if tag == ItemDelimitationItemTag {
		// end of a nested data set within an undefined-length sequence item.
		// This code never runs for the top level data set.
		length, err := dr.UInt32(syntax.byteOrder())
		if err != nil {
			return nil, fmt.Errorf("reading 32 bit length of item delimitation: %v", err)
		}
		if length != 0 {
			return nil, fmt.Errorf("wrong length for item delimiter: got %v, want 0", length)
		}
		return nil, io.EOF
	}

	vr, err := syntax.readVR(dr, tag)
	if err != nil {
		return nil, fmt.Errorf("reading vr: %v", err)
	}

	length, err := syntax.readValueLength(dr, vr)
	if err != nil {
		return nil, fmt.Errorf("reading length: %v", err)
	}

	value, err := parseValue(dr, tag, vr, length, metaData)
	if err != nil {
		return nil, fmt.Errorf("parsing value of %v: %v", tag, err)
	}

	return &DataElement{tag, vr, value, length}, nil
}

func parseValue(dr *dcmReader, tag DataElementTag, vr *VR, length uint32, metaData dicomMetaData) (interface{}, error) {
	switch vr.kind {
	case textVR:
		return parseText(dr, length, vr, metaData, unicode.IsSpace)
	case longTextVR:
		return parseLongText(dr, length, vr, metaData)
	case numberBinaryVR:
		return parseNumberBinary(dr, length, vr, metaData.syntax.byteOrder())
	case bulkDataVR:
		return parseBulkData(dr, tag, length)
	case uniqueIdentifierVR:
		return parseText(dr, length, vr, metaData, func(r rune) bool {
			return r == 0x00 || r == ' '
		})
	case sequenceVR:
		return parseSequence(dr, length, metaData)
	case tagVR:
		return parseTag(dr, metaData, length)
	default:
		return nil, fmt.Errorf("unknown vr type found: %v", vr.kind)
	}
}

func parseTag(dr *dcmReader, metaData dicomMetaData, length uint32) ([]uint32, error) {
	ret := make([]uint32, length/4) // 4 bytes per tag

	for i := range ret {
		t, err := dr.Tag(metaData.syntax.byteOrder())
		if err != nil {
			return nil, err
		}
		ret[i] = uint32(t)
	}
	return ret, nil
}

func parseText(dr *dcmReader, length uint32, vr *VR, metaData dicomMetaData, isPadding func(rune) bool) ([]string, error) {
	if length == 0 {
		return []string{}, nil
	}

	raw, err := dr.Bytes(int64(length))
	if err != nil {
		return nil, fmt.Errorf("reading text field value: %v", err)
	}

	valueField, err := decodeText(raw, vr, metaData)
	if err != nil {
		return nil, err
	}

	// deal with value multiplicity
	strs := strings.Split(valueField, "\\")
	for i, s := range strs {
		if vr == STVR || vr == LTVR {
			// leading spaces are significant in the text VRs
			strs[i] = strings.TrimRightFunc(s, isPadding)
		} else {
			strs[i] = strings.TrimFunc(s, isPadding)
		}
	}
	return strs, nil
}

// parseLongText handles UT, UR, UC. UR and UT do not allow the backslash
// delimiter; UC may be multi-valued. Refer to DICOM PS3.5 section 6.1.
func parseLongText(dr *dcmReader, length uint32, vr *VR, metaData dicomMetaData) ([]string, error) {
	if length == 0 {
		return []string{}, nil
	}

	raw, err := dr.Bytes(int64(length))
	if err != nil {
		return nil, fmt.Errorf("reading text field value: %v", err)
	}

	text, err := decodeText(raw, vr, metaData)
	if err != nil {
		return nil, err
	}

	if vr == UCVR {
		strs := strings.Split(text, "\\")
		for i, s := range strs {
			strs[i] = strings.TrimRight(s, " ")
		}
		return strs, nil
	}
	return []string{strings.TrimRightFunc(text, unicode.IsSpace)}, nil
}

// decodeText translates raw bytes into a Go string under the active specific
// character set. VRs restricted to the default repertoire (CS, DA, TM, DT,
// IS, DS, AE, AS, UI, UR) bypass the decoder.
func decodeText(raw []byte, vr *VR, metaData dicomMetaData) (string, error) {
	switch vr {
	case CSVR, DAVR, TMVR, DTVR, ISVR, DSVR, AEVR, ASVR, UIVR, URVR:
		return string(raw), nil
	}

	decoded, err := metaData.encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding text with specific character set: %v", err)
	}
	return string(decoded), nil
}

func parseNumberBinary(dr *dcmReader, length uint32, vr *VR, order binary.ByteOrder) (interface{}, error) {
	var data interface{}

	switch vr {
	case SSVR:
		data = make([]int16, length/2)
	case USVR:
		data = make([]uint16, length/2)
	case SLVR:
		data = make([]int32, length/4)
	case ULVR:
		data = make([]uint32, length/4)
	case FLVR:
		data = make([]float32, length/4)
	case FDVR:
		data = make([]float64, length/8)
	default:
		return nil, fmt.Errorf("unknown number vr: %v", vr)
	}

	if err := binary.Read(dr.cr, order, data); err != nil {
		return nil, fmt.Errorf("reading binary number value: %v", err)
	}

	return data, nil
}

func parseBulkData(dr *dcmReader, tag DataElementTag, length uint32) (BulkDataIterator, error) {
	if length == UndefinedLength {
		if tag == PixelDataTag {
			// (7FE0,0010) with undefined length means pixel data in the
			// encapsulated (compressed) format, specified in
			// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
			return newEncapsulatedFormatIterator(dr), nil
		}

		return nil, errors.New("undefined length in non-pixel bulk data not supported")
	}

	// for native (uncompressed) formats, return a plain bulk data stream
	return newOneShotIterator(limitCountReader(dr.cr, int64(length))), nil
}

func parseSequence(dr *dcmReader, length uint32, metaData dicomMetaData) (SequenceIterator, error) {
	return newSequenceIterator(dr, length, metaData)
}
