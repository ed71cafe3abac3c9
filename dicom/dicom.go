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

// Package dicom reads the DICOM file format as specified in
// [http://dicom.nema.org/medical/dicom/current/output/pdf/part05.pdf].
//
// The package is split into two levels. The low level API consists of
// streaming interfaces like DataElementIterator, BulkDataIterator, and
// BulkDataReader. The high level entry point is ParseHeader, which collects
// the streaming interfaces into a DataSet while leaving large payloads
// (pixel data, overlay data and friends) in the file: such elements end up
// as []BulkDataReference, a list of absolute byte regions that a caller can
// materialize later with an io.ReaderAt. This is what keeps header parsing
// cheap regardless of how many frames a file carries.
package dicom

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DataElementTag is a unique identifier for a Data Element composed of an
// ordered pair of numbers called the group number and the element number as
// specified in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10.
//
// The least significant 16 bits is the element number. The most significant
// 16 bits is the group number.
type DataElementTag uint32

// GroupNumber returns the group number component of the DataElementTag
func (t DataElementTag) GroupNumber() uint16 {
	return uint16(t >> 16)
}

// ElementNumber returns the element number component of the DataElementTag
func (t DataElementTag) ElementNumber() uint16 {
	return uint16(t & 0xFFFF)
}

// IsMetadataElement is true if and only if the Data Element is a file meta
// element (group 0x0002)
func (t DataElementTag) IsMetadataElement() bool {
	return t.GroupNumber() == uint16(0x0002)
}

// IsOverlay is true if the Data Element belongs to one of the repeating
// overlay groups (6000,xxxx) through (601E,xxxx)
func (t DataElementTag) IsOverlay() bool {
	g := t.GroupNumber()
	return g >= 0x6000 && g <= 0x601E && g%2 == 0
}

func (t DataElementTag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.GroupNumber(), t.ElementNumber())
}

// DataElement models a DICOM Data Element as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
type DataElement struct {
	Tag DataElementTag

	// Value Representation
	VR *VR

	// ValueField represents the field within a Data Element that contains
	// its value(s). Can be any of the following types:
	// []string
	// []int16, []uint16, []int32, []uint32, []float32, []float64
	// []byte
	// []BulkDataReference
	// BulkDataIterator
	// *Sequence
	ValueField interface{}

	// ValueLength is equal to the length of the ValueField in bytes.
	// Can be equal to 0xFFFFFFFF to represent an undefined length:
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
	ValueLength uint32
}

// DataSet models a DICOM Data Set as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
type DataSet struct {
	// Elements is a map of DataElement tags to *DataElement
	Elements map[DataElementTag]*DataElement
}

// NewDataSet returns a DataSet over the given tag to value mapping. The VR of
// each element is taken from the tag dictionary. Intended for tests and for
// assembling synthetic data sets.
func NewDataSet(elements map[DataElementTag]interface{}) *DataSet {
	ds := &DataSet{Elements: map[DataElementTag]*DataElement{}}
	for tag, value := range elements {
		ds.Elements[tag] = &DataElement{tag, tag.DictionaryVR(), value, 0}
	}
	return ds
}

// SortedTags returns the tags of the DataSet in ascending order
func (ds *DataSet) SortedTags() []DataElementTag {
	tags := make([]DataElementTag, 0, len(ds.Elements))
	for tag := range ds.Elements {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (ds *DataSet) String() string {
	return ds.string(0)
}

func (ds *DataSet) string(indentLvl int) string {
	indent := strings.Repeat(">", indentLvl)
	lines := make([]string, 0, len(ds.Elements))
	for _, tag := range ds.SortedTags() {
		elem := ds.Elements[tag]
		if seq, ok := elem.ValueField.(*Sequence); ok {
			lines = append(lines, fmt.Sprintf("%s%v %v:%v", indent, tag, elem.VR.Name, seq.string(indentLvl)))
		} else {
			lines = append(lines, fmt.Sprintf("%s%v %v:%v", indent, tag, elem.VR.Name, elem.ValueField))
		}
	}
	return strings.Join(lines, "\n")
}

// Typed accessor errors. Callers distinguish an absent tag from a present
// tag holding an unexpected type with errors.Is.
var (
	ErrTagAbsent = errors.New("dicom: tag absent")
	ErrWrongType = errors.New("dicom: unexpected value type for tag")
)

// TagError reports a failed typed access on a DataSet.
type TagError struct {
	Tag DataElementTag
	Err error
}

func (e *TagError) Error() string {
	return fmt.Sprintf("%v: %v", e.Err, e.Tag)
}

func (e *TagError) Unwrap() error {
	return e.Err
}

func (ds *DataSet) element(tag DataElementTag) (*DataElement, error) {
	elem, ok := ds.Elements[tag]
	if !ok {
		return nil, &TagError{tag, ErrTagAbsent}
	}
	return elem, nil
}

// Strings returns the string values of the element with the given tag.
func (ds *DataSet) Strings(tag DataElementTag) ([]string, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return nil, err
	}
	strs, ok := elem.ValueField.([]string)
	if !ok {
		return nil, &TagError{tag, ErrWrongType}
	}
	return strs, nil
}

// StringValue returns the single string value of the element with the given
// tag. An element with value multiplicity other than 1 is a wrong-type error.
func (ds *DataSet) StringValue(tag DataElementTag) (string, error) {
	strs, err := ds.Strings(tag)
	if err != nil {
		return "", err
	}
	if len(strs) != 1 {
		return "", &TagError{tag, ErrWrongType}
	}
	return strs[0], nil
}

// UInt16 returns the single uint16 value of the element with the given tag.
func (ds *DataSet) UInt16(tag DataElementTag) (uint16, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return 0, err
	}
	vals, ok := elem.ValueField.([]uint16)
	if !ok || len(vals) != 1 {
		return 0, &TagError{tag, ErrWrongType}
	}
	return vals[0], nil
}

// Int returns the integer value of the element with the given tag. Handles
// both binary integer VRs (US, UL, SS, SL) and the textual IS VR.
func (ds *DataSet) Int(tag DataElementTag) (int, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return 0, err
	}
	switch v := elem.ValueField.(type) {
	case []uint16:
		if len(v) == 1 {
			return int(v[0]), nil
		}
	case []int16:
		if len(v) == 1 {
			return int(v[0]), nil
		}
	case []uint32:
		if len(v) == 1 {
			return int(v[0]), nil
		}
	case []int32:
		if len(v) == 1 {
			return int(v[0]), nil
		}
	case []string:
		if len(v) == 1 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			if err != nil {
				return 0, &TagError{tag, ErrWrongType}
			}
			return n, nil
		}
	}
	return 0, &TagError{tag, ErrWrongType}
}

// Ints returns all integer values of the element with the given tag.
func (ds *DataSet) Ints(tag DataElementTag) ([]int, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return nil, err
	}
	switch v := elem.ValueField.(type) {
	case []uint16:
		out := make([]int, len(v))
		for i, n := range v {
			out[i] = int(n)
		}
		return out, nil
	case []int16:
		out := make([]int, len(v))
		for i, n := range v {
			out[i] = int(n)
		}
		return out, nil
	case []int32:
		out := make([]int, len(v))
		for i, n := range v {
			out[i] = int(n)
		}
		return out, nil
	case []uint32:
		out := make([]int, len(v))
		for i, n := range v {
			out[i] = int(n)
		}
		return out, nil
	case []string:
		out := make([]int, 0, len(v))
		for _, s := range v {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, &TagError{tag, ErrWrongType}
			}
			out = append(out, n)
		}
		return out, nil
	}
	return nil, &TagError{tag, ErrWrongType}
}

// Float returns the float value of the element with the given tag. Handles
// FL, FD and the textual DS VR.
func (ds *DataSet) Float(tag DataElementTag) (float64, error) {
	vals, err := ds.Floats(tag)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, &TagError{tag, ErrWrongType}
	}
	return vals[0], nil
}

// Floats returns all float values of the element with the given tag.
func (ds *DataSet) Floats(tag DataElementTag) ([]float64, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return nil, err
	}
	switch v := elem.ValueField.(type) {
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, nil
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, nil
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, &TagError{tag, ErrWrongType}
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, &TagError{tag, ErrWrongType}
}

// Sequence returns the sequence value of the element with the given tag.
func (ds *DataSet) Sequence(tag DataElementTag) (*Sequence, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return nil, err
	}
	seq, ok := elem.ValueField.(*Sequence)
	if !ok {
		return nil, &TagError{tag, ErrWrongType}
	}
	return seq, nil
}

// Refs returns the bulk data byte regions of the element with the given tag.
func (ds *DataSet) Refs(tag DataElementTag) ([]BulkDataReference, error) {
	elem, err := ds.element(tag)
	if err != nil {
		return nil, err
	}
	refs, ok := elem.ValueField.([]BulkDataReference)
	if !ok {
		return nil, &TagError{tag, ErrWrongType}
	}
	return refs, nil
}
