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
	"compress/flate"
	"errors"
	"fmt"
	"io"
)

// ErrNotDICOM is returned when the input does not begin with a DICOM
// preamble and "DICM" magic.
var ErrNotDICOM = errors.New("dicom: input is not a DICOM part-10 file")

// DataElementIterator represents an iterator over a DataSet's DataElements
type DataElementIterator interface {
	// NextElement returns the next DataElement in the DataSet. If there is
	// no next DataElement, the error io.EOF is returned. In addition, if any
	// previously returned DataElements contained iterable objects like
	// SequenceIterator or BulkDataIterator, those iterators are emptied.
	NextElement() (*DataElement, error)

	// Close discards all remaining DataElements in the iterator
	Close() error

	metadata() dicomMetaData
}

// NewDataElementIterator creates a DataElementIterator from a DICOM part-10
// file. The implementation returned consumes input from the io.Reader as
// needed. The error ErrNotDICOM is returned if the magic word is absent.
func NewDataElementIterator(r io.Reader) (DataElementIterator, error) {
	dr := newDcmReader(r)
	if err := readDicomSignature(dr); err != nil {
		return nil, err
	}

	metaHeaderBytes, err := bufferMetadataHeader(dr)
	if err != nil {
		return nil, fmt.Errorf("reading meta header: %v", err)
	}

	syntax, err := findSyntax(metaHeaderBytes)
	if err != nil {
		return nil, fmt.Errorf("finding transfer syntax: %v", err)
	}

	metaIter := newDataElementIterator(newDcmReader(bytes.NewBuffer(metaHeaderBytes)), defaultMetaData)

	if syntax.deflated {
		// the main data set of a deflated file is a raw DEFLATE stream.
		// Offsets produced beyond this point are relative to the inflated
		// stream, not the file.
		dr = newDcmReader(flate.NewReader(dr.cr))
	}

	metaData := dicomMetaData{syntax, defaultCharacterRepertoire}
	return &dataElementIterator{dr, metaData, nil, false, metaIter}, nil
}

// newDataElementIterator creates a DataElementIterator from a byte stream
// that excludes header info (preamble and file meta elements)
func newDataElementIterator(dr *dcmReader, metaData dicomMetaData) DataElementIterator {
	return &dataElementIterator{dr, metaData, nil, false, emptyElementIterator{metaData}}
}

type dataElementIterator struct {
	dr             *dcmReader
	metaData       dicomMetaData
	currentElement *DataElement
	empty          bool
	metaHeader     DataElementIterator
}

func (it *dataElementIterator) NextElement() (*DataElement, error) {
	metaElem, err := it.metaHeader.NextElement()
	if err == io.EOF {
		return it.nextDataSetElement()
	}
	if err != nil {
		return nil, err
	}
	return metaElem, nil
}

func (it *dataElementIterator) metadata() dicomMetaData {
	return it.metaData
}

func (it *dataElementIterator) nextDataSetElement() (*DataElement, error) {
	if it.empty {
		return nil, io.EOF
	}
	if err := it.closeCurrent(); err != nil {
		return nil, fmt.Errorf("closing previous element: %v", err)
	}

	element, err := parseDataElement(it.dr, it.metaData)
	if err == io.EOF {
		it.empty = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("parsing element: %v", err)
	}

	if element.Tag == SpecificCharacterSetTag {
		it.applyCharacterSet(element)
	}

	it.currentElement = element

	return it.currentElement, nil
}

// applyCharacterSet switches the active text decoder when the data set
// declares a specific character set. An unrecognized defined term keeps the
// default repertoire; a bad charset declaration should not fail the parse.
func (it *dataElementIterator) applyCharacterSet(element *DataElement) {
	terms, ok := element.ValueField.([]string)
	if !ok || len(terms) == 0 {
		return
	}
	// multi-valued character sets switch repertoires with ISO 2022 escapes;
	// only the first value is honored here
	coding, err := lookupEncoding(terms[0])
	if err != nil {
		return
	}
	it.metaData.encoding = coding
}

func (it *dataElementIterator) Close() error {
	// empty the iterator
	for _, err := it.NextElement(); err != io.EOF; _, err = it.NextElement() {
		if err != nil {
			return fmt.Errorf("discarding element on Close: %v", err)
		}
	}
	return nil
}

// closeCurrent ensures the iterator is ready to read the next DataElement.
// If this iterator previously returned a stream of bytes such as a
// BulkDataIterator, the stream must be emptied to advance the input to the
// bytes of the next DataElement. This pattern follows the implementation of
// multipart.Reader in the standard library.
func (it *dataElementIterator) closeCurrent() error {
	if it.currentElement == nil {
		return nil
	}

	if closer, ok := it.currentElement.ValueField.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func readDicomSignature(dr *dcmReader) error {
	if err := dr.Skip(128); err != nil {
		return fmt.Errorf("%w: short preamble: %v", ErrNotDICOM, err)
	}

	magic, err := dr.String(4)
	if err != nil {
		return fmt.Errorf("%w: reading magic word: %v", ErrNotDICOM, err)
	}

	if magic != "DICM" {
		return fmt.Errorf("%w: got magic word %q", ErrNotDICOM, magic)
	}

	return nil
}

func bufferMetadataHeader(dr *dcmReader) ([]byte, error) {
	firstElemBytes, err := dr.Bytes(4 /*tag*/ + 2 /*vr*/ + 2 /*len*/ + 4 /*UL value*/)
	if err != nil {
		return nil, fmt.Errorf("buffering bytes of FileMetaInformationGroupLength: %v", err)
	}
	firstElem, err := parseDataElement(
		newDcmReader(bytes.NewBuffer(firstElemBytes)), defaultMetaData)
	if err != nil {
		return nil, fmt.Errorf("parsing FileMetaInformationGroupLength element: %v", err)
	}
	if firstElem.Tag != FileMetaInformationGroupLengthTag {
		return nil, fmt.Errorf("expected FileMetaInformationGroupLength, got %v", firstElem.Tag)
	}

	metaGroupLength, ok := firstElem.ValueField.([]uint32)
	if !ok || len(metaGroupLength) != 1 {
		return nil, fmt.Errorf("wrong value for FileMetaInformationGroupLength: %v", firstElem.ValueField)
	}

	remainderBytes, err := dr.Bytes(int64(metaGroupLength[0]))
	if err != nil {
		return nil, fmt.Errorf("buffering the file meta elements: %v", err)
	}

	return append(firstElemBytes, remainderBytes...), nil
}

func findSyntax(metaHeaderBytes []byte) (transferSyntax, error) {
	metaIter := newDataElementIterator(newDcmReader(bytes.NewBuffer(metaHeaderBytes)), defaultMetaData)

	for elem, err := metaIter.NextElement(); err != io.EOF; elem, err = metaIter.NextElement() {
		if err != nil {
			return transferSyntax{}, fmt.Errorf("reading meta element: %v", err)
		}
		if elem.Tag == TransferSyntaxUIDTag {
			ids, ok := elem.ValueField.([]string)
			if !ok || len(ids) != 1 {
				return transferSyntax{}, fmt.Errorf("wrong value for transfer syntax element: %v", elem.ValueField)
			}
			return lookupTransferSyntax(ids[0]), nil
		}
	}

	return transferSyntax{}, fmt.Errorf("transfer syntax not found")
}

type emptyElementIterator struct {
	metaData dicomMetaData
}

func (it emptyElementIterator) NextElement() (*DataElement, error) {
	return nil, io.EOF
}

func (it emptyElementIterator) metadata() dicomMetaData {
	return it.metaData
}

func (it emptyElementIterator) Close() error {
	return nil
}
