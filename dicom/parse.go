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
	"encoding/binary"
	"fmt"
	"io"
)

// ParseHeader parses a DICOM file represented as an io.Reader into a
// DataSet, leaving bulk payloads in the file. Every element whose tag is a
// bulk payload tag (pixel data, overlay data, waveform/curve/audio data) is
// represented as []BulkDataReference: absolute byte regions the caller can
// read later with an io.ReaderAt. For pixel data in the encapsulated format
// the first reference is the Basic Offset Table and the rest are the
// compressed fragments, in file order.
//
// Everything else is buffered into its value type, so the returned DataSet
// holds complete header metadata while the pixel bytes are never read into
// memory.
func ParseHeader(r io.Reader) (*DataSet, error) {
	iter, err := NewDataElementIterator(r)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	return CollectDataElements(iter)
}

// CollectDataElements returns the DataSet defined by the elements in the
// DataElementIterator, referencing bulk payloads and buffering everything
// else. The DataElementIterator will be closed.
func CollectDataElements(iter DataElementIterator) (*DataSet, error) {
	ds := &DataSet{Elements: map[DataElementTag]*DataElement{}}

	for elem, err := iter.NextElement(); err != io.EOF; elem, err = iter.NextElement() {
		if err != nil {
			return nil, err
		}
		processed, err := processElement(elem, iter.metadata().syntax.byteOrder())
		if err != nil {
			return nil, err
		}
		ds.Elements[processed.Tag] = processed
	}
	return ds, nil
}

// CollectSequence returns the Sequence defined by the items in the
// SequenceIterator. The SequenceIterator will be closed.
func CollectSequence(iter SequenceIterator) (*Sequence, error) {
	seq := &Sequence{[]*DataSet{}}
	for obj, err := iter.Next(); err != io.EOF; obj, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		dataSet, err := CollectDataElements(obj)
		if err != nil {
			return nil, err
		}
		seq.append(dataSet)
	}
	return seq, nil
}

// processElement turns the streaming interfaces inside the element into
// their collected forms: sequences into *Sequence (in post-order), bulk
// payload tags into []BulkDataReference, and any other bulk stream into its
// buffered value type.
func processElement(element *DataElement, order binary.ByteOrder) (*DataElement, error) {
	if seqIter, ok := element.ValueField.(SequenceIterator); ok {
		seq, err := CollectSequence(seqIter)
		if err != nil {
			return nil, fmt.Errorf("collecting sequence %v: %v", element.Tag, err)
		}
		return &DataElement{element.Tag, element.VR, seq, element.ValueLength}, nil
	}

	bulkIter, ok := element.ValueField.(BulkDataIterator)
	if !ok {
		return element, nil
	}

	if isBulkPayloadTag(element.Tag) {
		refs, err := CollectFragmentReferences(bulkIter)
		if err != nil {
			return nil, fmt.Errorf("collecting fragment references of %v: %v", element.Tag, err)
		}
		return &DataElement{element.Tag, element.VR, refs, element.ValueLength}, nil
	}

	fragments, err := CollectFragments(bulkIter)
	if err != nil {
		return nil, fmt.Errorf("buffering %v: %v", element.Tag, err)
	}
	valueField, err := bufferedValue(fragments, element.VR, order)
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %v", element.Tag, err)
	}
	return &DataElement{element.Tag, element.VR, valueField, element.ValueLength}, nil
}

// bufferedValue decodes the collected fragments of a non-payload bulk
// element into the natural value type for its VR.
func bufferedValue(fragments [][]byte, vr *VR, order binary.ByteOrder) (interface{}, error) {
	switch vr {
	case OBVR, OWVR, UNVR:
		// multi-fragment types concatenate
		return bytes.Join(fragments, nil), nil
	}

	if len(fragments) > 1 {
		return nil, fmt.Errorf("more than 1 fragment found for single fragment VR %v: got %v", vr, len(fragments))
	}
	var buff []byte
	if len(fragments) == 1 {
		buff = fragments[0]
	}

	var valueField interface{}
	switch vr {
	case OLVR:
		valueField = make([]uint32, len(buff)/4)
	case ODVR:
		valueField = make([]float64, len(buff)/8)
	case OFVR:
		valueField = make([]float32, len(buff)/4)
	default:
		return nil, fmt.Errorf("unexpected vr found for bulk data: %v", vr)
	}

	if err := binary.Read(bytes.NewReader(buff), order, valueField); err != nil {
		return nil, fmt.Errorf("decoding buffered value: %v", err)
	}

	return valueField, nil
}
