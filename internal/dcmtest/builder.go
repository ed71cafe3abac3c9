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

// Package dcmtest builds synthetic DICOM part-10 files for tests. Elements
// are encoded in the explicit VR little endian layout; for the deflated
// transfer syntax the assembled data set is compressed after the file meta
// group. Tests that need other layouts declare them in the file meta group
// and encode the main data set themselves.
package dcmtest

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
)

const deflatedUID = "1.2.840.10008.1.2.1.99"

// Element is one data element to encode. Value types by VR:
// string or []string for text VRs, uint16/[]uint16 for US, int16/[]int16
// for SS, int32/[]int32 for SL, float32/[]float32 for FL, uint32/[]uint32
// for UL, []byte for OB/OW/UN, []Item for SQ.
type Element struct {
	Group, Number uint16
	VR            string
	Value         interface{}
}

// El is shorthand for one element.
func El(group, number uint16, vr string, value interface{}) Element {
	return Element{Group: group, Number: number, VR: vr, Value: value}
}

// Item is one sequence item: an ordered list of elements.
type Item []Element

// Fragments marks pixel data for the encapsulated format: an undefined
// length element whose value is a Basic Offset Table followed by fragments.
type Fragments struct {
	OffsetTable []uint32
	Frames      [][]byte
}

// File assembles a part-10 file: 128-byte preamble, "DICM", a file meta
// group declaring transferSyntaxUID, then the given elements in order.
func File(transferSyntaxUID string, elements ...Element) []byte {
	var meta bytes.Buffer
	writeElement(&meta, Element{0x0002, 0x0001, "OB", []byte{0, 1}})
	writeElement(&meta, Element{0x0002, 0x0002, "UI", "1.2.840.10008.5.1.4.1.1.7"})
	writeElement(&meta, Element{0x0002, 0x0003, "UI", "1.2.3.4.5.6.7.8.9"})
	writeElement(&meta, Element{0x0002, 0x0010, "UI", transferSyntaxUID})

	var body bytes.Buffer
	for _, elem := range elements {
		writeElement(&body, elem)
	}
	payload := body.Bytes()
	if transferSyntaxUID == deflatedUID {
		payload = deflate(payload)
	}

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	writeElement(&out, Element{0x0002, 0x0000, "UL", uint32(meta.Len())})
	out.Write(meta.Bytes())
	out.Write(payload)
	return out.Bytes()
}

func deflate(data []byte) []byte {
	var b bytes.Buffer
	fw, err := flate.NewWriter(&b, flate.DefaultCompression)
	if err != nil {
		panic(err)
	}
	if _, err := fw.Write(data); err != nil {
		panic(err)
	}
	if err := fw.Close(); err != nil {
		panic(err)
	}
	return b.Bytes()
}

func writeElement(w *bytes.Buffer, e Element) {
	binary.Write(w, binary.LittleEndian, e.Group)
	binary.Write(w, binary.LittleEndian, e.Number)
	w.WriteString(e.VR)

	if frags, ok := e.Value.(Fragments); ok {
		// undefined length + item-per-fragment encoding
		w.Write([]byte{0, 0})
		binary.Write(w, binary.LittleEndian, uint32(0xFFFFFFFF))
		writeFragment(w, encodeOffsetTable(frags.OffsetTable))
		for _, f := range frags.Frames {
			writeFragment(w, f)
		}
		binary.Write(w, binary.LittleEndian, uint16(0xFFFE))
		binary.Write(w, binary.LittleEndian, uint16(0xE0DE))
		binary.Write(w, binary.LittleEndian, uint32(0))
		return
	}

	value := encodeValue(e)
	if has32BitLength(e.VR) {
		w.Write([]byte{0, 0})
		binary.Write(w, binary.LittleEndian, uint32(len(value)))
	} else {
		binary.Write(w, binary.LittleEndian, uint16(len(value)))
	}
	w.Write(value)
}

func writeFragment(w *bytes.Buffer, data []byte) {
	binary.Write(w, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(w, binary.LittleEndian, uint16(0xE000))
	binary.Write(w, binary.LittleEndian, uint32(len(data)))
	w.Write(data)
}

func encodeOffsetTable(offsets []uint32) []byte {
	var b bytes.Buffer
	for _, o := range offsets {
		binary.Write(&b, binary.LittleEndian, o)
	}
	return b.Bytes()
}

func encodeValue(e Element) []byte {
	var b bytes.Buffer
	switch v := e.Value.(type) {
	case nil:
	case string:
		b.WriteString(v)
	case []string:
		for i, s := range v {
			if i > 0 {
				b.WriteByte('\\')
			}
			b.WriteString(s)
		}
	case []byte:
		b.Write(v)
	case uint16:
		binary.Write(&b, binary.LittleEndian, v)
	case []uint16:
		binary.Write(&b, binary.LittleEndian, v)
	case int16:
		binary.Write(&b, binary.LittleEndian, v)
	case []int16:
		binary.Write(&b, binary.LittleEndian, v)
	case int32:
		binary.Write(&b, binary.LittleEndian, v)
	case []int32:
		binary.Write(&b, binary.LittleEndian, v)
	case uint32:
		binary.Write(&b, binary.LittleEndian, v)
	case []uint32:
		binary.Write(&b, binary.LittleEndian, v)
	case float32:
		binary.Write(&b, binary.LittleEndian, v)
	case []float32:
		binary.Write(&b, binary.LittleEndian, v)
	case []Item:
		for _, item := range v {
			var itemBytes bytes.Buffer
			for _, elem := range item {
				writeElement(&itemBytes, elem)
			}
			binary.Write(&b, binary.LittleEndian, uint16(0xFFFE))
			binary.Write(&b, binary.LittleEndian, uint16(0xE000))
			binary.Write(&b, binary.LittleEndian, uint32(itemBytes.Len()))
			b.Write(itemBytes.Bytes())
		}
	default:
		panic(fmt.Sprintf("dcmtest: unsupported value type %T", e.Value))
	}

	out := b.Bytes()
	if len(out)%2 == 1 {
		// values are padded to even length; UI pads with NUL, text with space
		if e.VR == "UI" {
			out = append(out, 0x00)
		} else {
			out = append(out, ' ')
		}
	}
	return out
}

func has32BitLength(vr string) bool {
	switch vr {
	case "OB", "OD", "OF", "OL", "OW", "SQ", "UC", "UR", "UT", "UN":
		return true
	}
	return false
}
