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

// Package annot merges the three annotation stores of a DICOM study into
// one ordered layer per frame: overlay planes and graphic annotations
// embedded in the image itself, softcopy presentation states, and key
// object selection documents.
package annot

import (
	"github.com/studyview/studyview/frame"
)

// Provenance tags where a primitive came from. Layer order is embedded
// first, then presentation state, then key object; later entries draw on
// top.
type Provenance int

const (
	Embedded Provenance = iota
	PresentationState
	KeyObject
)

func (p Provenance) String() string {
	switch p {
	case Embedded:
		return "embedded"
	case PresentationState:
		return "presentation state"
	case KeyObject:
		return "key object"
	}
	return "unknown"
}

// Kind discriminates the primitive union.
type Kind int

const (
	KindLine Kind = iota
	KindPolyline
	KindCircle
	KindEllipse
	KindPoint
	KindText
	KindMeasurement
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindPolyline:
		return "polyline"
	case KindCircle:
		return "circle"
	case KindEllipse:
		return "ellipse"
	case KindPoint:
		return "point"
	case KindText:
		return "text"
	case KindMeasurement:
		return "measurement"
	}
	return "unknown"
}

// Point is a position in image pixel space. Coordinates from other spaces
// are normalized before a primitive is built.
type Point struct {
	X, Y float64
}

// Primitive is one drawable or metadata annotation entry. Which fields are
// meaningful depends on Kind:
//
//	Line         Points[0], Points[1]
//	Polyline     Points
//	Circle       Center, Radius
//	Ellipse      Points, the endpoints of the major then the minor axis
//	Point        Points[0]
//	Text         Text, optionally Anchor
//	Measurement  Label, Value, Unit, optionally Anchor
//
// A Text or Measurement without an Anchor is not drawn on the image; it is
// side-panel metadata carried in the layer.
type Primitive struct {
	Kind       Kind
	Provenance Provenance

	// SourceUID is the SOP Instance UID of the contributing object: the
	// image itself for embedded annotations, otherwise the PR or KO.
	SourceUID string
	// ContentIndex is the primitive's position within its source document.
	// (SourceUID, ContentIndex) identifies a contribution for deduplication.
	ContentIndex int

	// Label carries the graphic layer name or concept name.
	Label string

	Points []Point
	Center Point
	Radius float64
	Filled bool

	Text   string
	Anchor *Point

	Value float64
	Unit  string
}

// Layer is the merged annotation set of one frame, ordered by provenance
// stage and, within a stage, by source document order. It is recomputed per
// call and never cached here; the caller may cache it keyed on the handle.
type Layer struct {
	Frame      frame.Handle
	Primitives []Primitive
}

// ByProvenance returns the layer's primitives from one source kind, in
// layer order.
func (l *Layer) ByProvenance(p Provenance) []Primitive {
	var out []Primitive
	for _, prim := range l.Primitives {
		if prim.Provenance == p {
			out = append(out, prim)
		}
	}
	return out
}
