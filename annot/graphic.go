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

package annot

import (
	"math"
	"strings"

	"github.com/studyview/studyview/dicom"
	"github.com/studyview/studyview/study"
)

// geometry is the coordinate context graphic data is normalized against:
// the image raster plus, when a presentation state supplies one, its
// displayed area selection.
type geometry struct {
	rows, columns int
	area          *study.DisplaySettings
}

// toPixels maps one coordinate pair into image pixel space. PIXEL data
// passes through. NORMALIZED fractions scale by the raster size. DISPLAY
// fractions map through the displayed area selection, falling back to the
// raster when the presentation state selects none.
func (g geometry) toPixels(x, y float64, units string) Point {
	switch strings.TrimSpace(units) {
	case "NORMALIZED":
		return Point{X: x * float64(g.columns), Y: y * float64(g.rows)}
	case "DISPLAY":
		if g.area != nil && g.area.HasDisplayedArea {
			tl, br := g.area.AreaTopLeft, g.area.AreaBottomRight
			return Point{
				X: float64(tl[0]) + x*float64(br[0]-tl[0]),
				Y: float64(tl[1]) + y*float64(br[1]-tl[1]),
			}
		}
		return Point{X: x * float64(g.columns), Y: y * float64(g.rows)}
	}
	return Point{X: x, Y: y}
}

// decodeAnnotations turns a GraphicAnnotationSequence into primitives in
// document order. nextIndex seeds the content indices so a source object's
// primitives number consecutively across annotation items.
func decodeAnnotations(seq *dicom.Sequence, geo geometry, prov Provenance, sourceUID string, nextIndex int) []Primitive {
	var prims []Primitive
	if seq == nil {
		return nil
	}
	for _, item := range seq.Items {
		layerName, _ := item.StringValue(dicom.GraphicLayerTag)

		if graphics, err := item.Sequence(dicom.GraphicObjectSequenceTag); err == nil {
			for _, obj := range graphics.Items {
				prim, ok := decodeGraphicObject(obj, geo)
				if !ok {
					continue
				}
				prim.Provenance = prov
				prim.SourceUID = sourceUID
				prim.ContentIndex = nextIndex + len(prims)
				prim.Label = layerName
				prims = append(prims, prim)
			}
		}
		if texts, err := item.Sequence(dicom.TextObjectSequenceTag); err == nil {
			for _, obj := range texts.Items {
				prim, ok := decodeTextObject(obj, geo)
				if !ok {
					continue
				}
				prim.Provenance = prov
				prim.SourceUID = sourceUID
				prim.ContentIndex = nextIndex + len(prims)
				prim.Label = layerName
				prims = append(prims, prim)
			}
		}
	}
	return prims
}

func decodeGraphicObject(obj *dicom.DataSet, geo geometry) (Primitive, bool) {
	graphicType, err := obj.StringValue(dicom.GraphicTypeTag)
	if err != nil {
		return Primitive{}, false
	}
	units, _ := obj.StringValue(dicom.GraphicAnnotationUnitsTag)
	data, err := obj.Floats(dicom.GraphicDataTag)
	if err != nil || len(data) < 2 {
		return Primitive{}, false
	}
	points := make([]Point, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		points = append(points, geo.toPixels(data[i], data[i+1], units))
	}

	var prim Primitive
	switch strings.TrimSpace(graphicType) {
	case "POINT":
		prim = Primitive{Kind: KindPoint, Points: points[:1]}
	case "POLYLINE", "INTERPOLATED":
		if len(points) == 2 {
			prim = Primitive{Kind: KindLine, Points: points}
		} else {
			prim = Primitive{Kind: KindPolyline, Points: points}
		}
	case "CIRCLE":
		// two points: center, then a point on the circumference
		if len(points) != 2 {
			return Primitive{}, false
		}
		prim = Primitive{
			Kind:   KindCircle,
			Center: points[0],
			Radius: math.Hypot(points[1].X-points[0].X, points[1].Y-points[0].Y),
		}
	case "ELLIPSE":
		// four points: endpoints of the major axis, then the minor axis
		if len(points) != 4 {
			return Primitive{}, false
		}
		prim = Primitive{Kind: KindEllipse, Points: points}
	default:
		return Primitive{}, false
	}

	if filled, err := obj.StringValue(dicom.GraphicFilledTag); err == nil {
		prim.Filled = strings.TrimSpace(filled) == "Y"
	}
	return prim, true
}

// decodeTextObject builds a Text primitive anchored at the anchor point or,
// failing that, the bounding box top left corner.
func decodeTextObject(obj *dicom.DataSet, geo geometry) (Primitive, bool) {
	text, err := obj.StringValue(dicom.UnformattedTextValueTag)
	if err != nil || text == "" {
		return Primitive{}, false
	}
	prim := Primitive{Kind: KindText, Text: text}

	if anchor, err := obj.Floats(dicom.AnchorPointTag); err == nil && len(anchor) == 2 {
		units, _ := obj.StringValue(dicom.AnchorPointAnnotationUnitsTag)
		p := geo.toPixels(anchor[0], anchor[1], units)
		prim.Anchor = &p
		return prim, true
	}
	if tlhc, err := obj.Floats(dicom.BoundingBoxTopLeftHandCornerTag); err == nil && len(tlhc) == 2 {
		units, _ := obj.StringValue(dicom.BoundingBoxAnnotationUnitsTag)
		p := geo.toPixels(tlhc[0], tlhc[1], units)
		prim.Anchor = &p
	}
	return prim, true
}
