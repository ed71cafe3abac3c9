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
	"fmt"

	"github.com/studyview/studyview/study"
)

// decodeOverlay translates an overlay bitmap into primitives: each
// horizontal run of set bits becomes a two-point polyline, single set bits
// become points. Overlay origin is applied so coordinates land in image
// pixel space.
func decodeOverlay(plane study.OverlayPlane, bits []byte, sourceUID string, nextIndex int) []Primitive {
	var prims []Primitive
	for row := 0; row < plane.Rows; row++ {
		col := 0
		for col < plane.Columns {
			if bits[row*plane.Columns+col] == 0 {
				col++
				continue
			}
			runStart := col
			for col < plane.Columns && bits[row*plane.Columns+col] == 1 {
				col++
			}
			prims = append(prims, runPrimitive(plane, row, runStart, col-1, sourceUID, nextIndex+len(prims)))
		}
	}
	return prims
}

func runPrimitive(plane study.OverlayPlane, row, firstCol, lastCol int, sourceUID string, contentIndex int) Primitive {
	y := float64(plane.OriginRow + row)
	start := Point{X: float64(plane.OriginColumn + firstCol), Y: y}
	label := fmt.Sprintf("overlay %04X", plane.Group)

	if firstCol == lastCol {
		return Primitive{
			Kind:         KindPoint,
			Provenance:   Embedded,
			SourceUID:    sourceUID,
			ContentIndex: contentIndex,
			Label:        label,
			Points:       []Point{start},
		}
	}
	end := Point{X: float64(plane.OriginColumn + lastCol), Y: y}
	return Primitive{
		Kind:         KindPolyline,
		Provenance:   Embedded,
		SourceUID:    sourceUID,
		ContentIndex: contentIndex,
		Label:        label,
		Points:       []Point{start, end},
	}
}

// RasterizeOverlay renders overlay-derived primitives back into a bitmap of
// the given geometry, one byte per pixel. Points and horizontal polylines
// produced by decodeOverlay rasterize exactly to the source bits.
func RasterizeOverlay(prims []Primitive, plane study.OverlayPlane) []byte {
	bits := make([]byte, plane.Rows*plane.Columns)
	set := func(x, y float64) {
		col := int(x) - plane.OriginColumn
		row := int(y) - plane.OriginRow
		if row >= 0 && row < plane.Rows && col >= 0 && col < plane.Columns {
			bits[row*plane.Columns+col] = 1
		}
	}
	for _, prim := range prims {
		switch prim.Kind {
		case KindPoint:
			set(prim.Points[0].X, prim.Points[0].Y)
		case KindPolyline:
			start, end := prim.Points[0], prim.Points[1]
			for x := start.X; x <= end.X; x++ {
				set(x, start.Y)
			}
		}
	}
	return bits
}
