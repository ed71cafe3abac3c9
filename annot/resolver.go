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
	"github.com/rs/zerolog"

	"github.com/studyview/studyview/dicom"
	"github.com/studyview/studyview/frame"
	"github.com/studyview/studyview/study"
)

// Resolver builds annotation layers against one immutable study index. It
// holds no mutable state of its own, so Resolve may run concurrently for
// any frames, and repeated calls return structurally identical layers.
// Several resolvers over different indexes can coexist; the index travels
// with the resolver, never through a global.
type Resolver struct {
	index *study.Index
	log   zerolog.Logger
}

// NewResolver binds a resolver to an index snapshot. A rescan yields a new
// index and should get a new resolver.
func NewResolver(index *study.Index, log zerolog.Logger) *Resolver {
	return &Resolver{index: index, log: log}
}

// Resolve merges the annotation sources that apply to one frame, in fixed
// stage order: embedded overlays, the image's own graphic annotations,
// presentation states, key object selections. A source referencing this
// image that is absent from the index simply contributes nothing.
func (r *Resolver) Resolve(h frame.Handle) *Layer {
	inst := h.Instance
	layer := &Layer{Frame: h}

	// stage 1: embedded overlay planes
	for _, plane := range inst.OverlayPlanes() {
		bits, err := plane.ReadBits(inst)
		if err != nil {
			r.log.Warn().Str("sop_uid", inst.SOPInstanceUID).
				Uint16("group", plane.Group).Err(err).Msg("overlay unreadable, skipped")
			continue
		}
		layer.Primitives = append(layer.Primitives,
			decodeOverlay(plane, bits, inst.SOPInstanceUID, len(layer.Primitives))...)
	}

	// stage 2: graphic annotations embedded in the image data set
	geo := geometry{rows: inst.Rows, columns: inst.Columns}
	if seq, err := inst.DataSet.Sequence(dicom.GraphicAnnotationSequenceTag); err == nil {
		layer.Primitives = append(layer.Primitives,
			decodeAnnotations(seq, geo, Embedded, inst.SOPInstanceUID, len(layer.Primitives))...)
	}

	seen := make(map[contribution]bool)
	appendNew := func(prims []Primitive) {
		for _, prim := range prims {
			key := contribution{prim.SourceUID, prim.ContentIndex}
			if seen[key] {
				continue
			}
			seen[key] = true
			layer.Primitives = append(layer.Primitives, prim)
		}
	}

	// stage 3: presentation states referencing this image
	for _, pr := range r.index.PresentationStatesFor(inst.SOPInstanceUID) {
		if !pr.FramesInScope(inst.SOPInstanceUID, h.Index) {
			continue
		}
		prGeo := geometry{rows: inst.Rows, columns: inst.Columns, area: &pr.Display}
		appendNew(decodeAnnotations(pr.Annotations, prGeo, PresentationState, pr.SOPInstanceUID, 0))
	}

	// stage 4: key object selections referencing this image
	for _, ko := range r.index.KeyObjectsFor(inst.SOPInstanceUID) {
		appendNew(keyObjectPrimitives(ko, inst.SOPInstanceUID))
	}

	return layer
}

// contribution identifies one primitive of one source document.
type contribution struct {
	sourceUID    string
	contentIndex int
}
