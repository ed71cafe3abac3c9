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

import "github.com/studyview/studyview/study"

// keyObjectPrimitives turns the content items a key object selection holds
// for one image into Text and Measurement primitives. They carry no anchor;
// the layer lists them as non-drawn metadata. Content indices follow the
// item's position in the document so deduplication sees the same identity
// from every frame.
func keyObjectPrimitives(ko *study.KeyObjectSelection, sopUID string) []Primitive {
	var prims []Primitive
	for i, item := range ko.Items {
		if !itemApplies(item, sopUID) {
			continue
		}
		prim := Primitive{
			Provenance:   KeyObject,
			SourceUID:    ko.SOPInstanceUID,
			ContentIndex: i,
			Label:        item.ConceptName,
		}
		switch item.ValueType {
		case "TEXT":
			prim.Kind = KindText
			prim.Text = item.Text
		case "NUM":
			prim.Kind = KindMeasurement
			prim.Value = item.Value
			prim.Unit = item.Unit
		default:
			continue
		}
		prims = append(prims, prim)
	}
	return prims
}

// itemApplies reports whether a content item belongs to the image: either
// it references it directly or, carrying no references of its own, applies
// to the whole selection.
func itemApplies(item study.ContentItem, sopUID string) bool {
	if len(item.RefSOPUIDs) == 0 {
		return true
	}
	for _, uid := range item.RefSOPUIDs {
		if uid == sopUID {
			return true
		}
	}
	return false
}
