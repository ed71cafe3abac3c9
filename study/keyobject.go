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

package study

import (
	"github.com/studyview/studyview/dicom"
)

// ContentItem is one entry of a key object selection's content tree,
// flattened. Text items carry Text; numeric items carry Value and Unit.
type ContentItem struct {
	ValueType   string // "TEXT", "NUM", "IMAGE", ...
	ConceptName string
	Text        string
	Value       float64
	Unit        string

	// RefSOPUIDs are the SOP instances this item points at. Items without
	// references inherit the document-level selection.
	RefSOPUIDs []string
}

// KeyObjectSelection is a parsed key object selection document: a flat list
// of content items plus the union of referenced SOP instances.
type KeyObjectSelection struct {
	SOPInstanceUID string
	Title          string
	Items          []ContentItem

	// refSOPUIDs is the union of every referenced SOP instance in document
	// order, deduplicated.
	refSOPUIDs []string
}

// newKeyObjectSelection walks the content sequence of a KO header. The tree
// is flattened depth-first so item order follows document order.
func newKeyObjectSelection(inst *Instance) *KeyObjectSelection {
	ds := inst.DataSet
	ko := &KeyObjectSelection{SOPInstanceUID: inst.SOPInstanceUID}
	ko.Title = conceptName(ds)

	seen := make(map[string]bool)
	if seq, err := ds.Sequence(dicom.ContentSequenceTag); err == nil {
		ko.walk(seq, seen)
	}
	return ko
}

func (ko *KeyObjectSelection) walk(seq *dicom.Sequence, seen map[string]bool) {
	for _, item := range seq.Items {
		valueType, _ := item.StringValue(dicom.ValueTypeTag)

		ci := ContentItem{
			ValueType:   valueType,
			ConceptName: conceptName(item),
		}
		switch valueType {
		case "TEXT":
			ci.Text, _ = item.StringValue(dicom.TextValueTag)
			ko.Items = append(ko.Items, ci)
		case "NUM":
			if mv, err := item.Sequence(dicom.MeasuredValueSequenceTag); err == nil && len(mv.Items) > 0 {
				measured := mv.Items[0]
				ci.Value, _ = measured.Float(dicom.NumericValueTag)
				if units, err := measured.Sequence(dicom.MeasurementUnitsCodeSequenceTag); err == nil && len(units.Items) > 0 {
					ci.Unit, _ = units.Items[0].StringValue(dicom.CodeValueTag)
				}
			}
			ko.Items = append(ko.Items, ci)
		case "IMAGE", "COMPOSITE":
			// selection entries: record the references only
		}

		if refSeq, err := item.Sequence(dicom.ReferencedSOPSequenceTag); err == nil {
			for _, ref := range refSeq.Items {
				uid, err := ref.StringValue(dicom.ReferencedSOPInstanceUIDTag)
				if err != nil || uid == "" {
					continue
				}
				if len(ko.Items) > 0 && (valueType == "TEXT" || valueType == "NUM") {
					last := &ko.Items[len(ko.Items)-1]
					last.RefSOPUIDs = append(last.RefSOPUIDs, uid)
				}
				if !seen[uid] {
					seen[uid] = true
					ko.refSOPUIDs = append(ko.refSOPUIDs, uid)
				}
			}
		}
		if nested, err := item.Sequence(dicom.ContentSequenceTag); err == nil {
			ko.walk(nested, seen)
		}
	}
}

// ReferencedSOPUIDs returns every SOP instance the document references, in
// document order.
func (ko *KeyObjectSelection) ReferencedSOPUIDs() []string {
	return ko.refSOPUIDs
}

// ItemsFor returns the content items attached to a SOP instance: items that
// reference it directly plus unreferenced items, which apply to the whole
// selection.
func (ko *KeyObjectSelection) ItemsFor(sopUID string) []ContentItem {
	var out []ContentItem
	for _, item := range ko.Items {
		if len(item.RefSOPUIDs) == 0 {
			out = append(out, item)
			continue
		}
		for _, uid := range item.RefSOPUIDs {
			if uid == sopUID {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func conceptName(ds *dicom.DataSet) string {
	seq, err := ds.Sequence(dicom.ConceptNameCodeSequenceTag)
	if err != nil || len(seq.Items) == 0 {
		return ""
	}
	name, _ := seq.Items[0].StringValue(dicom.CodeMeaningTag)
	return name
}
