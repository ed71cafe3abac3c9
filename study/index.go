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

// Package study catalogs parsed DICOM objects into a cross-referenced,
// immutable index: images by UID and series, presentation states and key
// object selections by the images they reference.
package study

import (
	"sort"

	"github.com/studyview/studyview/dicom"
)

// Index is the immutable result of a scan. All lookups are safe for
// concurrent use. A rescan produces a new Index; existing ones never change.
type Index struct {
	bySOPUID  map[string]*Instance
	bySeries  map[string][]*Instance
	instances []*Instance

	presentationStates []*PresentationState
	keyObjects         []*KeyObjectSelection

	prFor map[string][]*PresentationState
	koFor map[string][]*KeyObjectSelection

	warnings []*ReferenceResolutionWarning
}

// Builder accumulates instances before reference resolution. Not safe for
// concurrent use; Scan serializes adds onto one goroutine.
type Builder struct {
	index *Index
}

func NewBuilder() *Builder {
	return &Builder{index: &Index{
		bySOPUID: make(map[string]*Instance),
		bySeries: make(map[string][]*Instance),
		prFor:    make(map[string][]*PresentationState),
		koFor:    make(map[string][]*KeyObjectSelection),
	}}
}

// AddFile header-parses one file and catalogs it. Failures come back as a
// ParseError and leave the builder unchanged.
func (b *Builder) AddFile(path string) error {
	inst, err := parseFile(path)
	if err != nil {
		return err
	}
	b.add(inst)
	return nil
}

// Add catalogs an already-parsed header.
func (b *Builder) Add(path string, ds *dicom.DataSet) error {
	inst, err := newInstance(path, ds)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}
	b.add(inst)
	return nil
}

func (b *Builder) add(inst *Instance) {
	idx := b.index
	idx.instances = append(idx.instances, inst)
	idx.bySOPUID[inst.SOPInstanceUID] = inst
	if inst.SeriesInstanceUID != "" {
		idx.bySeries[inst.SeriesInstanceUID] = append(idx.bySeries[inst.SeriesInstanceUID], inst)
	}
	switch inst.Kind {
	case KindPresentationState:
		idx.presentationStates = append(idx.presentationStates, newPresentationState(inst))
	case KindKeyObjectSelection:
		idx.keyObjects = append(idx.keyObjects, newKeyObjectSelection(inst))
	}
}

// Build resolves cross references and freezes the index. PR and KO files may
// have been added in any order relative to the images they reference; this
// single pass runs after every add.
func (b *Builder) Build() *Index {
	idx := b.index
	for _, pr := range idx.presentationStates {
		b.resolvePresentationState(pr)
	}
	for _, ko := range idx.keyObjects {
		b.resolveKeyObject(ko)
	}
	for _, insts := range idx.bySeries {
		sortInstances(insts)
	}
	b.index = nil
	return idx
}

func (b *Builder) resolvePresentationState(pr *PresentationState) {
	idx := b.index
	attached := make(map[string]bool)
	attach := func(sopUID string) {
		if attached[sopUID] {
			return
		}
		attached[sopUID] = true
		idx.prFor[sopUID] = append(idx.prFor[sopUID], pr)
	}

	for _, ref := range pr.refs {
		if ref.sopUID != "" {
			if _, ok := idx.bySOPUID[ref.sopUID]; !ok {
				idx.warnings = append(idx.warnings, &ReferenceResolutionWarning{
					SourceUID: pr.SOPInstanceUID, SourceKind: KindPresentationState, MissingUID: ref.sopUID,
				})
				continue
			}
			attach(ref.sopUID)
			continue
		}
		// series-level reference
		members, ok := idx.bySeries[ref.seriesUID]
		if !ok {
			idx.warnings = append(idx.warnings, &ReferenceResolutionWarning{
				SourceUID: pr.SOPInstanceUID, SourceKind: KindPresentationState, MissingUID: ref.seriesUID,
			})
			continue
		}
		for _, inst := range members {
			if inst.Kind == KindImage {
				attach(inst.SOPInstanceUID)
			}
		}
	}
}

func (b *Builder) resolveKeyObject(ko *KeyObjectSelection) {
	idx := b.index
	for _, uid := range ko.ReferencedSOPUIDs() {
		if _, ok := idx.bySOPUID[uid]; !ok {
			idx.warnings = append(idx.warnings, &ReferenceResolutionWarning{
				SourceUID: ko.SOPInstanceUID, SourceKind: KindKeyObjectSelection, MissingUID: uid,
			})
			continue
		}
		idx.koFor[uid] = append(idx.koFor[uid], ko)
	}
}

// sortInstances orders by Instance Number, falling back to file path so the
// order stays deterministic when numbers collide or are absent.
func sortInstances(insts []*Instance) {
	sort.SliceStable(insts, func(i, j int) bool {
		if insts[i].InstanceNumber != insts[j].InstanceNumber {
			return insts[i].InstanceNumber < insts[j].InstanceNumber
		}
		return insts[i].Path < insts[j].Path
	})
}

// Instance looks up any indexed object by SOP Instance UID.
func (idx *Index) Instance(sopUID string) (*Instance, bool) {
	inst, ok := idx.bySOPUID[sopUID]
	return inst, ok
}

// Instances returns every indexed object in add order.
func (idx *Index) Instances() []*Instance {
	return idx.instances
}

// InstancesInSeries returns the series members ordered by Instance Number
// with file path as tiebreaker.
func (idx *Index) InstancesInSeries(seriesUID string) []*Instance {
	return idx.bySeries[seriesUID]
}

// SeriesUIDs returns the distinct series in the index, sorted.
func (idx *Index) SeriesUIDs() []string {
	uids := make([]string, 0, len(idx.bySeries))
	for uid := range idx.bySeries {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// PresentationStatesFor returns the presentation states referencing the
// given image, in add order.
func (idx *Index) PresentationStatesFor(sopUID string) []*PresentationState {
	return idx.prFor[sopUID]
}

// KeyObjectsFor returns the key object selections referencing the given
// image, in add order.
func (idx *Index) KeyObjectsFor(sopUID string) []*KeyObjectSelection {
	return idx.koFor[sopUID]
}

// Warnings returns the dangling references recorded during Build.
func (idx *Index) Warnings() []*ReferenceResolutionWarning {
	return idx.warnings
}
