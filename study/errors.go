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
	"errors"
	"fmt"
)

// ErrMissingTag reports a mandatory identity tag absent from a header.
var ErrMissingTag = errors.New("study: mandatory tag missing")

// ParseError wraps a per-file header parse failure. Scan captures these in
// the result instead of aborting the batch.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("study: parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReferenceResolutionWarning records a presentation state or key object
// selection referencing a SOP Instance UID that is not in the index. The
// reference contributes nothing; it never fails resolution.
type ReferenceResolutionWarning struct {
	// SourceUID identifies the PR or KO carrying the dangling reference.
	SourceUID  string
	SourceKind Kind
	MissingUID string
}

func (w *ReferenceResolutionWarning) Error() string {
	return fmt.Sprintf("study: %s %s references absent SOP instance %s",
		w.SourceKind, w.SourceUID, w.MissingUID)
}
