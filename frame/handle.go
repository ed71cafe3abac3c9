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

// Package frame materializes single frames of multi-frame DICOM instances:
// it maps a frame index to its byte range in the source file, decodes only
// that range, and keeps decoded frames in a byte-bounded LRU cache.
package frame

import (
	"fmt"

	"github.com/studyview/studyview/study"
)

// Handle identifies one displayable frame of an indexed instance. It is a
// value type usable as a cache and coalescing key.
type Handle struct {
	Instance *study.Instance
	// Index is the 0-based frame number; always less than the instance's
	// NumberOfFrames.
	Index int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Instance.SOPInstanceUID, h.Index)
}

// key is the cache and singleflight identity of the handle. Two handles of
// the same SOP instance and frame coalesce even if the instance was indexed
// twice from different paths.
func (h Handle) key() string {
	return h.String()
}

// PixelBuffer holds the decoded samples of one frame. Buffers are owned by
// the splitter's cache and may be evicted at any time; holders keep using
// their reference, eviction only drops the cache's.
type PixelBuffer struct {
	// Data holds samples in row-major order. For native transfer syntaxes
	// the sample byte order follows the source transfer syntax.
	Data []byte

	Rows, Columns             int
	BitsPerSample             int
	SamplesPerPixel           int
	PhotometricInterpretation string
}

// Size returns the buffer's memory footprint in bytes.
func (b *PixelBuffer) Size() int64 {
	return int64(len(b.Data))
}
