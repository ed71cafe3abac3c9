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

package frame

import "fmt"

// MaterializationError reports a frame whose byte range could not be read or
// decoded: out-of-bounds frame index, a fragment range past the end of the
// file, or a corrupt compressed stream. It is scoped to the one requesting
// call; the index and other frames stay valid.
type MaterializationError struct {
	Handle Handle
	Err    error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("frame: materializing %s: %v", e.Handle, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// UnsupportedTransferSyntaxError reports that no codec is registered for the
// instance's transfer syntax. A blank image is never substituted.
type UnsupportedTransferSyntaxError struct {
	TransferSyntaxUID string
}

func (e *UnsupportedTransferSyntaxError) Error() string {
	return fmt.Sprintf("frame: no codec registered for transfer syntax %s", e.TransferSyntaxUID)
}

// OutOfMemoryError reports that one frame alone exceeds the configured cache
// byte budget, so materializing it cannot be made to fit by evicting.
type OutOfMemoryError struct {
	Needed int64
	Budget int64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("frame: frame of %d bytes exceeds the %d byte budget", e.Needed, e.Budget)
}
