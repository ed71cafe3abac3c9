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

import (
	"errors"

	"github.com/cocosip/go-dicom-codec/codec"

	"github.com/studyview/studyview/dicom"
)

// Registry maps transfer syntax UIDs to pixel codecs. The native
// (uncompressed) syntaxes are pre-registered; compressed syntaxes decode
// through whatever codec.Codec implementations the host registers.
type Registry struct {
	codecs map[string]codec.Codec
}

// NewRegistry returns a registry with the native transfer syntaxes wired.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]codec.Codec)}
	for _, uid := range []string{
		dicom.ImplicitVRLittleEndianUID,
		dicom.ExplicitVRLittleEndianUID,
		dicom.ExplicitVRBigEndianUID,
	} {
		r.Register(rawCodec{uid: uid})
	}
	return r
}

// Register adds a codec, keyed by its UID. Re-registering a UID replaces the
// previous codec.
func (r *Registry) Register(c codec.Codec) {
	r.codecs[c.UID()] = c
}

// Lookup returns the codec for a transfer syntax UID.
func (r *Registry) Lookup(transferSyntaxUID string) (codec.Codec, bool) {
	c, ok := r.codecs[transferSyntaxUID]
	return c, ok
}

// rawCodec passes native pixel bytes through unchanged. Frame boundaries in
// native syntaxes are pure offset arithmetic; there is nothing to decode.
type rawCodec struct {
	uid string
}

func (c rawCodec) Decode(data []byte) (*codec.DecodeResult, error) {
	return &codec.DecodeResult{PixelData: data}, nil
}

func (c rawCodec) Encode(params codec.EncodeParams) ([]byte, error) {
	if params.PixelData == nil {
		return nil, errors.New("frame: no pixel data to encode")
	}
	return params.PixelData, nil
}

func (c rawCodec) UID() string { return c.uid }

func (c rawCodec) Name() string { return "native" }
