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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cocosip/go-dicom-codec/codec"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/studyview/studyview/dicom"
	"github.com/studyview/studyview/study"
)

// DefaultCacheBytes bounds the frame cache when Options leaves it zero.
const DefaultCacheBytes = 256 << 20

// Options tune a Splitter. The zero value is usable.
type Options struct {
	// CacheBytes is the frame cache budget. Frames larger than the budget
	// fail with OutOfMemoryError rather than thrashing the cache.
	CacheBytes int64
	// Codecs defaults to a registry with only the native syntaxes.
	Codecs *Registry
	Log    zerolog.Logger
}

// Splitter exposes instances as independently materializable frames.
// Materialize is safe for concurrent use; concurrent calls for the same
// handle coalesce into one decode.
type Splitter struct {
	codecs *Registry
	cache  *cache
	group  singleflight.Group
	log    zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*decodeState
}

// decodeState tracks the callers coalesced onto one frame's decode. The
// decode runs under its own context, canceled when the last caller leaves,
// so abandoned work stops instead of running to completion unobserved.
type decodeState struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewSplitter(opts Options) *Splitter {
	if opts.CacheBytes <= 0 {
		opts.CacheBytes = DefaultCacheBytes
	}
	if opts.Codecs == nil {
		opts.Codecs = NewRegistry()
	}
	return &Splitter{
		codecs:   opts.Codecs,
		cache:    newCache(opts.CacheBytes),
		log:      opts.Log,
		inflight: make(map[string]*decodeState),
	}
}

// Frames enumerates the handles of an instance: one per frame, exactly one
// for single-frame and frame-count-less objects.
func (s *Splitter) Frames(inst *study.Instance) ([]Handle, error) {
	if len(inst.PixelRefs) == 0 {
		return nil, fmt.Errorf("frame: instance %s has no pixel data", inst.SOPInstanceUID)
	}
	n := inst.NumberOfFrames
	if n < 1 {
		n = 1
	}
	handles := make([]Handle, n)
	for i := range handles {
		handles[i] = Handle{Instance: inst, Index: i}
	}
	return handles, nil
}

// CachedBytes reports the bytes currently held by the frame cache.
func (s *Splitter) CachedBytes() int64 {
	return s.cache.resident()
}

// Materialize decodes the one frame the handle names, reading only that
// frame's byte range from the source file. Results come from the cache when
// possible. Cancellation via ctx abandons the wait; the shared decode keeps
// running while any coalesced caller remains and is canceled once the last
// one leaves, so scrubbing past frames does not pile up background decodes.
func (s *Splitter) Materialize(ctx context.Context, h Handle) (*PixelBuffer, error) {
	if err := validateHandle(h); err != nil {
		return nil, err
	}
	key := h.key()
	if buf, ok := s.cache.get(key); ok {
		return buf, nil
	}

	start := time.Now()
	st := s.join(key)
	defer s.leave(key, st)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// a coalesced predecessor may have filled the cache meanwhile
		if buf, ok := s.cache.get(key); ok {
			return buf, nil
		}
		buf, err := s.materialize(st.ctx, h)
		if err != nil {
			return nil, err
		}
		if err := st.ctx.Err(); err != nil {
			// every caller left while the decode ran; drop the result
			return nil, err
		}
		s.cache.add(key, buf)
		return buf, nil
	})

	select {
	case <-ctx.Done():
		MaterializeDuration.WithLabelValues("canceled").Observe(time.Since(start).Seconds())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			MaterializeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return nil, res.Err
		}
		MaterializeDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		return res.Val.(*PixelBuffer), nil
	}
}

// join registers a caller for the frame's decode, starting a decode context
// on the first one.
func (s *Splitter) join(key string) *decodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.inflight[key]
	if st == nil {
		ctx, cancel := context.WithCancel(context.Background())
		st = &decodeState{ctx: ctx, cancel: cancel}
		s.inflight[key] = st
	}
	st.waiters++
	return st
}

// leave deregisters a caller. The last one out cancels the decode context
// and forgets the singleflight key so a later request starts fresh.
func (s *Splitter) leave(key string, st *decodeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.waiters--
	if st.waiters > 0 {
		return
	}
	st.cancel()
	if s.inflight[key] == st {
		delete(s.inflight, key)
	}
	s.group.Forget(key)
}

func validateHandle(h Handle) error {
	n := h.Instance.NumberOfFrames
	if n < 1 {
		n = 1
	}
	if h.Index < 0 || h.Index >= n {
		return &MaterializationError{Handle: h,
			Err: fmt.Errorf("frame index out of range [0, %d)", n)}
	}
	return nil
}

func (s *Splitter) materialize(ctx context.Context, h Handle) (*PixelBuffer, error) {
	inst := h.Instance

	if dicom.IsNativeTransferSyntax(inst.TransferSyntaxUID) {
		return s.materializeNative(ctx, h)
	}

	c, ok := s.codecs.Lookup(inst.TransferSyntaxUID)
	if !ok {
		return nil, &UnsupportedTransferSyntaxError{TransferSyntaxUID: inst.TransferSyntaxUID}
	}
	data, err := s.frameBytes(ctx, h)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.Decode(data)
	if err != nil {
		return nil, &MaterializationError{Handle: h, Err: err}
	}
	buf := bufferFromResult(inst, res)
	if buf.Size() > s.cache.budget {
		return nil, &OutOfMemoryError{Needed: buf.Size(), Budget: s.cache.budget}
	}
	s.log.Debug().Stringer("frame", h).Int64("bytes", buf.Size()).
		Str("codec", c.Name()).Msg("frame decoded")
	return buf, nil
}

// materializeNative reads one fixed-size frame straight out of the
// contiguous pixel data region.
func (s *Splitter) materializeNative(ctx context.Context, h Handle) (*PixelBuffer, error) {
	inst := h.Instance
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := inst.FrameSize()
	if size <= 0 {
		return nil, &MaterializationError{Handle: h, Err: errors.New("zero frame size")}
	}
	if size > s.cache.budget {
		return nil, &OutOfMemoryError{Needed: size, Budget: s.cache.budget}
	}
	if len(inst.PixelRefs) != 1 {
		return nil, &MaterializationError{Handle: h,
			Err: fmt.Errorf("native pixel data in %d regions, want 1", len(inst.PixelRefs))}
	}
	region := inst.PixelRefs[0].Reference
	offset := int64(h.Index) * size
	if offset+size > region.Length {
		return nil, &MaterializationError{Handle: h,
			Err: fmt.Errorf("frame range [%d, %d) outside pixel data of %d bytes",
				offset, offset+size, region.Length)}
	}
	data, err := inst.ReadRegion(dicom.ByteRegion{Offset: region.Offset + offset, Length: size})
	if err != nil {
		return nil, &MaterializationError{Handle: h, Err: err}
	}
	s.log.Debug().Stringer("frame", h).Int64("bytes", size).Msg("native frame read")
	return &PixelBuffer{
		Data:                      data,
		Rows:                      inst.Rows,
		Columns:                   inst.Columns,
		BitsPerSample:             inst.BitsAllocated,
		SamplesPerPixel:           inst.SamplesPerPixel,
		PhotometricInterpretation: inst.PhotometricInterpretation,
	}, nil
}

// frameBytes concatenates the encapsulated fragments belonging to the
// handle's frame. The first pixel data reference is the Basic Offset Table;
// the rest are fragments in file order.
func (s *Splitter) frameBytes(ctx context.Context, h Handle) ([]byte, error) {
	inst := h.Instance
	if len(inst.PixelRefs) < 2 {
		return nil, &MaterializationError{Handle: h, Err: errors.New("encapsulated pixel data has no fragments")}
	}
	fragments := inst.PixelRefs[1:]
	n := inst.NumberOfFrames
	if n < 1 {
		n = 1
	}

	first, last, err := s.fragmentRange(h, fragments, n)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	for _, ref := range fragments[first:last] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := inst.ReadRegion(ref.Reference)
		if err != nil {
			return nil, &MaterializationError{Handle: h, Err: err}
		}
		out.Write(data)
	}
	return out.Bytes(), nil
}

// fragmentRange maps the frame index to [first, last) fragment indices.
func (s *Splitter) fragmentRange(h Handle, fragments []dicom.BulkDataReference, frames int) (int, int, error) {
	// the common layouts need no offset table
	if frames == 1 {
		return 0, len(fragments), nil
	}
	if len(fragments) == frames {
		return h.Index, h.Index + 1, nil
	}

	bot, err := s.offsetTable(h)
	if err != nil {
		return 0, 0, err
	}
	if len(bot) != frames {
		return 0, 0, &MaterializationError{Handle: h,
			Err: fmt.Errorf("%d fragments for %d frames and offset table of %d entries",
				len(fragments), frames, len(bot))}
	}

	// fragment item positions relative to the first byte after the offset
	// table item, as Basic Offset Table entries are defined
	const itemHeader = 8
	positions := make([]uint32, len(fragments))
	pos := uint32(0)
	for i, ref := range fragments {
		positions[i] = pos
		pos += itemHeader + uint32(ref.Reference.Length)
	}

	first := -1
	for i, p := range positions {
		if p == bot[h.Index] {
			first = i
			break
		}
	}
	if first < 0 {
		return 0, 0, &MaterializationError{Handle: h,
			Err: fmt.Errorf("offset table entry %d matches no fragment", bot[h.Index])}
	}
	last := len(fragments)
	if h.Index+1 < len(bot) {
		for i := first + 1; i < len(positions); i++ {
			if positions[i] == bot[h.Index+1] {
				last = i
				break
			}
		}
		if last == len(fragments) && bot[h.Index+1] != pos {
			return 0, 0, &MaterializationError{Handle: h,
				Err: fmt.Errorf("offset table entry %d matches no fragment", bot[h.Index+1])}
		}
	}
	return first, last, nil
}

// offsetTable reads and decodes the Basic Offset Table entries.
func (s *Splitter) offsetTable(h Handle) ([]uint32, error) {
	ref := h.Instance.PixelRefs[0].Reference
	if ref.Length == 0 {
		return nil, &MaterializationError{Handle: h, Err: errors.New("empty basic offset table")}
	}
	raw, err := h.Instance.ReadRegion(ref)
	if err != nil {
		return nil, &MaterializationError{Handle: h, Err: err}
	}
	if len(raw)%4 != 0 {
		return nil, &MaterializationError{Handle: h,
			Err: fmt.Errorf("offset table of %d bytes", len(raw))}
	}
	bot := make([]uint32, len(raw)/4)
	for i := range bot {
		bot[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return bot, nil
}

func bufferFromResult(inst *study.Instance, res *codec.DecodeResult) *PixelBuffer {
	buf := &PixelBuffer{
		Data:                      res.PixelData,
		Rows:                      inst.Rows,
		Columns:                   inst.Columns,
		BitsPerSample:             inst.BitsAllocated,
		SamplesPerPixel:           inst.SamplesPerPixel,
		PhotometricInterpretation: inst.PhotometricInterpretation,
	}
	if res.Height > 0 {
		buf.Rows = res.Height
	}
	if res.Width > 0 {
		buf.Columns = res.Width
	}
	if res.BitDepth > 0 {
		buf.BitsPerSample = res.BitDepth
	}
	if res.Components > 0 {
		buf.SamplesPerPixel = res.Components
	}
	return buf
}
