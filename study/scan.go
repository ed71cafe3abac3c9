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
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/studyview/studyview/dicom"
)

// Failure is one file the scan could not index.
type Failure struct {
	Path string
	Err  error
}

// Result pairs the built index with the per-file failures. Corrupt files
// never abort a scan; they land here.
type Result struct {
	Index    *Index
	Failures []Failure
	scanned  int
}

// Loaded is the number of files indexed.
func (r *Result) Loaded() int { return r.scanned - len(r.Failures) }

// Scanned is the number of candidate files attempted.
func (r *Result) Scanned() int { return r.scanned }

// Summary renders the user-visible outcome line.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d of %d files loaded, %d failures",
		r.Loaded(), r.Scanned(), len(r.Failures))
}

// ScanOptions tune a scan. The zero value is usable: parallelism defaults to
// GOMAXPROCS and the zero Logger discards everything.
type ScanOptions struct {
	Parallelism int
	Log         zerolog.Logger
}

// Scan header-parses the candidate paths in parallel and publishes one
// immutable Index. No partially built index is ever visible; until Scan
// returns there is nothing to look at. Returns an error only when ctx is
// canceled; per-file problems go into the result.
func Scan(ctx context.Context, paths []string, opts ScanOptions) (*Result, error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	log := opts.Log.With().Str("scan_id", uuid.NewString()).Logger()
	log.Info().Int("files", len(paths)).Int("parallelism", parallelism).Msg("scan started")

	type outcome struct {
		inst *Instance
		err  error
	}
	outcomes := xsync.NewMapOf[string, outcome]()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst, err := parseFile(path)
			if err != nil {
				log.Debug().Str("path", path).Err(err).Msg("file rejected")
			}
			outcomes.Store(path, outcome{inst: inst, err: err})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// assemble in input order so the index and failure list are deterministic
	builder := NewBuilder()
	result := &Result{scanned: len(paths)}
	for _, path := range paths {
		o, ok := outcomes.Load(path)
		if !ok {
			continue
		}
		if o.err != nil {
			result.Failures = append(result.Failures, Failure{Path: path, Err: o.err})
			continue
		}
		builder.add(o.inst)
	}
	result.Index = builder.Build()

	log.Info().
		Int("loaded", result.Loaded()).
		Int("failed", len(result.Failures)).
		Int("warnings", len(result.Index.Warnings())).
		Msg("scan finished")
	return result, nil
}

func parseFile(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	ds, err := dicom.ParseHeader(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	inst, err := newInstance(path, ds)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return inst, nil
}
