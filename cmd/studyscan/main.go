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

// studyscan scans a directory of DICOM files, reports what was indexed and
// optionally materializes one frame with its merged annotations. It drives
// the whole pipeline: scan, classify, cross-reference, frame enumeration,
// pixel materialization, annotation resolution.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/studyview/studyview/annot"
	"github.com/studyview/studyview/config"
	"github.com/studyview/studyview/frame"
	"github.com/studyview/studyview/internal/observability"
	"github.com/studyview/studyview/study"
)

func main() {
	inputDir := flag.String("input", "", "directory containing DICOM files")
	configPath := flag.String("config", "studyview.yaml", "configuration file")
	showFrames := flag.Bool("frames", false, "enumerate the frames of every image")
	materializeUID := flag.String("materialize", "", "SOP Instance UID of an image to decode")
	frameIndex := flag.Int("frame", 0, "frame to decode with -materialize (0-based)")
	flag.Parse()

	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := observability.NewLogger("studyscan", cfg.Log.Level, os.Stderr)
	prometheus.MustRegister(frame.Metrics()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	paths, err := candidatePaths(*inputDir)
	if err != nil {
		log.Fatal().Err(err).Msg("listing input directory")
	}

	result, err := study.Scan(ctx, paths, study.ScanOptions{
		Parallelism: cfg.Scan.Parallelism,
		Log:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("scan aborted")
	}

	fmt.Println(result.Summary())
	for _, failure := range result.Failures {
		fmt.Printf("  failed: %s: %v\n", failure.Path, failure.Err)
	}
	for _, warning := range result.Index.Warnings() {
		fmt.Printf("  warning: %v\n", warning)
	}

	splitter := frame.NewSplitter(frame.Options{
		CacheBytes: cfg.FrameBudgetBytes(),
		Log:        log,
	})
	resolver := annot.NewResolver(result.Index, log)

	if *showFrames {
		listFrames(result.Index, splitter)
	}
	if *materializeUID != "" {
		if err := materialize(ctx, result.Index, splitter, resolver, *materializeUID, *frameIndex); err != nil {
			log.Fatal().Err(err).Msg("materialization failed")
		}
	}
}

// candidatePaths enumerates regular files under dir. Which of them are DICOM
// is the scan's business; everything gets attempted.
func candidatePaths(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func listFrames(idx *study.Index, splitter *frame.Splitter) {
	for _, seriesUID := range idx.SeriesUIDs() {
		fmt.Printf("series %s\n", seriesUID)
		for _, inst := range idx.InstancesInSeries(seriesUID) {
			if inst.Kind != study.KindImage {
				fmt.Printf("  %s (%s)\n", inst.SOPInstanceUID, inst.Kind)
				continue
			}
			handles, err := splitter.Frames(inst)
			if err != nil {
				fmt.Printf("  %s: %v\n", inst.SOPInstanceUID, err)
				continue
			}
			fmt.Printf("  %s: %d frame(s), %dx%d, %d bit\n",
				inst.SOPInstanceUID, len(handles), inst.Columns, inst.Rows, inst.BitsAllocated)
		}
	}
}

func materialize(ctx context.Context, idx *study.Index, splitter *frame.Splitter, resolver *annot.Resolver, sopUID string, frameIndex int) error {
	inst, ok := idx.Instance(sopUID)
	if !ok {
		return fmt.Errorf("no instance %s in the index", sopUID)
	}
	h := frame.Handle{Instance: inst, Index: frameIndex}

	buf, err := splitter.Materialize(ctx, h)
	if err != nil {
		return err
	}
	fmt.Printf("frame %s: %d bytes, %dx%d, %d bit, %s\n",
		h, buf.Size(), buf.Columns, buf.Rows, buf.BitsPerSample, buf.PhotometricInterpretation)

	layer := resolver.Resolve(h)
	fmt.Printf("annotations: %d\n", len(layer.Primitives))
	for _, prim := range layer.Primitives {
		switch prim.Kind {
		case annot.KindText:
			fmt.Printf("  [%s] %s: %q\n", prim.Provenance, prim.Kind, prim.Text)
		case annot.KindMeasurement:
			fmt.Printf("  [%s] %s: %s = %g %s\n", prim.Provenance, prim.Kind, prim.Label, prim.Value, prim.Unit)
		default:
			fmt.Printf("  [%s] %s (%d points)\n", prim.Provenance, prim.Kind, len(prim.Points))
		}
	}
	return nil
}
