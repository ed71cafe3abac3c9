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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_missingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(256), cfg.Cache.FrameBudgetMB)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Positive(t, cfg.Scan.Parallelism)
}

func TestLoad_overridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  frameBudgetMB: 64
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64), cfg.Cache.FrameBudgetMB)
	assert.Equal(t, int64(64<<20), cfg.FrameBudgetBytes())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Positive(t, cfg.Scan.Parallelism, "untouched section keeps its default")
}

func TestLoad_rejectsNonPositiveBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  frameBudgetMB: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_rejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
