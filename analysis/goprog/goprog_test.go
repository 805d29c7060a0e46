// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

package goprog_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/awslabs/ar-thresc/analysis"
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/escape"
	"github.com/awslabs/ar-thresc/analysis/goprog"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/internal/analysistest"
)

func loadLocality(t *testing.T) (analysis.LoadedProgram, *config.Config, *goprog.Result) {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(filename), "../../testdata/src/escape/locality")
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change to test directory %s: %v", dir, err)
	}
	lp, cfg := analysistest.LoadTest(t, ".", nil)
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(io.Discard)
	res, err := goprog.Lower(lp, cfg, logger)
	if err != nil {
		t.Fatalf("failed to lower program: %v", err)
	}
	return lp, cfg, res
}

func TestLowerLocality(t *testing.T) {
	lp, _, res := loadLocality(t)
	prog := res.Program

	if prog.Main == nil || prog.Main.Name != goprog.RootMethod {
		t.Fatalf("the main method must be the synthetic root")
	}
	if len(prog.ThreadRoots()) != 0 {
		t.Errorf("go statements are spawns, not thread-start methods")
	}
	lowered := map[string]bool{}
	for m, f := range res.Functions {
		if m.NumParams != len(f.Params)+1 {
			t.Errorf("%s must have the environment and %d formals, got %d", m, len(f.Params), m.NumParams)
		}
		lowered[f.Name()] = true
	}
	for _, name := range []string{"main", "testLocal", "worker", "testClosure$1", "testClosure$2", "Put"} {
		if !lowered[name] {
			t.Errorf("%s has not been lowered", name)
		}
	}
	if pkgs := res.Packages(); len(pkgs) != 1 || pkgs[0].Pkg.Path() != "command-line-arguments" {
		t.Errorf("expected only the main package to be lowered, got %v", pkgs)
	}

	queries := res.Queries()
	if len(queries) != 1 || queries[0].Sites != nil {
		t.Fatalf("expected one query on all sites")
	}
	for _, instr := range queries[0].Instrs {
		if !program.IsHeapAccess(instr) {
			t.Errorf("%s is not a heap access", instr)
		}
		pos := res.Position(instr)
		if res.Accesses[instr] == nil || !pos.IsValid() {
			t.Errorf("%s has no source instruction or position", instr)
		}
		if lp.Directives.Ignores(pos) {
			t.Errorf("%s is on an ignored line", instr)
		}
	}
	if len(lp.Directives) != 1 {
		t.Errorf("expected one directive, got %d", len(lp.Directives))
	}
	if len(queries[0].Instrs) >= len(res.Accesses) {
		t.Errorf("the accesses of the ignored line must not be queried")
	}
}

func TestClassifyLocality(t *testing.T) {
	_, cfg, res := loadLocality(t)
	expected, err := analysistest.ExpectedClassifications(".")
	if err != nil {
		t.Fatalf("failed to read annotations: %v", err)
	}
	if len(expected) == 0 {
		t.Fatalf("no annotations found")
	}

	a := escape.NewAnalysis(res.Program, nil, cfg, nil)
	a.Logger.SetAllOutput(io.Discard)
	result, err := a.RunBatch(context.Background(), res.Queries())
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	seen := map[analysistest.LPos]bool{}
	for _, q := range res.Queries() {
		for _, instr := range q.Instrs {
			pos := analysistest.NewLPos(res.Position(instr))
			want, annotated := expected[pos]
			if !annotated {
				continue
			}
			seen[pos] = true
			got, ok := result.Classification(instr)
			if !ok {
				t.Errorf("%s: %s has not been classified", pos, instr)
				continue
			}
			if got.String() != want {
				t.Errorf("%s: %s (%s) is %s, expected %s", pos, instr, res.Accesses[instr], got, want)
			}
		}
	}
	for pos := range expected {
		if !seen[pos] {
			t.Errorf("%s: no heap access on annotated line", pos)
		}
	}
}
