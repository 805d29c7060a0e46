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

package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/awslabs/ar-thresc/analysis/escape"
	"github.com/awslabs/ar-thresc/analysis/program"
)

func validateHint(t *testing.T, errorMsg string, containedHint string) {
	hint := HintForErrorMessage(errorMsg)
	if !strings.Contains(hint, containedHint) {
		t.Fatalf("incorrect hint; check and update error message if necessary")
	}
}

func TestHintForFlagAfterFiles(t *testing.T) {
	errorMsg := "error: could not load program:\n -: named files must be .go files: -v"
	containedHint := "all command line flags should be before the path"
	validateHint(t, errorMsg, containedHint)
}

func TestHintForFailedLoadProgram(t *testing.T) {
	errorMsg := "error: could not load program:\n errors found, exiting\n"
	containedHint := "you have provided the right arguments to load a Go program"
	validateHint(t, errorMsg, containedHint)
}

func TestHintForMissingMain(t *testing.T) {
	errorMsg := "error: no main function to lower (check the package filter)"
	containedHint := "the path should lead to a main package"
	validateHint(t, errorMsg, containedHint)
}

func TestHintForInconsistency(t *testing.T) {
	err := &escape.InconsistencyError{Method: "main", Msg: "new summary has no matching caller"}
	validateHint(t, "error: query failed: "+err.Error(), "check-invariants")
	if HintForErrorMessage("some other error") != "" {
		t.Errorf("unexpected hint for an unknown error")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("", true)
	if err != nil {
		t.Fatalf("the default config must load: %v", err)
	}
	if !cfg.Verbose() {
		t.Errorf("-verbose must raise the log level")
	}
	if _, err := LoadConfig("does-not-exist.yaml", false); err == nil {
		t.Errorf("expected an error for a missing config file")
	}
}

func TestPrintResult(t *testing.T) {
	b := program.NewBuilder()
	m := b.Method("main")
	m.Alloc("x", "h")
	store := m.Store("x", "f", "")
	load := m.Load("y", "x", "f")
	m.Return("")
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
	res := &escape.Result{
		Escaping: []program.Instruction{store},
		Local:    []program.Instruction{load},
	}
	var buf bytes.Buffer
	PrintResult(&buf, res, func(instr program.Instruction) string { return instr.Parent().Name })
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got:\n%s", out)
	}
	if !strings.Contains(lines[0], "ESCAPING") || !strings.Contains(lines[0], store.String()) {
		t.Errorf("escaping instructions must be printed first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "LOCAL") || !strings.Contains(lines[2], "1 escaping, 0 timed out, 1 local") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
