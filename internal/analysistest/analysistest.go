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

// Package analysistest contains helpers to load the Go programs of the testdata directory and to read the
// classifications expected by their annotations.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/awslabs/ar-thresc/analysis"
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/lang"
	"golang.org/x/tools/go/ssa"
)

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (analysis.LoadedProgram, *config.Config) {
	var err error
	// Load config; in command, should be set using some flag
	configFile := filepath.Join(dir, "config.yaml")
	config.SetGlobalConfig(configFile)
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	lp, err := analysis.LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading global config: %v", err)
	}
	return lp, cfg
}

// AnnotationRegex matches the comments "// LOCAL" and "// ESCAPING" that annotate the expected classification of
// the heap accesses of a line
var AnnotationRegex = regexp.MustCompile(`^//\s*(LOCAL|ESCAPING)\s*$`)

// LPos is a position without column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// NewLPos drops the column of the position and makes its filename absolute
func NewLPos(pos token.Position) LPos {
	filename := pos.Filename
	if abs, err := filepath.Abs(filename); err == nil {
		filename = abs
	}
	return LPos{Filename: filename, Line: pos.Line}
}

// ExpectedClassifications analyzes the files in dir and returns, for each line annotated with a "// LOCAL" or
// "// ESCAPING" comment, the expected classification of the heap accesses of that line.
func ExpectedClassifications(dir string) (map[LPos]string, error) {
	fset := token.NewFileSet()
	expected := map[LPos]string{}
	err := lang.ScanComments(dir, fset, func(c *ast.Comment, pos token.Position) {
		if m := AnnotationRegex.FindStringSubmatch(c.Text); len(m) > 1 {
			expected[NewLPos(pos)] = m[1]
		}
	})
	return expected, err
}
