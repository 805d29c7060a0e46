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

package analysis

import (
	"go/ast"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PkgLoadMode is the default loading mode in the analyses. We load all possible information.
const PkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedExportFile |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// LoadedProgram is a Go program loaded and translated to SSA form
type LoadedProgram struct {
	// Program is the SSA form of the program, with every function built
	Program *ssa.Program
	// Packages are the packages matched by the patterns given to LoadProgram
	Packages []*packages.Package
	// Directives are the analysis directives found in the comments of the loaded packages
	Directives Directives
}

// LoadProgram loads, type checks and builds the SSA form of the packages matched by patterns and of their
// dependencies. The patterns are interpreted by packages.Load. If config is nil, the packages are loaded with
// PkgLoadMode, without tests. A non-empty platform sets GOOS.
func LoadProgram(config *packages.Config, platform string, buildmode ssa.BuilderMode,
	patterns []string) (LoadedProgram, error) {
	if config == nil {
		config = &packages.Config{Mode: PkgLoadMode, Fset: token.NewFileSet()}
	}
	if platform != "" {
		config.Env = append(os.Environ(), "GOOS="+platform)
	}

	initial, err := packages.Load(config, patterns...)
	if err != nil {
		return LoadedProgram{}, errors.Wrap(err, "failed to load packages")
	}
	if len(initial) == 0 {
		return LoadedProgram{}, errors.Errorf("no packages match %v", patterns)
	}
	if n := packages.PrintErrors(initial); n > 0 {
		return LoadedProgram{}, errors.Errorf("%d errors found while loading %v", n, patterns)
	}

	prog, ssaPkgs := ssautil.AllPackages(initial, buildmode)
	for i, p := range ssaPkgs {
		if p == nil {
			return LoadedProgram{}, errors.Errorf("cannot build SSA for package %s", initial[i])
		}
	}
	prog.Build()

	return LoadedProgram{Program: prog, Packages: initial, Directives: findDirectives(initial)}, nil
}

// AllPackages returns the slice of all packages the set of functions provided as argument belong to.
func AllPackages(funcs map[*ssa.Function]bool) []*ssa.Package {
	pkgs := make(map[*ssa.Package]bool)
	for f := range funcs {
		if f.Package() != nil {
			pkgs[f.Package()] = true
		}
	}
	pkglist := make([]*ssa.Package, 0, len(pkgs))
	for p := range pkgs {
		pkglist = append(pkglist, p)
	}
	sort.Slice(pkglist, func(i, j int) bool {
		return pkglist[i].Pkg.Path() < pkglist[j].Pkg.Path()
	})
	return pkglist
}

// Directives represents a map of directive position to directive.
type Directives map[DirectivePos]Directive

// Directive represents an instruction to the analysis in the source code being analyzed.
// It is a comment in the form: `//thresc:x`, where x is a valid DirectiveKind.
type Directive struct {
	Kind    DirectiveKind
	Comment *ast.Comment
}

// DirectivePos represents the position of a directive within a program.
type DirectivePos struct {
	Filename string
	Line     int
}

// NewDirectivePos creates a DirectivePos from a token.Position. Filenames are made absolute so that positions
// of different file sets can be compared.
func NewDirectivePos(pos token.Position) DirectivePos {
	filename := pos.Filename
	if abs, err := filepath.Abs(filename); err == nil {
		filename = abs
	}
	return DirectivePos{
		Filename: filename,
		Line:     pos.Line,
	}
}

// Ignores returns true if there is an ignore directive at pos
func (d Directives) Ignores(pos token.Position) bool {
	if !pos.IsValid() {
		return false
	}
	directive, ok := d[NewDirectivePos(pos)]
	return ok && directive.Kind == DirectiveIgnore
}

// DirectiveKind represents the kind of directive.
type DirectiveKind string

const (
	// DirectiveIgnore represents a directive to not query the heap accesses of a particular line.
	DirectiveIgnore DirectiveKind = "ignore"
)

// NewDirective returns the directive for c and true if c is a valid
// directive comment.
func NewDirective(c *ast.Comment) (Directive, bool) {
	_, after, found := strings.Cut(c.Text, "thresc:")
	if !found {
		return Directive{}, false
	}

	switch k := DirectiveKind(strings.TrimSpace(after)); k {
	case DirectiveIgnore:
		return Directive{Kind: k, Comment: c}, true
	default:
		return Directive{}, false
	}
}

// findDirectives returns the directives in the comments of pkgs and of their dependencies.
func findDirectives(pkgs []*packages.Package) Directives {
	res := make(Directives)
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		if p.Fset == nil {
			return
		}
		for _, file := range p.Syntax {
			for _, group := range file.Comments {
				for _, c := range group.List {
					pos := p.Fset.Position(c.Pos())
					if d, ok := NewDirective(c); ok && pos.IsValid() {
						res[NewDirectivePos(pos)] = d
					}
				}
			}
		}
	})
	return res
}
