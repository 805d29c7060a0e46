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

package goprog

import (
	"fmt"
	"go/token"
	"sort"

	"github.com/awslabs/ar-thresc/analysis"
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/lang"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
)

// RootMethod is the name of the synthetic main method of lowered programs. It runs the package initializers and
// then the main function.
const RootMethod = "$root"

// EnvParam is the name of the first formal of every lowered method. It holds the closure object for calls through
// closures and dynamic calls, and nothing for static calls.
const EnvParam = "$env"

// Result is the outcome of lowering a Go program.
type Result struct {
	// Program is the lowered program
	Program *program.Program

	// Accesses maps the heap accesses of Program that model memory operations of the Go program to the SSA
	// instruction they were lowered from. Heap accesses introduced by the lowering itself are not in the map.
	Accesses map[program.Instruction]ssa.Instruction

	// Functions maps the lowered methods to their SSA function
	Functions map[*program.Method]*ssa.Function

	positions map[program.Instruction]token.Position
	ignored   map[program.Instruction]bool
}

// Position returns the source position of a lowered heap access.
func (r *Result) Position(instr program.Instruction) token.Position {
	return r.positions[instr]
}

// Queries returns a query over all the allocation sites containing every heap access of the Go program, except the
// ones on lines with an ignore directive. Accesses are sorted by instruction id.
func (r *Result) Queries() []program.Query {
	var instrs []program.Instruction
	for instr := range r.Accesses {
		if !r.ignored[instr] {
			instrs = append(instrs, instr)
		}
	}
	if len(instrs) == 0 {
		return nil
	}
	sort.Slice(instrs, func(i, j int) bool { return instrs[i].ID() < instrs[j].ID() })
	return []program.Query{{Instrs: instrs}}
}

// Packages returns the packages of the functions that have been lowered.
func (r *Result) Packages() []*ssa.Package {
	funcs := make(map[*ssa.Function]bool, len(r.Functions))
	for _, f := range r.Functions {
		funcs[f] = true
	}
	return analysis.AllPackages(funcs)
}

// lowering holds the state shared by the lowering of all the functions of a program
type lowering struct {
	cfg        *config.Config
	logger     *config.LogGroup
	fset       *token.FileSet
	directives analysis.Directives
	builder    *program.Builder
	res        *Result

	// callees of each call instruction, resolved with class hierarchy analysis
	callees map[ssa.CallInstruction][]*ssa.Function

	names     map[*ssa.Function]string
	usedNames map[string]bool
	queue     []*ssa.Function
	methods   map[*ssa.Function]*program.MethodBuilder
}

// Lower translates the loaded Go program into a program for the escape analysis. The functions reachable from the
// main packages whose package matches the package filter of the configuration are lowered; every other function is
// treated as unknown code, which conservatively makes its arguments escape.
//
// Every goroutine started by a go statement is a thread root. Memory is modeled field-insensitively: all the
// contents of an object are abstracted by a single field.
func Lower(lp analysis.LoadedProgram, cfg *config.Config, logger *config.LogGroup) (*Result, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	prog := lp.Program
	if prog == nil {
		return nil, errors.New("no program to lower")
	}

	l := &lowering{
		cfg:        cfg,
		logger:     logger,
		fset:       prog.Fset,
		directives: lp.Directives,
		builder:    program.NewBuilder(),
		res: &Result{
			Accesses:  map[program.Instruction]ssa.Instruction{},
			Functions: map[*program.Method]*ssa.Function{},
			positions: map[program.Instruction]token.Position{},
			ignored:   map[program.Instruction]bool{},
		},
		callees:   map[ssa.CallInstruction][]*ssa.Function{},
		names:     map[*ssa.Function]string{},
		usedNames: map[string]bool{},
		methods:   map[*ssa.Function]*program.MethodBuilder{},
	}

	cg := cha.CallGraph(prog)
	for _, node := range cg.Nodes {
		for _, edge := range node.Out {
			if edge.Site != nil && edge.Callee.Func != nil {
				l.callees[edge.Site] = append(l.callees[edge.Site], edge.Callee.Func)
			}
		}
	}
	for _, fns := range l.callees {
		sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	}

	pkgs := prog.AllPackages()
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Pkg.Path() < pkgs[j].Pkg.Path() })
	var entries []string
	for _, pkg := range pkgs {
		if pkg.Pkg.Name() != "main" || pkg.Func("main") == nil {
			continue
		}
		for _, name := range []string{"init", "main"} {
			if f := pkg.Func(name); f != nil && l.isLowered(f) {
				entries = append(entries, l.method(f))
			}
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("no main function to lower (check the package filter)")
	}
	root := l.builder.Method(RootMethod)
	for _, name := range entries {
		root.Call("", name, "")
	}
	l.builder.SetMain(RootMethod)

	for len(l.queue) > 0 {
		f := l.queue[0]
		l.queue = l.queue[1:]
		if err := l.lowerFunction(f); err != nil {
			return nil, errors.Wrapf(err, "while lowering %s", f)
		}
	}

	p, err := l.builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "lowered program is malformed")
	}
	l.res.Program = p
	for f, mb := range l.methods {
		l.res.Functions[mb.Method()] = f
	}
	logger.Infof("Lowered %d functions, %d allocation sites and %d heap accesses\n",
		len(l.methods), len(p.Sites), len(l.res.Accesses))
	return l.res, nil
}

// isLowered returns true if the body of f is part of the lowered program
func (l *lowering) isLowered(f *ssa.Function) bool {
	return f != nil && !lang.IsExternal(f) && l.cfg.MatchPkgFilter(lang.PackagePath(f))
}

// method returns the name of the method of f, scheduling f to be lowered the first time it is called
func (l *lowering) method(f *ssa.Function) string {
	if name, ok := l.names[f]; ok {
		return name
	}
	name := f.String()
	for i := 1; l.usedNames[name]; i++ {
		name = fmt.Sprintf("%s#%d", f.String(), i)
	}
	l.usedNames[name] = true
	l.names[f] = name
	l.queue = append(l.queue, f)
	return name
}

// targets returns the names of the methods that instr may call. It returns false if some callee is not lowered,
// or when the callees are not known.
func (l *lowering) targets(instr ssa.CallInstruction) ([]string, bool) {
	fns := l.callees[instr]
	if len(fns) == 0 {
		return nil, false
	}
	nargs := len(lang.GetArgs(instr))
	var names []string
	for _, f := range fns {
		if !l.isLowered(f) {
			return nil, false
		}
		if len(f.Params) != nargs {
			l.logger.Debugf("call %s to %s with %d arguments, expected %d\n", instr, f, nargs, len(f.Params))
			return nil, false
		}
		names = append(names, l.method(f))
	}
	sort.Strings(names)
	return names, true
}

func (l *lowering) position(instr ssa.Instruction) token.Position {
	pos := instr.Pos()
	if !pos.IsValid() {
		switch x := instr.(type) {
		case *ssa.UnOp:
			pos = x.X.Pos()
		case *ssa.Store:
			pos = x.Addr.Pos()
		}
	}
	return l.fset.Position(pos)
}
