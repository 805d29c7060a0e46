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

package program

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A program description file has the following shape:
//
//	main: main
//	methods:
//	  - name: main
//	    instrs:
//	      - {op: alloc, dst: o, site: h1}
//	      - {op: call, dst: r, target: id, args: [o]}
//	      - {op: store, base: r, field: f, src: o, label: q1}
//	  - name: id
//	    params: [x]
//	    instrs:
//	      - {op: return, src: x}
//	queries:
//	  - instrs: [q1]
//	    sites: [h1]
//
// Methods with a control flow graph list their blocks instead of instrs; each block has a name, instrs and succs.
type programSpec struct {
	Main    string       `yaml:"main"`
	Methods []methodSpec `yaml:"methods"`
	Queries []querySpec  `yaml:"queries"`
}

type methodSpec struct {
	Name        string      `yaml:"name"`
	Params      []string    `yaml:"params"`
	ThreadRoot  bool        `yaml:"thread-root"`
	ThreadStart bool        `yaml:"thread-start"`
	Instrs      []instrSpec `yaml:"instrs"`
	Blocks      []blockSpec `yaml:"blocks"`
}

type blockSpec struct {
	Name   string      `yaml:"name"`
	Succs  []string    `yaml:"succs"`
	Instrs []instrSpec `yaml:"instrs"`
}

type instrSpec struct {
	Op      string   `yaml:"op"`
	Dst     string   `yaml:"dst"`
	Src     string   `yaml:"src"`
	Srcs    []string `yaml:"srcs"`
	Base    string   `yaml:"base"`
	Field   string   `yaml:"field"`
	Site    string   `yaml:"site"`
	Global  string   `yaml:"global"`
	Target  string   `yaml:"target"`
	Targets []string `yaml:"targets"`
	Args    []string `yaml:"args"`
	Label   string   `yaml:"label"`
	Pos     string   `yaml:"pos"`
}

type querySpec struct {
	Instrs []string `yaml:"instrs"`
	Sites  []string `yaml:"sites"`
}

// LoadYAML reads the program description in filename. It returns the program and the queries listed in the
// description, if any.
func LoadYAML(filename string) (*Program, []Query, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not read program file %s", filename)
	}
	return ParseYAML(filename, b)
}

// ParseYAML builds the program described by the YAML document b. The name is only used in error messages.
func ParseYAML(name string, b []byte) (*Program, []Query, error) {
	var spec programSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, nil, errors.Wrapf(err, "could not parse program file %s", name)
	}
	builder := NewBuilder()
	if spec.Main != "" {
		builder.SetMain(spec.Main)
	}
	for _, ms := range spec.Methods {
		if err := addMethod(builder, ms); err != nil {
			return nil, nil, errors.Wrapf(err, "in %s, method %s", name, ms.Name)
		}
	}
	prog, err := builder.Build()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid program %s", name)
	}
	queries, err := buildQueries(prog, spec.Queries)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid queries in %s", name)
	}
	return prog, queries, nil
}

func addMethod(b *Builder, ms methodSpec) error {
	if ms.Name == "" {
		return errors.New("method without a name")
	}
	mb := b.Method(ms.Name, ms.Params...)
	if ms.ThreadRoot {
		mb.ThreadRoot()
	}
	if ms.ThreadStart {
		mb.ThreadStart()
	}
	if len(ms.Blocks) > 0 && len(ms.Instrs) > 0 {
		return errors.New("method has both blocks and instrs")
	}
	if len(ms.Instrs) > 0 {
		ms.Blocks = []blockSpec{{Name: "b1", Instrs: ms.Instrs}}
	}
	// create all blocks first, in order, so that successors can be forward references
	for _, bs := range ms.Blocks {
		if bs.Name == "" {
			return errors.New("block without a name")
		}
		mb.Block(bs.Name)
	}
	for _, bs := range ms.Blocks {
		blk := mb.Block(bs.Name)
		for _, succ := range bs.Succs {
			if succ == "exit" {
				mb.EdgeToExit(blk)
				continue
			}
			if !mb.hasBlock(succ) {
				return errors.Errorf("block %s: unknown successor %s", bs.Name, succ)
			}
			mb.Edge(blk, mb.Block(succ))
		}
		mb.SetBlock(blk)
		for i, is := range bs.Instrs {
			if err := addInstr(b, mb, is); err != nil {
				return errors.Wrapf(err, "block %s, instruction %d", bs.Name, i)
			}
		}
	}
	return nil
}

func addInstr(b *Builder, mb *MethodBuilder, is instrSpec) error {
	mb.SetPos(is.Pos)
	var instr Instruction
	targets := is.Targets
	if is.Target != "" {
		targets = append([]string{is.Target}, targets...)
	}
	switch is.Op {
	case "alloc", "new":
		if is.Site == "" {
			return errors.New("alloc without a site")
		}
		instr = mb.Alloc(is.Dst, is.Site)
	case "move":
		instr = mb.Move(is.Dst, is.Src)
	case "phi":
		instr = mb.Phi(is.Dst, is.Srcs...)
	case "load":
		instr = mb.Load(is.Dst, is.Base, is.Field)
	case "aload":
		instr = mb.ALoad(is.Dst, is.Base)
	case "store":
		instr = mb.Store(is.Base, is.Field, is.Src)
	case "astore":
		instr = mb.AStore(is.Base, is.Src)
	case "getstatic":
		instr = mb.GetStatic(is.Dst, is.Global)
	case "putstatic":
		instr = mb.PutStatic(is.Global, is.Src)
	case "invoke", "call":
		instr = mb.Invoke(is.Dst, targets, is.Args...)
	case "spawn", "go":
		instr = mb.Spawn(targets, is.Args...)
	case "return":
		instr = mb.Return(is.Src)
	case "throw", "panic":
		instr = mb.Throw(is.Src)
	case "nop":
		instr = mb.Nop("")
	default:
		return errors.Errorf("unknown op %q", is.Op)
	}
	if is.Label != "" {
		b.Label(is.Label, instr)
	}
	return nil
}

func buildQueries(prog *Program, specs []querySpec) ([]Query, error) {
	var queries []Query
	for i, qs := range specs {
		q := Query{}
		for _, label := range qs.Instrs {
			instr := prog.Labeled(label)
			if instr == nil {
				return nil, fmt.Errorf("query %d: unknown instruction label %q", i, label)
			}
			if !IsHeapAccess(instr) {
				return nil, fmt.Errorf("query %d: %s (%s) is not a heap access", i, label, instr)
			}
			q.Instrs = append(q.Instrs, instr)
		}
		if qs.Sites != nil {
			q.Sites = []SiteID{}
			for _, name := range qs.Sites {
				site := prog.Site(name)
				if site == nil {
					return nil, fmt.Errorf("query %d: unknown allocation site %q", i, name)
				}
				q.Sites = append(q.Sites, site.ID)
			}
		}
		queries = append(queries, q)
	}
	return queries, nil
}
