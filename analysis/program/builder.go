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

	"github.com/pkg/errors"
)

// ErrMalformed is returned (wrapped) when an instruction does not have the shape its callees or operands require,
// for example an invoke whose argument count differs from the number of formals of one of its targets.
var ErrMalformed = errors.New("malformed instruction")

// Builder constructs programs. A Builder must not be used after Build has been called.
//
// Variables, sites, fields and globals are referred to by name; names are interned into ids when they are first
// used. Invoke targets are referred to by method name and resolved by Build, so methods can be declared in any
// order.
type Builder struct {
	prog    *Program
	methods []*MethodBuilder
	main    string
	calls   []pendingCall
	errs    []error
	built   bool
}

type pendingCall struct {
	call    *Invoke
	callees []string
}

// NewBuilder returns an empty program builder
func NewBuilder() *Builder {
	return &Builder{
		prog: &Program{
			Fields:        []string{ArrayElemsName},
			methodsByName: map[string]*Method{},
			sitesByName:   map[string]*Site{},
			fieldsByName:  map[string]FieldID{ArrayElemsName: ArrayElems},
			labels:        map[string]Instruction{},
		},
	}
}

func (b *Builder) errorf(format string, args ...any) {
	b.errs = append(b.errs, errors.Errorf(format, args...))
}

// SetMain sets the name of the main method. If not set, the method named "main" is the main method.
func (b *Builder) SetMain(name string) {
	b.main = name
}

// Method declares a new method with the given formals. Formal i is assigned slot i.
func (b *Builder) Method(name string, params ...string) *MethodBuilder {
	m := &Method{
		ID:   len(b.methods),
		Name: name,
	}
	if _, dup := b.prog.methodsByName[name]; dup {
		b.errorf("duplicate method %q", name)
	} else {
		b.prog.methodsByName[name] = m
	}
	m.Entry = &Block{ID: 0, Name: "entry", Parent: m}
	m.Blocks = []*Block{m.Entry}
	mb := &MethodBuilder{
		b:        b,
		m:        m,
		vars:     map[string]Var{},
		blocks:   map[string]*Block{},
		hasSuccs: map[*Block]bool{},
	}
	for i, p := range params {
		if p == "" || p == "_" {
			p = fmt.Sprintf("$p%d", i)
		}
		if _, dup := mb.vars[p]; dup {
			b.errorf("duplicate formal %q in %s", p, name)
		}
		mb.Var(p)
	}
	m.NumParams = len(params)
	b.methods = append(b.methods, mb)
	return mb
}

// Label gives a name to an instruction, to retrieve it with Program.Labeled
func (b *Builder) Label(name string, instr Instruction) {
	if _, dup := b.prog.labels[name]; dup {
		b.errorf("duplicate label %q", name)
		return
	}
	b.prog.labels[name] = instr
}

func (b *Builder) site(name string, alloc *Alloc) *Site {
	if s, dup := b.prog.sitesByName[name]; dup {
		b.errorf("allocation site %q allocated at %s and %s", name, s.Alloc.parent.Name, alloc.parent.Name)
		return s
	}
	s := &Site{ID: SiteID(len(b.prog.Sites)), Name: name, Alloc: alloc}
	b.prog.Sites = append(b.prog.Sites, s)
	b.prog.sitesByName[name] = s
	return s
}

func (b *Builder) field(name string) (FieldID, string) {
	if name == "" || name == "*" {
		name = ArrayElemsName
	}
	if f, ok := b.prog.fieldsByName[name]; ok {
		return f, name
	}
	f := FieldID(len(b.prog.Fields))
	b.prog.Fields = append(b.prog.Fields, name)
	b.prog.fieldsByName[name] = f
	return f, name
}

func (b *Builder) global(name string) string {
	for _, g := range b.prog.Globals {
		if g == name {
			return name
		}
	}
	b.prog.Globals = append(b.prog.Globals, name)
	return name
}

// Build resolves the invoke targets, assigns instruction ids and validates the program.
func (b *Builder) Build() (*Program, error) {
	if b.built {
		return nil, errors.New("program already built")
	}
	b.built = true
	prog := b.prog

	for _, mb := range b.methods {
		mb.finish()
		prog.Methods = append(prog.Methods, mb.m)
	}

	mainName := b.main
	if mainName == "" {
		mainName = "main"
	}
	prog.Main = prog.methodsByName[mainName]
	if prog.Main == nil {
		b.errorf("no main method %q", mainName)
	}

	for _, m := range prog.Methods {
		for _, block := range m.Blocks {
			for i, instr := range block.Instrs {
				a := instr.base()
				a.id = InstrID(len(prog.Instrs))
				a.index = i
				prog.Instrs = append(prog.Instrs, instr)
				if i < len(block.Instrs)-1 {
					switch instr.(type) {
					case *Return, *Throw:
						b.errs = append(b.errs, errors.Wrapf(ErrMalformed, "%s: instruction after %s",
							block, instr))
					}
				}
			}
		}
	}

	for _, pc := range b.calls {
		for _, name := range pc.callees {
			target := prog.methodsByName[name]
			if target == nil {
				b.errorf("%s: unknown callee %q", pc.call.Pos(), name)
				continue
			}
			if len(pc.call.Args) != target.NumParams {
				b.errs = append(b.errs, errors.Wrapf(ErrMalformed, "%s: call to %s with %d arguments, expected %d",
					pc.call.Pos(), name, len(pc.call.Args), target.NumParams))
				continue
			}
			pc.call.Targets = append(pc.call.Targets, target)
		}
		if pc.call.Spawn && pc.call.Dst != NoVar {
			b.errs = append(b.errs, errors.Wrapf(ErrMalformed, "%s: spawn with a result", pc.call.Pos()))
		}
	}

	if len(b.errs) > 0 {
		return nil, joinErrors(b.errs)
	}
	return prog, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d errors while building program:", len(errs))
	for _, err := range errs {
		msg += "\n\t" + err.Error()
	}
	// keep the first error in the chain for errors.Is
	return errors.Wrap(errs[0], msg)
}

// MethodBuilder appends blocks and instructions to a method. Instructions are appended to the current block; the
// first instruction of a method creates its first block if none was created.
type MethodBuilder struct {
	b        *Builder
	m        *Method
	vars     map[string]Var
	blocks   map[string]*Block
	hasSuccs map[*Block]bool
	toExit   []*Block
	cur      *Block
	pos      string
}

// Method returns the method being built. Its blocks and instructions are final only after Build.
func (mb *MethodBuilder) Method() *Method {
	return mb.m
}

// ThreadRoot marks the method as the entry point of a thread
func (mb *MethodBuilder) ThreadRoot() *MethodBuilder {
	mb.m.ThreadRoot = true
	return mb
}

// ThreadStart marks the method as starting a thread on its receiver, like java.lang.Thread.start()
func (mb *MethodBuilder) ThreadStart() *MethodBuilder {
	mb.m.ThreadStart = true
	return mb
}

// Var returns the slot of the variable with the given name, allocating a new slot if needed. The empty name and "_"
// denote NoVar.
func (mb *MethodBuilder) Var(name string) Var {
	if name == "" || name == "_" {
		return NoVar
	}
	if v, ok := mb.vars[name]; ok {
		return v
	}
	v := Var(mb.m.NumVars)
	mb.vars[name] = v
	mb.m.VarNames = append(mb.m.VarNames, name)
	mb.m.NumVars++
	return v
}

// Block returns the block with the given name, creating it if needed. It does not change the current block.
func (mb *MethodBuilder) Block(name string) *Block {
	if blk, ok := mb.blocks[name]; ok {
		return blk
	}
	blk := &Block{ID: len(mb.m.Blocks), Name: name, Parent: mb.m}
	mb.m.Blocks = append(mb.m.Blocks, blk)
	mb.blocks[name] = blk
	return blk
}

func (mb *MethodBuilder) hasBlock(name string) bool {
	_, ok := mb.blocks[name]
	return ok
}

// SetBlock sets the block where instructions are appended
func (mb *MethodBuilder) SetBlock(blk *Block) *MethodBuilder {
	mb.cur = blk
	return mb
}

// Edge adds a control flow edge. Blocks without edges flow into the exit block.
func (mb *MethodBuilder) Edge(from, to *Block) *MethodBuilder {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
	mb.hasSuccs[from] = true
	return mb
}

// EdgeToExit adds a control flow edge from a block to the exit block of the method
func (mb *MethodBuilder) EdgeToExit(from *Block) *MethodBuilder {
	mb.toExit = append(mb.toExit, from)
	mb.hasSuccs[from] = true
	return mb
}

// SetPos sets the position of the instructions appended next
func (mb *MethodBuilder) SetPos(pos string) *MethodBuilder {
	mb.pos = pos
	return mb
}

func (mb *MethodBuilder) add(instr Instruction) {
	if mb.cur == nil {
		mb.cur = mb.Block(fmt.Sprintf("b%d", len(mb.m.Blocks)))
	}
	a := instr.base()
	a.parent = mb.m
	a.block = mb.cur
	a.pos = mb.pos
	mb.cur.Instrs = append(mb.cur.Instrs, instr)
}

// Move appends dst = src
func (mb *MethodBuilder) Move(dst, src string) *Move {
	x := &Move{Dst: mb.Var(dst), Src: mb.Var(src)}
	mb.add(x)
	return x
}

// Phi appends dst = phi(srcs)
func (mb *MethodBuilder) Phi(dst string, srcs ...string) *Phi {
	x := &Phi{Dst: mb.Var(dst)}
	for _, s := range srcs {
		x.Srcs = append(x.Srcs, mb.Var(s))
	}
	mb.add(x)
	return x
}

// Alloc appends dst = new at the allocation site named site. Site names are unique in the program.
func (mb *MethodBuilder) Alloc(dst, site string) *Alloc {
	x := &Alloc{Dst: mb.Var(dst)}
	mb.add(x)
	x.site = mb.b.site(site, x)
	x.Site = x.site.ID
	return x
}

// Load appends dst = base.field
func (mb *MethodBuilder) Load(dst, base, field string) *Load {
	f, name := mb.b.field(field)
	x := &Load{Dst: mb.Var(dst), Base: mb.Var(base), Field: f, fieldName: name}
	mb.add(x)
	return x
}

// ALoad appends dst = base[i]
func (mb *MethodBuilder) ALoad(dst, base string) *Load {
	return mb.Load(dst, base, ArrayElemsName)
}

// Store appends base.field = src
func (mb *MethodBuilder) Store(base, field, src string) *Store {
	f, name := mb.b.field(field)
	x := &Store{Base: mb.Var(base), Field: f, Src: mb.Var(src), fieldName: name}
	mb.add(x)
	return x
}

// AStore appends base[i] = src
func (mb *MethodBuilder) AStore(base, src string) *Store {
	return mb.Store(base, ArrayElemsName, src)
}

// GetStatic appends dst = global
func (mb *MethodBuilder) GetStatic(dst, global string) *StaticLoad {
	x := &StaticLoad{Dst: mb.Var(dst), Global: mb.b.global(global)}
	mb.add(x)
	return x
}

// PutStatic appends global = src
func (mb *MethodBuilder) PutStatic(global, src string) *StaticStore {
	x := &StaticStore{Global: mb.b.global(global), Src: mb.Var(src)}
	mb.add(x)
	return x
}

// Invoke appends dst = callee(args) where callees are the names of the possible targets. An empty dst discards the
// result.
func (mb *MethodBuilder) Invoke(dst string, callees []string, args ...string) *Invoke {
	x := &Invoke{Dst: mb.Var(dst)}
	for _, a := range args {
		x.Args = append(x.Args, mb.Var(a))
	}
	mb.add(x)
	mb.b.calls = append(mb.b.calls, pendingCall{call: x, callees: callees})
	return x
}

// Call is Invoke with a single target
func (mb *MethodBuilder) Call(dst string, callee string, args ...string) *Invoke {
	return mb.Invoke(dst, []string{callee}, args...)
}

// Spawn appends go callee(args): a new thread runs one of the callees
func (mb *MethodBuilder) Spawn(callees []string, args ...string) *Invoke {
	x := mb.Invoke("", callees, args...)
	x.Spawn = true
	return x
}

// Return appends return src. An empty src is a void return.
func (mb *MethodBuilder) Return(src string) *Return {
	x := &Return{Src: mb.Var(src)}
	mb.add(x)
	return x
}

// Throw appends throw src
func (mb *MethodBuilder) Throw(src string) *Throw {
	x := &Throw{Src: mb.Var(src)}
	mb.add(x)
	return x
}

// Nop appends an instruction with no effect on references
func (mb *MethodBuilder) Nop(comment string) *Nop {
	x := &Nop{Comment: comment}
	mb.add(x)
	return x
}

// finish links the entry and exit blocks
func (mb *MethodBuilder) finish() {
	m := mb.m
	m.Exit = &Block{ID: len(m.Blocks), Name: "exit", Parent: m}
	m.Blocks = append(m.Blocks, m.Exit)
	if len(m.Blocks) > 2 {
		mb.Edge(m.Entry, m.Blocks[1])
	} else {
		mb.Edge(m.Entry, m.Exit)
	}
	for _, blk := range mb.toExit {
		mb.Edge(blk, m.Exit)
	}
	for _, blk := range m.Blocks[1 : len(m.Blocks)-1] {
		if !mb.hasSuccs[blk] {
			mb.Edge(blk, m.Exit)
		}
	}
}
