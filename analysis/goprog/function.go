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
	"go/types"

	"github.com/awslabs/ar-thresc/analysis/lang"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// Names of the globals standing for values the lowering does not track. Reading them yields escaped objects.
const (
	funcValueGlobal = "$func"
	unsafeGlobal    = "$unsafe"
	builtinGlobal   = "$builtin"
)

// contents is the single field abstracting the contents of every object
const contents = "*"

// functionLowering lowers the body of one function
type functionLowering struct {
	l      *lowering
	fn     *ssa.Function
	mb     *program.MethodBuilder
	names  map[ssa.Value]string
	temps  int
	defers []*ssa.Defer
	// instr is the SSA instruction being lowered
	instr ssa.Instruction
	pos   token.Position
}

func (l *lowering) lowerFunction(f *ssa.Function) error {
	fl := &functionLowering{
		l:     l,
		fn:    f,
		names: map[ssa.Value]string{},
	}
	params := []string{EnvParam}
	for _, p := range f.Params {
		params = append(params, fl.name(p))
	}
	fl.mb = l.builder.Method(l.names[f], params...)
	l.methods[f] = fl.mb

	// create the blocks first, in the order of the SSA blocks
	blocks := make([]*program.Block, len(f.Blocks))
	for i, b := range f.Blocks {
		blocks[i] = fl.mb.Block(fmt.Sprintf("b%d", b.Index))
	}
	for i, b := range f.Blocks {
		for _, succ := range b.Succs {
			fl.mb.Edge(blocks[i], blocks[succ.Index])
		}
		// a panic in any block may resume in the recover block
		if f.Recover != nil && b != f.Recover {
			if _, isReturn := lang.LastInstr(b).(*ssa.Return); !isReturn {
				fl.mb.Edge(blocks[i], blocks[f.Recover.Index])
			}
		}
	}

	for i, b := range f.Blocks {
		fl.mb.SetBlock(blocks[i])
		if i == 0 {
			for j, fv := range f.FreeVars {
				if lang.IsReferenceType(fv.Type()) {
					fl.mb.Load(fl.name(fv), EnvParam, freeVarField(j))
				}
			}
		}
		for _, instr := range b.Instrs {
			fl.instr = instr
			fl.pos = l.position(instr)
			if fl.pos.IsValid() {
				fl.mb.SetPos(fl.pos.String())
			}
			if err := fl.lower(instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func freeVarField(i int) string {
	return fmt.Sprintf("$fv%d", i)
}

// name returns the name of the variable of a parameter, free variable or register. It returns "" for values that
// are not references.
func (fl *functionLowering) name(v ssa.Value) string {
	if n, ok := fl.names[v]; ok {
		return n
	}
	if !lang.IsReferenceType(v.Type()) {
		fl.names[v] = ""
		return ""
	}
	var n string
	switch v.(type) {
	case *ssa.Parameter:
		n = "a." + v.Name()
	case *ssa.FreeVar:
		n = "f." + v.Name()
	default:
		n = v.Name()
	}
	fl.names[v] = n
	return n
}

func (fl *functionLowering) temp() string {
	fl.temps++
	return fmt.Sprintf("$t%d", fl.temps)
}

// site returns a name for an allocation site of the current function that is unique in the program
func (fl *functionLowering) site(v ssa.Value, suffix string) string {
	return fl.l.names[fl.fn] + ":" + v.Name() + suffix
}

// operand returns the variable holding the value of v in the current instruction. Values that are not kept in
// variables, like globals and functions, are first loaded into temporaries.
func (fl *functionLowering) operand(v ssa.Value) string {
	if v == nil || !lang.IsReferenceType(v.Type()) {
		return ""
	}
	switch x := v.(type) {
	case *ssa.Const, *ssa.Builtin:
		return ""
	case *ssa.Global:
		t := fl.temp()
		fl.mb.GetStatic(t, x.String())
		return t
	case *ssa.Function:
		t := fl.temp()
		fl.mb.GetStatic(t, funcValueGlobal)
		return t
	}
	return fl.name(v)
}

// access records a heap access lowered from the current instruction
func (fl *functionLowering) access(x program.Instruction) {
	res := fl.l.res
	res.Accesses[x] = fl.instr
	res.positions[x] = fl.pos
	if fl.l.directives.Ignores(fl.pos) {
		res.ignored[x] = true
	}
}

func (fl *functionLowering) load(dst, base string) {
	fl.access(fl.mb.Load(dst, base, contents))
}

func (fl *functionLowering) store(base, src string) {
	fl.access(fl.mb.Store(base, contents, src))
}

// move lowers an instruction whose result refers to the same objects as its operand
func (fl *functionLowering) move(dst ssa.Value, src ssa.Value) {
	d := fl.name(dst)
	if d == "" {
		return
	}
	s := fl.operand(src)
	if s == "" {
		return
	}
	fl.mb.Move(d, s)
}

func (fl *functionLowering) alloc(v ssa.Value) {
	fl.mb.Alloc(fl.name(v), fl.site(v, ""))
}

// lower lowers the current instruction instr. Instructions that neither allocate nor move references between
// variables and objects are dropped.
//
//gocyclo:ignore
func (fl *functionLowering) lower(instr ssa.Instruction) error {
	switch x := instr.(type) {
	case *ssa.DebugRef, *ssa.BinOp, *ssa.If, *ssa.Jump:
	case *ssa.Alloc, *ssa.MakeChan, *ssa.MakeSlice, *ssa.MakeMap:
		fl.alloc(x.(ssa.Value))
	case *ssa.ChangeInterface:
		fl.move(x, x.X)
	case *ssa.ChangeType:
		fl.move(x, x.X)
	case *ssa.MakeInterface:
		fl.move(x, x.X)
	case *ssa.SliceToArrayPointer:
		fl.move(x, x.X)
	case *ssa.Slice:
		fl.move(x, x.X)
	case *ssa.Extract:
		fl.move(x, x.Tuple)
	case *ssa.Range:
		fl.move(x, x.X)
	case *ssa.FieldAddr:
		fl.move(x, x.X)
	case *ssa.Field:
		fl.move(x, x.X)
	case *ssa.IndexAddr:
		fl.move(x, x.X)
	case *ssa.Index:
		fl.move(x, x.X)
	case *ssa.TypeAssert:
		fl.move(x, x.X)
	case *ssa.Convert:
		fl.convert(x)
	case *ssa.UnOp:
		fl.unOp(x)
	case *ssa.Store:
		fl.storeInstr(x)
	case *ssa.Send:
		fl.store(fl.operand(x.Chan), fl.operand(x.X))
	case *ssa.Next:
		if !x.IsString {
			fl.load(fl.name(x), fl.operand(x.Iter))
		}
	case *ssa.Lookup:
		if _, isMap := x.X.Type().Underlying().(*types.Map); isMap {
			fl.load(fl.name(x), fl.operand(x.X))
		}
	case *ssa.MapUpdate:
		fl.mapUpdate(x)
	case *ssa.Select:
		fl.selectInstr(x)
	case *ssa.Phi:
		fl.phi(x)
	case *ssa.MakeClosure:
		fl.makeClosure(x)
	case *ssa.Call:
		fl.call(x, fl.name(x), false)
	case *ssa.Go:
		fl.call(x, "", true)
	case *ssa.Defer:
		fl.defers = append(fl.defers, x)
	case *ssa.RunDefers:
		// deferred calls run in the reverse order of the defer statements
		for i := len(fl.defers) - 1; i >= 0; i-- {
			fl.call(fl.defers[i], "", false)
		}
	case *ssa.Return:
		fl.ret(x)
	case *ssa.Panic:
		fl.mb.Throw(fl.operand(x.X))
	default:
		return errors.Errorf("unsupported instruction %T: %v", instr, instr)
	}
	return nil
}

func (fl *functionLowering) unOp(x *ssa.UnOp) {
	switch x.Op {
	case token.MUL:
		if g, ok := x.X.(*ssa.Global); ok {
			if d := fl.name(x); d != "" {
				fl.mb.GetStatic(d, g.String())
			}
			return
		}
		fl.load(fl.name(x), fl.operand(x.X))
	case token.ARROW:
		fl.load(fl.name(x), fl.operand(x.X))
	}
}

func (fl *functionLowering) convert(x *ssa.Convert) {
	d := fl.name(x)
	if d == "" {
		return
	}
	if lang.IsReferenceType(x.X.Type()) {
		fl.move(x, x.X)
		return
	}
	// string to slice conversions allocate; integers converted to unsafe pointers can point anywhere
	if b, ok := x.X.Type().Underlying().(*types.Basic); ok && b.Info()&types.IsString != 0 {
		fl.alloc(x)
	} else {
		fl.mb.GetStatic(d, unsafeGlobal)
	}
}

func (fl *functionLowering) ret(x *ssa.Return) {
	var results []string
	for _, r := range x.Results {
		if o := fl.operand(r); o != "" {
			results = append(results, o)
		}
	}
	switch len(results) {
	case 0:
		fl.mb.Return("")
	case 1:
		fl.mb.Return(results[0])
	default:
		t := fl.temp()
		fl.mb.Phi(t, results...)
		fl.mb.Return(t)
	}
}

func (fl *functionLowering) storeInstr(x *ssa.Store) {
	if g, ok := x.Addr.(*ssa.Global); ok {
		fl.mb.PutStatic(g.String(), fl.operand(x.Val))
		return
	}
	fl.store(fl.operand(x.Addr), fl.operand(x.Val))
}

func (fl *functionLowering) mapUpdate(x *ssa.MapUpdate) {
	m := fl.operand(x.Map)
	if k := fl.operand(x.Key); k != "" {
		fl.store(m, k)
	}
	fl.store(m, fl.operand(x.Value))
}

// makeClosure allocates the closure object and stores the bindings in the fields read by the free variables of
// the closure body.
func (fl *functionLowering) makeClosure(x *ssa.MakeClosure) {
	c := fl.name(x)
	fl.alloc(x)
	for i, b := range x.Bindings {
		if o := fl.operand(b); o != "" {
			fl.mb.Store(c, freeVarField(i), o)
		}
	}
}

func (fl *functionLowering) phi(x *ssa.Phi) {
	d := fl.name(x)
	if d == "" {
		return
	}
	var srcs []string
	for _, e := range x.Edges {
		srcs = append(srcs, fl.operand(e))
	}
	fl.mb.Phi(d, srcs...)
}

func (fl *functionLowering) selectInstr(x *ssa.Select) {
	var received []string
	for _, st := range x.States {
		ch := fl.operand(st.Chan)
		if st.Dir == types.SendOnly {
			fl.store(ch, fl.operand(st.Send))
		} else {
			t := fl.temp()
			fl.load(t, ch)
			received = append(received, t)
		}
	}
	if d := fl.name(x); d != "" && len(received) > 0 {
		fl.mb.Phi(d, received...)
	}
}
