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
	"strings"

	"github.com/awslabs/ar-thresc/internal/funcutil"
)

// Instruction is implemented by all the instruction kinds of the program model. The set of kinds is closed:
// *Move, *Phi, *Alloc, *Load, *Store, *StaticLoad, *StaticStore, *Invoke, *Return, *Throw and *Nop.
type Instruction interface {
	// ID is the unique id of the instruction in the program
	ID() InstrID
	// Parent is the method containing the instruction
	Parent() *Method
	// Block is the block containing the instruction
	Block() *Block
	// Index is the position of the instruction in its block
	Index() int
	// Pos is a printable source position
	Pos() string
	String() string

	base() *anInstr
}

type anInstr struct {
	id     InstrID
	block  *Block
	index  int
	pos    string
	parent *Method
}

func (a *anInstr) ID() InstrID     { return a.id }
func (a *anInstr) Parent() *Method { return a.parent }
func (a *anInstr) Block() *Block   { return a.block }
func (a *anInstr) Index() int      { return a.index }
func (a *anInstr) Pos() string {
	if a.pos != "" {
		return a.pos
	}
	return fmt.Sprintf("%s:%s:%d", a.parent.Name, a.block.Name, a.index)
}
func (a *anInstr) base() *anInstr { return a }

func (a *anInstr) v(x Var) string {
	return a.parent.VarName(x)
}

// Move is l := r
type Move struct {
	anInstr
	Dst Var
	Src Var
}

// Phi is l := phi(r1, ..., rn)
type Phi struct {
	anInstr
	Dst  Var
	Srcs []Var
}

// Alloc is l := new T at an allocation site
type Alloc struct {
	anInstr
	Dst  Var
	Site SiteID

	site *Site
}

// Load is l := b.f, or l := b[i] when Field is ArrayElems
type Load struct {
	anInstr
	Dst   Var
	Base  Var
	Field FieldID

	fieldName string
}

// IsArray returns true if the load reads an array element
func (l *Load) IsArray() bool { return l.Field == ArrayElems }

// Store is b.f := r, or b[i] := r when Field is ArrayElems
type Store struct {
	anInstr
	Base  Var
	Field FieldID
	Src   Var

	fieldName string
}

// IsArray returns true if the store writes an array element
func (s *Store) IsArray() bool { return s.Field == ArrayElems }

// StaticLoad is l := G for a static field (global) G
type StaticLoad struct {
	anInstr
	Dst    Var
	Global string
}

// StaticStore is G := r for a static field (global) G
type StaticStore struct {
	anInstr
	Global string
	Src    Var
}

// Invoke is l := m(a0, ..., an) where m is resolved to Targets. Targets are the possible callees of the call site,
// the call-graph oracle refines them with contexts. A Spawn invoke starts a new thread (goroutine) running the
// target with the arguments, it is not a call edge.
type Invoke struct {
	anInstr
	Dst     Var
	Args    []Var
	Targets []*Method
	Spawn   bool
}

// IsFork returns true if the invoke starts a new thread: either it is a spawn, or it calls a thread-start method.
func (c *Invoke) IsFork() bool {
	return c.Spawn || funcutil.Exists(c.Targets, func(t *Method) bool { return t.ThreadStart })
}

// Return is return r. Src is NoVar for void returns and for returns of non-reference values.
type Return struct {
	anInstr
	Src Var
}

// Throw raises r as an exception (or a panic value)
type Throw struct {
	anInstr
	Src Var
}

// Nop is any instruction that does not affect references
type Nop struct {
	anInstr
	Comment string
}

func (x *Move) String() string { return fmt.Sprintf("%s = %s", x.v(x.Dst), x.v(x.Src)) }
func (x *Phi) String() string {
	srcs := make([]string, len(x.Srcs))
	for i, s := range x.Srcs {
		srcs[i] = x.v(s)
	}
	return fmt.Sprintf("%s = phi(%s)", x.v(x.Dst), strings.Join(srcs, ", "))
}
func (x *Alloc) String() string {
	name := fmt.Sprintf("site#%d", x.Site)
	if x.site != nil {
		name = x.site.Name
	}
	return fmt.Sprintf("%s = new %s", x.v(x.Dst), name)
}
func (x *Load) String() string {
	if x.IsArray() {
		return fmt.Sprintf("%s = %s[*]", x.v(x.Dst), x.v(x.Base))
	}
	return fmt.Sprintf("%s = %s.%s", x.v(x.Dst), x.v(x.Base), x.fieldName)
}
func (x *Store) String() string {
	if x.IsArray() {
		return fmt.Sprintf("%s[*] = %s", x.v(x.Base), x.v(x.Src))
	}
	return fmt.Sprintf("%s.%s = %s", x.v(x.Base), x.fieldName, x.v(x.Src))
}
func (x *StaticLoad) String() string  { return fmt.Sprintf("%s = static %s", x.v(x.Dst), x.Global) }
func (x *StaticStore) String() string { return fmt.Sprintf("static %s = %s", x.Global, x.v(x.Src)) }
func (x *Invoke) String() string {
	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		args[i] = x.v(a)
	}
	names := make([]string, len(x.Targets))
	for i, t := range x.Targets {
		names[i] = t.Name
	}
	callee := strings.Join(names, "|")
	if x.Spawn {
		return fmt.Sprintf("go %s(%s)", callee, strings.Join(args, ", "))
	}
	if x.Dst == NoVar {
		return fmt.Sprintf("%s(%s)", callee, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s = %s(%s)", x.v(x.Dst), callee, strings.Join(args, ", "))
}
func (x *Return) String() string {
	if x.Src == NoVar {
		return "return"
	}
	return fmt.Sprintf("return %s", x.v(x.Src))
}
func (x *Throw) String() string { return fmt.Sprintf("throw %s", x.v(x.Src)) }
func (x *Nop) String() string {
	if x.Comment != "" {
		return "nop // " + x.Comment
	}
	return "nop"
}
