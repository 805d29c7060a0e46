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

// Package program contains the immutable, indexed program representation consumed by the thread-escape analysis.
//
// A program is a set of methods. Each method has a control flow graph of blocks containing instructions over
// reference variable slots. All allocation sites, fields and instructions have stable integer ids assigned when the
// program is built, so that abstract states can be represented as small sorted integer sets.
//
// Programs are constructed with a [Builder], either directly (tests, the Go front end) or from a YAML description
// with [LoadYAML].
package program

import (
	"fmt"
)

// Var is the index of a reference variable slot in a method.
type Var int

// NoVar marks an operand that is not a reference variable (a constant, nil, or a non-reference value).
const NoVar Var = -1

// IsRef returns true if the operand denotes a reference variable slot.
func (v Var) IsRef() bool {
	return v >= 0
}

// FieldID identifies an instance field.
type FieldID int

// ArrayElems is the reserved field that abstracts the contents of arrays.
const ArrayElems FieldID = 0

// ArrayElemsName is the name of the ArrayElems field.
const ArrayElemsName = "[]"

// SiteID identifies an allocation site. Valid site ids are non-negative.
type SiteID int

// InstrID identifies an instruction.
type InstrID int

// Site is an allocation site: the program location where objects are created.
type Site struct {
	ID    SiteID
	Name  string
	Alloc *Alloc
}

func (s *Site) String() string {
	return s.Name
}

// Program is a set of methods with a designated main method.
type Program struct {
	// Methods indexed by their ID
	Methods []*Method

	// Main is the entry point of the program
	Main *Method

	// Sites indexed by their SiteID
	Sites []*Site

	// Fields names indexed by their FieldID
	Fields []string

	// Instrs indexed by their InstrID
	Instrs []Instruction

	// Globals is the set of static fields names
	Globals []string

	methodsByName map[string]*Method
	sitesByName   map[string]*Site
	fieldsByName  map[string]FieldID
	labels        map[string]Instruction
}

// Method returns the method with the given name, or nil.
func (p *Program) Method(name string) *Method {
	return p.methodsByName[name]
}

// Site returns the allocation site with the given name, or nil.
func (p *Program) Site(name string) *Site {
	return p.sitesByName[name]
}

// Field returns the id of the field with the given name.
func (p *Program) Field(name string) (FieldID, bool) {
	f, ok := p.fieldsByName[name]
	return f, ok
}

// FieldName returns the name of field f.
func (p *Program) FieldName(f FieldID) string {
	if int(f) < 0 || int(f) >= len(p.Fields) {
		return fmt.Sprintf("field#%d", f)
	}
	return p.Fields[f]
}

// Labeled returns the instruction that has been given the label name when the program was built.
func (p *Program) Labeled(name string) Instruction {
	return p.labels[name]
}

// Labels returns the map from labels to instructions. The map must not be modified.
func (p *Program) Labels() map[string]Instruction {
	return p.labels
}

// AllSites returns the ids of all allocation sites of the program.
func (p *Program) AllSites() []SiteID {
	ids := make([]SiteID, len(p.Sites))
	for i, s := range p.Sites {
		ids[i] = s.ID
	}
	return ids
}

// ThreadRoots returns the methods marked as thread entry points.
func (p *Program) ThreadRoots() []*Method {
	var roots []*Method
	for _, m := range p.Methods {
		if m.ThreadRoot {
			roots = append(roots, m)
		}
	}
	return roots
}

// HeapAccesses returns all the instance field and array loads and stores of the program, in instruction order.
// These are the instructions the escape analysis can be queried about.
func (p *Program) HeapAccesses() []Instruction {
	var res []Instruction
	for _, instr := range p.Instrs {
		if IsHeapAccess(instr) {
			res = append(res, instr)
		}
	}
	return res
}

// IsHeapAccess returns true if instr is an instance field or array load or store.
func IsHeapAccess(instr Instruction) bool {
	switch instr.(type) {
	case *Load, *Store:
		return true
	}
	return false
}

// Base returns the base variable of a heap access, and false if instr is not a heap access.
func Base(instr Instruction) (Var, bool) {
	switch x := instr.(type) {
	case *Load:
		return x.Base, true
	case *Store:
		return x.Base, true
	}
	return NoVar, false
}

// MethodOf returns the method containing instr.
func MethodOf(instr Instruction) *Method {
	return instr.Parent()
}

// Method is a procedure of the program. Its reference formals occupy the first NumParams variable slots.
type Method struct {
	ID   int
	Name string

	// NumVars is the number of variable slots of the method
	NumVars int

	// NumParams is the number of formals. Formal i is in slot i.
	NumParams int

	// VarNames are the names of the variable slots, for debugging
	VarNames []string

	// Blocks contains all the blocks of the method, including Entry and Exit
	Blocks []*Block

	// Entry is an empty block with no predecessors
	Entry *Block

	// Exit is an empty block with no successors. Blocks that do not end the method with a return or a throw flow
	// into it.
	Exit *Block

	// ThreadRoot is true when the method is the entry point of a thread
	ThreadRoot bool

	// ThreadStart is true when calling the method starts a new thread running its receiver (formal 0)
	ThreadStart bool
}

func (m *Method) String() string {
	return m.Name
}

// VarName returns the name of v in m
func (m *Method) VarName(v Var) string {
	if v == NoVar {
		return "_"
	}
	if int(v) < len(m.VarNames) {
		return m.VarNames[v]
	}
	return fmt.Sprintf("v%d", v)
}

// Block is a basic block.
type Block struct {
	ID     int
	Name   string
	Parent *Method
	Instrs []Instruction
	Succs  []*Block
	Preds  []*Block
}

func (b *Block) String() string {
	return fmt.Sprintf("%s:%s", b.Parent.Name, b.Name)
}

// Query is a set of heap accesses that must be classified with respect to a set of candidate allocation sites.
// A nil Sites means all the allocation sites of the program.
type Query struct {
	Instrs []Instruction
	Sites  []SiteID
}
