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

package escape

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/awslabs/ar-thresc/analysis/program"
)

// DstNode is the abstract state at a program point: the abstraction of every variable slot of the method, the
// heap edges between local objects, the set of sites whose objects have escaped, and whether the state has been
// killed (collapsed to escaping-only with an empty heap).
//
// DstNodes are immutable. Operations that do not change the state return the receiver itself.
type DstNode struct {
	env  []PointsTo
	heap Heap
	esc  SiteSet
	kill bool
	key  string
}

// NewDstNode returns a new state. The env slice is owned by the state after the call.
func NewDstNode(env []PointsTo, heap Heap, esc SiteSet, kill bool) *DstNode {
	d := &DstNode{env: env, heap: heap, esc: esc, kill: kill}
	d.key = stateKey(env, heap, esc, kill, true)
	return d
}

// NewEmptyDstNode returns the state of a method with n slots where every variable is Empty
func NewEmptyDstNode(n int) *DstNode {
	return NewDstNode(make([]PointsTo, n), Heap{}, nil, false)
}

// NumVars returns the number of variable slots of the state
func (d *DstNode) NumVars() int { return len(d.env) }

// Env returns the abstraction of v. NoVar is always Empty.
func (d *DstNode) Env(v program.Var) PointsTo {
	if v == program.NoVar || int(v) >= len(d.env) {
		return EmptyPts
	}
	return d.env[v]
}

// Heap returns the heap of the state
func (d *DstNode) Heap() Heap { return d.heap }

// Esc returns the set of escaped sites
func (d *DstNode) Esc() SiteSet { return d.esc }

// IsKill returns true if the state has been killed
func (d *DstNode) IsKill() bool { return d.kill }

// Key returns the canonical key of the state. Two states are equal if and only if their keys are equal.
func (d *DstNode) Key() string { return d.key }

// Equal returns true if d and o are structurally equal
func (d *DstNode) Equal(o *DstNode) bool {
	return d == o || d.key == o.key
}

// WithVar returns the state where v is pts
func (d *DstNode) WithVar(v program.Var, pts PointsTo) *DstNode {
	if v == program.NoVar || d.env[v].Equal(pts) {
		return d
	}
	env := make([]PointsTo, len(d.env))
	copy(env, d.env)
	env[v] = pts
	return NewDstNode(env, d.heap, d.esc, d.kill)
}

// WithHeap returns the state with heap h
func (d *DstNode) WithHeap(h Heap) *DstNode {
	if d.heap.Equal(h) {
		return d
	}
	return NewDstNode(d.env, h, d.esc, d.kill)
}

// PropagateEscape marks the sites as escaping, and closes the escaped set over the heap: objects pointed to by
// fields of escaping objects escape too. In the result, no variable and no heap edge mentions an escaped site:
// variables pointing to escaped sites point to Escaped instead, heap edges from escaped sites are dropped and heap
// edges to escaped sites point to Escaped.
//
// PropagateEscape is idempotent and returns d itself when nothing changes.
func (d *DstNode) PropagateEscape(sites SiteSet) *DstNode {
	esc := d.heap.closure(d.esc.Union(sites.Minus(SiteSet{Escaped})))
	changed := false
	env := d.env
	for i, pts := range d.env {
		r := pts.rewrite(esc)
		if !r.Equal(pts) {
			if !changed {
				env = make([]PointsTo, len(d.env))
				copy(env, d.env)
				changed = true
			}
			env[i] = r
		}
	}
	heap := d.heap.rewrite(esc)
	if !changed && esc.Equal(d.esc) && heap.Equal(d.heap) {
		return d
	}
	return NewDstNode(env, heap, esc, d.kill)
}

// Reset returns the conservative state where every object of the state has escaped: non-empty variables only
// point to escaping objects, the heap is empty and the state is killed.
func (d *DstNode) Reset() *DstNode {
	esc := d.esc.Union(d.heap.sites())
	env := make([]PointsTo, len(d.env))
	for i, pts := range d.env {
		esc = esc.Union(pts.Local())
		if !pts.IsEmpty() {
			env[i] = EscPts
		}
	}
	res := NewDstNode(env, Heap{}, esc, true)
	if res.key == d.key {
		return d
	}
	return res
}

// Check returns an error if the state is not well-formed
func (d *DstNode) Check() error {
	if d.esc.Contains(Escaped) {
		return fmt.Errorf("escaped set contains the escaped sentinel")
	}
	for i, pts := range d.env {
		if pts.Local().Intersects(d.esc) {
			return fmt.Errorf("variable %d points to escaped sites: %s, escaped %v", i, pts, d.esc)
		}
	}
	for _, e := range d.heap.edges {
		if e.Src == Escaped {
			return fmt.Errorf("heap edge from the escaped sentinel")
		}
		if d.esc.Contains(e.Src) || d.esc.Contains(e.Dst) {
			return fmt.Errorf("heap edge %v mentions an escaped site", e)
		}
	}
	return nil
}

func (d *DstNode) String() string {
	var b strings.Builder
	b.WriteString("env=[")
	for i, pts := range d.env {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(pts.String())
	}
	b.WriteString("] heap=")
	b.WriteString(d.heap.String())
	fmt.Fprintf(&b, " esc=%v", []program.SiteID(d.esc))
	if d.kill {
		b.WriteString(" kill")
	}
	return b.String()
}

// Src returns the entry state corresponding to d: its environment and heap
func (d *DstNode) Src() *SrcNode {
	return NewSrcNode(d.env, d.heap)
}

// SrcNode is the abstract state at the entry of a method: the abstraction of every variable slot and the heap.
// SrcNodes are immutable.
type SrcNode struct {
	env  []PointsTo
	heap Heap
	key  string
}

// NewSrcNode returns a new entry state. The env slice must not be modified after the call.
func NewSrcNode(env []PointsTo, heap Heap) *SrcNode {
	return &SrcNode{env: env, heap: heap, key: stateKey(env, heap, nil, false, false)}
}

// Env returns the abstraction of v at entry
func (s *SrcNode) Env(v program.Var) PointsTo {
	if v == program.NoVar || int(v) >= len(s.env) {
		return EmptyPts
	}
	return s.env[v]
}

// Heap returns the heap at entry
func (s *SrcNode) Heap() Heap { return s.heap }

// Key returns the canonical key of the entry state
func (s *SrcNode) Key() string { return s.key }

// Equal returns true if s and o are structurally equal
func (s *SrcNode) Equal(o *SrcNode) bool {
	return s == o || s.key == o.key
}

// DstNode returns the state at the entry of the method, before any instruction has been analyzed
func (s *SrcNode) DstNode() *DstNode {
	return NewDstNode(s.env, s.heap, nil, false)
}

func (s *SrcNode) String() string {
	parts := make([]string, len(s.env))
	for i, pts := range s.env {
		parts[i] = pts.String()
	}
	return fmt.Sprintf("env=[%s] heap=%s", strings.Join(parts, " "), s.heap)
}

// Edge pairs the entry state of a method activation with the current state at some program point of the method
type Edge struct {
	Src *SrcNode
	Dst *DstNode
}

// Key returns the canonical key of the edge
func (e Edge) Key() string {
	return e.Src.key + "|" + e.Dst.key
}

// RetNode is the abstract state at the exit of a method: the abstraction of the returned value, the heap, the
// escaped sites and whether the state has been killed.
type RetNode struct {
	Pts  PointsTo
	Heap Heap
	Esc  SiteSet
	Kill bool
}

// Key returns the canonical key of the exit state
func (r RetNode) Key() string {
	return stateKey([]PointsTo{r.Pts}, r.Heap, r.Esc, r.Kill, true)
}

func (r RetNode) String() string {
	return fmt.Sprintf("ret=%s heap=%s esc=%v kill=%v", r.Pts, r.Heap, []program.SiteID(r.Esc), r.Kill)
}

// Summary is a summary edge: the exit state of a method activation for an entry state
type Summary struct {
	Src *SrcNode
	Ret RetNode
}

// Key returns the canonical key of the summary
func (s Summary) Key() string {
	return s.Src.key + "|" + s.Ret.Key()
}

// stateKey encodes the state as a string of varints
func stateKey(env []PointsTo, heap Heap, esc SiteSet, kill bool, withEsc bool) string {
	size := 2 + len(env) + 3*len(heap.edges) + len(esc)
	for _, pts := range env {
		size += len(pts.sites)
	}
	buf := make([]byte, 0, size*2)
	buf = binary.AppendUvarint(buf, uint64(len(env)))
	for _, pts := range env {
		buf = binary.AppendUvarint(buf, uint64(len(pts.sites)))
		for _, h := range pts.sites {
			buf = binary.AppendVarint(buf, int64(h))
		}
	}
	buf = binary.AppendUvarint(buf, uint64(len(heap.edges)))
	for _, e := range heap.edges {
		buf = binary.AppendVarint(buf, int64(e.Src))
		buf = binary.AppendVarint(buf, int64(e.Field))
		buf = binary.AppendVarint(buf, int64(e.Dst))
	}
	if withEsc {
		buf = binary.AppendUvarint(buf, uint64(len(esc)))
		for _, h := range esc {
			buf = binary.AppendVarint(buf, int64(h))
		}
		if kill {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return string(buf)
}
