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
	"testing"

	"github.com/awslabs/ar-thresc/analysis/callgraph"
	"github.com/awslabs/ar-thresc/analysis/program"
)

const (
	fieldF program.FieldID = 1
	fieldG program.FieldID = 2
)

// env: [ {h1}, {h2}, {h3,h4}, {} ], heap: h1.f->h2, h2.g->h3
func sampleState() *DstNode {
	env := []PointsTo{LocalPts(1), LocalPts(2), NewPointsTo(3, 4), EmptyPts}
	heap := NewHeap(HeapEdge{1, fieldF, 2}, HeapEdge{2, fieldG, 3})
	return NewDstNode(env, heap, nil, false)
}

func TestPropagateEscape(t *testing.T) {
	d := sampleState()
	p := d.PropagateEscape(SiteSet{1})
	if !p.Esc().Equal(SiteSet{1, 2, 3}) {
		t.Errorf("escaping must be closed over the heap, got %v", p.Esc())
	}
	if !p.Env(0).Equal(EscPts) || !p.Env(1).Equal(EscPts) {
		t.Errorf("variables pointing to escaped sites must be escaping: %s", p)
	}
	if !p.Env(2).Equal(NewPointsTo(Escaped, 4)) {
		t.Errorf("expected {ESC,h4}, got %s", p.Env(2))
	}
	if !p.Env(3).IsEmpty() {
		t.Errorf("empty variables must stay empty")
	}
	if p.Heap().Len() != 0 {
		t.Errorf("edges from escaped sites must be dropped: %s", p.Heap())
	}
	if err := p.Check(); err != nil {
		t.Errorf("unexpected invariant violation: %v", err)
	}
	if d.Env(0).HasEscaped() {
		t.Errorf("states must be immutable")
	}
}

func TestPropagateEscapeIsIdempotent(t *testing.T) {
	for _, sites := range []SiteSet{nil, {1}, {2}, {3}, {4}, {1, 4}, {Escaped, 2}} {
		once := sampleState().PropagateEscape(sites)
		twice := once.PropagateEscape(sites)
		if twice != once {
			t.Errorf("propagating %v twice changed the state: %s then %s", sites, once, twice)
		}
		if !once.Equal(sampleState().PropagateEscape(sites)) {
			t.Errorf("propagating %v is not deterministic", sites)
		}
	}
	d := sampleState()
	if d.PropagateEscape(nil) != d {
		t.Errorf("propagating nothing on a normalized state must return the same state")
	}
}

func TestPropagateEscapeRewritesTargets(t *testing.T) {
	d := sampleState().PropagateEscape(SiteSet{3})
	if !d.Heap().Equal(NewHeap(HeapEdge{1, fieldF, 2}, HeapEdge{2, fieldG, Escaped})) {
		t.Errorf("edges to escaped sites must point to the escaped sentinel: %s", d.Heap())
	}
	if !d.Env(0).Equal(LocalPts(1)) {
		t.Errorf("h1 does not escape, got %s", d.Env(0))
	}
}

func TestReset(t *testing.T) {
	d := sampleState()
	r := d.Reset()
	if !r.IsKill() || r.Heap().Len() != 0 {
		t.Errorf("reset must kill the state and empty the heap: %s", r)
	}
	for i := 0; i < 3; i++ {
		if !r.Env(program.Var(i)).Equal(EscPts) {
			t.Errorf("variable %d must be escaping after reset, got %s", i, r.Env(program.Var(i)))
		}
	}
	if !r.Env(3).IsEmpty() {
		t.Errorf("empty variables must stay empty after reset")
	}
	if !r.Esc().Equal(SiteSet{1, 2, 3, 4}) {
		t.Errorf("all sites of the state must escape, got %v", r.Esc())
	}
	if r.Reset() != r {
		t.Errorf("reset must be idempotent")
	}
	if err := r.Check(); err != nil {
		t.Errorf("unexpected invariant violation: %v", err)
	}
}

func TestStateEquality(t *testing.T) {
	a := sampleState()
	b := sampleState()
	if a == b || !a.Equal(b) || a.Key() != b.Key() {
		t.Errorf("structurally equal states must be equal")
	}
	c := a.WithVar(3, LocalPts(1))
	if c.Equal(a) {
		t.Errorf("states with different environments must differ")
	}
	if a.WithVar(0, LocalPts(1)) != a {
		t.Errorf("setting a variable to its value must return the same state")
	}
	if a.Src().Key() != b.Src().Key() {
		t.Errorf("entry states of equal states must be equal")
	}
	killed := NewDstNode(a.env, a.heap, nil, true)
	if killed.Equal(a) {
		t.Errorf("the kill flag is part of the state")
	}
	if killed.Src().Key() != a.Src().Key() {
		t.Errorf("entry states only depend on the environment and the heap")
	}
}

func TestCheckDetectsViolations(t *testing.T) {
	bad := NewDstNode([]PointsTo{LocalPts(1)}, Heap{}, SiteSet{1}, false)
	if bad.Check() == nil {
		t.Errorf("a variable pointing to an escaped site must be reported")
	}
	bad = NewDstNode([]PointsTo{EmptyPts}, NewHeap(HeapEdge{Escaped, fieldF, 1}), nil, false)
	if bad.Check() == nil {
		t.Errorf("an edge from the escaped sentinel must be reported")
	}
}

func TestTables(t *testing.T) {
	b := program.NewBuilder()
	b.Method("main").Return("")
	prog, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	node := callgraph.Node{Context: callgraph.EmptyContext, Method: prog.Main}
	loc := Location{Block: prog.Main.Entry, Index: -1}
	src := NewSrcNode([]PointsTo{}, Heap{})
	edge := Edge{Src: src, Dst: src.DstNode()}

	paths := NewPathEdges()
	if !paths.Add(node, loc, edge) {
		t.Errorf("first insertion must be new")
	}
	if paths.Add(node, loc, Edge{Src: NewSrcNode([]PointsTo{}, Heap{}), Dst: NewEmptyDstNode(0)}) {
		t.Errorf("inserting an equal edge must not be new")
	}
	if paths.Len() != 1 || len(paths.At(node, loc)) != 1 {
		t.Errorf("expected one path edge")
	}
	if _, ok := paths.pop(); !ok {
		t.Errorf("expected the new edge on the worklist")
	}
	if _, ok := paths.pop(); ok {
		t.Errorf("only new edges are pushed on the worklist")
	}

	sums := NewSummaries()
	s := Summary{Src: src, Ret: RetNode{Pts: EmptyPts}}
	if !sums.Add(node, s) || sums.Add(node, s) {
		t.Errorf("summaries must be inserted once")
	}
	if !sums.Add(node, Summary{Src: src, Ret: RetNode{Pts: EscPts}}) {
		t.Errorf("a different exit state is a new summary")
	}
	if len(sums.Matching(node, src)) != 2 || sums.Inserts(node) != 2 || sums.Len() != 2 {
		t.Errorf("expected two summaries for the entry state")
	}
	other := NewSrcNode([]PointsTo{EscPts}, Heap{})
	if len(sums.Matching(node, other)) != 0 {
		t.Errorf("no summary must match another entry state")
	}
}
