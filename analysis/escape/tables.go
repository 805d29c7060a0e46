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
	"github.com/awslabs/ar-thresc/analysis/callgraph"
	"github.com/awslabs/ar-thresc/analysis/program"
)

// Location is a program point inside a method: the index of an instruction in a block. Index -1 is the pseudo
// location before the first instruction of the block, used for empty blocks and for the entry block.
type Location struct {
	Block *program.Block
	Index int
}

// Instr returns the instruction at the location, or nil for a block pseudo location
func (l Location) Instr() program.Instruction {
	if l.Index < 0 || l.Index >= len(l.Block.Instrs) {
		return nil
	}
	return l.Block.Instrs[l.Index]
}

// LocationOf returns the location of the instruction
func LocationOf(instr program.Instruction) Location {
	return Location{Block: instr.Block(), Index: instr.Index()}
}

// workItem is an element of the worklist: a path edge at some location of some method in some context
type workItem struct {
	node callgraph.Node
	loc  Location
	edge Edge
}

// edgeSet is an insertion-ordered set of path edges
type edgeSet struct {
	keys  map[string]bool
	edges []Edge
}

func (s *edgeSet) add(e Edge) bool {
	k := e.Key()
	if s.keys[k] {
		return false
	}
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	s.keys[k] = true
	s.edges = append(s.edges, e)
	return true
}

// PathEdges is the table of path edges of one query, indexed by node and location. The table owns the worklist:
// adding a new path edge pushes it.
type PathEdges struct {
	edges    map[callgraph.Node]map[Location]*edgeSet
	worklist []workItem
	count    int
}

// NewPathEdges returns an empty path edge table
func NewPathEdges() *PathEdges {
	return &PathEdges{edges: map[callgraph.Node]map[Location]*edgeSet{}}
}

// Add inserts the path edge at loc in node. If the edge is new, it is pushed on the worklist and Add returns true.
func (p *PathEdges) Add(node callgraph.Node, loc Location, e Edge) bool {
	byLoc, ok := p.edges[node]
	if !ok {
		byLoc = map[Location]*edgeSet{}
		p.edges[node] = byLoc
	}
	set, ok := byLoc[loc]
	if !ok {
		set = &edgeSet{}
		byLoc[loc] = set
	}
	if !set.add(e) {
		return false
	}
	p.count++
	p.worklist = append(p.worklist, workItem{node: node, loc: loc, edge: e})
	return true
}

// At returns a snapshot of the path edges at loc in node, in insertion order
func (p *PathEdges) At(node callgraph.Node, loc Location) []Edge {
	set := p.edges[node][loc]
	if set == nil {
		return nil
	}
	res := make([]Edge, len(set.edges))
	copy(res, set.edges)
	return res
}

// Len returns the number of path edges in the table
func (p *PathEdges) Len() int {
	return p.count
}

func (p *PathEdges) pop() (workItem, bool) {
	n := len(p.worklist)
	if n == 0 {
		return workItem{}, false
	}
	item := p.worklist[n-1]
	p.worklist = p.worklist[:n-1]
	return item, true
}

// Summaries is the table of summary edges of one query, indexed by node and by the key of the entry state
type Summaries struct {
	bySrc   map[callgraph.Node]map[string][]Summary
	keys    map[callgraph.Node]map[string]bool
	inserts map[callgraph.Node]int
	count   int
}

// NewSummaries returns an empty summary table
func NewSummaries() *Summaries {
	return &Summaries{
		bySrc:   map[callgraph.Node]map[string][]Summary{},
		keys:    map[callgraph.Node]map[string]bool{},
		inserts: map[callgraph.Node]int{},
	}
}

// Add inserts the summary for node, and returns true if it was not already in the table
func (s *Summaries) Add(node callgraph.Node, sum Summary) bool {
	keys, ok := s.keys[node]
	if !ok {
		keys = map[string]bool{}
		s.keys[node] = keys
		s.bySrc[node] = map[string][]Summary{}
	}
	k := sum.Key()
	if keys[k] {
		return false
	}
	keys[k] = true
	s.bySrc[node][sum.Src.key] = append(s.bySrc[node][sum.Src.key], sum)
	s.inserts[node]++
	s.count++
	return true
}

// Matching returns the summaries of node whose entry state is src
func (s *Summaries) Matching(node callgraph.Node, src *SrcNode) []Summary {
	res := s.bySrc[node][src.key]
	if len(res) == 0 {
		return nil
	}
	out := make([]Summary, len(res))
	copy(out, res)
	return out
}

// Of returns all the summaries of node
func (s *Summaries) Of(node callgraph.Node) []Summary {
	var res []Summary
	for _, sums := range s.bySrc[node] {
		res = append(res, sums...)
	}
	return res
}

// Inserts returns the number of new summaries inserted for node
func (s *Summaries) Inserts(node callgraph.Node) int {
	return s.inserts[node]
}

// Len returns the number of summaries in the table
func (s *Summaries) Len() int {
	return s.count
}
