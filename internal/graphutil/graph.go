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

// Package graphutil contains graph algorithms and an adapter exposing integer-labelled directed graphs to the
// gonum and yourbasic graph libraries.
package graphutil

import (
	"gonum.org/v1/gonum/graph"
	"golang.org/x/exp/slices"
)

// CGraph is an immutable directed graph over small non-negative int64 ids. It implements gonum's graph.Directed
// and the graph.Iterator of github.com/yourbasic/graph. Every iteration order is by increasing id.
type CGraph struct {
	// order is one more than the largest id, as required by yourbasic
	order  int
	labels map[int64]string
	succs  map[int64][]int64
	preds  map[int64][]int64

	// Keys are the node ids, in increasing order
	Keys []int64
}

// NewGraph returns the graph with a node id for every key of labels, and an edge from id to every node of succs[id].
// Edges to or from ids that are not in labels are dropped, as are duplicate edges.
func NewGraph(labels map[int64]string, succs map[int64][]int64) CGraph {
	g := CGraph{
		labels: labels,
		succs:  make(map[int64][]int64, len(labels)),
		preds:  make(map[int64][]int64, len(labels)),
		Keys:   make([]int64, 0, len(labels)),
	}
	for id := range labels {
		g.Keys = append(g.Keys, id)
		if int(id) >= g.order {
			g.order = int(id) + 1
		}
	}
	slices.Sort(g.Keys)
	for _, id := range g.Keys {
		for _, s := range succs[id] {
			if _, ok := labels[s]; ok {
				g.succs[id] = append(g.succs[id], s)
				g.preds[s] = append(g.preds[s], id)
			}
		}
	}
	for _, id := range g.Keys {
		g.succs[id] = compact(g.succs[id])
		g.preds[id] = compact(g.preds[id])
	}
	return g
}

func compact(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Subgraph returns the subgraph of g induced by the nodes of include. Node ids, labels and the order are kept, so
// ids stay valid across subgraphs.
func Subgraph(g CGraph, include []int64) CGraph {
	in := make(map[int64]bool, len(include))
	for _, id := range include {
		in[id] = true
	}
	sub := CGraph{
		order:  g.order,
		labels: g.labels,
		succs:  make(map[int64][]int64, len(include)),
		preds:  make(map[int64][]int64, len(include)),
		Keys:   slices.Clone(include),
	}
	slices.Sort(sub.Keys)
	for _, id := range sub.Keys {
		for _, s := range g.succs[id] {
			if in[s] {
				sub.succs[id] = append(sub.succs[id], s)
				sub.preds[s] = append(sub.preds[s], id)
			}
		}
	}
	return sub
}

// Successors returns the targets of the edges from id, in increasing order. The slice must not be modified.
func (c CGraph) Successors(id int64) []int64 {
	return c.succs[id]
}

// HasSelfLoop returns true if there is an edge from v to itself
func (c CGraph) HasSelfLoop(v int64) bool {
	return c.HasEdgeFromTo(v, v)
}

// NumEdges returns the number of edges of the graph
func (c CGraph) NumEdges() int {
	n := 0
	for _, s := range c.succs {
		n += len(s)
	}
	return n
}

func (c CGraph) has(id int64) bool {
	_, found := slices.BinarySearch(c.Keys, id)
	return found
}

// Order implements graph.Iterator of yourbasic
func (c CGraph) Order() int {
	return c.order
}

// Visit implements graph.Iterator of yourbasic
func (c CGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range c.succs[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// Node implements graph.Graph of gonum
func (c CGraph) Node(id int64) graph.Node {
	if !c.has(id) {
		return nil
	}
	return CNode{id: id, label: c.labels[id]}
}

// Nodes implements graph.Graph of gonum
func (c CGraph) Nodes() graph.Nodes {
	return c.nodeSet(c.Keys)
}

// From implements graph.Graph of gonum
func (c CGraph) From(id int64) graph.Nodes {
	return c.nodeSet(c.succs[id])
}

// To implements graph.Directed of gonum
func (c CGraph) To(id int64) graph.Nodes {
	return c.nodeSet(c.preds[id])
}

// HasEdgeFromTo implements graph.Directed of gonum
func (c CGraph) HasEdgeFromTo(uid, vid int64) bool {
	_, found := slices.BinarySearch(c.succs[uid], vid)
	return found
}

// HasEdgeBetween implements graph.Graph of gonum
func (c CGraph) HasEdgeBetween(xid, yid int64) bool {
	return c.HasEdgeFromTo(xid, yid) || c.HasEdgeFromTo(yid, xid)
}

// Edge implements graph.Graph of gonum
func (c CGraph) Edge(uid, vid int64) graph.Edge {
	if !c.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return CEdge{F: c.Node(uid), T: c.Node(vid)}
}

func (c CGraph) nodeSet(ids []int64) *NodeSet {
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = CNode{id: id, label: c.labels[id]}
	}
	return &NodeSet{nodes: nodes, cur: -1}
}

// CNode is a labelled node
type CNode struct {
	id    int64
	label string
}

// ID implements graph.Node of gonum
func (n CNode) ID() int64 { return n.id }

func (n CNode) String() string { return n.label }

// CEdge is a directed edge
type CEdge struct {
	F, T graph.Node
}

// From implements graph.Edge of gonum
func (e CEdge) From() graph.Node { return e.F }

// To implements graph.Edge of gonum
func (e CEdge) To() graph.Node { return e.T }

// ReversedEdge implements graph.Edge of gonum
func (e CEdge) ReversedEdge() graph.Edge { return CEdge{F: e.T, T: e.F} }

// NodeSet is an iterator over a fixed sequence of nodes, implementing graph.Nodes of gonum
type NodeSet struct {
	nodes []graph.Node
	// cur is -1 before the first call to Next
	cur int
}

// Next implements graph.Iterator of gonum
func (ns *NodeSet) Next() bool {
	if ns.cur+1 < len(ns.nodes) {
		ns.cur++
		return true
	}
	return false
}

// Len implements graph.Iterator of gonum: it returns the number of nodes remaining
func (ns *NodeSet) Len() int {
	return len(ns.nodes) - ns.cur - 1
}

// Reset implements graph.Iterator of gonum
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node implements graph.Nodes of gonum
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.nodes) {
		return nil
	}
	return ns.nodes[ns.cur]
}
