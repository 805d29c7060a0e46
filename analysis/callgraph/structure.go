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

package callgraph

import (
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/internal/graphutil"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// AsGraph returns the call graph as a graphutil.CGraph, where node ids are the indices of Nodes()
func (g *Graph) AsGraph() graphutil.CGraph {
	labels := make(map[int64]string, len(g.nodes))
	succs := make(map[int64][]int64, len(g.nodes))
	for i, n := range g.nodes {
		labels[int64(i)] = n.String()
	}
	for site, callees := range g.targets {
		caller := Node{Context: site.Context, Method: site.Call.Parent()}
		from, ok := g.index[caller]
		if !ok {
			continue
		}
		for _, callee := range callees {
			succs[int64(from)] = append(succs[int64(from)], int64(g.index[callee]))
		}
	}
	return graphutil.NewGraph(labels, succs)
}

func (g *Graph) nodesOf(ids []int64) []Node {
	res := make([]Node, 0, len(ids))
	for _, id := range ids {
		res = append(res, g.nodes[id])
	}
	return res
}

// ReachableFrom returns the nodes reachable from the given nodes through call edges, in breadth-first order
func (g *Graph) ReachableFrom(from []Node) []Node {
	cg := g.AsGraph()
	var ids []int64
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { ids = append(ids, n.ID()) },
	}
	for _, n := range from {
		i, ok := g.index[n]
		if !ok {
			continue
		}
		bf.Walk(cg, cg.Node(int64(i)), nil)
	}
	return g.nodesOf(ids)
}

// RecursiveComponents returns the strongly connected components of the call graph that contain a cycle: either
// they have more than one node, or their only node calls itself.
func (g *Graph) RecursiveComponents() [][]Node {
	cg := g.AsGraph()
	var res [][]Node
	for _, scc := range topo.TarjanSCC(cg) {
		if len(scc) == 1 && !cg.HasSelfLoop(scc[0].ID()) {
			continue
		}
		ids := make([]int64, len(scc))
		for i, n := range scc {
			ids[i] = n.ID()
		}
		slices.Sort(ids)
		res = append(res, g.nodesOf(ids))
	}
	return res
}

// BottomUp returns the strongly connected components of the call graph, callees first
func (g *Graph) BottomUp() [][]Node {
	cg := g.AsGraph()
	var res [][]Node
	for _, scc := range graphutil.StronglyConnectedComponents(cg.Keys, cg.Successors) {
		res = append(res, g.nodesOf(scc))
	}
	return res
}

// Cycles returns the elementary recursion cycles of the call graph. A cycle starts and ends with the same node.
// Direct recursion is reported as a cycle of length one.
func (g *Graph) Cycles() [][]Node {
	cg := g.AsGraph()
	var res [][]Node
	for _, id := range cg.Keys {
		if cg.HasSelfLoop(id) {
			res = append(res, g.nodesOf([]int64{id, id}))
		}
	}
	for _, cycle := range graphutil.FindAllElementaryCycles(cg) {
		res = append(res, g.nodesOf(cycle))
	}
	return res
}

// Stats is a summary of the structure of a call graph
type Stats struct {
	Nodes         int
	Edges         int
	Contexts      int
	Roots         int
	Methods       int
	RecursiveSCCs int
}

// ComputeStats returns the structural statistics of the call graph
func (g *Graph) ComputeStats() Stats {
	distinct := map[*program.Method]bool{}
	for _, n := range g.nodes {
		distinct[n.Method] = true
	}
	return Stats{
		Nodes:         len(g.nodes),
		Edges:         g.NumEdges(),
		Contexts:      g.Contexts.Len(),
		Roots:         len(g.roots),
		Methods:       len(distinct),
		RecursiveSCCs: len(g.RecursiveComponents()),
	}
}
