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

// Package callgraph builds context-sensitive call graphs of programs, and answers the queries of the
// interprocedural escape analysis: which are the roots, which are the targets of a call site in a context, and
// which call sites call a method in a context.
package callgraph

import (
	"fmt"

	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/internal/funcutil"
)

// Node is a method in a context
type Node struct {
	Context Context
	Method  *program.Method
}

func (n Node) String() string {
	return fmt.Sprintf("%s@%d", n.Method.Name, n.Context)
}

// Site is a call site in a context
type Site struct {
	Context Context
	Call    *program.Invoke
}

// Oracle is the interface of call graphs consumed by the analysis. Oracles are read-only and can be shared by
// concurrent analyses.
type Oracle interface {
	// Roots returns the entry points: the main method and the thread roots, in the empty context
	Roots() []Node
	// Targets returns the callees of call in ctx
	Targets(ctx Context, call *program.Invoke) []Node
	// Callers returns the call sites that call the node
	Callers(node Node) []Site
}

// Graph is a call graph with k-limited call-string contexts
type Graph struct {
	Program  *program.Program
	Contexts *Contexts

	roots   []Node
	nodes   []Node
	index   map[Node]int
	targets map[Site][]Node
	callers map[Node][]Site
}

// Build constructs the call graph of prog with contexts of length at most k. The graph contains the nodes
// reachable from the main method and the thread roots of the program. Spawn calls and calls to thread-start
// methods are not call edges: the methods spawned and the thread-start methods called become thread roots.
func Build(prog *program.Program, k int) *Graph {
	g := &Graph{
		Program:  prog,
		Contexts: NewContexts(k),
		index:    map[Node]int{},
		targets:  map[Site][]Node{},
		callers:  map[Node][]Site{},
	}
	var worklist []Node
	addRoot := func(m *program.Method) {
		n := Node{Context: EmptyContext, Method: m}
		if funcutil.Contains(g.roots, n) {
			return
		}
		g.roots = append(g.roots, n)
		if g.addNode(n) {
			worklist = append(worklist, n)
		}
	}

	if prog.Main != nil {
		addRoot(prog.Main)
	}
	for _, m := range prog.ThreadRoots() {
		addRoot(m)
	}

	for len(worklist) > 0 {
		n := worklist[0]
		worklist = worklist[1:]
		for _, block := range n.Method.Blocks {
			for _, instr := range block.Instrs {
				call, ok := instr.(*program.Invoke)
				if !ok {
					continue
				}
				if call.Spawn {
					for _, t := range call.Targets {
						addRoot(t)
					}
					continue
				}
				site := Site{Context: n.Context, Call: call}
				for _, t := range call.Targets {
					if t.ThreadStart {
						addRoot(t)
						continue
					}
					callee := Node{Context: g.Contexts.Extend(n.Context, call), Method: t}
					g.targets[site] = append(g.targets[site], callee)
					g.callers[callee] = append(g.callers[callee], site)
					if g.addNode(callee) {
						worklist = append(worklist, callee)
					}
				}
			}
		}
	}
	return g
}

func (g *Graph) addNode(n Node) bool {
	if _, ok := g.index[n]; ok {
		return false
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return true
}

// Roots returns the entry points of the call graph
func (g *Graph) Roots() []Node {
	return g.roots
}

// Targets returns the callees of call in ctx
func (g *Graph) Targets(ctx Context, call *program.Invoke) []Node {
	return g.targets[Site{Context: ctx, Call: call}]
}

// Callers returns the call sites of node
func (g *Graph) Callers(node Node) []Site {
	return g.callers[node]
}

// Nodes returns all the nodes of the call graph, in discovery order
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// IsRoot returns true if n is a root of the call graph
func (g *Graph) IsRoot(n Node) bool {
	return funcutil.Contains(g.roots, n)
}

// NumEdges returns the number of call edges
func (g *Graph) NumEdges() int {
	n := 0
	for _, callees := range g.targets {
		n += len(callees)
	}
	return n
}
