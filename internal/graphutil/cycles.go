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

package graphutil

import (
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// FindAllElementaryCycles returns the elementary cycles of cg with at least two nodes, using Johnson's algorithm
// ("Finding All The Elementary Circuits of a Directed Graph", 1975). Each cycle starts with its smallest node id and
// ends with it again. Cycles are returned in a deterministic order: by start node, then in depth-first order
// following successors in increasing id order. Self loops are not reported; use HasSelfLoop.
func FindAllElementaryCycles(cg CGraph) [][]int64 {
	j := &johnson{g: cg}

	for start := 0; start < len(cg.Keys); {
		sub := Subgraph(cg, cg.Keys[start:])
		least, component := leastComponent(sub)
		if component == nil {
			break
		}
		j.component = component
		j.blocked = map[int64]bool{}
		j.blist = map[int64]map[int64]bool{}
		j.stack = j.stack[:0]
		j.circuit(least, least)
		start = slices.Index(cg.Keys, least) + 1
	}
	return j.cycles
}

// leastComponent returns the strongly connected component of g with at least two nodes that contains the smallest
// node id, along with that id. It returns a nil component when g has no cycle.
func leastComponent(g CGraph) (int64, map[int64]bool) {
	var best []int
	for _, c := range graph.StrongComponents(g) {
		if len(c) < 2 {
			continue
		}
		slices.Sort(c)
		if best == nil || c[0] < best[0] {
			best = c
		}
	}
	if best == nil {
		return 0, nil
	}
	members := make(map[int64]bool, len(best))
	for _, v := range best {
		members[int64(v)] = true
	}
	return int64(best[0]), members
}

type johnson struct {
	g         CGraph
	component map[int64]bool
	blocked   map[int64]bool
	blist     map[int64]map[int64]bool
	stack     []int64
	cycles    [][]int64
}

func (j *johnson) unblock(u int64) {
	j.blocked[u] = false
	for w := range j.blist[u] {
		delete(j.blist[u], w)
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}

// circuit searches the cycles through start that continue with v
func (j *johnson) circuit(v, start int64) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true
	for _, w := range j.g.Successors(v) {
		if !j.component[w] {
			continue
		}
		if w == start {
			if v != start {
				cycle := append(slices.Clone(j.stack), start)
				j.cycles = append(j.cycles, cycle)
			}
			found = true
		} else if !j.blocked[w] && j.circuit(w, start) {
			found = true
		}
	}
	if found {
		j.unblock(v)
	} else {
		for _, w := range j.g.Successors(v) {
			if !j.component[w] {
				continue
			}
			if j.blist[w] == nil {
				j.blist[w] = map[int64]bool{}
			}
			j.blist[w][v] = true
		}
	}
	j.stack = j.stack[:len(j.stack)-1]
	return found
}
