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

package graphutil_test

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/awslabs/ar-thresc/internal/funcutil"
	"github.com/awslabs/ar-thresc/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/topo"
)

// main -> a -> b -> main, b -> c -> b, d isolated
func smallGraph() graphutil.CGraph {
	labels := map[int64]string{0: "main", 1: "a", 2: "b", 3: "c", 4: "d"}
	succs := map[int64][]int64{
		0: {1},
		1: {2},
		2: {0, 3},
		3: {2},
	}
	return graphutil.NewGraph(labels, succs)
}

func TestFindAllElementaryCycles(t *testing.T) {
	g := smallGraph()
	stats := graph.Check(g)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)
	if stats.Size != 5 {
		t.Errorf("expected 5 edges, got %d", stats.Size)
	}

	cycles := graphutil.FindAllElementaryCycles(g)
	expected := []string{"0120", "232"}

	n := len(cycles)
	if n != 2 {
		t.Fatalf("Expected 2 elementary cycles, found %d", n)
	}
	results := make([]string, n)
	for i, cycle := range cycles {
		results[i] = strings.Join(
			funcutil.Map(cycle, func(_x int64) string { return strconv.Itoa(int(_x)) }),
			"")
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	if !slices.Equal(results, expected) {
		for i, s := range results {
			t.Logf("Cycle %d: %s", i, s)
		}
		t.Fatalf("Cycles not as expected")
	}
}

func TestGonumInterface(t *testing.T) {
	g := smallGraph()
	sccs := topo.TarjanSCC(g)
	nontrivial := 0
	for _, scc := range sccs {
		if len(scc) > 1 {
			nontrivial++
			if len(scc) != 4 {
				t.Errorf("expected the non-trivial component to have 4 nodes, got %d", len(scc))
			}
		}
	}
	if nontrivial != 1 {
		t.Errorf("expected one non-trivial component, got %d", nontrivial)
	}
	if g.Nodes().Len() != 5 {
		t.Errorf("expected 5 nodes")
	}
	to := g.To(2)
	if to.Len() != 2 {
		t.Errorf("expected b to have two predecessors, got %d", to.Len())
	}
	if g.NumEdges() != 5 || len(g.Successors(2)) != 2 {
		t.Errorf("unexpected edges of b: %v", g.Successors(2))
	}
	if g.Node(7) != nil {
		t.Errorf("expected no node with id 7")
	}
	if !g.HasEdgeFromTo(2, 3) || g.HasEdgeFromTo(3, 0) {
		t.Errorf("unexpected edges")
	}
}

func TestFindAllElementaryCyclesOrder(t *testing.T) {
	// 0 -> 2 -> 0, 0 -> 1 -> 0, 1 -> 1, 3 -> 4 -> 3
	g := graphutil.NewGraph(
		map[int64]string{0: "a", 1: "b", 2: "c", 3: "d", 4: "e"},
		map[int64][]int64{0: {2, 1}, 1: {0, 1}, 2: {0}, 3: {4}, 4: {3}})
	cycles := graphutil.FindAllElementaryCycles(g)
	expected := [][]int64{{0, 1, 0}, {0, 2, 0}, {3, 4, 3}}
	if len(cycles) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, cycles)
	}
	for i := range expected {
		if !slices.Equal(cycles[i], expected[i]) {
			t.Errorf("cycle %d: expected %v, got %v", i, expected[i], cycles[i])
		}
	}
	if !g.HasSelfLoop(1) {
		t.Errorf("expected a self loop on b")
	}
}
