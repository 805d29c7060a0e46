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
	"fmt"
	"math/rand"
	"testing"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type adjacency map[int][]int

func (a adjacency) reaches(x, y int) bool {
	seen := map[int]bool{x: true}
	todo := []int{x}
	for len(todo) > 0 {
		n := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		for _, s := range a[n] {
			if !seen[s] {
				seen[s] = true
				todo = append(todo, s)
			}
		}
	}
	return seen[y]
}

// checkBottomUp checks that sccs partitions the nodes of a into strongly connected sets, and that no component
// reaches a component that comes after it.
func checkBottomUp(a adjacency, sccs [][]int) error {
	pos := map[int]int{}
	for i, scc := range sccs {
		for _, x := range scc {
			if _, dup := pos[x]; dup {
				return fmt.Errorf("node %d in two components", x)
			}
			pos[x] = i
		}
	}
	for x := range a {
		i, ok := pos[x]
		if !ok {
			return fmt.Errorf("node %d in no component", x)
		}
		for y := range a {
			j := pos[y]
			if i == j && !a.reaches(x, y) {
				return fmt.Errorf("%d and %d are not strongly connected", x, y)
			}
			if i < j && a.reaches(x, y) {
				return fmt.Errorf("%d reaches %d, which is in a later component", x, y)
			}
		}
	}
	return nil
}

func sccsOf(a adjacency) [][]int {
	nodes := maps.Keys(a)
	slices.Sort(nodes)
	return StronglyConnectedComponents(nodes, func(n int) []int { return a[n] })
}

func TestStronglyConnectedComponents(t *testing.T) {
	tests := []struct {
		name  string
		graph adjacency
		n     int
	}{
		{"self loop", adjacency{0: {0}}, 1},
		{"isolated", adjacency{0: {}}, 1},
		{"chain", adjacency{0: {1}, 1: {2}, 2: {}}, 3},
		{"diamond", adjacency{0: {1, 2}, 1: {3}, 2: {1}, 3: {}}, 4},
		{"back edge", adjacency{0: {1, 2}, 1: {3}, 2: {1, 0}, 3: {}}, 3},
		{"mutual recursion", adjacency{0: {3, 1}, 1: {0}, 2: {1}, 3: {3}}, 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sccs := sccsOf(test.graph)
			if err := checkBottomUp(test.graph, sccs); err != nil {
				t.Fatal(err)
			}
			if len(sccs) != test.n {
				t.Errorf("expected %d components, got %v", test.n, sccs)
			}
		})
	}
}

func TestStronglyConnectedComponentsRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for _, size := range []int{5, 10, 30, 60} {
		for i := 0; i < 20; i++ {
			a := adjacency{}
			for n := 0; n < size; n++ {
				a[n] = nil
				for k := 0; k < 3; k++ {
					if r.Float32() < 0.6 {
						a[n] = append(a[n], r.Intn(size))
					}
				}
			}
			if err := checkBottomUp(a, sccsOf(a)); err != nil {
				t.Fatalf("graph %v: %v", a, err)
			}
		}
	}
}

func TestStronglyConnectedComponentsDeepChain(t *testing.T) {
	const depth = 200000
	sccs := StronglyConnectedComponents([]int{0}, func(n int) []int {
		if n == depth-1 {
			return []int{0}
		}
		return []int{n + 1}
	})
	if len(sccs) != 1 || len(sccs[0]) != depth {
		t.Fatalf("expected a single component of %d nodes, got %d components", depth, len(sccs))
	}
}
