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

import "github.com/awslabs/ar-thresc/internal/funcutil"

// Tree is a node of a tree with labels of type T. A tree is built top-down from its root with AddChild, and read
// bottom-up with Path.
type Tree[T any] struct {
	Parent   *Tree[T]
	Children []*Tree[T]
	Label    T
	// Depth is the number of edges between the root and the node
	Depth int
}

// NewTree returns a tree with a single root node labelled rootLabel
func NewTree[T any](rootLabel T) *Tree[T] {
	return &Tree[T]{Label: rootLabel}
}

// AddChild adds a new child labelled label to t and returns it
func (t *Tree[T]) AddChild(label T) *Tree[T] {
	child := &Tree[T]{Parent: t, Label: label, Depth: t.Depth + 1}
	t.Children = append(t.Children, child)
	return child
}

// Path returns the labels of the nodes from the root of the tree to t, excluding the label of the root.
func (t *Tree[T]) Path() []T {
	path := make([]T, 0, t.Depth)
	for cur := t; cur.Parent != nil; cur = cur.Parent {
		path = append(path, cur.Label)
	}
	funcutil.Reverse(path)
	return path
}
