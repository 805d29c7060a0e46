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
	"strings"

	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/internal/graphutil"
)

// Context identifies a call string. The zero value is the empty call string.
type Context int

// EmptyContext is the context of the roots, and the only context of a context-insensitive call graph
const EmptyContext Context = 0

type ctxChild struct {
	parent Context
	call   program.InstrID
}

// Contexts interns call strings of length at most k. Call strings are stored in a trie: the parent of a call string
// is the call string without its last call site.
type Contexts struct {
	k        int
	nodes    []*graphutil.Tree[*program.Invoke]
	children map[ctxChild]Context
}

// NewContexts returns a table of call strings of length at most k
func NewContexts(k int) *Contexts {
	return &Contexts{
		k:        k,
		nodes:    []*graphutil.Tree[*program.Invoke]{graphutil.NewTree[*program.Invoke](nil)},
		children: map[ctxChild]Context{},
	}
}

// Len returns the number of interned contexts
func (c *Contexts) Len() int {
	return len(c.nodes)
}

// CallString returns the call sites of ctx, outermost first
func (c *Contexts) CallString(ctx Context) []*program.Invoke {
	return c.nodes[ctx].Path()
}

// Extend returns the context of a callee called at call from ctx: the call string of ctx followed by call, truncated
// to its last k call sites.
func (c *Contexts) Extend(ctx Context, call *program.Invoke) Context {
	if c.k <= 0 {
		return EmptyContext
	}
	cs := append(c.CallString(ctx), call)
	if len(cs) > c.k {
		cs = cs[len(cs)-c.k:]
	}
	cur := EmptyContext
	for _, site := range cs {
		key := ctxChild{parent: cur, call: site.ID()}
		next, ok := c.children[key]
		if !ok {
			next = Context(len(c.nodes))
			c.nodes = append(c.nodes, c.nodes[cur].AddChild(site))
			c.children[key] = next
		}
		cur = next
	}
	return cur
}

// String returns a printable form of the call string ctx
func (c *Contexts) String(ctx Context) string {
	cs := c.CallString(ctx)
	if len(cs) == 0 {
		return "[]"
	}
	parts := make([]string, len(cs))
	for i, call := range cs {
		parts[i] = call.Pos()
	}
	return "[" + strings.Join(parts, " > ") + "]"
}
