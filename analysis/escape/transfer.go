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
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/program"
)

// transfer implements the intraprocedural transfer functions of one query. Calls and returns are handled by the
// engine, except forks, which are not calls.
type transfer struct {
	// allocs is the set of sites tracked precisely by the query; all sites when allSites is set
	allocs   SiteSet
	allSites bool
	policy   config.KillPolicy
}

func newTransfer(sites []program.SiteID, policy config.KillPolicy) *transfer {
	return &transfer{
		allocs:   NewSiteSet(sites...),
		allSites: sites == nil,
		policy:   policy,
	}
}

func (t *transfer) tracked(h program.SiteID) bool {
	return t.allSites || t.allocs.Contains(h)
}

// escape makes the sites escape, according to the kill policy
func (t *transfer) escape(d *DstNode, sites SiteSet) *DstNode {
	sites = sites.Minus(SiteSet{Escaped})
	if len(sites) == 0 {
		return d
	}
	if t.policy == config.KillReset {
		return d.Reset()
	}
	return d.PropagateEscape(sites)
}

// apply returns the state after instr. It returns d itself when instr does not change the state.
func (t *transfer) apply(instr program.Instruction, d *DstNode) *DstNode {
	switch instr := instr.(type) {
	case *program.Move:
		return d.WithVar(instr.Dst, d.Env(instr.Src))

	case *program.Phi:
		pts := EmptyPts
		for _, src := range instr.Srcs {
			pts = pts.Join(d.Env(src))
		}
		return d.WithVar(instr.Dst, pts)

	case *program.Alloc:
		if !t.tracked(instr.Site) || d.esc.Contains(instr.Site) {
			return d.WithVar(instr.Dst, EscPts)
		}
		return d.WithVar(instr.Dst, LocalPts(instr.Site))

	case *program.Load:
		return d.WithVar(instr.Dst, t.load(d, d.Env(instr.Base), instr.Field))

	case *program.Store:
		return t.store(d, d.Env(instr.Base), instr.Field, d.Env(instr.Src))

	case *program.StaticLoad:
		return d.WithVar(instr.Dst, EscPts)

	case *program.StaticStore:
		return t.escape(d, d.Env(instr.Src).Local())

	case *program.Invoke:
		if instr.IsFork() {
			return t.fork(instr, d)
		}
		return d

	case *program.Nop, *program.Return, *program.Throw:
		return d
	}
	return d
}

// load returns the abstraction of b.f. Fields of local objects that were never written point to nothing, fields
// of escaping objects may point to anything escaping.
func (t *transfer) load(d *DstNode, base PointsTo, f program.FieldID) PointsTo {
	if base.IsEmpty() {
		return EmptyPts
	}
	res := PointsTo{sites: d.heap.Targets(base.Local(), f)}
	if base.HasEscaped() {
		res = res.WithEscaped()
	}
	return res
}

// store returns the state after b.f = r
func (t *transfer) store(d *DstNode, base PointsTo, f program.FieldID, r PointsTo) *DstNode {
	if base.IsEmpty() {
		return d
	}
	if base.IsOnlyEscaping() {
		return t.escape(d, r.Local())
	}
	var edges []HeapEdge
	for _, src := range base.Local() {
		for _, dst := range r.Sites() {
			edges = append(edges, HeapEdge{Src: src, Field: f, Dst: dst})
		}
	}
	d = d.WithHeap(d.heap.Add(edges...))
	if base.HasEscaped() {
		return t.escape(d, r.Local())
	}
	return d
}

// fork returns the state after a thread is started by call. The arguments of a spawn become reachable from the
// new thread; for a thread-start method only the receiver does.
func (t *transfer) fork(call *program.Invoke, d *DstNode) *DstNode {
	var sites SiteSet
	for i, arg := range call.Args {
		if !call.Spawn && i > 0 {
			break
		}
		sites = sites.Union(d.Env(arg).Local())
	}
	d = t.escape(d, sites)
	if call.Dst != program.NoVar {
		d = d.WithVar(call.Dst, EscPts)
	}
	return d
}
