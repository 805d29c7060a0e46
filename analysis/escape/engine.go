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
	"context"
	"fmt"

	"github.com/awslabs/ar-thresc/analysis/callgraph"
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/program"
)

// Outcome is the way a run of the engine ended
type Outcome int

const (
	// Completed means the worklist has been emptied
	Completed Outcome = iota
	// EarlyExit means all the query instructions were found escaping before the fixed point was reached
	EarlyExit
	// OutcomeTimedOut means the run was cancelled, or exceeded its bound on path edges
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case EarlyExit:
		return "early-exit"
	case OutcomeTimedOut:
		return "timed-out"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Stats are the counters of one run of the engine
type Stats struct {
	Pops         int
	PathEdges    int
	SummaryEdges int
	// SummaryInserts counts the new summaries inserted per node
	SummaryInserts map[callgraph.Node]int
}

// Engine computes the path edges and summary edges of one query by tabulation over the call graph. An engine is
// not safe for concurrent use, and must not be shared between queries: each query owns its tables.
type Engine struct {
	prog   *program.Program
	cg     callgraph.Oracle
	cfg    *config.Config
	logger *config.LogGroup

	transfer  *transfer
	paths     *PathEdges
	summaries *Summaries
	roots     map[callgraph.Node]bool

	// query instructions, and the ones that have been visited and found escaping
	queries  map[program.InstrID]bool
	visited  map[program.InstrID]bool
	escaping map[program.InstrID]bool
	pops     int
}

// NewEngine returns an engine for query q on prog
func NewEngine(prog *program.Program, cg callgraph.Oracle, cfg *config.Config, logger *config.LogGroup,
	q program.Query) *Engine {
	e := &Engine{
		prog:      prog,
		cg:        cg,
		cfg:       cfg,
		logger:    logger,
		transfer:  newTransfer(q.Sites, cfg.KillPolicy),
		paths:     NewPathEdges(),
		summaries: NewSummaries(),
		roots:     map[callgraph.Node]bool{},
		queries:   map[program.InstrID]bool{},
		visited:   map[program.InstrID]bool{},
		escaping:  map[program.InstrID]bool{},
	}
	for _, instr := range q.Instrs {
		e.queries[instr.ID()] = true
	}
	return e
}

// PathEdges returns the path edge table of the engine
func (e *Engine) PathEdges() *PathEdges { return e.paths }

// Summaries returns the summary table of the engine
func (e *Engine) Summaries() *Summaries { return e.summaries }

// Escaping returns true if the query instruction has been visited with an escaping base
func (e *Engine) Escaping(instr program.Instruction) bool { return e.escaping[instr.ID()] }

// Visited returns true if the query instruction has been reached by some path edge
func (e *Engine) Visited(instr program.Instruction) bool { return e.visited[instr.ID()] }

// Stats returns the counters of the engine
func (e *Engine) Stats() Stats {
	inserts := map[callgraph.Node]int{}
	for node, n := range e.summaries.inserts {
		inserts[node] = n
	}
	return Stats{
		Pops:           e.pops,
		PathEdges:      e.paths.Len(),
		SummaryEdges:   e.summaries.Len(),
		SummaryInserts: inserts,
	}
}

// Run seeds the roots of the call graph and runs the worklist until it is empty, all the query instructions are
// escaping (if early exit is enabled), or ctx is done. A non-nil error is always an *InconsistencyError.
func (e *Engine) Run(ctx context.Context) (Outcome, error) {
	e.seed()
	for {
		if ctx.Err() != nil {
			return OutcomeTimedOut, nil
		}
		if e.cfg.ExceedsMaxPathEdges(e.paths.Len()) {
			e.logger.Debugf("path edge bound exceeded (%d)", e.paths.Len())
			return OutcomeTimedOut, nil
		}
		item, ok := e.paths.pop()
		if !ok {
			return Completed, nil
		}
		e.pops++
		done, err := e.step(item)
		if err != nil {
			return Completed, err
		}
		if done {
			return EarlyExit, nil
		}
	}
}

// seed adds the entry path edges of the roots. The main method starts with every variable Empty, other roots are
// thread entry points and their formals point to escaping objects.
func (e *Engine) seed() {
	for _, root := range e.cg.Roots() {
		e.roots[root] = true
		m := root.Method
		env := make([]PointsTo, m.NumVars)
		if m != e.prog.Main {
			for i := 0; i < m.NumParams; i++ {
				env[i] = EscPts
			}
		}
		src := NewSrcNode(env, Heap{})
		e.paths.Add(root, Location{Block: m.Entry, Index: -1}, Edge{Src: src, Dst: src.DstNode()})
	}
}

func (e *Engine) step(item workItem) (bool, error) {
	d := item.edge.Dst
	if e.cfg.CheckInvariants {
		if err := d.Check(); err != nil {
			return false, e.inconsistency(item, item.loc.Instr(), err.Error())
		}
	}
	if e.logger.LogsTrace() {
		e.logger.Tracef("%s %s:%d %s", item.node, item.loc.Block, item.loc.Index, d)
	}
	instr := item.loc.Instr()
	if instr == nil {
		if item.loc.Block == item.node.Method.Exit {
			return false, e.processReturn(item, EmptyPts, d)
		}
		e.propagateToSucc(item.node, item.loc, item.edge.Src, d)
		return false, nil
	}

	if e.queries[instr.ID()] && e.checkQuery(instr, d) {
		return true, nil
	}

	switch instr := instr.(type) {
	case *program.Invoke:
		if instr.IsFork() && len(e.cg.Targets(item.node.Context, instr)) == 0 {
			e.propagateToSucc(item.node, item.loc, item.edge.Src, e.transfer.fork(instr, d))
			return false, nil
		}
		return false, e.processInvoke(item, instr)
	case *program.Return:
		return false, e.processReturn(item, d.Env(instr.Src), d)
	case *program.Throw:
		d = e.transfer.escape(d, d.Env(instr.Src).Local())
		return false, e.processReturn(item, EmptyPts, d)
	default:
		e.propagateToSucc(item.node, item.loc, item.edge.Src, e.transfer.apply(instr, d))
		return false, nil
	}
}

// checkQuery records whether the base of the query instruction may point to an escaping object in d, and returns
// true when the run can stop because all the query instructions are escaping.
func (e *Engine) checkQuery(instr program.Instruction, d *DstNode) bool {
	e.visited[instr.ID()] = true
	base, ok := program.Base(instr)
	if !ok || !d.Env(base).HasEscaped() || e.escaping[instr.ID()] {
		return false
	}
	e.escaping[instr.ID()] = true
	e.logger.Debugf("%s escapes at %s", instr, instr.Pos())
	return e.cfg.EarlyExit && len(e.escaping) == len(e.queries)
}

// propagateToSucc adds the path edge (src, d) at the program point following loc
func (e *Engine) propagateToSucc(node callgraph.Node, loc Location, src *SrcNode, d *DstNode) {
	edge := Edge{Src: src, Dst: d}
	if loc.Index >= 0 && loc.Index+1 < len(loc.Block.Instrs) {
		e.paths.Add(node, Location{Block: loc.Block, Index: loc.Index + 1}, edge)
		return
	}
	for _, succ := range loc.Block.Succs {
		e.paths.Add(node, firstLocation(succ), edge)
	}
}

func firstLocation(b *program.Block) Location {
	if len(b.Instrs) == 0 {
		return Location{Block: b, Index: -1}
	}
	return Location{Block: b, Index: 0}
}

// calleeSrc returns the entry state of callee when called by call in state d: the formals are the actuals, other
// variables are Empty, and the heap is the heap of the caller
func calleeSrc(d *DstNode, call *program.Invoke, callee *program.Method) *SrcNode {
	env := make([]PointsTo, callee.NumVars)
	for i, arg := range call.Args {
		env[i] = d.Env(arg)
	}
	return NewSrcNode(env, d.heap)
}

// callState returns the state in which the ordinary callees of call are entered. A virtual call that may also
// reach a thread-start method escapes its receiver first.
func (e *Engine) callState(call *program.Invoke, d *DstNode) *DstNode {
	if call.IsFork() {
		return e.transfer.fork(call, d)
	}
	return d
}

func (e *Engine) processInvoke(item workItem, call *program.Invoke) error {
	d := e.callState(call, item.edge.Dst)
	targets := e.cg.Targets(item.node.Context, call)
	if len(targets) == 0 {
		// unknown callee: the arguments escape, and the result is escaping
		var sites SiteSet
		for _, arg := range call.Args {
			sites = sites.Union(d.Env(arg).Local())
		}
		d = e.transfer.escape(d, sites)
		if call.Dst != program.NoVar {
			d = d.WithVar(call.Dst, EscPts)
		}
		e.propagateToSucc(item.node, item.loc, item.edge.Src, d)
		return nil
	}
	for _, callee := range targets {
		if len(call.Args) != callee.Method.NumParams {
			return e.inconsistency(item, call,
				fmt.Sprintf("%d arguments for %d formals of %s", len(call.Args), callee.Method.NumParams,
					callee.Method.Name))
		}
		src := calleeSrc(d, call, callee.Method)
		for _, sum := range e.summaries.Matching(callee, src) {
			e.applySummary(item.node, item.loc, call, item.edge, callee, sum)
		}
		e.paths.Add(callee, Location{Block: callee.Method.Entry, Index: -1}, Edge{Src: src, Dst: src.DstNode()})
	}
	return nil
}

// applySummary applies the summary of callee to the path edge of the caller parked at call. It returns false if
// the summary does not match the entry state of the callee for that path edge.
func (e *Engine) applySummary(caller callgraph.Node, loc Location, call *program.Invoke, pe Edge,
	callee callgraph.Node, sum Summary) bool {
	d := e.callState(call, pe.Dst)
	if !calleeSrc(d, call, callee.Method).Equal(sum.Src) {
		return false
	}
	ret := sum.Ret
	env := make([]PointsTo, len(d.env))
	copy(env, d.env)
	var escalated SiteSet
	if ret.Kill {
		for i, pts := range env {
			if pts.IsEmpty() {
				continue
			}
			if e.cfg.KillMerge == config.KillJoin {
				env[i] = pts.WithEscaped()
			} else {
				escalated = escalated.Union(pts.Local())
				env[i] = EscPts
			}
		}
	}
	if call.Dst != program.NoVar {
		env[call.Dst] = ret.Pts
		if call.IsFork() {
			env[call.Dst] = ret.Pts.WithEscaped()
		}
	}
	out := NewDstNode(env, ret.Heap, d.esc.Union(ret.Esc), d.kill || ret.Kill).PropagateEscape(escalated)
	e.propagateToSucc(caller, loc, pe.Src, out)
	return true
}

// processReturn records the summary of the activation of the path edge, and applies it to every path edge parked
// at a call site of the node
func (e *Engine) processReturn(item workItem, pts PointsTo, d *DstNode) error {
	sum := Summary{
		Src: item.edge.Src,
		Ret: RetNode{Pts: pts, Heap: d.heap, Esc: d.esc, Kill: d.kill},
	}
	if !e.summaries.Add(item.node, sum) {
		return nil
	}
	matched := false
	for _, site := range e.cg.Callers(item.node) {
		caller := callgraph.Node{Context: site.Context, Method: site.Call.Parent()}
		loc := LocationOf(site.Call)
		for _, pe := range e.paths.At(caller, loc) {
			if e.applySummary(caller, loc, site.Call, pe, item.node, sum) {
				matched = true
			}
		}
	}
	if !matched && !e.roots[item.node] {
		return e.inconsistency(item, item.loc.Instr(), "new summary has no matching caller")
	}
	return nil
}

func (e *Engine) inconsistency(item workItem, instr program.Instruction, msg string) error {
	err := &InconsistencyError{
		Method:  item.node.Method.Name,
		Context: item.node.Context,
		Msg:     msg,
	}
	if instr != nil {
		err.Instr = instr.String()
	}
	e.logger.Errorf("%s", err)
	return err
}
