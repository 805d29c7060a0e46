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
	"time"

	"github.com/awslabs/ar-thresc/analysis/callgraph"
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/pkg/errors"
)

// Classification is the result of a query for one heap access instruction
type Classification int

const (
	// Local means the base object of the access is never reachable by another thread
	Local Classification = iota
	// Escaping means the base object of the access may be reachable by another thread
	Escaping
	// TimedOut means the query did not complete. It must be treated as Escaping.
	TimedOut
)

func (c Classification) String() string {
	switch c {
	case Local:
		return "LOCAL"
	case Escaping:
		return "ESCAPING"
	case TimedOut:
		return "TIMED_OUT"
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// IsEscaping returns true if the instruction must be considered escaping
func (c Classification) IsEscaping() bool {
	return c != Local
}

// Analysis holds the read-only inputs shared by all the queries on a program. Queries can run concurrently.
type Analysis struct {
	Program   *program.Program
	CallGraph callgraph.Oracle
	Config    *config.Config
	Logger    *config.LogGroup
}

// NewAnalysis returns an analysis of prog. If cg is nil, the call graph is built with the context depth of the
// config.
func NewAnalysis(prog *program.Program, cg callgraph.Oracle, cfg *config.Config, logger *config.LogGroup) *Analysis {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	if cg == nil {
		cg = callgraph.Build(prog, cfg.ContextDepth)
	}
	return &Analysis{Program: prog, CallGraph: cg, Config: cfg, Logger: logger}
}

// QueryResult is the result of one query
type QueryResult struct {
	Query   program.Query
	Classes map[program.InstrID]Classification
	Outcome Outcome
	Stats   Stats
	Elapsed time.Duration
}

// Of returns the classification of the query instruction
func (r *QueryResult) Of(instr program.Instruction) Classification {
	return r.Classes[instr.ID()]
}

// Classify runs query q: a set of heap access instructions sharing the same set of allocation sites tracked
// precisely. The query is bounded by the query timeout of the config; when the bound is reached, every query
// instruction that has not been found escaping yet is TimedOut. Classify returns an error when the query is not
// valid, or when the engine finds an inconsistency.
func (a *Analysis) Classify(ctx context.Context, q program.Query) (*QueryResult, error) {
	for _, instr := range q.Instrs {
		if !program.IsHeapAccess(instr) {
			return nil, errors.Errorf("%s at %s is not a heap access", instr, instr.Pos())
		}
	}
	if d := a.Config.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	engine := NewEngine(a.Program, a.CallGraph, a.Config, a.Logger, q)
	outcome, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}
	res := &QueryResult{
		Query:   q,
		Classes: make(map[program.InstrID]Classification, len(q.Instrs)),
		Outcome: outcome,
		Stats:   engine.Stats(),
		Elapsed: time.Since(start),
	}
	for _, instr := range q.Instrs {
		switch {
		case engine.Escaping(instr):
			res.Classes[instr.ID()] = Escaping
		case outcome == OutcomeTimedOut:
			res.Classes[instr.ID()] = TimedOut
		default:
			res.Classes[instr.ID()] = Local
		}
	}
	if outcome == OutcomeTimedOut {
		a.Logger.Warnf("query on %d instructions timed out after %s (%d path edges)", len(q.Instrs),
			res.Elapsed, res.Stats.PathEdges)
	}
	if a.Logger.LogsDebug() {
		a.Logger.SetFields(map[string]any{
			"instrs":    len(q.Instrs),
			"outcome":   outcome,
			"elapsed":   res.Elapsed,
			"pops":      res.Stats.Pops,
			"paths":     res.Stats.PathEdges,
			"summaries": res.Stats.SummaryEdges,
		}).Debug("query done")
	}
	return res, nil
}

// ClassifyInstruction classifies a single heap access, tracking precisely the given allocation sites (all the
// sites of the program if sites is nil)
func (a *Analysis) ClassifyInstruction(ctx context.Context, instr program.Instruction,
	sites []program.SiteID) (Classification, error) {
	res, err := a.Classify(ctx, program.Query{Instrs: []program.Instruction{instr}, Sites: sites})
	if err != nil {
		return Escaping, err
	}
	return res.Of(instr), nil
}
