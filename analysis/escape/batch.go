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
	"strings"

	"github.com/awslabs/ar-thresc/analysis/program"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// GroupQueries merges the queries that track the same set of allocation sites, so that each set is analyzed once.
// The order of the groups is the order of first appearance.
func GroupQueries(queries []program.Query) []program.Query {
	var res []program.Query
	index := map[string]int{}
	for _, q := range queries {
		k := sitesKey(q.Sites)
		i, ok := index[k]
		if !ok {
			index[k] = len(res)
			res = append(res, program.Query{Sites: q.Sites})
			i = len(res) - 1
		}
		for _, instr := range q.Instrs {
			if !slices.Contains(res[i].Instrs, instr) {
				res[i].Instrs = append(res[i].Instrs, instr)
			}
		}
	}
	return res
}

func sitesKey(sites []program.SiteID) string {
	if sites == nil {
		return "*"
	}
	s := NewSiteSet(sites...)
	var b strings.Builder
	for _, h := range s {
		fmt.Fprintf(&b, "%d,", h)
	}
	return b.String()
}

// AllHeapQueries returns the query of every heap access of the program, tracking all allocation sites
func AllHeapQueries(prog *program.Program) []program.Query {
	instrs := prog.HeapAccesses()
	if len(instrs) == 0 {
		return nil
	}
	return []program.Query{{Instrs: instrs}}
}

// Result is the classification of all the instructions of a batch of queries. Instructions are sorted by id.
type Result struct {
	Escaping []program.Instruction
	Local    []program.Instruction
	TimedOut []program.Instruction
	Queries  []*QueryResult
}

// Classification returns the classification of instr in the batch, and false if instr was not queried
func (r *Result) Classification(instr program.Instruction) (Classification, bool) {
	for _, set := range []struct {
		instrs []program.Instruction
		class  Classification
	}{{r.Escaping, Escaping}, {r.TimedOut, TimedOut}, {r.Local, Local}} {
		if slices.Contains(set.instrs, instr) {
			return set.class, true
		}
	}
	return Local, false
}

// RunBatch runs the queries with at most Config.Workers() queries in parallel. Each query owns its tables. When
// an instruction appears in several queries, the most conservative classification wins. A fatal error in one
// query cancels the batch.
func (a *Analysis) RunBatch(ctx context.Context, queries []program.Query) (*Result, error) {
	results := make([]*QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Workers())
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := a.Classify(gctx, q)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	classes := map[program.InstrID]Classification{}
	instrs := map[program.InstrID]program.Instruction{}
	for _, res := range results {
		for _, instr := range res.Query.Instrs {
			c := res.Of(instr)
			if prev, ok := classes[instr.ID()]; !ok || worse(c, prev) {
				classes[instr.ID()] = c
			}
			instrs[instr.ID()] = instr
		}
	}
	ids := maps.Keys(classes)
	slices.Sort(ids)
	out := &Result{Queries: results}
	for _, id := range ids {
		switch classes[id] {
		case Escaping:
			out.Escaping = append(out.Escaping, instrs[id])
		case TimedOut:
			out.TimedOut = append(out.TimedOut, instrs[id])
		default:
			out.Local = append(out.Local, instrs[id])
		}
	}
	a.Logger.Infof("%d escaping, %d local, %d timed out in %d queries", len(out.Escaping), len(out.Local),
		len(out.TimedOut), len(queries))
	return out, nil
}

// worse returns true if c is more conservative than prev: Escaping over TimedOut over Local
func worse(c, prev Classification) bool {
	rank := func(x Classification) int {
		switch x {
		case Escaping:
			return 2
		case TimedOut:
			return 1
		}
		return 0
	}
	return rank(c) > rank(prev)
}
