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

// Package calls implements the thresc subcommand that prints the context-sensitive call graph of a program.
package calls

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/ar-thresc/analysis/callgraph"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/cmd/thresc/tools"
	"github.com/awslabs/ar-thresc/internal/formatutil"
	"github.com/awslabs/ar-thresc/internal/funcutil"
)

// Usage of the callgraph subcommand
const Usage = ` Print the call graph used by the escape analysis for a program described in YAML.
Usage:
  thresc callgraph [options] <program.yaml>
Examples:
  % thresc callgraph -k 2 -cycles program.yaml
`

// Flags represents the parsed flags of the callgraph subcommand.
type Flags struct {
	tools.CommonFlags
	k      int
	cycles bool
}

// NewFlags returns the parsed flags of the callgraph subcommand with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("callgraph")
	k := flags.FlagSet.Int("k", -1, "override the context depth of the config")
	cycles := flags.FlagSet.Bool("cycles", false, "print the elementary recursion cycles")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if common.FlagSet.NArg() != 1 {
		return Flags{}, fmt.Errorf("expected one program file, got %d arguments", common.FlagSet.NArg())
	}
	return Flags{CommonFlags: common, k: *k, cycles: *cycles}, nil
}

// Run builds and prints the call graph of the program file given as argument.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	if flags.k >= 0 {
		cfg.ContextDepth = flags.k
	}
	prog, _, err := program.LoadYAML(flags.FlagSet.Arg(0))
	if err != nil {
		return fmt.Errorf("could not load program: %v", err)
	}
	Print(os.Stdout, callgraph.Build(prog, cfg.ContextDepth), flags.cycles)
	return nil
}

// Print writes the statistics, the nodes and edges, the unreachable methods and the recursive components of g.
func Print(w io.Writer, g *callgraph.Graph, cycles bool) {
	stats := g.ComputeStats()
	fmt.Fprintf(w, "%s %d nodes (%d methods, %d contexts), %d edges, %d roots\n", formatutil.Bold("Call graph:"),
		stats.Nodes, stats.Methods, stats.Contexts, stats.Edges, stats.Roots)

	for _, n := range g.Nodes() {
		marker := ""
		if g.IsRoot(n) {
			marker = formatutil.Cyan(" (root)")
		}
		if n.Context != callgraph.EmptyContext {
			marker += " " + formatutil.Faint(g.Contexts.String(n.Context))
		}
		fmt.Fprintf(w, "%s%s\n", n, marker)
		for _, site := range callSites(n) {
			for _, callee := range g.Targets(n.Context, site) {
				fmt.Fprintf(w, "  %s -> %s\n", formatutil.Faint(site.Pos()), callee)
			}
		}
	}

	reached := map[string]bool{}
	for _, n := range g.Nodes() {
		reached[n.Method.Name] = true
	}
	unreachable := map[string]bool{}
	for _, m := range g.Program.Methods {
		if !reached[m.Name] {
			unreachable[m.Name] = true
		}
	}
	if len(unreachable) > 0 {
		fmt.Fprintf(w, "%s %s\n", formatutil.Yellow("Unreachable:"),
			strings.Join(funcutil.SetToOrderedSlice(unreachable), ", "))
	}

	for _, scc := range g.RecursiveComponents() {
		fmt.Fprintf(w, "%s %s\n", formatutil.Purple("Recursive:"),
			strings.Join(funcutil.Map(scc, callgraph.Node.String), ", "))
	}
	if cycles {
		for _, cycle := range g.Cycles() {
			fmt.Fprintf(w, "%s %s\n", formatutil.Magenta("Cycle:"),
				strings.Join(funcutil.Map(cycle, callgraph.Node.String), " -> "))
		}
	}
}

func callSites(n callgraph.Node) []*program.Invoke {
	var calls []*program.Invoke
	for _, b := range n.Method.Blocks {
		for _, instr := range b.Instrs {
			if call, ok := instr.(*program.Invoke); ok && !call.Spawn {
				calls = append(calls, call)
			}
		}
	}
	return calls
}
