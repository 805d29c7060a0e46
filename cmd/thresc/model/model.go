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

// Package model implements the thresc subcommand that analyzes programs described in YAML.
package model

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/escape"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/cmd/thresc/tools"
	"github.com/awslabs/ar-thresc/internal/formatutil"
)

// Usage of the model subcommand
const Usage = ` Classify the heap accesses of a program described in YAML as thread-local or escaping.
Usage:
  thresc model [options] <program.yaml>
Examples:
  % thresc model -config config.yaml program.yaml
  % thresc model -all -timeout 10s program.yaml
`

// Flags represents the parsed flags of the model subcommand.
type Flags struct {
	tools.CommonFlags
	all     bool
	timeout time.Duration
}

// NewFlags returns the parsed flags of the model subcommand with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("model")
	all := flags.FlagSet.Bool("all", false, "query every heap access instead of the queries of the program file")
	timeout := flags.FlagSet.Duration("timeout", 0, "override the query timeout of the config")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if common.FlagSet.NArg() != 1 {
		return Flags{}, fmt.Errorf("expected one program file, got %d arguments", common.FlagSet.NArg())
	}
	return Flags{CommonFlags: common, all: *all, timeout: *timeout}, nil
}

// Run runs the escape analysis on the program file given as argument.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	if flags.timeout > 0 {
		cfg.SetTimeout(flags.timeout)
	}
	logger := config.NewLogGroup(cfg)

	filename := flags.FlagSet.Arg(0)
	logger.Infof(formatutil.Faint("Reading program %s"), filename)
	prog, queries, err := program.LoadYAML(filename)
	if err != nil {
		return fmt.Errorf("could not load program: %v", err)
	}
	if flags.all || len(queries) == 0 {
		queries = escape.AllHeapQueries(prog)
	}

	return Analyze(context.Background(), escape.NewAnalysis(prog, nil, cfg, logger), queries)
}

// Analyze runs the queries, prints the result and writes the reports requested by the config of a.
func Analyze(ctx context.Context, a *escape.Analysis, queries []program.Query) error {
	start := time.Now()
	res, err := a.RunBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("escape analysis failed: %v", err)
	}
	a.Logger.Infof("Analysis took %3.4f s", time.Since(start).Seconds())
	labels := map[program.Instruction]string{}
	for name, instr := range a.Program.Labels() {
		labels[instr] = name
	}
	tools.PrintResult(os.Stdout, res, func(instr program.Instruction) string {
		if l, ok := labels[instr]; ok {
			return instr.Pos() + " " + l
		}
		return instr.Pos()
	})
	if _, err := escape.WriteReports(a.Config, a.Logger, res); err != nil {
		return err
	}
	return nil
}
