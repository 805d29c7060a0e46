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

// Package gosrc implements the thresc subcommand that analyzes Go programs.
package gosrc

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"time"

	"github.com/awslabs/ar-thresc/analysis"
	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/escape"
	"github.com/awslabs/ar-thresc/analysis/goprog"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/awslabs/ar-thresc/cmd/thresc/tools"
	"github.com/awslabs/ar-thresc/internal/formatutil"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

// Usage of the go subcommand
const Usage = ` Classify the memory accesses of a Go program as goroutine-local or escaping.
Usage:
  thresc go [options] <package path(s)>
Examples:
  % thresc go -config config.yaml main.go
  % thresc go -pkg-filter github.com/my/module ./cmd/server
`

// Flags represents the parsed flags of the go subcommand.
type Flags struct {
	tools.CommonFlags
	pkgFilter string
}

// NewFlags returns the parsed flags of the go subcommand with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("go")
	pkgFilter := flags.FlagSet.String("pkg-filter", "", "override the package filter of the config")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, pkgFilter: *pkgFilter}, nil
}

// Run loads the Go program, lowers it and classifies its memory accesses.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	if flags.pkgFilter != "" {
		cfg.SetPkgFilter(flags.pkgFilter)
	}
	logger := config.NewLogGroup(cfg)

	logger.Infof(formatutil.Faint("Reading sources"))
	loadCfg := &packages.Config{
		Mode:  analysis.PkgLoadMode,
		Tests: flags.WithTest,
		Fset:  token.NewFileSet(),
	}
	lp, err := analysis.LoadProgram(loadCfg, "", ssa.BuilderMode(0), flags.FlagSet.Args())
	if err != nil {
		return fmt.Errorf("could not load program: %v", err)
	}

	start := time.Now()
	lowered, err := goprog.Lower(lp, cfg, logger)
	if err != nil {
		return err
	}
	logger.Infof("Lowering took %3.4f s", time.Since(start).Seconds())
	for _, pkg := range lowered.Packages() {
		logger.Debugf("Lowered package %s", pkg.Pkg.Path())
	}

	a := escape.NewAnalysis(lowered.Program, nil, cfg, logger)
	res, err := a.RunBatch(context.Background(), lowered.Queries())
	if err != nil {
		return fmt.Errorf("escape analysis failed: %v", err)
	}
	tools.PrintResult(os.Stdout, res, func(instr program.Instruction) string {
		return fmt.Sprintf("%s [%s]", lowered.Position(instr), lowered.Accesses[instr])
	})
	_, err = escape.WriteReports(cfg, logger, res)
	return err
}
