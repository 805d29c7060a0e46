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

package main

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-thresc/analysis"
	"github.com/awslabs/ar-thresc/cmd/thresc/calls"
	"github.com/awslabs/ar-thresc/cmd/thresc/gosrc"
	"github.com/awslabs/ar-thresc/cmd/thresc/model"
	"github.com/awslabs/ar-thresc/cmd/thresc/tools"
)

const usage = `Thresc: thread-escape analysis of heap accesses
Usage:
  thresc [tool] [options] <arguments>
Tools:
  - model: classifies the heap accesses of a program described in YAML
  - go: classifies the memory accesses of a Go program
  - callgraph: prints the context-sensitive call graph of a program described in YAML
Examples:
  Analyze a program file: thresc model -config config.yaml program.yaml
  Analyze a Go program: thresc go -config config.yaml main.go`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "model":
		flags, err := model.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := model.Run(flags); err != nil {
			errExit(err)
		}
	case "go":
		flags, err := gosrc.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := gosrc.Run(flags); err != nil {
			errExit(err)
		}
	case "callgraph":
		flags, err := calls.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := calls.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
