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

// Package lang contains helpers on the SSA and AST representations of Go programs.
package lang

import (
	"golang.org/x/tools/go/ssa"
)

// IsExternal returns true if function has no body in the SSA program
func IsExternal(function *ssa.Function) bool {
	return function.Blocks == nil
}

// PackagePath returns the path of the package of function, or of the package of the function it is nested in.
// It returns the empty string for synthetic functions without a package.
func PackagePath(function *ssa.Function) string {
	for f := function; f != nil; f = f.Parent() {
		if f.Pkg != nil && f.Pkg.Pkg != nil {
			return f.Pkg.Pkg.Path()
		}
	}
	return ""
}

// LastInstr returns the last instruction of block, or nil if the block is empty
func LastInstr(block *ssa.BasicBlock) ssa.Instruction {
	if n := len(block.Instrs); n > 0 {
		return block.Instrs[n-1]
	}
	return nil
}

// GetArgs returns the actual arguments of a call, with the receiver first for interface method invocations.
func GetArgs(instr ssa.CallInstruction) []ssa.Value {
	common := instr.Common()
	if !common.IsInvoke() {
		return common.Args
	}
	return append([]ssa.Value{common.Value}, common.Args...)
}
