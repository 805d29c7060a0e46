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

package goprog

import (
	"golang.org/x/tools/go/ssa"
)

// call lowers a call, go or deferred call instruction. The first argument of every lowered call is the closure
// environment: the function value for calls through closures and func values, nothing for static calls and method
// invocations on interfaces.
//
// Calls that may reach a function that is not lowered are calls to unknown code: all their arguments escape, and
// their result is escaping.
func (fl *functionLowering) call(instr ssa.CallInstruction, dst string, spawn bool) {
	common := instr.Common()
	if b, ok := common.Value.(*ssa.Builtin); ok {
		fl.builtin(b, common.Args, dst)
		return
	}

	env := ""
	if !common.IsInvoke() {
		if _, static := common.Value.(*ssa.Function); !static {
			env = fl.operand(common.Value)
		}
	}
	args := []string{env}
	if common.IsInvoke() {
		args = append(args, fl.operand(common.Value))
	}
	for _, a := range common.Args {
		args = append(args, fl.operand(a))
	}

	targets, known := fl.l.targets(instr)
	if !known {
		fl.l.logger.Tracef("%s: call to unknown code %s\n", fl.pos, instr)
		targets = nil
	}
	if spawn {
		fl.mb.Spawn(targets, args...)
	} else {
		fl.mb.Invoke(dst, targets, args...)
	}
}

// builtin lowers calls to builtin functions. Only the builtins that move references between objects have an effect.
func (fl *functionLowering) builtin(b *ssa.Builtin, args []ssa.Value, dst string) {
	switch b.Name() {
	case "append":
		// the result is either the first argument or a new array holding its contents
		if dst == "" || len(args) < 2 {
			return
		}
		grown := fl.temp()
		fl.mb.Alloc(grown, fl.site(fl.instr.(ssa.Value), "$append"))
		fl.mb.Phi(dst, fl.operand(args[0]), grown)
		fl.copyContents(dst, fl.operand(args[1]))
	case "copy":
		if len(args) == 2 {
			fl.copyContents(fl.operand(args[0]), fl.operand(args[1]))
		}
	case "ssa:wrapnilchk":
		if dst != "" && len(args) > 0 {
			fl.mb.Move(dst, fl.operand(args[0]))
		}
	default:
		if dst != "" {
			// recover returns a panic value, which has escaped when it was thrown
			fl.mb.GetStatic(dst, builtinGlobal)
		} else {
			fl.mb.Nop(b.Name())
		}
	}
}

// copyContents copies the contents of the object of src into the object of dst
func (fl *functionLowering) copyContents(dst, src string) {
	if dst == "" || src == "" {
		return
	}
	t := fl.temp()
	fl.mb.Load(t, src, contents)
	fl.mb.Store(dst, contents, t)
}
