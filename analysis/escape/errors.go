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
	"fmt"

	"github.com/awslabs/ar-thresc/analysis/callgraph"
)

// InconsistencyError is returned when the engine detects a broken invariant between the path edges, the summaries
// and the call graph, or a call whose shape does not match its callee. Such errors abort the whole run.
type InconsistencyError struct {
	Method  string
	Instr   string
	Context callgraph.Context
	Msg     string
}

func (e *InconsistencyError) Error() string {
	if e.Instr == "" {
		return fmt.Sprintf("inconsistency in %s (context %d): %s", e.Method, e.Context, e.Msg)
	}
	return fmt.Sprintf("inconsistency in %s at %q (context %d): %s", e.Method, e.Instr, e.Context, e.Msg)
}
