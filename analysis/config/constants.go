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

package config

const (
	// DefaultContextDepth is the default length of call strings. 0 means context-insensitive.
	DefaultContextDepth = 0
)

// KillPolicy selects the transform applied when a local object is written to an escaping location.
type KillPolicy string

const (
	// KillPropagate computes the escape closure of the written objects. This is the precise policy.
	KillPropagate KillPolicy = "propagate"
	// KillReset marks every object reachable from the current state as escaping and sets the kill flag.
	KillReset KillPolicy = "reset"
)

func (k KillPolicy) valid() bool {
	return k == KillPropagate || k == KillReset
}

// KillMerge selects how a killed callee summary is merged into the caller's state.
type KillMerge string

const (
	// KillEscalate makes every non-empty caller variable only-escaping.
	KillEscalate KillMerge = "escalate"
	// KillJoin joins every non-empty caller variable with the escaping value, keeping the local sites that the
	// callee did not escape.
	KillJoin KillMerge = "join"
)

func (k KillMerge) valid() bool {
	return k == KillEscalate || k == KillJoin
}
