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

// Package goprog lowers Go programs in SSA form to the program representation of the thread-escape analysis.
//
// Each lowered Go function becomes a method whose first formal is the closure environment, followed by the SSA
// parameters. Heap allocations, channels, maps, slices and closures are allocation sites. Memory reads and writes
// (pointer loads and stores, channel sends and receives, map lookups and updates) become loads and stores of the
// single field "[]", and package-level variables become globals. Call targets are resolved with class hierarchy
// analysis; a go statement spawns a new thread.
//
// The heap accesses that correspond to memory operations of the Go program are returned in [Result.Accesses], with
// their source positions, so that the escape classification can be reported on the Go source.
package goprog
