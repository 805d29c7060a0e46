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

// Package escape provides a thread-escape analysis which classifies each heap access of a program as LOCAL, when
// the object accessed can only be reached by the thread performing the access, or ESCAPING. The analysis is
// flow-sensitive and context-sensitive: it tabulates path edges and summary edges over the call graph, where the
// abstract state of a program point maps every variable to a set of allocation sites, and tracks the fields
// between objects of local allocation sites. This implementation is inspired by:
//
// Thomas Reps, Susan Horwitz and Mooly Sagiv. 1995. [Precise Interprocedural Dataflow Analysis via Graph
// Reachability.] POPL '95, 49–61.
//
// Each query owns its tables, and a batch of queries can be run in parallel with [Analysis.RunBatch].
//
// [Precise Interprocedural Dataflow Analysis via Graph Reachability.]: https://doi.org/10.1145/199448.199462
package escape
