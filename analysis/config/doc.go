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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename, contents) to load a configuration from the contents of a specific file.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level field is options, and its fields are defined in [Options].
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  query-timeout: 30s
	  kill-policy: propagate
	  kill-merge: escalate
	  context-depth: 1
	  parallelism: 4

# Unsound options

None of the options affect the soundness of the results: a query that times out or exceeds max-path-edges is
reported as escaping.
*/
package config
