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

// Package formatutil colors the output of the command line tools and sanitizes the strings they print.
package formatutil

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"golang.org/x/term"
)

// Styles used in the output of the tools. Each one formats its arguments like fmt.Sprint.
var (
	Bold    = Color("1")
	Faint   = Color("2")
	Red     = Color("1;31")
	Green   = Color("1;32")
	Yellow  = Color("1;33")
	Purple  = Color("1;34")
	Magenta = Color("1;35")
	Cyan    = Color("1;36")
)

var colors atomic.Bool

func init() {
	_, noColor := os.LookupEnv("NO_COLOR")
	colors.Store(!noColor && term.IsTerminal(int(os.Stdout.Fd())))
}

// SetColors turns the styles on or off. Styles are on by default when the standard output is a terminal and the
// NO_COLOR environment variable is not set.
func SetColors(enabled bool) {
	colors.Store(enabled)
}

// Color returns a style printing its arguments with the SGR parameters sgr when colors are on.
func Color(sgr string) func(...interface{}) string {
	return func(args ...interface{}) string {
		s := fmt.Sprint(args...)
		if !colors.Load() {
			return s
		}
		return "\033[" + sgr + "m" + s + "\033[0m"
	}
}

// Sanitize escapes the non-printable characters of s, so that strings coming from the analyzed program cannot
// inject terminal escape sequences.
func Sanitize(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}

// SanitizeRepr sanitizes the string representation of s
func SanitizeRepr(s fmt.Stringer) string {
	return Sanitize(s.String())
}
