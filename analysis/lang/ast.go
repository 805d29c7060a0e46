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

package lang

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ScanComments parses the Go files of dir and of its subdirectories, in lexical order, and calls f on each comment
// with its position. Like the go tool, it skips the directories whose name starts with "." or "_", and the testdata
// directories below dir.
func ScanComments(dir string, fset *token.FileSet, f func(c *ast.Comment, pos token.Position)) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && ignoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return errors.Wrapf(err, "failed to parse %s", path)
		}
		for _, group := range file.Comments {
			for _, c := range group.List {
				f(c, fset.Position(c.Pos()))
			}
		}
		return nil
	})
	return errors.Wrapf(err, "failed to scan dir %s", dir)
}

func ignoredDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata"
}
