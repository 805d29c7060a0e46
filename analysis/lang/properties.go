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
	"go/types"
)

// IsNillableType returns true if nil is a value of type t
func IsNillableType(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Slice, *types.Map, *types.Chan, *types.Signature:
		return true
	}
	return false
}

// IsReferenceType returns true if a value of type t may hold a reference to a heap object: t is nillable, an
// unsafe pointer, or a struct, array or tuple with a component of reference type.
func IsReferenceType(t types.Type) bool {
	visitedTypes := map[types.Type]bool{}
	toVisit := []types.Type{t}
	addNext := func(t types.Type) {
		if !visitedTypes[t] {
			toVisit = append(toVisit, t)
		}
	}
	for len(toVisit) > 0 {
		head := toVisit[0]
		toVisit = toVisit[1:]
		visitedTypes[head] = true
		if IsNillableType(head) {
			return true
		}
		switch typ := head.Underlying().(type) {
		case *types.Basic:
			if typ.Kind() == types.UnsafePointer {
				return true
			}
		case *types.Array:
			addNext(typ.Elem())
		case *types.Tuple:
			for i := 0; i < typ.Len(); i++ {
				addNext(typ.At(i).Type())
			}
		case *types.Struct:
			for i := 0; i < typ.NumFields(); i++ {
				addNext(typ.Field(i).Type())
			}
		}
	}
	return false
}
