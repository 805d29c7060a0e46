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

package funcutil

import (
	"strconv"
	"testing"

	"golang.org/x/exp/slices"
)

func TestCollections(t *testing.T) {
	a := []int{3, 1, 2}
	if s := Map(a, strconv.Itoa); !slices.Equal(s, []string{"3", "1", "2"}) {
		t.Errorf("unexpected Map result %v", s)
	}
	if len(Map([]int{}, strconv.Itoa)) != 0 {
		t.Errorf("the image of an empty slice must be empty")
	}
	if !Exists(a, func(x int) bool { return x > 2 }) || Exists(a, func(x int) bool { return x > 3 }) {
		t.Errorf("unexpected Exists result")
	}
	if !Contains(a, 2) || Contains(a, 4) {
		t.Errorf("unexpected Contains result")
	}
	if s := SetToOrderedSlice(map[string]bool{"b": true, "a": true, "c": false}); !slices.Equal(s, []string{"a", "b"}) {
		t.Errorf("unexpected SetToOrderedSlice result %v", s)
	}
	Reverse(a)
	if !slices.Equal(a, []int{2, 1, 3}) {
		t.Errorf("unexpected Reverse result %v", a)
	}
}
