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
	"testing"

	"github.com/awslabs/ar-thresc/analysis/program"
)

func TestKindJoin(t *testing.T) {
	kinds := []Kind{Empty, OnlyLocal, OnlyEscaping, Both}
	expected := map[[2]Kind]Kind{
		{Empty, Empty}:               Empty,
		{Empty, OnlyLocal}:           OnlyLocal,
		{Empty, OnlyEscaping}:        OnlyEscaping,
		{Empty, Both}:                Both,
		{OnlyLocal, OnlyLocal}:       OnlyLocal,
		{OnlyLocal, OnlyEscaping}:    Both,
		{OnlyLocal, Both}:            Both,
		{OnlyEscaping, OnlyEscaping}: OnlyEscaping,
		{OnlyEscaping, Both}:         Both,
		{Both, Both}:                 Both,
	}
	for _, a := range kinds {
		for _, b := range kinds {
			want, ok := expected[[2]Kind{a, b}]
			if !ok {
				want = expected[[2]Kind{b, a}]
			}
			if got := a.Join(b); got != want {
				t.Errorf("%s join %s = %s, expected %s", a, b, got, want)
			}
			if !a.Leq(a.Join(b)) || !b.Leq(a.Join(b)) {
				t.Errorf("%s join %s is not an upper bound", a, b)
			}
		}
	}
	if OnlyLocal.Leq(OnlyEscaping) || OnlyEscaping.Leq(OnlyLocal) {
		t.Errorf("OnlyLocal and OnlyEscaping must be incomparable")
	}
}

func TestPointsToKind(t *testing.T) {
	values := []PointsTo{EmptyPts, EscPts, LocalPts(1), NewPointsTo(1, 2), NewPointsTo(Escaped, 3), NewPointsTo(3, Escaped, 2)}
	kinds := []Kind{Empty, OnlyEscaping, OnlyLocal, OnlyLocal, Both, Both}
	for i, p := range values {
		if p.Kind() != kinds[i] {
			t.Errorf("%s has kind %s, expected %s", p, p.Kind(), kinds[i])
		}
	}
	for _, p := range values {
		for _, o := range values {
			j := p.Join(o)
			if j.Kind() != p.Kind().Join(o.Kind()) {
				t.Errorf("kind of %s join %s is %s, expected %s", p, o, j.Kind(), p.Kind().Join(o.Kind()))
			}
			if !p.Leq(j) || !o.Leq(j) {
				t.Errorf("%s join %s = %s is not an upper bound", p, o, j)
			}
			if !j.Equal(o.Join(p)) {
				t.Errorf("join of %s and %s is not commutative", p, o)
			}
		}
	}
	if got := NewPointsTo(3, Escaped, 2); got.Sites()[0] != Escaped || !got.Local().Equal(NewSiteSet(2, 3)) {
		t.Errorf("escaped sentinel must come first, got %v", got.Sites())
	}
	if !LocalPts(2).WithEscaped().Equal(NewPointsTo(Escaped, 2)) {
		t.Errorf("unexpected WithEscaped")
	}
}

func TestSiteSet(t *testing.T) {
	a := NewSiteSet(3, 1, 2, 3)
	b := NewSiteSet(2, 5)
	if !a.Equal(SiteSet{1, 2, 3}) {
		t.Fatalf("NewSiteSet must sort and remove duplicates, got %v", a)
	}
	if u := a.Union(b); !u.Equal(SiteSet{1, 2, 3, 5}) {
		t.Errorf("unexpected union %v", u)
	}
	if m := a.Minus(b); !m.Equal(SiteSet{1, 3}) {
		t.Errorf("unexpected difference %v", m)
	}
	if !a.Intersects(b) || a.Intersects(SiteSet{4, 6}) {
		t.Errorf("unexpected intersection")
	}
	if !a.Contains(2) || a.Contains(5) {
		t.Errorf("unexpected membership")
	}
	if len(SiteSet(nil).Union(nil)) != 0 {
		t.Errorf("union of empty sets must be empty")
	}
}

func TestHeap(t *testing.T) {
	f := program.FieldID(1)
	g := program.FieldID(2)
	h := NewHeap(HeapEdge{2, f, 3}, HeapEdge{1, f, 2}, HeapEdge{1, f, 2}, HeapEdge{1, g, Escaped})
	if h.Len() != 3 {
		t.Fatalf("expected 3 edges, got %s", h)
	}
	if h.Add(HeapEdge{1, f, 2}).Len() != 3 {
		t.Errorf("adding an existing edge must not change the heap")
	}
	if !h.Has(HeapEdge{2, f, 3}) || h.Has(HeapEdge{3, f, 2}) {
		t.Errorf("unexpected Has")
	}
	if tg := h.Targets(SiteSet{1, 2}, f); !tg.Equal(SiteSet{2, 3}) {
		t.Errorf("unexpected targets %v", tg)
	}
	if tg := h.Targets(SiteSet{1}, g); !tg.Equal(SiteSet{Escaped}) {
		t.Errorf("unexpected targets %v", tg)
	}
	if c := h.closure(SiteSet{1}); !c.Equal(SiteSet{1, 2, 3}) {
		t.Errorf("unexpected closure %v", c)
	}
	r := h.rewrite(SiteSet{3})
	if !r.Equal(NewHeap(HeapEdge{1, f, 2}, HeapEdge{1, g, Escaped}, HeapEdge{2, f, Escaped})) {
		t.Errorf("unexpected rewrite %s", r)
	}
}
