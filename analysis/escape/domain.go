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
	"strings"

	"github.com/awslabs/ar-thresc/analysis/program"
	"golang.org/x/exp/slices"
)

// Kind is the coarse abstraction of the value of a reference variable.
//
// The lattice is Empty ⊑ OnlyLocal ⊑ Both and Empty ⊑ OnlyEscaping ⊑ Both.
type Kind int

const (
	// Empty means the variable points to nothing observed
	Empty Kind = iota
	// OnlyLocal means the variable points only to objects of allocation sites that have not escaped
	OnlyLocal
	// OnlyEscaping means the variable points only to escaping objects
	OnlyEscaping
	// Both means the variable may point to local and to escaping objects
	Both
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "Empty"
	case OnlyLocal:
		return "OnlyLocal"
	case OnlyEscaping:
		return "OnlyEscaping"
	case Both:
		return "Both"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Join returns the least upper bound of k and o
func (k Kind) Join(o Kind) Kind {
	if k == o {
		return k
	}
	if k == Empty {
		return o
	}
	if o == Empty {
		return k
	}
	return Both
}

// Leq returns true if k ⊑ o
func (k Kind) Leq(o Kind) bool {
	return k.Join(o) == o
}

// Escaped is the sentinel allocation site that stands for all escaping objects
const Escaped program.SiteID = -1

// SiteSet is a sorted set of allocation sites without duplicates. SiteSets are immutable: operations return new
// sets.
type SiteSet []program.SiteID

// NewSiteSet returns the set of the sites given
func NewSiteSet(sites ...program.SiteID) SiteSet {
	if len(sites) == 0 {
		return nil
	}
	s := slices.Clone(sites)
	slices.Sort(s)
	return slices.Compact(s)
}

// Contains returns true if h is in s
func (s SiteSet) Contains(h program.SiteID) bool {
	_, ok := slices.BinarySearch(s, h)
	return ok
}

// Union returns s ∪ o
func (s SiteSet) Union(o SiteSet) SiteSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	res := make(SiteSet, 0, len(s)+len(o))
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			res = append(res, s[i])
			i++
		case s[i] > o[j]:
			res = append(res, o[j])
			j++
		default:
			res = append(res, s[i])
			i++
			j++
		}
	}
	res = append(res, s[i:]...)
	return append(res, o[j:]...)
}

// Minus returns s \ o
func (s SiteSet) Minus(o SiteSet) SiteSet {
	if len(o) == 0 || len(s) == 0 {
		return s
	}
	var res SiteSet
	for _, h := range s {
		if !o.Contains(h) {
			res = append(res, h)
		}
	}
	return res
}

// Intersects returns true if s ∩ o is not empty
func (s SiteSet) Intersects(o SiteSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			i++
		case s[i] > o[j]:
			j++
		default:
			return true
		}
	}
	return false
}

// Equal returns true if s and o have the same elements
func (s SiteSet) Equal(o SiteSet) bool {
	return slices.Equal(s, o)
}

// PointsTo is the site-precise abstraction of a reference variable: a set of allocation sites of local objects,
// plus the Escaped sentinel when the variable may point to an escaping object. Since Escaped is negative, it is
// always the first element when present.
type PointsTo struct {
	sites SiteSet
}

var (
	// EmptyPts is the abstraction of a variable that points to nothing
	EmptyPts = PointsTo{}
	// EscPts is the abstraction of a variable that only points to escaping objects
	EscPts = PointsTo{sites: SiteSet{Escaped}}
)

// LocalPts returns the abstraction of a variable that points to objects of site h
func LocalPts(h program.SiteID) PointsTo {
	return PointsTo{sites: SiteSet{h}}
}

// NewPointsTo returns the abstraction that contains the sites, where Escaped may be one of the sites
func NewPointsTo(sites ...program.SiteID) PointsTo {
	return PointsTo{sites: NewSiteSet(sites...)}
}

// Kind returns the coarse abstraction of p
func (p PointsTo) Kind() Kind {
	switch {
	case len(p.sites) == 0:
		return Empty
	case p.sites[0] != Escaped:
		return OnlyLocal
	case len(p.sites) == 1:
		return OnlyEscaping
	default:
		return Both
	}
}

// IsEmpty returns true if p points to nothing
func (p PointsTo) IsEmpty() bool {
	return len(p.sites) == 0
}

// HasEscaped returns true if p may point to an escaping object
func (p PointsTo) HasEscaped() bool {
	return len(p.sites) > 0 && p.sites[0] == Escaped
}

// IsOnlyEscaping returns true if p points to escaping objects only
func (p PointsTo) IsOnlyEscaping() bool {
	return p.Kind() == OnlyEscaping
}

// Local returns the sites of local objects p may point to
func (p PointsTo) Local() SiteSet {
	if p.HasEscaped() {
		return p.sites[1:]
	}
	return p.sites
}

// Sites returns all the elements of p, including Escaped
func (p PointsTo) Sites() SiteSet {
	return p.sites
}

// Join returns p ∪ o. Join is monotone with respect to Kind: p.Join(o).Kind() == p.Kind().Join(o.Kind()).
func (p PointsTo) Join(o PointsTo) PointsTo {
	return PointsTo{sites: p.sites.Union(o.sites)}
}

// WithEscaped returns p ∪ {Escaped}
func (p PointsTo) WithEscaped() PointsTo {
	if p.HasEscaped() {
		return p
	}
	return PointsTo{sites: p.sites.Union(SiteSet{Escaped})}
}

// Equal returns true if p and o are the same abstraction
func (p PointsTo) Equal(o PointsTo) bool {
	return p.sites.Equal(o.sites)
}

// Leq returns true if p ⊆ o
func (p PointsTo) Leq(o PointsTo) bool {
	return len(p.sites.Minus(o.sites)) == 0
}

// rewrite returns p where every site of esc is replaced by Escaped
func (p PointsTo) rewrite(esc SiteSet) PointsTo {
	local := p.Local()
	if !local.Intersects(esc) {
		return p
	}
	rest := local.Minus(esc)
	return PointsTo{sites: SiteSet{Escaped}.Union(rest)}
}

func (p PointsTo) String() string {
	if p.IsEmpty() {
		return "{}"
	}
	parts := make([]string, len(p.sites))
	for i, h := range p.sites {
		if h == Escaped {
			parts[i] = "ESC"
		} else {
			parts[i] = fmt.Sprintf("h%d", h)
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// HeapEdge is (src, field, dst): the field of objects of site src may point to objects of site dst. A dst equal to
// Escaped means the contents of the field have escaped.
type HeapEdge struct {
	Src   program.SiteID
	Field program.FieldID
	Dst   program.SiteID
}

func compareEdges(a, b HeapEdge) int {
	switch {
	case a.Src != b.Src:
		return int(a.Src) - int(b.Src)
	case a.Field != b.Field:
		return int(a.Field) - int(b.Field)
	default:
		return int(a.Dst) - int(b.Dst)
	}
}

func lessEdge(a, b HeapEdge) bool {
	return compareEdges(a, b) < 0
}

// Heap is a sorted set of heap edges. Heaps are immutable.
type Heap struct {
	edges []HeapEdge
}

// NewHeap returns the heap containing the edges
func NewHeap(edges ...HeapEdge) Heap {
	if len(edges) == 0 {
		return Heap{}
	}
	e := slices.Clone(edges)
	slices.SortFunc(e, lessEdge)
	return Heap{edges: slices.Compact(e)}
}

// Edges returns the edges of the heap. The slice must not be modified.
func (h Heap) Edges() []HeapEdge {
	return h.edges
}

// Len returns the number of edges of the heap
func (h Heap) Len() int {
	return len(h.edges)
}

// Add returns the heap with the additional edges. It returns h itself if all edges are already in h.
func (h Heap) Add(edges ...HeapEdge) Heap {
	changed := false
	for _, e := range edges {
		if !h.Has(e) {
			changed = true
			break
		}
	}
	if !changed {
		return h
	}
	return NewHeap(append(slices.Clone(h.edges), edges...)...)
}

// Has returns true if e is in h
func (h Heap) Has(e HeapEdge) bool {
	_, ok := slices.BinarySearchFunc(h.edges, e, func(x, y HeapEdge) int { return compareEdges(x, y) })
	return ok
}

// Targets returns the targets of the edges with a source in srcs and the given field
func (h Heap) Targets(srcs SiteSet, field program.FieldID) SiteSet {
	var res []program.SiteID
	for _, e := range h.edges {
		if e.Field == field && srcs.Contains(e.Src) {
			res = append(res, e.Dst)
		}
	}
	return NewSiteSet(res...)
}

// Equal returns true if h and o have the same edges
func (h Heap) Equal(o Heap) bool {
	return slices.Equal(h.edges, o.edges)
}

// closure returns the sites reachable from esc through heap edges, including esc
func (h Heap) closure(esc SiteSet) SiteSet {
	reached := esc
	for {
		var next []program.SiteID
		for _, e := range h.edges {
			if e.Dst != Escaped && reached.Contains(e.Src) && !reached.Contains(e.Dst) {
				next = append(next, e.Dst)
			}
		}
		if len(next) == 0 {
			return reached
		}
		reached = reached.Union(NewSiteSet(next...))
	}
}

// rewrite drops the edges whose source has escaped and replaces the escaped targets by Escaped
func (h Heap) rewrite(esc SiteSet) Heap {
	changed := false
	for _, e := range h.edges {
		if esc.Contains(e.Src) || esc.Contains(e.Dst) {
			changed = true
			break
		}
	}
	if !changed {
		return h
	}
	var edges []HeapEdge
	for _, e := range h.edges {
		if esc.Contains(e.Src) {
			continue
		}
		if esc.Contains(e.Dst) {
			e.Dst = Escaped
		}
		edges = append(edges, e)
	}
	return NewHeap(edges...)
}

// sites returns all the allocation sites mentioned by the heap, excluding Escaped
func (h Heap) sites() SiteSet {
	var res []program.SiteID
	for _, e := range h.edges {
		res = append(res, e.Src)
		if e.Dst != Escaped {
			res = append(res, e.Dst)
		}
	}
	return NewSiteSet(res...)
}

func (h Heap) String() string {
	parts := make([]string, len(h.edges))
	for i, e := range h.edges {
		dst := "ESC"
		if e.Dst != Escaped {
			dst = fmt.Sprintf("h%d", e.Dst)
		}
		parts[i] = fmt.Sprintf("h%d.%d->%s", e.Src, e.Field, dst)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
