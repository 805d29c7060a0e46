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

package main

type Node struct {
	next *Node
	val  int
}

var global *Node

func main() {
	testLocal()
	testGlobal()
	testGoroutine()
	testInterprocedural()
	testClosure()
	testChannel()
	testInterface()
	testDefer()
	testSlice()
	testMap()
	testIgnored()
	testPanic()
}

func testLocal() {
	a := &Node{}
	b := &Node{}
	a.next = b  // LOCAL
	c := a.next // LOCAL
	c.val = 1   // LOCAL
}

func testGlobal() {
	n := &Node{}
	global = n
	n.val = 2 // ESCAPING
}

func worker(n *Node) {
	n.val = 3 // ESCAPING
}

func testGoroutine() {
	n := &Node{}
	n.next = nil // LOCAL
	go worker(n)
	n.val = 4 // ESCAPING
}

func setNext(a, b *Node) {
	a.next = b // LOCAL
}

func leak(n *Node) {
	global = n
}

func testInterprocedural() {
	x := &Node{}
	y := &Node{}
	setNext(x, y)
	z := &Node{}
	leak(z)
	z.val = 5      // ESCAPING
	x.next.val = 6 // LOCAL
}

func testClosure() {
	n := &Node{}
	f := func() {
		n.val = 7 // LOCAL
	}
	f()
	m := &Node{}
	go func() {
		m.val = 8 // ESCAPING
	}()
}

func testChannel() {
	ch := make(chan *Node, 1)
	n := &Node{}
	ch <- n   // LOCAL
	r := <-ch // LOCAL
	r.val = 9 // LOCAL
}

type Sink interface {
	Put(n *Node)
}

type store struct {
	items []*Node
}

func (s *store) Put(n *Node) {
	s.items = append(s.items, n) // LOCAL
}

func testInterface() {
	var s Sink = &store{}
	n := &Node{}
	s.Put(n)
	n.val = 10 // LOCAL
}

func release(n *Node) {
	global = n
}

func testDefer() {
	n := &Node{}
	defer release(n)
	n.val = 11 // LOCAL
}

func testSlice() {
	s := make([]*Node, 2)
	s[0] = &Node{} // LOCAL
	n := s[0]      // LOCAL
	global = n
	n.val = 13 // ESCAPING
	s[1] = nil // LOCAL
}

func testMap() {
	m := make(map[string]*Node)
	m["a"] = &Node{} // LOCAL
	n := m["a"]      // LOCAL
	n.val = 14       // LOCAL
}

func testIgnored() {
	n := &Node{}
	n.val = 15 //thresc:ignore
}

func testPanic() {
	n := &Node{}
	n.val = 12 // LOCAL
	panic(n)
}
