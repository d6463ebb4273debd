// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dlist provides an intrusive, circular, doubly-linked list.
//
// A Link is embedded in the structure that participates in a list. The
// same type serves as the list head (a sentinel that points to itself when
// the list is empty) and as the member node. Insertion and removal are O(1)
// and never allocate.
//
// # Owners
//
// Each link carries a typed back-reference to the structure embedding it,
// set once by Init. ContainerOf / Owner recover that structure without any
// pointer arithmetic; the type parameter ties a link to exactly one owner
// type at compile time. A head link usually has no owner.
//
//	type job struct {
//	    id   int
//	    link dlist.Link[job]
//	}
//
//	var head dlist.Link[job]
//	head.Init(nil)
//
//	j := &job{id: 1}
//	head.InsertBefore(j.link.Init(j)) // append
//
//	for j := range head.All() {
//	    fmt.Println(j.id)
//	}
//
// # Thread Safety
//
// Links are not synchronized. Callers that share a ring between goroutines
// must serialize every splice and every walk.
package dlist

import "iter"

// Link is a node of an intrusive ring.
//
// The zero value is detached; call Init before using a link as a head or
// inserting it into a ring.
type Link[T any] struct {
	next  *Link[T]
	prev  *Link[T]
	owner *T
}

// Init makes l a ring of one and records its owner.
//
// Init returns l so it can be chained into an insert:
//
//	head.InsertBefore(n.link.Init(n))
func (l *Link[T]) Init(owner *T) *Link[T] {
	l.next = l
	l.prev = l
	l.owner = owner
	return l
}

// Next returns the successor of l.
func (l *Link[T]) Next() *Link[T] { return l.next }

// Prev returns the predecessor of l.
func (l *Link[T]) Prev() *Link[T] { return l.prev }

// Owner returns the structure embedding l, or nil for an ownerless head.
func (l *Link[T]) Owner() *T { return l.owner }

// ContainerOf returns the structure embedding l.
func ContainerOf[T any](l *Link[T]) *T {
	if l == nil {
		return nil
	}
	return l.owner
}

// InsertAfter links node directly after l.
//
// Panics if l is not part of a ring or node is already linked elsewhere.
func (l *Link[T]) InsertAfter(node *Link[T]) {
	l.mustAnchor()
	mustDetached(node)
	node.prev = l
	node.next = l.next
	l.next.prev = node
	l.next = node
}

// InsertBefore links node directly before l. Called on a head, it appends.
//
// Panics if l is not part of a ring or node is already linked elsewhere.
func (l *Link[T]) InsertBefore(node *Link[T]) {
	l.mustAnchor()
	mustDetached(node)
	node.next = l
	node.prev = l.prev
	l.prev.next = node
	l.prev = node
}

// Remove splices l out of its ring.
//
// The neighbours are joined and l is left detached. A detached link must be
// re-initialized before it can anchor an insert.
func (l *Link[T]) Remove() {
	l.mustAnchor()
	l.prev.next = l.next
	l.next.prev = l.prev
	l.next = nil
	l.prev = nil
}

// IsEmpty reports whether l is the only member of its ring.
func (l *Link[T]) IsEmpty() bool {
	return l.next == l
}

// Linked reports whether l shares a ring with at least one other link.
func (l *Link[T]) Linked() bool {
	return l.next != nil && l.next != l
}

// Count walks the ring once and returns the number of links in it,
// including l itself. A detached link counts as zero.
func (l *Link[T]) Count() int {
	if l.next == nil {
		return 0
	}
	n := 1
	for cur := l.next; cur != l; cur = cur.next {
		n++
	}
	return n
}

// Iter returns a forward iterator over the ring starting after l.
func (l *Link[T]) Iter() *Iterator[T] {
	return &Iterator[T]{head: l, cur: l.next}
}

// All yields the owners of every link after l, in ring order.
//
// The successor is read before each yield, so the yielded element may be
// removed from the ring by the loop body.
func (l *Link[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		it := l.Iter()
		for {
			node, ok := it.Next()
			if !ok {
				return
			}
			if !yield(node.owner) {
				return
			}
		}
	}
}

// Iterator walks a ring once, from head.next until it returns to head.
//
// An Iterator is not restartable. Mutating the ring during a walk is
// undefined, except for removing the link most recently returned.
type Iterator[T any] struct {
	head *Link[T]
	cur  *Link[T]
}

// Next returns the next link, or false once the walk is back at the head.
func (it *Iterator[T]) Next() (*Link[T], bool) {
	if it.cur == nil || it.cur == it.head {
		it.cur = nil
		return nil, false
	}
	node := it.cur
	it.cur = node.next
	return node, true
}

func (l *Link[T]) mustAnchor() {
	if l.next == nil || l.prev == nil {
		panic("dlist: link is not initialized or was removed")
	}
}

func mustDetached[T any](node *Link[T]) {
	if node.next != nil && node.next != node {
		panic("dlist: node is already linked")
	}
}
