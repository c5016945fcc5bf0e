// Package ring implements handle-based circular doubly-linked lists with a
// sentinel head. Nodes live outside the ring (in an arena owned by the
// caller) and are addressed by ID, so one node can sit in several rings at
// once through separate Link fields.
package ring

import "iter"

// ID identifies a node. None is the null handle; Head is the sentinel.
type ID uint64

const (
	None ID = 0
	Head ID = ^ID(0)
)

// Direction selects which neighbour to follow.
type Direction int

const (
	Prev Direction = 0
	Next Direction = 1
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction { return 1 - d }

func (d Direction) String() string {
	if d == Next {
		return "next"
	}
	return "prev"
}

// Link holds a node's neighbours. Both are None iff the node is detached.
type Link struct {
	Prev ID
	Next ID
}

// Attached reports whether the link is part of a ring.
func (l *Link) Attached() bool { return l.Prev != None }

// Get returns the neighbour in direction d.
func (l *Link) Get(d Direction) ID {
	if d == Next {
		return l.Next
	}
	return l.Prev
}

func (l *Link) set(d Direction, id ID) {
	if d == Next {
		l.Next = id
	} else {
		l.Prev = id
	}
}

// Ring is a sentinel-headed circular list. The accessor resolves a node ID to
// its Link for this ring; it must return a non-nil Link for every ID that is
// linked into the ring.
type Ring struct {
	head Link
	link func(ID) *Link
}

// New returns an empty ring using accessor to locate node links.
func New(accessor func(ID) *Link) *Ring {
	return &Ring{head: Link{Prev: Head, Next: Head}, link: accessor}
}

// Reset drops every member by making the sentinel self-linked. Member links
// are left untouched; callers use it after clearing them.
func (r *Ring) Reset() {
	r.head = Link{Prev: Head, Next: Head}
}

// LinkOf returns the Link for id, including the sentinel.
func (r *Ring) LinkOf(id ID) *Link {
	if id == Head {
		return &r.head
	}
	return r.link(id)
}

// Empty reports whether the ring has no members.
func (r *Ring) Empty() bool { return r.head.Next == Head }

// Front returns the first member, or None when empty.
func (r *Ring) Front() ID {
	if r.Empty() {
		return None
	}
	return r.head.Next
}

// Back returns the last member, or None when empty.
func (r *Ring) Back() ID {
	if r.Empty() {
		return None
	}
	return r.head.Prev
}

// Step returns the neighbour of id in direction d. The result may be Head.
func (r *Ring) Step(id ID, d Direction) ID {
	return r.LinkOf(id).Get(d)
}

// Splice links id adjacent to anchor on side d: d == Next places it after
// anchor, d == Prev before. id must be detached.
func (r *Ring) Splice(anchor, id ID, d Direction) {
	a := r.LinkOf(anchor)
	n := r.LinkOf(id)
	other := a.Get(d)
	o := r.LinkOf(other)

	n.set(d.Opposite(), anchor)
	n.set(d, other)
	o.set(d.Opposite(), id)
	a.set(d, id)
}

// InsertAfter links id immediately after anchor.
func (r *Ring) InsertAfter(anchor, id ID) { r.Splice(anchor, id, Next) }

// InsertBefore links id immediately before anchor.
func (r *Ring) InsertBefore(anchor, id ID) { r.Splice(anchor, id, Prev) }

// PushBack appends id at the tail.
func (r *Ring) PushBack(id ID) { r.InsertBefore(Head, id) }

// Unlink removes id from the ring and clears its links. It returns false
// and does nothing when id is not linked.
func (r *Ring) Unlink(id ID) bool {
	if id == None || id == Head {
		return false
	}
	n := r.link(id)
	if n == nil || !n.Attached() {
		return false
	}
	r.LinkOf(n.Prev).Next = n.Next
	r.LinkOf(n.Next).Prev = n.Prev
	*n = Link{}
	return true
}

// PopFront unlinks and returns the first member, or None when empty.
func (r *Ring) PopFront() ID {
	id := r.Front()
	if id != None {
		r.Unlink(id)
	}
	return id
}

// Len counts the members. O(n).
func (r *Ring) Len() int {
	n := 0
	for range r.All() {
		n++
	}
	return n
}

// All iterates members from front to back. The ring must not be modified
// during iteration except for unlinking the current member.
func (r *Ring) All() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for id := r.head.Next; id != Head; {
			next := r.LinkOf(id).Next
			if !yield(id) {
				return
			}
			id = next
		}
	}
}

// Contains reports whether id is a member. O(n).
func (r *Ring) Contains(id ID) bool {
	for m := range r.All() {
		if m == id {
			return true
		}
	}
	return false
}
