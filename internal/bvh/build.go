// Package bvh is a flat, index-linked bounding volume hierarchy over triangle soups.
// Trees are built once, single-threaded, and are safe for concurrent queries afterwards.
package bvh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Index references a node (or a face) inside a Tree. None marks a missing reference.
type Index int32

// None is the sentinel Index.
const None Index = -1

// Valid reports whether i references something.
func (i Index) Valid() bool {
	return i >= 0
}

// Node is a BVH node. Leaves reference exactly one face and have no children.
// Internal nodes have Face == None and a Box that is the exact union of their leaves.
type Node struct {
	Box         AABB
	Center      v3.Vec
	Face        Index
	Left, Right Index
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return !n.Left.Valid() && !n.Right.Valid()
}

// Triangles is a read-only indexed triangle soup.
type Triangles interface {
	NumFaces() int
	Face(i int) (a, b, c v3.Vec)
}

// Tree is a BVH stored in a single slice. The first len(faces) nodes are the leaves, in face order;
// internal nodes follow and the root is the last node allocated.
type Tree struct {
	Nodes    []Node
	Root     Index
	MaxDepth int // length of the longest root-to-leaf path, counting both ends (a single leaf has depth 1)
}

// BuildTriangles builds a tree with one leaf per face of tris.
func BuildTriangles(tris Triangles) *Tree {
	boxes := make([]AABB, tris.NumFaces())
	for i := range boxes {
		boxes[i] = FromTriangle(tris.Face(i))
	}
	return Build(boxes)
}

// Build builds a tree with one leaf per box, splitting at the median center along the longest axis.
func Build(boxes []AABB) *Tree {
	t := &Tree{Root: None}
	if len(boxes) == 0 {
		return t
	}
	t.Nodes = make([]Node, len(boxes), 2*len(boxes)-1)
	order := make([]Index, len(boxes))
	for i, box := range boxes {
		t.Nodes[i] = Node{Box: box, Center: box.Center(), Face: Index(i), Left: None, Right: None}
		order[i] = Index(i)
	}
	t.Root = t.partition(order, 1)
	return t
}

func (t *Tree) partition(order []Index, depth int) Index {
	if depth > t.MaxDepth {
		t.MaxDepth = depth
	}
	switch len(order) {
	case 0:
		return None
	case 1:
		return order[0]
	}

	box := t.Nodes[order[0]].Box
	for _, i := range order[1:] {
		box.Extend(t.Nodes[i].Box)
	}
	axis := box.LongestAxis()
	mid := len(order) / 2
	sel := selector{order: order, key: func(i Index) float64 {
		return Component(t.Nodes[i].Center, axis)
	}}
	sel.nthElement(0, len(order), mid)

	left := t.partition(order[:mid], depth+1)
	right := t.partition(order[mid:], depth+1)
	t.Nodes = append(t.Nodes, Node{Box: box, Center: box.Center(), Face: None, Left: left, Right: right})
	return Index(len(t.Nodes) - 1)
}

// Bounds is the box of the root (the zero box for an empty tree).
func (t *Tree) Bounds() AABB {
	if !t.Root.Valid() {
		return AABB{}
	}
	return t.Nodes[t.Root].Box
}

// Stats summarizes the shape of a tree.
type Stats struct {
	Nodes, Leaves, Internal int
	MaxDepth                int
}

// Stats walks the whole tree.
func (t *Tree) Stats() Stats {
	var st Stats
	if !t.Root.Valid() {
		return st
	}
	type entry struct {
		node  Index
		depth int
	}
	stack := make([]entry, 0, t.MaxDepth+1)
	stack = append(stack, entry{t.Root, 1})
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		st.Nodes++
		if e.depth > st.MaxDepth {
			st.MaxDepth = e.depth
		}
		node := &t.Nodes[e.node]
		if node.IsLeaf() {
			st.Leaves++
			continue
		}
		st.Internal++
		if node.Left.Valid() {
			stack = append(stack, entry{node.Left, e.depth + 1})
		}
		if node.Right.Valid() {
			stack = append(stack, entry{node.Right, e.depth + 1})
		}
	}
	return st
}

// Boxes returns the boxes of every node up to maxDepth levels below the root (all of them when maxDepth <= 0).
func (t *Tree) Boxes(maxDepth int) []AABB {
	var res []AABB
	t.Walk(func(node *Node, depth int) bool {
		res = append(res, node.Box)
		return maxDepth <= 0 || depth < maxDepth
	})
	return res
}

// Walk visits nodes depth-first (root first, depth 1). Returning false skips the children of the visited node.
func (t *Tree) Walk(visit func(node *Node, depth int) bool) {
	if !t.Root.Valid() {
		return
	}
	var rec func(i Index, depth int)
	rec = func(i Index, depth int) {
		node := &t.Nodes[i]
		if !visit(node, depth) {
			return
		}
		if node.Left.Valid() {
			rec(node.Left, depth+1)
		}
		if node.Right.Valid() {
			rec(node.Right, depth+1)
		}
	}
	rec(t.Root, 1)
}
