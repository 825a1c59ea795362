package bvh

import (
	"fmt"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.viam.com/test"
	"math/rand"
	"sort"
	"testing"
)

// soup is the simplest Triangles implementation.
type soup [][3]v3.Vec

func (s soup) NumFaces() int               { return len(s) }
func (s soup) Face(i int) (a, b, c v3.Vec) { return s[i][0], s[i][1], s[i][2] }

// cube is the outward-facing (counter-clockwise) [-1, 1]^3 cube.
func cube() soup {
	v := []v3.Vec{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
	}
	idx := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // -Z
		{4, 5, 6}, {4, 6, 7}, // +Z
		{0, 1, 5}, {0, 5, 4}, // -Y
		{3, 7, 6}, {3, 6, 2}, // +Y
		{0, 4, 7}, {0, 7, 3}, // -X
		{1, 2, 6}, {1, 6, 5}, // +X
	}
	res := make(soup, len(idx))
	for i, f := range idx {
		res[i] = [3]v3.Vec{v[f[0]], v[f[1]], v[f[2]]}
	}
	return res
}

func randomSoup(rnd *rand.Rand, n int) soup {
	res := make(soup, n)
	for i := range res {
		center := randomVec(rnd, 10)
		switch rnd.Intn(10) {
		case 0: // zero-area: a point
			res[i] = [3]v3.Vec{center, center, center}
		case 1: // zero-area: a segment
			d := randomVec(rnd, 1)
			res[i] = [3]v3.Vec{center, center.Add(d), center.Sub(d)}
		case 2: // zero-area: two coincident vertices
			other := center.Add(randomVec(rnd, 1))
			tri := [3]v3.Vec{center, center, other}
			shift := rnd.Intn(3)
			res[i] = [3]v3.Vec{tri[shift], tri[(shift+1)%3], tri[(shift+2)%3]}
		default:
			res[i] = [3]v3.Vec{center.Add(randomVec(rnd, 1)), center.Add(randomVec(rnd, 1)), center.Add(randomVec(rnd, 1))}
		}
	}
	return res
}

// checkTree verifies the structural invariants of a tree and returns the faces of the leaves below i.
func checkTree(t *testing.T, tree *Tree, tris soup, i Index, depth int) []int {
	t.Helper()
	test.That(t, depth, test.ShouldBeLessThanOrEqualTo, tree.MaxDepth)
	node := &tree.Nodes[i]
	if node.IsLeaf() {
		test.That(t, node.Face.Valid(), test.ShouldBeTrue)
		test.That(t, node.Box, test.ShouldResemble, FromTriangle(tris.Face(int(node.Face))))
		return []int{int(node.Face)}
	}
	test.That(t, node.Face, test.ShouldEqual, None)
	test.That(t, node.Left.Valid() && node.Right.Valid(), test.ShouldBeTrue)
	faces := append(checkTree(t, tree, tris, node.Left, depth+1), checkTree(t, tree, tris, node.Right, depth+1)...)
	// Exact union of the leaves below
	union := FromTriangle(tris.Face(faces[0]))
	for _, f := range faces[1:] {
		union.Extend(FromTriangle(tris.Face(f)))
	}
	test.That(t, node.Box, test.ShouldResemble, union)
	return faces
}

func TestBuild(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	for _, n := range []int{1, 2, 3, 4, 5, 12, 100, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			tris := randomSoup(rnd, n)
			tree := BuildTriangles(tris)
			test.That(t, len(tree.Nodes), test.ShouldEqual, 2*n-1)
			test.That(t, tree.Root, test.ShouldEqual, Index(len(tree.Nodes)-1))

			faces := checkTree(t, tree, tris, tree.Root, 1)
			sort.Ints(faces)
			for i, f := range faces {
				test.That(t, f, test.ShouldEqual, i) // every face exactly once
			}

			st := tree.Stats()
			test.That(t, st.Leaves, test.ShouldEqual, n)
			test.That(t, st.Internal, test.ShouldEqual, n-1)
			test.That(t, st.Nodes, test.ShouldEqual, 2*n-1)
			test.That(t, st.MaxDepth, test.ShouldEqual, tree.MaxDepth)
			// Median splits keep the tree balanced
			test.That(t, tree.MaxDepth, test.ShouldBeLessThanOrEqualTo, bitlog(n)+2)
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	tree := BuildTriangles(soup{})
	test.That(t, tree.Root, test.ShouldEqual, None)
	test.That(t, tree.Nodes, test.ShouldBeEmpty)
	test.That(t, tree.MaxDepth, test.ShouldEqual, 0)
	test.That(t, tree.Stats(), test.ShouldResemble, Stats{})
	test.That(t, tree.Bounds(), test.ShouldResemble, AABB{})
	test.That(t, tree.Intersect(AABB{Max: v3.Vec{X: 1, Y: 1, Z: 1}}), test.ShouldBeEmpty)
	res := tree.Nearest(soup{}, v3.Vec{})
	test.That(t, res.Face, test.ShouldEqual, None)
}

func TestBuildSingle(t *testing.T) {
	tris := cube()[:1]
	tree := BuildTriangles(tris)
	test.That(t, tree.Root, test.ShouldEqual, Index(0))
	test.That(t, tree.MaxDepth, test.ShouldEqual, 1)
	test.That(t, tree.Nodes[0].IsLeaf(), test.ShouldBeTrue)
}

func TestBuildDeterministic(t *testing.T) {
	tris := randomSoup(rand.New(rand.NewSource(5)), 777)
	a := BuildTriangles(tris)
	b := BuildTriangles(tris)
	test.That(t, b.Nodes, test.ShouldResemble, a.Nodes)
	test.That(t, b.MaxDepth, test.ShouldEqual, a.MaxDepth)
}

func TestBuildCoincident(t *testing.T) {
	// Identical centers defeat any split plane: the builder must still terminate with a valid tree
	tris := make(soup, 64)
	for i := range tris {
		tris[i] = [3]v3.Vec{{}, {X: 1}, {Y: 1}}
	}
	tree := BuildTriangles(tris)
	test.That(t, tree.Stats().Leaves, test.ShouldEqual, 64)
	test.That(t, tree.MaxDepth, test.ShouldEqual, 7)
}

func TestBoxesAndWalk(t *testing.T) {
	tree := BuildTriangles(cube())
	test.That(t, tree.Boxes(1), test.ShouldHaveLength, 1)
	test.That(t, tree.Boxes(2), test.ShouldHaveLength, 3)
	test.That(t, tree.Boxes(0), test.ShouldHaveLength, 23)
	test.That(t, tree.Bounds(), test.ShouldResemble, AABB{Min: v3.Vec{X: -1, Y: -1, Z: -1}, Max: v3.Vec{X: 1, Y: 1, Z: 1}})

	visited := 0
	tree.Walk(func(node *Node, depth int) bool {
		visited++
		return false
	})
	test.That(t, visited, test.ShouldEqual, 1)
}

func TestNthElement(t *testing.T) {
	rnd := rand.New(rand.NewSource(9))
	for iter := 0; iter < 300; iter++ {
		n := 1 + rnd.Intn(200)
		keys := make([]float64, n)
		for i := range keys {
			keys[i] = float64(rnd.Intn(n/2 + 1)) // plenty of duplicates
		}
		order := make([]Index, n)
		for i := range order {
			order[i] = Index(i)
		}
		nth := rnd.Intn(n)
		sel := selector{order: order, key: func(i Index) float64 { return keys[i] }}
		sel.nthElement(0, n, nth)

		sorted := append([]float64(nil), keys...)
		sort.Float64s(sorted)
		pivot := keys[order[nth]]
		test.That(t, pivot, test.ShouldEqual, sorted[nth])
		for i := 0; i < nth; i++ {
			test.That(t, keys[order[i]], test.ShouldBeLessThanOrEqualTo, pivot)
		}
		for i := nth + 1; i < n; i++ {
			test.That(t, keys[order[i]], test.ShouldBeGreaterThanOrEqualTo, pivot)
		}
		// Still a permutation
		seen := make([]bool, n)
		for _, i := range order {
			test.That(t, seen[i], test.ShouldBeFalse)
			seen[i] = true
		}
	}
}

func TestMedian3(t *testing.T) {
	for _, tc := range [][4]float64{
		{1, 2, 3, 2}, {1, 3, 2, 2}, {2, 1, 3, 2}, {2, 3, 1, 2}, {3, 1, 2, 2}, {3, 2, 1, 2}, {1, 1, 2, 1}, {2, 2, 2, 2},
	} {
		test.That(t, median3(tc[0], tc[1], tc[2]), test.ShouldEqual, tc[3])
	}
	test.That(t, bitlog(1), test.ShouldEqual, 0)
	test.That(t, bitlog(8), test.ShouldEqual, 3)
	test.That(t, bitlog(9), test.ShouldEqual, 3)
}

func BenchmarkBuild(b *testing.B) {
	tris := randomSoup(rand.New(rand.NewSource(1)), 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BuildTriangles(tris)
	}
}
