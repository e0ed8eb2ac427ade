package hirecs_test

import (
	"math"
	"sort"
	"testing"

	"github.com/hirecs/hirecs/pkg/graph"
	"github.com/hirecs/hirecs/pkg/hirecs"
)

// buildEdges assembles a weighted undirected graph from (src, dst, weight)
// triples, creating nodes on first use.
func buildEdges(t *testing.T, edges [][3]float64) []*hirecs.Node {
	t.Helper()
	b := graph.New(true, 0)
	for _, e := range edges {
		err := b.AddNodeAndLinks(false, hirecs.Id(e[0]),
			graph.InpLink{ID: hirecs.Id(e[1]), Weight: hirecs.LinkWeight(e[2])})
		if err != nil {
			t.Fatalf("add edge %v: %v", e, err)
		}
	}
	return b.Finalize()
}

// run clusters with defaults plus overrides applied by fn.
func run(t *testing.T, nodes []*hirecs.Node, fn func(*hirecs.Options)) *hirecs.Hierarchy {
	t.Helper()
	opts := hirecs.DefaultOptions()
	opts.Symmetric = true
	if fn != nil {
		fn(&opts)
	}
	h, err := hirecs.Run(nodes, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return h
}

// leafSet unwraps a cluster and returns its sorted leaf ids.
func leafSet(h *hirecs.Hierarchy, cl *hirecs.Cluster) []hirecs.Id {
	shares := make(map[*hirecs.Node]hirecs.Share)
	h.Unwrap(cl, shares)
	ids := make([]hirecs.Id, 0, len(shares))
	for n := range shares {
		ids = append(ids, n.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// assertNonTrivial checks that no materialised cluster has fewer than two
// descendants.
func assertNonTrivial(t *testing.T, h *hirecs.Hierarchy) {
	t.Helper()
	for _, cl := range h.Clusters() {
		if len(cl.Des) < 2 {
			t.Errorf("cluster %d has %d descendants, want >= 2", cl.ID(), len(cl.Des))
		}
	}
}

// assertLeafClosure checks that every leaf's shares across the roots sum to
// one.
func assertLeafClosure(t *testing.T, h *hirecs.Hierarchy) {
	t.Helper()
	totals := make(map[*hirecs.Node]hirecs.Share)
	for _, cl := range h.Root() {
		h.Unwrap(cl, totals)
	}
	if len(totals) != len(h.Nodes()) {
		t.Errorf("unwrap covers %d leaves, want %d", len(totals), len(h.Nodes()))
	}
	for n, s := range totals {
		if math.Abs(s-1) > 1e-9 {
			t.Errorf("leaf %d total share = %g, want 1", n.ID(), s)
		}
	}
}

func equalIDs(a, b []hirecs.Id) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var (
	triangleEdges = [][3]float64{{0, 1, 1}, {0, 2, 1}, {1, 2, 1}}

	twoTriangleEdges = [][3]float64{
		{0, 1, 1}, {0, 2, 1}, {1, 2, 1},
		{3, 4, 1}, {3, 5, 1}, {4, 5, 1},
	}

	bridgeEdges = [][3]float64{
		{0, 1, 1}, {0, 2, 1}, {1, 2, 1},
		{3, 4, 1}, {3, 5, 1}, {4, 5, 1},
		{2, 3, 1},
	}
)

func TestTriangle(t *testing.T) {
	h := run(t, buildEdges(t, triangleEdges), nil)

	if len(h.Root()) != 1 {
		t.Fatalf("roots = %d, want 1", len(h.Root()))
	}
	root := h.Root()[0]
	if got := leafSet(h, root); !equalIDs(got, []hirecs.Id{0, 1, 2}) {
		t.Errorf("root leaves = %v, want [0 1 2]", got)
	}
	if len(root.Des) != 3 {
		t.Errorf("root descendants = %d, want 3", len(root.Des))
	}
	if h.Score().Modularity < 0 {
		t.Errorf("modularity = %g, want >= 0", h.Score().Modularity)
	}
	assertNonTrivial(t, h)
	assertLeafClosure(t, h)
}

func TestTwoTriangles(t *testing.T) {
	h := run(t, buildEdges(t, twoTriangleEdges), nil)

	if len(h.Root()) != 2 {
		t.Fatalf("roots = %d, want 2", len(h.Root()))
	}
	var leaves [][]hirecs.Id
	for _, cl := range h.Root() {
		if len(cl.Links) != 0 {
			t.Errorf("root %d has %d inter-cluster links, want 0", cl.ID(), len(cl.Links))
		}
		leaves = append(leaves, leafSet(h, cl))
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i][0] < leaves[j][0] })
	if !equalIDs(leaves[0], []hirecs.Id{0, 1, 2}) || !equalIDs(leaves[1], []hirecs.Id{3, 4, 5}) {
		t.Errorf("root leaves = %v, want [0 1 2] and [3 4 5]", leaves)
	}
	if got := h.Score().Modularity; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("modularity = %g, want 0.5", got)
	}
	assertNonTrivial(t, h)
	assertLeafClosure(t, h)
}

func TestBridge(t *testing.T) {
	h := run(t, buildEdges(t, bridgeEdges), nil)

	if len(h.Root()) != 2 {
		t.Fatalf("roots = %d, want 2", len(h.Root()))
	}
	var interTotal float64
	for _, cl := range h.Root() {
		if len(cl.Links) != 1 {
			t.Fatalf("root %d has %d inter-cluster links, want 1", cl.ID(), len(cl.Links))
		}
		interTotal += cl.Links[0].Weight
	}
	// The bridge edge of weight 1 is stored as two arcs of 0.5.
	if math.Abs(interTotal-1) > 1e-9 {
		t.Errorf("inter-cluster link total = %g, want 1", interTotal)
	}
	var leaves [][]hirecs.Id
	for _, cl := range h.Root() {
		leaves = append(leaves, leafSet(h, cl))
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i][0] < leaves[j][0] })
	if !equalIDs(leaves[0], []hirecs.Id{0, 1, 2}) || !equalIDs(leaves[1], []hirecs.Id{3, 4, 5}) {
		t.Errorf("root leaves = %v, want [0 1 2] and [3 4 5]", leaves)
	}
	assertNonTrivial(t, h)
	assertLeafClosure(t, h)
}

// TestOverlapStar checks the overlap case: a light hub linked to three
// heavy nodes becomes a descendant of all three clusters.
func TestOverlapStar(t *testing.T) {
	b := graph.New(true, 4)
	if err := b.AddNodes(0, 1, 2, 3); err != nil {
		t.Fatal(err)
	}
	for _, id := range []hirecs.Id{0, 1, 3} {
		if err := b.AddNodeLinks(false, id, graph.InpLink{ID: id, Weight: 6}); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.AddNodeLinks(false, 2,
		graph.InpLink{ID: 0, Weight: 1},
		graph.InpLink{ID: 1, Weight: 1},
		graph.InpLink{ID: 3, Weight: 1}); err != nil {
		t.Fatal(err)
	}

	h := run(t, b.Finalize(), nil)

	if len(h.Root()) != 3 {
		t.Fatalf("roots = %d, want 3", len(h.Root()))
	}
	var hub *hirecs.Node
	for _, n := range h.Nodes() {
		if n.ID() == 2 {
			hub = n
		}
	}
	if len(hub.Owners()) != 3 {
		t.Fatalf("hub owners = %d, want 3", len(hub.Owners()))
	}
	for _, cl := range h.Root() {
		if len(cl.Des) != 2 {
			t.Errorf("root %d descendants = %d, want 2", cl.ID(), len(cl.Des))
		}
		shares := make(map[*hirecs.Node]hirecs.Share)
		h.Unwrap(cl, shares)
		if got := shares[hub]; math.Abs(got-1.0/3) > 1e-9 {
			t.Errorf("root %d hub share = %g, want 1/3", cl.ID(), got)
		}
	}
	assertNonTrivial(t, h)
	assertLeafClosure(t, h)
}

// TestFastMatchesStrict checks that quasi-mutual mode reproduces the
// strictly-mutual hierarchy on clean graphs.
func TestFastMatchesStrict(t *testing.T) {
	for _, tc := range []struct {
		name  string
		edges [][3]float64
	}{
		{"Triangle", triangleEdges},
		{"TwoTriangles", twoTriangleEdges},
	} {
		t.Run(tc.name, func(t *testing.T) {
			strict := run(t, buildEdges(t, tc.edges), nil)
			fast := run(t, buildEdges(t, tc.edges), func(o *hirecs.Options) { o.Fast = true })

			if len(strict.Clusters()) != len(fast.Clusters()) {
				t.Errorf("cluster counts differ: strict %d, fast %d",
					len(strict.Clusters()), len(fast.Clusters()))
			}
			if len(strict.Root()) != len(fast.Root()) {
				t.Errorf("root counts differ: strict %d, fast %d",
					len(strict.Root()), len(fast.Root()))
			}
			if math.Abs(strict.Score().Modularity-fast.Score().Modularity) > 1e-9 {
				t.Errorf("modularity differs: strict %g, fast %g",
					strict.Score().Modularity, fast.Score().Modularity)
			}
		})
	}
}

// TestProfitMargin checks the early cutoff: a margin between the first and
// second pass deltas halts after the first pass and discards the second.
func TestProfitMargin(t *testing.T) {
	// Strong pair 0-1, weak tail 2: the first pass gains ~0.5 modularity,
	// the second only ~5e-5.
	edges := [][3]float64{{0, 1, 10}, {1, 2, 0.1}}

	h := run(t, buildEdges(t, edges), func(o *hirecs.Options) { o.ModProfitMargin = 0.01 })
	if got := len(h.Clusters()); got != 1 {
		t.Fatalf("clusters = %d, want 1 (second pass discarded)", got)
	}
	// The 0.1 edge weight is halved through float32 arcs, so compare with a
	// tolerance above its representation error.
	const w = 10.1
	wantQ := 10/w - (10.05/w)*(10.05/w) - (0.05/w)*(0.05/w)
	if got := h.Score().Modularity; math.Abs(got-wantQ) > 1e-6 {
		t.Errorf("modularity = %g, want %g (Q after the first pass)", got, wantQ)
	}

	// With the default margin the tail folds in on the second pass.
	full := run(t, buildEdges(t, edges), nil)
	if got := len(full.Clusters()); got != 2 {
		t.Fatalf("clusters = %d, want 2", got)
	}
	if got := full.Score().Modularity; math.Abs(got) > 1e-9 {
		t.Errorf("modularity = %g, want 0", got)
	}
}

// TestMarginRange checks margin validation.
func TestMarginRange(t *testing.T) {
	for _, margin := range []float64{-1.5, 1.5} {
		opts := hirecs.DefaultOptions()
		opts.ModProfitMargin = margin
		if _, err := hirecs.Run(buildEdges(t, triangleEdges), opts); err == nil {
			t.Errorf("margin %g: want error", margin)
		}
	}
}

// TestDeterminism runs the same input twice and compares structure: leaf
// sets per root, relative cluster ids, link weights and modularity.
func TestDeterminism(t *testing.T) {
	sig := func(h *hirecs.Hierarchy) (roots [][]hirecs.Id, relIDs []hirecs.Id, weights []float64) {
		base := hirecs.Id(math.MaxUint32)
		for _, cl := range h.Clusters() {
			if cl.ID() < base {
				base = cl.ID()
			}
		}
		for _, cl := range h.Clusters() {
			relIDs = append(relIDs, cl.ID()-base)
			for _, ln := range cl.Links {
				weights = append(weights, ln.Weight)
			}
		}
		for _, cl := range h.Root() {
			roots = append(roots, leafSet(h, cl))
		}
		sort.Slice(roots, func(i, j int) bool { return roots[i][0] < roots[j][0] })
		return roots, relIDs, weights
	}

	a := run(t, buildEdges(t, bridgeEdges), nil)
	b := run(t, buildEdges(t, bridgeEdges), nil)

	rootsA, idsA, weightsA := sig(a)
	rootsB, idsB, weightsB := sig(b)
	if len(rootsA) != len(rootsB) {
		t.Fatalf("root counts differ: %d vs %d", len(rootsA), len(rootsB))
	}
	for i := range rootsA {
		if !equalIDs(rootsA[i], rootsB[i]) {
			t.Errorf("root %d leaves differ: %v vs %v", i, rootsA[i], rootsB[i])
		}
	}
	if len(idsA) != len(idsB) {
		t.Fatalf("cluster counts differ: %d vs %d", len(idsA), len(idsB))
	}
	for i := range idsA {
		if idsA[i] != idsB[i] {
			t.Errorf("relative cluster id %d differs: %d vs %d", i, idsA[i], idsB[i])
		}
	}
	if len(weightsA) != len(weightsB) {
		t.Fatalf("link counts differ: %d vs %d", len(weightsA), len(weightsB))
	}
	for i := range weightsA {
		if weightsA[i] != weightsB[i] {
			t.Errorf("link weight %d differs: %g vs %g", i, weightsA[i], weightsB[i])
		}
	}
}

// TestModularityMonotonic checks that with a non-positive margin every
// committed pass improves modularity.
func TestModularityMonotonic(t *testing.T) {
	for _, tc := range []struct {
		name  string
		edges [][3]float64
	}{
		{"TwoTriangles", twoTriangleEdges},
		{"Bridge", bridgeEdges},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var deltas []float64
			run(t, buildEdges(t, tc.edges), func(o *hirecs.Options) {
				o.ModProfitMargin = 0
				o.OnPass = func(pass, clusters int, deltaMod, mod float64) {
					deltas = append(deltas, deltaMod)
				}
			})
			if len(deltas) == 0 {
				t.Fatal("no passes committed")
			}
			for i, d := range deltas {
				if d < 0 {
					t.Errorf("pass %d delta = %g, want >= 0", i+1, d)
				}
			}
		})
	}
}

// TestWeightConservation checks that the total network weight survives to
// the root level: the sum over roots of self-weight plus outgoing links
// equals the initial W.
func TestWeightConservation(t *testing.T) {
	for _, tc := range []struct {
		name  string
		edges [][3]float64
		w     float64 // sum of edge weights (self-weights none)
	}{
		{"Triangle", triangleEdges, 3},
		{"TwoTriangles", twoTriangleEdges, 6},
		{"Bridge", bridgeEdges, 7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := run(t, buildEdges(t, tc.edges), nil)
			var got float64
			for _, cl := range h.Root() {
				got += cl.SelfWeight()
				for _, ln := range cl.Links {
					got += ln.Weight
				}
			}
			if math.Abs(got-tc.w) > 1e-9 {
				t.Errorf("root-level weight = %g, want %g", got, tc.w)
			}
		})
	}
}

// TestSymmetryAtRoot checks that accumulated links stay symmetric on a
// symmetric input: w(u->v) equals w(v->u) between root clusters.
func TestSymmetryAtRoot(t *testing.T) {
	h := run(t, buildEdges(t, bridgeEdges), nil)
	for _, cl := range h.Root() {
		for _, ln := range cl.Links {
			dest, ok := ln.Dest.(*hirecs.Cluster)
			if !ok {
				continue
			}
			var back float64
			for _, bl := range dest.Links {
				if bl.Dest == hirecs.Item(cl) {
					back += bl.Weight
				}
			}
			if !hirecs.NearEqual(ln.Weight, back) {
				t.Errorf("link %d->%d = %g, back = %g", cl.ID(), dest.ID(), ln.Weight, back)
			}
		}
	}
}

// TestDirectedGraph covers the asymmetric path: validation adds missing
// zero-weight back-links and the directed gain formula still finds the
// communities.
func TestDirectedGraph(t *testing.T) {
	b := graph.New(true, 0)
	arcs := [][3]float64{
		{0, 1, 1}, {1, 2, 1}, {2, 0, 1},
		{3, 4, 1}, {4, 5, 1}, {5, 3, 1},
	}
	for _, a := range arcs {
		err := b.AddNodeAndLinks(true, hirecs.Id(a[0]),
			graph.InpLink{ID: hirecs.Id(a[1]), Weight: hirecs.LinkWeight(a[2])})
		if err != nil {
			t.Fatal(err)
		}
	}
	if !b.Directed() {
		t.Fatal("builder should report directed")
	}
	nodes := b.Finalize()

	opts := hirecs.DefaultOptions()
	h, err := hirecs.Run(nodes, opts) // Symmetric false
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.Root()) != 2 {
		t.Fatalf("roots = %d, want 2", len(h.Root()))
	}
	var leaves [][]hirecs.Id
	for _, cl := range h.Root() {
		leaves = append(leaves, leafSet(h, cl))
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i][0] < leaves[j][0] })
	if !equalIDs(leaves[0], []hirecs.Id{0, 1, 2}) || !equalIDs(leaves[1], []hirecs.Id{3, 4, 5}) {
		t.Errorf("root leaves = %v, want [0 1 2] and [3 4 5]", leaves)
	}
	assertLeafClosure(t, h)
}

// TestEmptyInput checks the degenerate runs.
func TestEmptyInput(t *testing.T) {
	h, err := hirecs.Run(nil, hirecs.DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.Root()) != 0 || len(h.Clusters()) != 0 || h.Score().Modularity != 0 {
		t.Errorf("empty input: root %d clusters %d mod %g",
			len(h.Root()), len(h.Clusters()), h.Score().Modularity)
	}
}
