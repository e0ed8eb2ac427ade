package hirecs

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"
)

const (
	// DefaultModProfitMargin is the default early-termination margin: close
	// enough to -1 to accept almost any pass while keeping tracing on.
	DefaultModProfitMargin = -0.999

	// passiveWeightFactor decides when an item is too heavy to initiate a
	// merge: its weight exceeds the link-weighted mean of its mutual
	// candidates' weights by this factor.
	passiveWeightFactor = 2
)

// Options configures one clustering run.
type Options struct {
	// Symmetric enables the simplified gain formula for undirected graphs.
	// Validation rejects the run if asymmetry is found despite the claim.
	Symmetric bool

	// Validate checks and repairs link symmetry before clustering and sorts
	// all link lists. Disable only for pre-sorted, known-consistent input.
	Validate bool

	// Fast relaxes strictly-mutual merging to quasi-mutual: a one-way
	// request is accepted when its sink has no mutual candidate and is still
	// unmerged in the pass.
	Fast bool

	// ModProfitMargin terminates clustering once a pass improves modularity
	// by no more than this value; the triggering pass is discarded. Must lie
	// in [-1, 1]. Exactly -1 additionally suppresses per-pass tracing.
	ModProfitMargin float64

	// Logger receives per-pass diagnostics. Defaults to a discarding logger.
	Logger *log.Logger

	// OnPass, when set, is invoked after every committed pass with the pass
	// number, the clusters it created and the modularity movement.
	OnPass func(pass, clusters int, deltaMod, mod float64)
}

// DefaultOptions returns the options used by the CLI defaults: validating,
// strictly mutual, margin -0.999.
func DefaultOptions() Options {
	return Options{Validate: true, ModProfitMargin: DefaultModProfitMargin}
}

// engine holds the per-run constants of the pass loop.
type engine struct {
	w         AccWeight
	symmetric bool
	fast      bool
}

// Run clusters the finalized node set into a Hierarchy. The nodes are
// consumed: their link lists are copied into the engine's working level and
// released before the first pass. Passes repeat until a pass produces no merge or the
// modularity delta drops to the profit margin.
func Run(nodes []*Node, opts Options) (*Hierarchy, error) {
	if opts.ModProfitMargin < -1 || opts.ModProfitMargin > 1 {
		return nil, fmt.Errorf("%w: %g", ErrMarginRange, opts.ModProfitMargin)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Validate {
		if err := validateNodes(nodes, opts.Symmetric); err != nil {
			return nil, err
		}
	}

	h := &Hierarchy{nodes: nodes}
	w := totalWeight(nodes)
	if len(nodes) == 0 || w <= 0 || w == AccWeightMax {
		return h, nil
	}

	e := &engine{w: w, symmetric: opts.Symmetric, fast: opts.Fast}
	level := levelFromNodes(nodes)
	q := modularity(level, w)
	trace := opts.ModProfitMargin != -1

	for pass := 1; ; pass++ {
		groups := e.resolve(level)
		if len(groups) == 0 {
			releaseContexts(level)
			if trace {
				logger.Debug("no progress", "pass", pass, "items", len(level))
			}
			break
		}
		next := accumulate(level, groups)
		qn := modularity(next, w)
		delta := qn - q
		if delta <= opts.ModProfitMargin {
			releaseContexts(level)
			if trace {
				logger.Debug("pass below profit margin, discarded",
					"pass", pass, "dQ", delta, "margin", opts.ModProfitMargin)
			}
			break
		}
		clusters := commit(level, groups, next)
		h.clusters = append(h.clusters, clusters...)
		h.levels = append(h.levels, clusters)
		if trace {
			logger.Info("pass complete",
				"pass", pass, "merges", len(clusters), "items", len(next), "dQ", delta, "Q", qn)
		}
		if opts.OnPass != nil {
			opts.OnPass(pass, len(clusters), delta, qn)
		}
		level = next
		q = qn
	}

	h.score.Modularity = q
	for _, c := range h.clusters {
		if len(c.owners) == 0 {
			h.root = append(h.root, c)
		}
	}
	return h, nil
}

func releaseContexts(level []*levItem) {
	for _, li := range level {
		li.ctx = nil
	}
}

// resolve runs the selection stages of one pass over the level: gains and
// tags, mutual agreement, passivity, chain fixing, then the merge walk.
// Returns the resolved merge groups in creation order.
func (e *engine) resolve(level []*levItem) []*group {
	e.computeContexts(level)
	e.matchCandidates(level)
	e.markPassive(level)
	e.fixChains(level)
	groups := e.mergeMutual(level)
	if e.fast {
		groups = append(groups, e.mergeRequests(level)...)
	}
	return groups
}

// computeContexts attaches a fresh context to every item and fills weights,
// link gains, gmax, cpg and the initial clusterability tag.
func (e *engine) computeContexts(level []*levItem) {
	for _, li := range level {
		li.ctx = newContext()
		li.groups = nil
		li.carried = nil
	}
	for _, li := range level {
		w := li.self
		for _, ln := range li.links {
			w = satAdd(w, ln.weight)
		}
		li.ctx.weight = w
	}

	var back map[*levItem]map[*levItem]AccWeight
	if !e.symmetric {
		back = make(map[*levItem]map[*levItem]AccWeight, len(level))
		for _, li := range level {
			m := make(map[*levItem]AccWeight, len(li.links))
			for _, ln := range li.links {
				m[ln.dest] = satAdd(m[ln.dest], ln.weight)
			}
			back[li] = m
		}
	}

	for _, li := range level {
		ctx := li.ctx
		if li.saturated() {
			ctx.clusterable = ClusterableNone
			continue
		}
		var cpg AccWeight
		gmax := AccWeightNone
		for _, ln := range li.links {
			if ln.dest.saturated() {
				continue
			}
			var g AccWeight
			if e.symmetric {
				g = ln.weight - ctx.weight*ln.dest.ctx.weight/e.w
			} else {
				g = ln.weight + back[ln.dest][li] - 2*ctx.weight*ln.dest.ctx.weight/e.w
			}
			if g > 0 {
				cpg += g
			}
			switch {
			case gmax == AccWeightNone:
				gmax = g
				ctx.best = append(ctx.best[:0], ln)
			case NearEqual(g, gmax):
				ctx.best = append(ctx.best, ln)
			case g > gmax:
				gmax = g
				ctx.best = append(ctx.best[:0], ln)
			}
		}
		ctx.gmax = gmax
		ctx.cpg = cpg
		switch {
		case gmax == AccWeightNone, gmax < 0 && !NearEqual(gmax, 0):
			ctx.clusterable = ClusterableNone
		case len(ctx.best) > 1:
			ctx.clusterable = ClusterableMultiple
		default:
			ctx.clusterable = ClusterableSingle
		}
	}
}

// matchCandidates splits each item's best links into mutual candidates and
// one-way requests. Items none of whose best candidates reciprocate are
// retagged NONMUTUAL.
func (e *engine) matchCandidates(level []*levItem) {
	for _, li := range level {
		switch li.ctx.clusterable {
		case ClusterableSingle, ClusterableMultiple:
		default:
			continue
		}
		for _, ln := range li.ctx.best {
			if ln.dest.bestContains(li) {
				li.ctx.cands = append(li.ctx.cands, ln.dest)
			} else {
				ln.dest.ctx.reqs = append(ln.dest.ctx.reqs, li)
			}
		}
	}
	for _, li := range level {
		ctx := li.ctx
		switch ctx.clusterable {
		case ClusterableSingle, ClusterableMultiple:
			if len(ctx.cands) == 0 {
				ctx.clusterable = ClusterableNonMutual
			}
		}
		sortLevelSet(ctx.cands)
		sortLevelSet(ctx.reqs)
	}
}

// bestContains reports whether other is among the item's best candidates.
func (li *levItem) bestContains(other *levItem) bool {
	if li.ctx == nil {
		return false
	}
	switch li.ctx.clusterable {
	case ClusterableNone:
		return false
	}
	for _, ln := range li.ctx.best {
		if ln.dest == other {
			return true
		}
	}
	return false
}

func sortLevelSet(set []*levItem) {
	sort.SliceStable(set, func(i, j int) bool { return set[i].less(set[j]) })
}

// markPassive tags items too heavy to initiate a merge: the item's weight
// exceeds the link-weighted mean of its mutual candidates' weights by
// passiveWeightFactor. A passive item that is the target of requests is
// frozen (PASSIVE_FIXED) so it stays a sink for the rest of the pass.
func (e *engine) markPassive(level []*levItem) {
	for _, li := range level {
		ctx := li.ctx
		if len(ctx.cands) == 0 {
			continue
		}
		var wsum, mean AccWeight
		for _, c := range ctx.cands {
			lw := li.linkWeightTo(c)
			wsum += lw
			mean += lw * c.ctx.weight
		}
		if wsum <= 0 {
			continue
		}
		mean /= wsum
		if ctx.weight > passiveWeightFactor*mean {
			if len(ctx.reqs) > 0 {
				ctx.clusterable = ClusterablePassiveFixed
			} else {
				ctx.clusterable = ClusterablePassive
			}
		}
	}
}

// linkWeightTo sums the item's link weight toward dest.
func (li *levItem) linkWeightTo(dest *levItem) AccWeight {
	var w AccWeight
	for _, ln := range li.links {
		if ln.dest == dest {
			w += ln.weight
		}
	}
	return w
}

// fixChains breaks request cycles. A chain is a cycle of one-way picks among
// items with no mutual candidate: a picked b, b picked c, c picked a. The
// lowest-id member is fixed passive (PASSIVE_CFIXED) so that the remainder
// of the chain can merge into it without contradiction.
func (e *engine) fixChains(level []*levItem) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[*levItem]int, len(level))
	for _, li := range level {
		if li.ctx.clusterable != ClusterableNonMutual || color[li] != white {
			continue
		}
		var path []*levItem
		cur := li
		for cur != nil && cur.ctx.clusterable == ClusterableNonMutual && color[cur] == white {
			color[cur] = gray
			path = append(path, cur)
			cur = cur.pick()
		}
		if cur != nil && color[cur] == gray {
			// Cycle: runs from cur's position in path to its end.
			start := 0
			for i, p := range path {
				if p == cur {
					start = i
					break
				}
			}
			lowest := path[start]
			for _, p := range path[start+1:] {
				if p.less(lowest) {
					lowest = p
				}
			}
			lowest.ctx.clusterable = ClusterablePassiveCFixed
		}
		for _, p := range path {
			color[p] = black
		}
	}
}

// pick returns the item's first best candidate, the target of its one-way
// request.
func (li *levItem) pick() *levItem {
	if li.ctx == nil || len(li.ctx.best) == 0 {
		return nil
	}
	return li.ctx.best[0].dest
}

// mergeMutual walks the level in id order and resolves the strictly-mutual
// merges. For each initiator the unmerged mutual candidates are partitioned
// into groups by mutual candidacy among themselves; one cluster forms per
// group, the initiator joining each. An initiator already pulled into a
// cluster may still join further disjoint groups when tagged MULTIPLE —
// that is the overlap case.
func (e *engine) mergeMutual(level []*levItem) []*group {
	var groups []*group
	for _, li := range level {
		ctx := li.ctx
		if ctx.clusterable != ClusterableSingle && ctx.clusterable != ClusterableMultiple {
			continue
		}
		if li.groups != nil && ctx.clusterable != ClusterableMultiple {
			continue
		}
		var avail []*levItem
		for _, c := range ctx.cands {
			if c.groups == nil {
				avail = append(avail, c)
			}
		}
		if len(avail) == 0 {
			continue
		}
		for _, comp := range partitionMutual(avail) {
			members := make([]*levItem, 0, len(comp)+1)
			members = append(members, comp...)
			members = append(members, li)
			sortLevelSet(members)
			g := &group{members: members, core: coreOf(members)}
			for _, m := range comp {
				m.groups = append(m.groups, g)
			}
			li.groups = append(li.groups, g)
			groups = append(groups, g)
		}
	}
	return groups
}

// partitionMutual splits the candidates into connected components of the
// mutual-candidacy relation restricted to the set itself. Components are
// returned ordered by their smallest member.
func partitionMutual(avail []*levItem) [][]*levItem {
	var comps [][]*levItem
	assigned := make(map[*levItem]bool, len(avail))
	for _, seed := range avail {
		if assigned[seed] {
			continue
		}
		comp := []*levItem{seed}
		assigned[seed] = true
		for i := 0; i < len(comp); i++ {
			for _, m := range avail {
				if !assigned[m] && mutualWith(comp[i], m) {
					assigned[m] = true
					comp = append(comp, m)
				}
			}
		}
		sortLevelSet(comp)
		comps = append(comps, comp)
	}
	return comps
}

// mutualWith reports whether other is a mutual candidate of li.
func mutualWith(li, other *levItem) bool {
	for _, c := range li.ctx.cands {
		if c == other {
			return true
		}
	}
	return false
}

// mergeRequests resolves the quasi-mutual merges: an unmerged item with no
// mutual candidate absorbs the transitive closure of its unmerged
// requesters. Chain-fixed sinks fold their whole chain this way.
func (e *engine) mergeRequests(level []*levItem) []*group {
	var groups []*group
	for _, li := range level {
		ctx := li.ctx
		if li.groups != nil || len(ctx.cands) > 0 || len(ctx.reqs) == 0 {
			continue
		}
		// An item that refuses to merge cannot become a sink either.
		if ctx.clusterable == ClusterableNone || ctx.clusterable == ClusterableUndefined {
			continue
		}
		members := []*levItem{li}
		seen := map[*levItem]bool{li: true}
		for i := 0; i < len(members); i++ {
			for _, r := range members[i].ctx.reqs {
				if !seen[r] && r.groups == nil {
					seen[r] = true
					members = append(members, r)
				}
			}
		}
		if len(members) < 2 {
			continue
		}
		sortLevelSet(members)
		g := &group{members: members, core: coreOf(members)}
		for _, m := range members {
			m.groups = append(m.groups, g)
		}
		groups = append(groups, g)
	}
	return groups
}

// coreOf selects the group member with the highest gain: max gmax, ties
// broken by larger positive complemented gain, then by id order.
func coreOf(members []*levItem) *levItem {
	core := members[0]
	for _, m := range members[1:] {
		switch {
		case m.ctx.gmax > core.ctx.gmax && !NearEqual(m.ctx.gmax, core.ctx.gmax):
			core = m
		case NearEqual(m.ctx.gmax, core.ctx.gmax) &&
			m.ctx.cpg > core.ctx.cpg && !NearEqual(m.ctx.cpg, core.ctx.cpg):
			core = m
		}
	}
	return core
}
