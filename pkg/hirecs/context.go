package hirecs

// context carries the per-pass clustering state of one level item. Contexts
// are allocated at the start of a pass and released (dropped for the garbage
// collector) before the pass returns, keeping the hot footprint to the
// entities themselves.
type context struct {
	clusterable Clusterable

	// cands are the mutual candidates: best-gain partners that picked this
	// item back. Sorted by id.
	cands []*levItem

	// reqs are the one-way requests: items that picked this item as their
	// best partner without being picked back. Sorted by id.
	reqs []*levItem

	// weight is the item's total weight: self-weight plus all outgoing link
	// weights.
	weight AccWeight

	// cpg accumulates the positive complemented gain: the sum of all
	// positive link gains. Used to break core-selection ties.
	cpg AccWeight

	// gmax is the maximum link gain.
	gmax AccWeight

	// best holds the links achieving gmax, in link order.
	best []levLink
}

func newContext() *context {
	return &context{
		clusterable: ClusterableUndefined,
		weight:      AccWeightNone,
		cpg:         AccWeightNone,
		gmax:        AccWeightNone,
	}
}
