package hirecs

import (
	"fmt"
	"sort"
)

// sortNodeLinks orders a node's links ascending by destination id.
func sortNodeLinks(n *Node) {
	sort.SliceStable(n.Links, func(i, j int) bool { return n.Links[i].Dest.ID() < n.Links[j].Dest.ID() })
}

// findLink locates the link from n to dest, assuming sorted links.
func findLink(n *Node, dest *Node) (int, bool) {
	i := sort.Search(len(n.Links), func(i int) bool { return n.Links[i].Dest.ID() >= dest.ID() })
	for ; i < len(n.Links) && n.Links[i].Dest.ID() == dest.ID(); i++ {
		if n.Links[i].Dest == dest {
			return i, true
		}
	}
	return 0, false
}

// validateNodes checks and repairs the level-zero invariants before
// clustering: every link must target a known node, self-entries are
// forbidden, and links must be symmetric in presence. On a symmetric graph a
// missing or weight-mismatched back-link is a caller error; on an asymmetric
// graph the missing back-link is added with zero weight. All link lists are
// sorted by destination id as a side effect.
func validateNodes(nodes []*Node, symmetric bool) error {
	known := make(map[*Node]struct{}, len(nodes))
	for _, n := range nodes {
		known[n] = struct{}{}
	}

	for _, n := range nodes {
		for _, ln := range n.Links {
			if ln.Dest == n {
				return fmt.Errorf("node %d: %w", n.ID(), ErrSelfLink)
			}
			if _, ok := known[ln.Dest]; !ok {
				return fmt.Errorf("node %d: %w: %d", n.ID(), ErrUnknownLinkDest, ln.Dest.ID())
			}
		}
		sortNodeLinks(n)
	}

	// Missing back-links are collected first: appending while scanning would
	// invalidate the sorted lookups.
	type backLink struct {
		src, dst *Node
	}
	var missing []backLink
	for _, n := range nodes {
		for _, ln := range n.Links {
			j, ok := findLink(ln.Dest, n)
			if !ok {
				if symmetric {
					return fmt.Errorf("link %d>%d: %w: no back-link", n.ID(), ln.Dest.ID(), ErrAsymmetricLink)
				}
				missing = append(missing, backLink{src: ln.Dest, dst: n})
				continue
			}
			if symmetric && !NearEqual(AccWeight(ln.Weight), AccWeight(ln.Dest.Links[j].Weight)) {
				return fmt.Errorf("link %d>%d: %w: weight %g vs %g",
					n.ID(), ln.Dest.ID(), ErrAsymmetricLink, ln.Weight, ln.Dest.Links[j].Weight)
			}
		}
	}
	if len(missing) > 0 {
		touched := make(map[*Node]struct{})
		for _, b := range missing {
			b.src.Links = append(b.src.Links, Link{Dest: b.dst, Weight: 0})
			touched[b.src] = struct{}{}
		}
		for n := range touched {
			sortNodeLinks(n)
		}
	}
	return nil
}

// totalWeight computes the total network weight: the sum of all self-weights
// and all stored arc weights. On the weighted path the builder halves
// undirected edges, so each contributes its original weight exactly once; on
// the unweighted path both arcs keep weight 1 and self-weights are doubled,
// so every edge and self-loop counts twice.
func totalWeight(nodes []*Node) AccWeight {
	var w AccWeight
	for _, n := range nodes {
		w = satAdd(w, n.SelfWeight())
		for _, ln := range n.Links {
			w = satAdd(w, AccWeight(ln.Weight))
		}
	}
	return w
}
