package hirecs

import "sort"

// levLink is a level-local accumulated link between two working items.
type levLink struct {
	dest   *levItem
	weight AccWeight
}

// levItem is one item of the working level inside a pass: the entity plus
// the level-local adjacency the entity cannot carry itself (an unmerged node
// promoted to level three still needs links that point at clusters). The
// engine owns these; entities only ever see the committed results.
type levItem struct {
	item  Item
	self  AccWeight
	links []levLink

	ctx *context

	// groups lists the merge groups this item joined in the current pass;
	// nil means the item is promoted unchanged.
	groups []*group

	// carried is the item's next-level incarnation when it did not merge.
	carried *levItem

	// linkIdx deduplicates link targets while the next level accumulates;
	// released on commit.
	linkIdx map[*levItem]int
}

// group is a merge resolved during a pass but not yet committed: the future
// cluster's members and its accumulated state. Groups become Cluster
// entities only if the pass survives the profit-margin check.
type group struct {
	members []*levItem // sorted by id, initiator included
	core    *levItem
	next    *levItem // the group's next-level incarnation
}

// saturated reports whether the item overflowed and must be excluded from
// gain computation.
func (li *levItem) saturated() bool {
	return li.self == AccWeightMax || (li.ctx != nil && li.ctx.weight == AccWeightMax)
}

// id returns the underlying entity id.
func (li *levItem) id() Id { return li.item.ID() }

// isCluster reports whether the underlying entity is a cluster. Node and
// cluster id spaces may overlap, so deterministic orderings use (id, kind).
func (li *levItem) isCluster() bool {
	_, ok := li.item.(*Cluster)
	return ok
}

// less is the deterministic level ordering: ascending id, nodes before
// clusters on an id collision.
func (li *levItem) less(other *levItem) bool {
	if li.id() != other.id() {
		return li.id() < other.id()
	}
	return !li.isCluster() && other.isCluster()
}

func sortLevel(items []*levItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].less(items[j]) })
}

func sortLevLinks(links []levLink) {
	sort.SliceStable(links, func(i, j int) bool { return links[i].dest.less(links[j].dest) })
}

// levelFromNodes wraps the bottom level. Node link lists are folded into the
// level-local adjacency and released immediately: the nodes' contribution to
// all accumulated links of later levels flows through the level table alone.
func levelFromNodes(nodes []*Node) []*levItem {
	level := make([]*levItem, len(nodes))
	index := make(map[*Node]*levItem, len(nodes))
	for i, n := range nodes {
		li := &levItem{item: n, self: n.SelfWeight()}
		level[i] = li
		index[n] = li
	}
	for i, n := range nodes {
		li := level[i]
		if len(n.Links) > 0 {
			li.links = make([]levLink, len(n.Links))
			for j, ln := range n.Links {
				li.links[j] = levLink{dest: index[ln.Dest], weight: AccWeight(ln.Weight)}
			}
		}
		n.Links = nil // freed: the level table owns the adjacency now
	}
	sortLevel(level)
	return level
}

// reps returns the item's next-level representatives: the groups it merged
// into, or its carried self.
func (li *levItem) reps() []*levItem {
	if li.groups == nil {
		return []*levItem{li.carried}
	}
	r := make([]*levItem, len(li.groups))
	for i, g := range li.groups {
		r[i] = g.next
	}
	return r
}

// accumulate builds the next level from the resolved merge groups. Every
// descendant spreads its self-weight and links evenly over its owners; link
// targets owned by several clusters are split the same way, so the total
// network weight is conserved at every level, overlap included. Link lists
// grow in first-touch order, keeping float accumulation deterministic.
func accumulate(level []*levItem, groups []*group) []*levItem {
	next := make([]*levItem, 0, len(groups))
	for _, g := range groups {
		g.next = &levItem{}
		next = append(next, g.next)
	}
	for _, li := range level {
		if li.groups == nil {
			li.carried = &levItem{item: li.item}
			next = append(next, li.carried)
		}
	}

	addLink := func(o, t *levItem, w AccWeight) {
		if i, ok := o.linkIdx[t]; ok {
			o.links[i].weight = satAdd(o.links[i].weight, w)
			return
		}
		if o.linkIdx == nil {
			o.linkIdx = make(map[*levItem]int)
		}
		o.linkIdx[t] = len(o.links)
		o.links = append(o.links, levLink{dest: t, weight: w})
	}

	for _, li := range level {
		owners := li.reps()
		share := 1 / AccWeight(len(owners))
		for _, o := range owners {
			o.self = satAdd(o.self, li.self*share)
			for _, ln := range li.links {
				targets := ln.dest.reps()
				frac := ln.weight * share / AccWeight(len(targets))
				for _, t := range targets {
					if t == o {
						o.self = satAdd(o.self, frac)
						continue
					}
					addLink(o, t, frac)
				}
			}
		}
	}
	return next
}

// commit materialises the accepted pass: creates the Cluster entities in
// group-creation order (so relative cluster ids follow the merge walk), sets
// descendants, owners, cores and the accumulated link lists, and releases
// the old level's contexts.
func commit(level []*levItem, groups []*group, next []*levItem) []*Cluster {
	clusters := make([]*Cluster, len(groups))
	for i, g := range groups {
		c := newCluster()
		clusters[i] = c
		g.next.item = c
		c.Des = make([]Item, len(g.members))
		for j, m := range g.members {
			c.Des[j] = m.item
			m.item.addOwner(c)
		}
		c.core = g.core.item
	}

	for _, li := range next {
		sortLevLinks(li.links)
		li.linkIdx = nil
	}
	for i, g := range groups {
		c := clusters[i]
		c.selfWeight = g.next.self
		if len(g.next.links) > 0 {
			c.Links = make([]AccLink, len(g.next.links))
			for j, ln := range g.next.links {
				c.Links[j] = AccLink{Dest: ln.dest.item, Weight: ln.weight}
			}
		}
	}

	for _, li := range level {
		li.ctx = nil
	}
	sortLevel(next)
	return clusters
}
