package hirecs

import "sync/atomic"

// clusterUID issues cluster ids. Process-wide so that two engines running in
// the same process never reuse an id; callers must not rely on absolute
// values, only on relative ordering within one run.
var clusterUID atomic.Uint32

// AccLink is an accumulated link from a cluster to a sibling item on the
// same hierarchy level. The destination is an Item rather than a *Cluster
// because unmerged items are promoted unchanged, so a cluster's sibling can
// still be a leaf node.
type AccLink struct {
	Dest   Item
	Weight AccWeight
}

// Cluster is an internal hierarchy node: the result of merging two or more
// items of the level below. Clusters are created by the engine and owned by
// the Hierarchy; descendants and owners are non-owning back-references.
type Cluster struct {
	// Links holds the accumulated links to siblings, sorted by destination
	// id.
	Links []AccLink

	// Des holds the descendants this cluster was merged from. Never empty,
	// never a single item.
	Des []Item

	id         Id
	selfWeight AccWeight
	core       Item
	owners     []*Cluster
}

// newCluster creates a cluster with the next process-wide id.
func newCluster() *Cluster {
	return &Cluster{id: clusterUID.Add(1) - 1}
}

// ID returns the engine-assigned cluster id.
func (c *Cluster) ID() Id { return c.id }

// Owners returns the clusters that directly contain this cluster.
func (c *Cluster) Owners() []*Cluster { return c.owners }

// SelfWeight returns the intra-cluster mass: the descendants' self-weights
// plus every link weight between two descendants.
func (c *Cluster) SelfWeight() AccWeight { return c.selfWeight }

// Descs returns the descendants this cluster was merged from.
func (c *Cluster) Descs() []Item { return c.Des }

// Core returns the descendant that contributed the highest merge gain. It
// serves as a human-readable representative of the cluster.
func (c *Cluster) Core() Item { return c.core }

func (c *Cluster) addOwner(o *Cluster) { c.owners = append(c.owners, o) }
