package hirecs

// Item is the capability set shared by nodes and clusters: anything that can
// sit on a hierarchy level. Descs and Core return nil for leaves.
//
// Item is a closed interface; Node and Cluster are the only implementations.
type Item interface {
	// ID returns the item identifier. Node ids are caller-supplied, cluster
	// ids are engine-assigned; the two spaces may overlap.
	ID() Id

	// Owners returns the clusters holding this item as a descendant. More
	// than one owner means the item is shared (cluster overlap).
	Owners() []*Cluster

	// SelfWeight is the weight the item contributes to itself: the self-loop
	// for a leaf, the intra-cluster mass for a cluster.
	SelfWeight() AccWeight

	// Descs returns the descendants the item was merged from, or nil for a
	// leaf node.
	Descs() []Item

	// Core returns the descendant that contributed the highest merge gain,
	// or nil for a leaf node.
	Core() Item

	addOwner(c *Cluster)
}
