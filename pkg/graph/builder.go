// Package graph assembles input graphs for the clustering engine. A Builder
// accepts node and link additions from a caller, reconciles edge and arc
// semantics (undirected weighted edges are halved into both arcs, unweighted
// undirected self-weights doubled), and finalizes into the immutable node
// set consumed by hirecs.Run.
package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/hirecs/hirecs/pkg/hirecs"
)

var (
	// ErrFinalized is returned when nodes or links are added to a finalized
	// graph.
	ErrFinalized = errors.New("finalized graph cannot be extended")

	// ErrDuplicateNode is returned by AddNodes when a node id already
	// exists.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrUnknownNode is returned by AddNodeLinks when the source or a link
	// destination does not exist.
	ErrUnknownNode = errors.New("link to unknown node")

	// ErrReversedRange is returned by AddNodeRange when end precedes begin.
	ErrReversedRange = errors.New("node id range end precedes begin")

	// ErrNegativeWeight is returned for signed link weights, which the
	// engine does not support.
	ErrNegativeWeight = errors.New("negative link weight unsupported")
)

// DefaultLinkWeight is the implicit weight of unweighted links.
const DefaultLinkWeight hirecs.LinkWeight = 1

// InpLink is the external input link: the only boundary through which
// collaborators describe adjacency. On the unweighted path the weight is
// fixed to DefaultLinkWeight.
type InpLink struct {
	ID     hirecs.Id
	Weight hirecs.LinkWeight
}

// NewLink returns an input link with the default weight, for the unweighted
// path.
func NewLink(id hirecs.Id) InpLink {
	return InpLink{ID: id, Weight: DefaultLinkWeight}
}

// Builder accumulates nodes and links and finalizes them into the engine's
// node set. The zero value is not usable; use New.
type Builder struct {
	nodes     []*hirecs.Node
	index     map[hirecs.Id]*hirecs.Node
	weighted  bool
	finalized bool
	directed  bool
	shuffle   bool
	rng       *rand.Rand
}

// New creates a builder. When weighted is false every link weight collapses
// to DefaultLinkWeight and undirected self-weights are doubled to compensate
// the edge-to-arc expansion. The capacity is an advisory preallocation hint.
func New(weighted bool, capacity int) *Builder {
	b := &Builder{weighted: weighted}
	b.alloc(capacity)
	return b
}

func (b *Builder) alloc(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	b.nodes = make([]*hirecs.Node, 0, capacity)
	b.index = make(map[hirecs.Id]*hirecs.Node, capacity)
}

// SetShuffle enables shuffle mode: every insertion picks the front or back
// of the node sequence and a random position inside a link list. Its sole
// purpose is perturbing tie-breaks so result stability under reordering can
// be tested. A nil source enables a wall-clock seeded one.
func (b *Builder) SetShuffle(rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	b.shuffle = true
	b.rng = rng
}

// Reset discards all accumulated state so the builder can assemble a new
// graph. Shuffle mode is retained.
func (b *Builder) Reset(capacity int) {
	b.finalized = false
	b.directed = false
	b.alloc(capacity)
}

// Weighted reports whether the builder stores caller weights.
func (b *Builder) Weighted() bool { return b.weighted }

// Directed reports whether any directed link addition occurred.
func (b *Builder) Directed() bool { return b.directed }

// NodeCount returns the number of nodes added so far.
func (b *Builder) NodeCount() int { return len(b.nodes) }

// AddNodes inserts leaf nodes with caller-supplied ids. Duplicates are
// rejected.
func (b *Builder) AddNodes(ids ...hirecs.Id) error {
	if b.finalized {
		return ErrFinalized
	}
	for _, id := range ids {
		if _, err := b.addNode(id); err != nil {
			return err
		}
	}
	return nil
}

// AddNodeRange inserts the contiguous id range [begin, end).
func (b *Builder) AddNodeRange(begin, end hirecs.Id) error {
	if b.finalized {
		return ErrFinalized
	}
	if end < begin {
		return fmt.Errorf("%w: [%d, %d)", ErrReversedRange, begin, end)
	}
	for id := begin; id != end; id++ {
		if _, err := b.addNode(id); err != nil {
			return err
		}
	}
	return nil
}

// AddNodeLinks adds outgoing links from an existing node; every destination
// must already exist. A link terminating on src is absorbed into the source
// self-weight. Undirected weighted links are halved and inserted in both
// directions.
func (b *Builder) AddNodeLinks(directed bool, src hirecs.Id, links ...InpLink) error {
	if b.finalized {
		return ErrFinalized
	}
	nd, ok := b.index[src]
	if !ok {
		return fmt.Errorf("%w: #%d", ErrUnknownNode, src)
	}
	b.directed = b.directed || directed
	for _, ln := range links {
		dst, ok := b.index[ln.ID]
		if !ok {
			return fmt.Errorf("%w: #%d", ErrUnknownNode, ln.ID)
		}
		if err := b.link(directed, nd, dst, ln.Weight); err != nil {
			return err
		}
	}
	return nil
}

// AddNodeAndLinks behaves like AddNodeLinks but auto-creates the source and
// any destination not yet present.
func (b *Builder) AddNodeAndLinks(directed bool, src hirecs.Id, links ...InpLink) error {
	if b.finalized {
		return ErrFinalized
	}
	nd, err := b.node(src)
	if err != nil {
		return err
	}
	b.directed = b.directed || directed
	for _, ln := range links {
		dst, err := b.node(ln.ID)
		if err != nil {
			return err
		}
		if err := b.link(directed, nd, dst, ln.Weight); err != nil {
			return err
		}
	}
	return nil
}

// Finalize completes construction, releases the id index and returns the
// immutable node set. Further additions fail with ErrFinalized.
func (b *Builder) Finalize() []*hirecs.Node {
	b.finalized = true
	b.index = nil
	return b.nodes
}

// node returns the existing node for id or creates it.
func (b *Builder) node(id hirecs.Id) (*hirecs.Node, error) {
	if n, ok := b.index[id]; ok {
		return n, nil
	}
	return b.addNode(id)
}

func (b *Builder) addNode(id hirecs.Id) (*hirecs.Node, error) {
	if _, exists := b.index[id]; exists {
		return nil, fmt.Errorf("%w: #%d", ErrDuplicateNode, id)
	}
	n := hirecs.NewNode(id, 0)
	if b.shuffle && b.rng.Intn(2) == 0 {
		b.nodes = append([]*hirecs.Node{n}, b.nodes...)
	} else {
		b.nodes = append(b.nodes, n)
	}
	b.index[id] = n
	return n, nil
}

// link records one caller link, reconciling edge and arc semantics.
func (b *Builder) link(directed bool, src, dst *hirecs.Node, w hirecs.LinkWeight) error {
	if w < 0 {
		return fmt.Errorf("%w: %d>%d:%g", ErrNegativeWeight, src.ID(), dst.ID(), w)
	}
	if !b.weighted {
		w = DefaultLinkWeight
	}
	if dst == src {
		// Unweighted undirected self-weights are doubled to compensate the
		// twofold edge-to-arc counting of the remaining links.
		if !b.weighted && !directed {
			w *= 2
		}
		src.AddSelfWeight(w)
		return nil
	}
	if directed {
		b.addArc(src, dst, w)
		return nil
	}
	if b.weighted {
		w /= 2
	}
	b.addArc(dst, src, w)
	b.addArc(src, dst, w)
	return nil
}

func (b *Builder) addArc(src, dst *hirecs.Node, w hirecs.LinkWeight) {
	ln := hirecs.Link{Dest: dst, Weight: w}
	if b.shuffle && len(src.Links) > 0 {
		pos := b.rng.Intn(len(src.Links) + 1)
		src.Links = append(src.Links, hirecs.Link{})
		copy(src.Links[pos+1:], src.Links[pos:])
		src.Links[pos] = ln
		return
	}
	src.Links = append(src.Links, ln)
}
