package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hirecs/hirecs/pkg/hirecs"
)

// jsonCluster is one cluster entry of the "clusters" object.
type jsonCluster struct {
	Owners []hirecs.Id `json:"owners,omitempty"`
	Des    []hirecs.Id `json:"des"`
	Leafs  bool        `json:"leafs,omitempty"`
	Core   *hirecs.Id  `json:"core,omitempty"`
}

// jsonHierarchy is the full JSON document:
//
//	{ "root":[cid,...],
//	  "clusters":{ "cid":{ "owners":[...], "des":[...], "leafs":true?, "core":cid? }, ... },
//	  "communities"?:{ "cid":{ "nid": share, ... }, ... },
//	  "levels"?:[ { "cid":{ "cid": weight, ... }, ... }, ... ],
//	  "nodes": N, "mod": Q }
type jsonHierarchy struct {
	Root        []hirecs.Id                       `json:"root"`
	Clusters    map[string]jsonCluster            `json:"clusters"`
	Communities map[string]map[string]hirecs.Share `json:"communities,omitempty"`
	Levels      []map[string]map[string]float64   `json:"levels,omitempty"`
	Nodes       int                               `json:"nodes"`
	Mod         float64                           `json:"mod"`
}

// JSON writes the hierarchy as a single JSON document. communities adds the
// per-root leaf unwrapping; levels adds the accumulated link listing of
// every cluster level (self-weight included as a link onto the cluster's own
// id).
func JSON(w io.Writer, h *hirecs.Hierarchy, communities, levels bool) error {
	doc := jsonHierarchy{
		Root:     make([]hirecs.Id, 0, len(h.Root())),
		Clusters: make(map[string]jsonCluster, len(h.Clusters())),
		Nodes:    len(h.Nodes()),
		Mod:      h.Score().Modularity,
	}
	for _, cl := range h.Root() {
		doc.Root = append(doc.Root, cl.ID())
	}
	for _, cl := range h.Clusters() {
		jc := jsonCluster{
			Des:   make([]hirecs.Id, len(cl.Des)),
			Leafs: allLeaves(cl),
		}
		for i, d := range cl.Des {
			jc.Des[i] = d.ID()
		}
		for _, o := range cl.Owners() {
			jc.Owners = append(jc.Owners, o.ID())
		}
		if cl.Core() != nil {
			core := cl.Core().ID()
			jc.Core = &core
		}
		doc.Clusters[key(cl.ID())] = jc
	}

	if communities && len(h.Root()) > 0 {
		doc.Communities = make(map[string]map[string]hirecs.Share, len(h.Root()))
		for _, cl := range h.Root() {
			shares := make(map[*hirecs.Node]hirecs.Share)
			h.Unwrap(cl, shares)
			entry := make(map[string]hirecs.Share, len(shares))
			for n, s := range shares {
				entry[key(n.ID())] = s
			}
			doc.Communities[key(cl.ID())] = entry
		}
	}

	if levels {
		h.ResetTraversing()
		for {
			lev := make(map[string]map[string]float64)
			more := h.TraverseNextLevel(func(cl *hirecs.Cluster, initial bool) {
				links := make(map[string]float64, len(cl.Links)+1)
				if cl.SelfWeight() != 0 {
					links[key(cl.ID())] = cl.SelfWeight()
				}
				for _, ln := range cl.Links {
					links[key(ln.Dest.ID())] += ln.Weight
				}
				lev[key(cl.ID())] = links
			})
			if len(lev) > 0 {
				doc.Levels = append(doc.Levels, lev)
			}
			if !more {
				break
			}
		}
	}

	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}

func key(id hirecs.Id) string { return fmt.Sprintf("%d", id) }
