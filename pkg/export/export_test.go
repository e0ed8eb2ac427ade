package export

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/hirecs/hirecs/pkg/graph"
	"github.com/hirecs/hirecs/pkg/hirecs"
)

// twoTriangles builds and clusters the canonical two-community graph.
func twoTriangles(t *testing.T) *hirecs.Hierarchy {
	t.Helper()
	b := graph.New(true, 6)
	edges := [][2]hirecs.Id{{0, 1}, {0, 2}, {1, 2}, {3, 4}, {3, 5}, {4, 5}}
	for _, e := range edges {
		if err := b.AddNodeAndLinks(false, e[0], graph.NewLink(e[1])); err != nil {
			t.Fatal(err)
		}
	}
	opts := hirecs.DefaultOptions()
	opts.Symmetric = true
	h, err := hirecs.Run(b.Finalize(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestParseFormat(t *testing.T) {
	for _, valid := range []string{"t", "c", "j", "je", "jd"} {
		if _, err := ParseFormat(valid); err != nil {
			t.Errorf("ParseFormat(%q): %v", valid, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml): want error")
	}
}

func TestJSONShape(t *testing.T) {
	h := twoTriangles(t)
	var buf bytes.Buffer
	if err := Write(&buf, h, FormatJSONDetailed); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc struct {
		Root     []uint32 `json:"root"`
		Clusters map[string]struct {
			Owners []uint32 `json:"owners"`
			Des    []uint32 `json:"des"`
			Leafs  bool     `json:"leafs"`
			Core   *uint32  `json:"core"`
		} `json:"clusters"`
		Communities map[string]map[string]float64 `json:"communities"`
		Levels      []map[string]map[string]float64 `json:"levels"`
		Nodes       int     `json:"nodes"`
		Mod         float64 `json:"mod"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if len(doc.Root) != 2 {
		t.Errorf("root = %v, want 2 entries", doc.Root)
	}
	if doc.Nodes != 6 {
		t.Errorf("nodes = %d, want 6", doc.Nodes)
	}
	if math.Abs(doc.Mod-0.5) > 1e-9 {
		t.Errorf("mod = %g, want 0.5", doc.Mod)
	}
	if len(doc.Clusters) != len(h.Clusters()) {
		t.Errorf("clusters = %d, want %d", len(doc.Clusters), len(h.Clusters()))
	}
	for id, cl := range doc.Clusters {
		if len(cl.Des) < 2 {
			t.Errorf("cluster %s des = %v, want >= 2", id, cl.Des)
		}
		if !cl.Leafs {
			t.Errorf("cluster %s leafs = false, want true", id)
		}
		if cl.Core == nil {
			t.Errorf("cluster %s core missing", id)
		}
	}
	if len(doc.Communities) != 2 {
		t.Errorf("communities = %d, want 2", len(doc.Communities))
	}
	for id, shares := range doc.Communities {
		var total float64
		for _, s := range shares {
			total += s
		}
		if math.Abs(total-3) > 1e-9 {
			t.Errorf("community %s share total = %g, want 3", id, total)
		}
	}
	if len(doc.Levels) != 1 {
		t.Fatalf("levels = %d, want 1", len(doc.Levels))
	}
	for id, links := range doc.Levels[0] {
		// Self-weight appears as a link onto the cluster's own id; the two
		// triangle clusters have no inter-cluster links.
		if len(links) != 1 {
			t.Errorf("level entry %s links = %v, want self only", id, links)
		}
		if math.Abs(links[id]-3) > 1e-9 {
			t.Errorf("level entry %s self = %g, want 3", id, links[id])
		}
	}
}

func TestJSONBaseOmitsExtras(t *testing.T) {
	h := twoTriangles(t)
	var buf bytes.Buffer
	if err := Write(&buf, h, FormatJSON); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "communities") || strings.Contains(out, "levels") {
		t.Errorf("base JSON carries extended sections: %s", out)
	}
}

func TestCSV(t *testing.T) {
	h := twoTriangles(t)
	var buf bytes.Buffer
	if err := Write(&buf, h, FormatCSV); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var clusterLines int
	for _, l := range lines {
		if strings.HasPrefix(l, "#") {
			continue
		}
		clusterLines++
		if !strings.Contains(l, "> ") || !strings.Contains(l, "des: ") {
			t.Errorf("malformed cluster line %q", l)
		}
		if !strings.Contains(l, "leafs: true") {
			t.Errorf("cluster line %q lacks leafs marker", l)
		}
	}
	if clusterLines != len(h.Clusters()) {
		t.Errorf("cluster lines = %d, want %d", clusterLines, len(h.Clusters()))
	}
	if !strings.Contains(lines[len(lines)-1], "mod: 0.5") {
		t.Errorf("summary line = %q", lines[len(lines)-1])
	}
}

func TestText(t *testing.T) {
	h := twoTriangles(t)
	var buf bytes.Buffer
	if err := Write(&buf, h, FormatText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "-Clusters:") {
		t.Error("text output lacks header")
	}
	if !strings.Contains(out, "level #0") {
		t.Error("text output lacks level section")
	}
	if !strings.Contains(out, "mod: 0.5") {
		t.Error("text output lacks summary")
	}
}
