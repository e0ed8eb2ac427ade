// Package render draws a clustering hierarchy as a Graphviz node-link
// diagram: clusters level by level on top, leaf nodes at the bottom,
// descendant edges in between. Leaves shared by several clusters (overlap)
// are highlighted.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/hirecs/hirecs/pkg/hirecs"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed adds self-weights to the labels: always for clusters, for leaf
	// nodes only when non-zero. The modularity is not shown.
	Detailed bool
}

// ToDOT converts a hierarchy to Graphviz DOT format. The resulting string
// can be rendered with [SVG].
func ToDOT(h *hirecs.Hierarchy, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph hierarchy {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("\n")

	for _, n := range h.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", leafLabel(n, opts.Detailed))}
		if len(n.Owners()) > 1 {
			attrs = append(attrs, "fillcolor=lightyellow", "peripheries=2")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", leafName(n), strings.Join(attrs, ", "))
	}
	for _, cl := range h.Clusters() {
		attrs := []string{
			fmt.Sprintf("label=%q", clusterLabel(cl, opts.Detailed)),
			"shape=ellipse",
			"fillcolor=lightgrey",
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", clusterName(cl), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, cl := range h.Clusters() {
		for _, d := range cl.Des {
			style := ""
			if cl.Core() == d {
				style = " [penwidth=2]"
			}
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", clusterName(cl), itemName(d), style)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func leafName(n *hirecs.Node) string        { return fmt.Sprintf("n%d", n.ID()) }
func clusterName(cl *hirecs.Cluster) string { return fmt.Sprintf("c%d", cl.ID()) }

func itemName(it hirecs.Item) string {
	if cl, ok := it.(*hirecs.Cluster); ok {
		return clusterName(cl)
	}
	return fmt.Sprintf("n%d", it.ID())
}

func leafLabel(n *hirecs.Node, detailed bool) string {
	if !detailed || n.SelfWeight() == 0 {
		return fmt.Sprintf("%d", n.ID())
	}
	return fmt.Sprintf("%d\nself: %g", n.ID(), n.SelfWeight())
}

func clusterLabel(cl *hirecs.Cluster, detailed bool) string {
	if !detailed {
		return fmt.Sprintf("#%d", cl.ID())
	}
	return fmt.Sprintf("#%d\nself: %g", cl.ID(), cl.SelfWeight())
}

// SVG renders a DOT graph to SVG using Graphviz.
func SVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render SVG: %w", err)
	}
	return buf.Bytes(), nil
}
