// Package export renders a clustering hierarchy in the formats of the
// hirecs CLI: human-readable text, a CSV-like per-cluster listing, and JSON
// with optional leaf unwrapping and per-level link listings.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hirecs/hirecs/pkg/errors"
	"github.com/hirecs/hirecs/pkg/hirecs"
)

// Format selects the output rendering.
type Format string

const (
	// FormatText is a log-friendly textual representation.
	FormatText Format = "t"
	// FormatCSV is a CSV-like per-cluster line format.
	FormatCSV Format = "c"
	// FormatJSON is the JSON representation of the hierarchy.
	FormatJSON Format = "j"
	// FormatJSONExt extends FormatJSON with the root clusters unwrapped to
	// leaf nodes and their shares.
	FormatJSONExt Format = "je"
	// FormatJSONDetailed extends FormatJSONExt with the inter-cluster link
	// listing of every level.
	FormatJSONDetailed Format = "jd"
)

// ParseFormat validates a format string from the CLI.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatCSV, FormatJSON, FormatJSONExt, FormatJSONDetailed:
		return Format(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat,
		"unknown output format %q (must be one of: t, c, j, je, jd)", s)
}

// Write renders the hierarchy to w in the given format.
func Write(w io.Writer, h *hirecs.Hierarchy, f Format) error {
	switch f {
	case FormatText:
		return Text(w, h)
	case FormatCSV:
		return CSV(w, h)
	case FormatJSON:
		return JSON(w, h, false, false)
	case FormatJSONExt:
		return JSON(w, h, true, false)
	case FormatJSONDetailed:
		return JSON(w, h, true, true)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown output format %q", string(f))
}

// ExportFile renders the hierarchy into the file at path.
func ExportFile(path string, h *hirecs.Hierarchy, f Format) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", path)
	}
	defer out.Close()
	return Write(out, h, f)
}

// idsToStr renders item ids space-separated; "-" stands for an empty set
// unless strict is set, which renders nothing.
func idsToStr[T hirecs.Item](items []T, strict bool) string {
	if len(items) == 0 {
		if strict {
			return ""
		}
		return "-"
	}
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", it.ID())
	}
	return sb.String()
}

// allLeaves reports whether every descendant of the cluster is a leaf node.
func allLeaves(cl *hirecs.Cluster) bool {
	for _, d := range cl.Des {
		if d.Descs() != nil {
			return false
		}
	}
	return true
}

// Text writes the hierarchy as indented log text, level by level from the
// bottom, with a closing summary line.
func Text(w io.Writer, h *hirecs.Hierarchy) error {
	if _, err := fmt.Fprintf(w, "-Clusters:\n"); err != nil {
		return err
	}
	lev := 0
	h.ResetTraversing()
	for {
		var lines []string
		more := h.TraverseNextLevel(func(cl *hirecs.Cluster, initial bool) {
			kind := "(cls)"
			if allLeaves(cl) {
				kind = "(nds)"
			}
			line := fmt.Sprintf("-Cluster #%d  ownersNum: %d\n\towners: %s\n\tdes %s: %s\n",
				cl.ID(), len(cl.Owners()), idsToStr(cl.Owners(), false), kind, idsToStr(cl.Des, false))
			if cl.Core() != nil {
				line += fmt.Sprintf("\tcore: %d\n", cl.Core().ID())
			}
			lines = append(lines, line)
		})
		if len(lines) > 0 {
			fmt.Fprintf(w, "----- Clusters level #%d -------------------------------------------------------\n", lev)
			for _, l := range lines {
				if _, err := io.WriteString(w, l); err != nil {
					return err
				}
			}
			lev++
		}
		if !more {
			break
		}
	}
	_, err := fmt.Fprintf(w, "-Nodes: %d, clusters (communities): %d, roots: %d, mod: %g\n",
		len(h.Nodes()), len(h.Clusters()), len(h.Root()), h.Score().Modularity)
	return err
}

// CSV writes one line per cluster:
//
//	<id>> [owners: <id> ...; ]des: <id> ...[; leafs: true][; core: <id>]
//
// with '#'-prefixed header and summary lines.
func CSV(w io.Writer, h *hirecs.Hierarchy) error {
	if _, err := fmt.Fprintf(w, "# Clusters output format:\n"+
		"# <cluster_id>> [owners: <owner_id1> ...;] des: <des_id1> ... [; leafs: true] [; core: <core_id>]\n"); err != nil {
		return err
	}
	for _, cl := range h.Clusters() {
		owners := ""
		if len(cl.Owners()) > 0 {
			owners = "owners: " + idsToStr(cl.Owners(), true) + "; "
		}
		leafs := ""
		if allLeaves(cl) {
			leafs = "; leafs: true"
		}
		core := ""
		if cl.Core() != nil {
			core = fmt.Sprintf("; core: %d", cl.Core().ID())
		}
		if _, err := fmt.Fprintf(w, "%d> %sdes: %s%s%s\n",
			cl.ID(), owners, idsToStr(cl.Des, true), leafs, core); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "# Nodes: %d, clusters: %d, roots: %d, mod: %g\n",
		len(h.Nodes()), len(h.Clusters()), len(h.Root()), h.Score().Modularity)
	return err
}
