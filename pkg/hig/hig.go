// Package hig parses the .hig adjacency file format consumed by the hirecs
// CLI.
//
// The format is line-oriented UTF-8 text. '#' starts a comment running to
// the end of the line. Section headers begin with '/' followed by a
// lowercase name:
//
//	/graph [weighted: 0|1]   declares whether link lines carry weights
//	/nodes [count [startId]] optional capacity hint and contiguous id base
//	/edges                   subsequent lines are undirected adjacency
//	/arcs                    subsequent lines are directed adjacency
//
// Adjacency lines have the shape "src> dst[:w] dst[:w] ...". A destination
// equal to the source feeds the node's self-weight. When /nodes declared a
// contiguous id base, links may only reference the declared range;
// otherwise nodes are created on first use.
package hig

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/hirecs/hirecs/pkg/errors"
	"github.com/hirecs/hirecs/pkg/graph"
	"github.com/hirecs/hirecs/pkg/hirecs"
)

// errCtxWindow bounds the context slice shown around a parse error, in
// bytes to each side of the failing position.
const errCtxWindow = 12

// Result is a parsed adjacency file: the finalized node set plus the graph
// attributes the engine needs to interpret it.
type Result struct {
	Nodes    []*hirecs.Node
	Weighted bool
	Directed bool
}

// Options configures parsing.
type Options struct {
	// Shuffle enables randomised insertion order in the underlying builder,
	// perturbing tie-breaks. Rand overrides the wall-clock seeded default;
	// tests pass a fixed-seed source.
	Shuffle bool
	Rand    *rand.Rand
}

type section int

const (
	sectNone section = iota
	sectGraph
	sectNodes
	sectEdges
	sectArcs
)

type parser struct {
	opts     Options
	builder  *graph.Builder
	weighted bool
	nodesNum uint64
	startID  hirecs.Id
	hasRange bool
	line     int
}

// ParseFile reads and parses the adjacency file at path.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", path)
	}
	defer f.Close()
	res, err := Parse(f, Options{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Parse reads an adjacency file from r.
func Parse(r io.Reader, opts Options) (*Result, error) {
	p := &parser{opts: opts, weighted: true, startID: hirecs.IDNone}

	sect := sectNone
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		p.line++
		line := sc.Text()
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		if trimmed[0] == '/' {
			next, err := p.parseSection(sect, trimmed)
			if err != nil {
				return nil, err
			}
			sect = next
			continue
		}
		if sect != sectEdges && sect != sectArcs {
			continue
		}
		if err := p.parseLinks(line, sect == sectArcs); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read input")
	}

	if err := p.ensureBuilder(); err != nil {
		return nil, err
	}
	return &Result{
		Nodes:    p.builder.Finalize(),
		Weighted: p.weighted,
		Directed: p.builder.Directed(),
	}, nil
}

// parseSection handles a '/name [attrs]' header line.
func (p *parser) parseSection(cur section, line string) (section, error) {
	// Strip a trailing comment before reading attributes.
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 || fields[0] == "" {
		return cur, errors.New(errors.ErrCodeEmptySection, "line %d: empty section header", p.line)
	}
	name := strings.ToLower(fields[0])
	attrs := fields[1:]

	switch name {
	case "graph":
		if cur != sectNone {
			return cur, errors.New(errors.ErrCodeParse,
				"line %d: graph section must be the first one", p.line)
		}
		if err := p.parseGraphAttrs(attrs); err != nil {
			return cur, err
		}
		return sectGraph, nil
	case "nodes":
		if cur != sectNone && cur != sectGraph {
			return cur, errors.New(errors.ErrCodeParse,
				"line %d: nodes section must be first or follow the graph section", p.line)
		}
		if err := p.parseNodesAttrs(attrs); err != nil {
			return cur, err
		}
		return sectNodes, nil
	case "edges":
		return sectEdges, nil
	case "arcs":
		return sectArcs, nil
	}
	return cur, errors.New(errors.ErrCodeUnknownSection, "line %d: unknown section %q", p.line, name)
}

// parseGraphAttrs reads the optional "weighted: 0|1" attribute.
func (p *parser) parseGraphAttrs(attrs []string) error {
	for i := 0; i < len(attrs); i++ {
		attr := attrs[i]
		var val string
		switch {
		case attr == "weighted:" && i+1 < len(attrs):
			i++
			val = attrs[i]
		case strings.HasPrefix(attr, "weighted:"):
			val = attr[len("weighted:"):]
		default:
			return errors.New(errors.ErrCodeParse, "line %d: unknown graph attribute %q", p.line, attr)
		}
		v, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrap(errors.ErrCodeParse, err, "line %d: weighted attribute", p.line)
		}
		p.weighted = v != 0
	}
	return nil
}

// parseNodesAttrs reads the optional "count [startId]" attributes.
func (p *parser) parseNodesAttrs(attrs []string) error {
	if len(attrs) == 0 {
		return nil
	}
	num, err := strconv.ParseUint(attrs[0], 10, 32)
	if err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "line %d: nodes count", p.line)
	}
	p.nodesNum = num
	if len(attrs) > 1 {
		start, err := strconv.ParseUint(attrs[1], 10, 32)
		if err != nil {
			return errors.Wrap(errors.ErrCodeParse, err, "line %d: nodes start id", p.line)
		}
		p.startID = hirecs.Id(start)
		p.hasRange = true
	}
	return nil
}

// ensureBuilder creates the graph builder lazily so the /graph and /nodes
// attributes seen so far take effect. With a declared contiguous range the
// nodes are preallocated and link lines may not invent new ids.
func (p *parser) ensureBuilder() error {
	if p.builder != nil {
		return nil
	}
	p.builder = graph.New(p.weighted, int(p.nodesNum))
	if p.opts.Shuffle {
		p.builder.SetShuffle(p.opts.Rand)
	}
	if p.hasRange {
		if err := p.builder.AddNodeRange(p.startID, p.startID+hirecs.Id(p.nodesNum)); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRange, err, "nodes section range")
		}
	}
	return nil
}

// parseLinks parses one adjacency line "src> dst[:w] ..." and stores the
// links in the builder.
func (p *parser) parseLinks(line string, directed bool) error {
	if err := p.ensureBuilder(); err != nil {
		return err
	}

	head, rest, found := strings.Cut(line, ">")
	if !found {
		return p.errAt(line, 0, "missing '>' delimiter")
	}
	src, err := strconv.ParseUint(strings.TrimSpace(head), 10, 32)
	if err != nil {
		return p.errAt(line, 0, "source id")
	}

	// Drop a trailing comment.
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	base := len(head) + 1
	links := make([]graph.InpLink, 0, 8)
	for pos := 0; pos < len(rest); {
		for pos < len(rest) && (rest[pos] == ' ' || rest[pos] == '\t') {
			pos++
		}
		if pos >= len(rest) {
			break
		}
		end := pos
		for end < len(rest) && rest[end] != ' ' && rest[end] != '\t' {
			end++
		}
		ln, err := p.parseLinkToken(line, base+pos, rest[pos:end])
		if err != nil {
			return err
		}
		links = append(links, ln)
		pos = end
	}
	if len(links) == 0 {
		return nil
	}

	var lerr error
	if p.hasRange {
		lerr = p.builder.AddNodeLinks(directed, hirecs.Id(src), links...)
	} else {
		lerr = p.builder.AddNodeAndLinks(directed, hirecs.Id(src), links...)
	}
	if lerr != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, lerr, "line %d", p.line)
	}
	return nil
}

// parseLinkToken parses a single "dst[:w]" token. pos is the token's byte
// offset within the full line, used for the error context window.
func (p *parser) parseLinkToken(line string, pos int, tok string) (graph.InpLink, error) {
	idStr, wStr, hasWeight := strings.Cut(tok, ":")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return graph.InpLink{}, p.errAt(line, pos, "destination id")
	}
	if !hasWeight {
		return graph.NewLink(hirecs.Id(id)), nil
	}
	if !p.weighted {
		return graph.InpLink{}, p.errAt(line, pos+len(idStr), "weight on an unweighted graph")
	}
	w, err := strconv.ParseFloat(wStr, 32)
	if err != nil {
		return graph.InpLink{}, p.errAt(line, pos+len(idStr)+1, "link weight")
	}
	return graph.InpLink{ID: hirecs.Id(id), Weight: hirecs.LinkWeight(w)}, nil
}

// errAt builds a parse error carrying the line, the byte offset within it
// and a bounded context window around the failure.
func (p *parser) errAt(line string, pos int, what string) error {
	beg := pos - errCtxWindow
	if beg < 0 {
		beg = 0
	}
	end := pos + errCtxWindow
	if end > len(line) {
		end = len(line)
	}
	return errors.New(errors.ErrCodeParse,
		"line %d: invalid %s at offset %d, context %q", p.line, what, pos, line[beg:end])
}
