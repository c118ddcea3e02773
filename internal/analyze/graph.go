package analyze

import "sort"

// NodeKey identifies one function or class definition uniquely enough for
// call-graph resolution: its file, its name, and the line it starts on
// (the line disambiguates two same-named methods in the same file, e.g.
// two constructors on different types). Plain comparable struct, usable
// directly as a map key.
type NodeKey struct {
	Path string
	Name string
	Line int
}

// ChainLink is one hop of a traversed call chain, or a standalone
// definition reference.
type ChainLink struct {
	File string
	Name string
	Line int
}

// Chain is an ordered sequence of ChainLinks: chain[0] is the symbol being
// queried, chain[1:] are the hops reached by following call edges outward.
type Chain []ChainLink

// CallGraph indexes every function/class definition and call edge across a
// set of analyzed files, supporting caller/callee lookups and bounded
// breadth-first chain traversal.
type CallGraph struct {
	nodes    map[NodeKey]ChainLink
	incoming map[NodeKey]map[NodeKey]bool
	outgoing map[NodeKey]map[NodeKey]bool
}

// BuildCallGraph indexes definitions and resolves call edges across all
// analyzed files into a queryable CallGraph.
func BuildCallGraph(analyses []FileAnalysis) *CallGraph {
	g := &CallGraph{
		nodes:    make(map[NodeKey]ChainLink),
		incoming: make(map[NodeKey]map[NodeKey]bool),
		outgoing: make(map[NodeKey]map[NodeKey]bool),
	}

	register := func(path string, sym Symbol) {
		key := NodeKey{Path: path, Name: sym.Name, Line: sym.Line}
		if _, ok := g.nodes[key]; !ok {
			g.nodes[key] = ChainLink{File: path, Name: sym.Name, Line: sym.Line}
		}
	}
	for _, fa := range analyses {
		for _, f := range fa.Functions {
			register(fa.Path, f)
		}
		for _, c := range fa.Classes {
			register(fa.Path, c)
		}
	}
	for _, fa := range analyses {
		moduleKey := NodeKey{Path: fa.Path, Name: "<module>", Line: 0}
		if _, ok := g.nodes[moduleKey]; !ok {
			g.nodes[moduleKey] = ChainLink{File: fa.Path, Name: "<module>", Line: 0}
		}
	}

	nameIndex := make(map[string][]NodeKey)
	for key := range g.nodes {
		nameIndex[key.Name] = append(nameIndex[key.Name], key)
	}

	defLines := make(map[string][]int) // path + "\x00" + name -> sorted lines
	defLineKey := func(path, name string) string { return path + "\x00" + name }
	for key := range g.nodes {
		k := defLineKey(key.Path, key.Name)
		defLines[k] = append(defLines[k], key.Line)
	}
	for k := range defLines {
		sort.Ints(defLines[k])
	}

	langIndex := make(map[string]string)
	for _, fa := range analyses {
		langIndex[fa.Path] = fa.Language
	}

	for _, fa := range analyses {
		for _, call := range fa.Calls {
			callerKey, ok := resolveCallerKey(fa.Path, call, defLines, defLineKey)
			if !ok {
				callerKey = NodeKey{Path: fa.Path, Name: "<module>", Line: 0}
			}
			for _, calleeKey := range resolveCalleeKeys(fa.Path, call, langIndex, nameIndex) {
				if g.incoming[calleeKey] == nil {
					g.incoming[calleeKey] = make(map[NodeKey]bool)
				}
				g.incoming[calleeKey][callerKey] = true
				if g.outgoing[callerKey] == nil {
					g.outgoing[callerKey] = make(map[NodeKey]bool)
				}
				g.outgoing[callerKey][calleeKey] = true
			}
		}
	}

	return g
}

func resolveCallerKey(path string, call Call, defLines map[string][]int, defLineKey func(string, string) string) (NodeKey, bool) {
	lines, ok := defLines[defLineKey(path, call.Caller)]
	if !ok || len(lines) == 0 {
		return NodeKey{}, false
	}
	idx := sort.SearchInts(lines, call.Line)
	var line int
	switch {
	case idx < len(lines) && lines[idx] == call.Line:
		line = lines[idx]
	case idx == 0:
		return NodeKey{}, false
	default:
		line = lines[idx-1]
	}
	return NodeKey{Path: path, Name: call.Caller, Line: line}, true
}

func resolveCalleeKeys(path string, call Call, langIndex map[string]string, nameIndex map[string][]NodeKey) []NodeKey {
	bare := stripScopePrefix(call.Callee)
	keys, ok := nameIndex[bare]
	if !ok {
		return nil
	}

	var sameFile []NodeKey
	for _, k := range keys {
		if k.Path == path {
			sameFile = append(sameFile, k)
		}
	}
	if len(sameFile) == 1 {
		return sameFile
	}
	if len(sameFile) > 1 {
		nearest := sameFile[0]
		best := abs(call.Line - nearest.Line)
		for _, k := range sameFile[1:] {
			if d := abs(call.Line - k.Line); d < best {
				best = d
				nearest = k
			}
		}
		return []NodeKey{nearest}
	}

	callerLang := langIndex[path]
	var crossFile []NodeKey
	for _, k := range keys {
		if langIndex[k.Path] == callerLang {
			crossFile = append(crossFile, k)
		}
	}
	return crossFile
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// stripScopePrefix removes a "::"-delimited scope prefix ("module::func" ->
// "func", "Self::method" -> "method") so name-index lookups, which are keyed
// on bare symbol names, match qualified call captures.
func stripScopePrefix(name string) string {
	idx := -1
	for i := len(name) - 1; i > 1; i-- {
		if name[i-1] == ':' && name[i-2] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return name
	}
	return name[idx:]
}

// Definitions returns every ChainLink defining a function or class of the
// given name, across all analyzed files.
func (g *CallGraph) Definitions(symbol string) []ChainLink {
	var out []ChainLink
	for key, link := range g.nodes {
		if key.Name == symbol {
			out = append(out, link)
		}
	}
	return out
}

// Incoming returns, for every definition of symbol, the chains reached by
// following caller edges backward up to depth hops. depth=0 yields no
// chains.
func (g *CallGraph) Incoming(symbol string, depth int) []Chain {
	return g.bfsChains(symbol, depth, g.incoming)
}

// Outgoing returns, for every definition of symbol, the chains reached by
// following callee edges forward up to depth hops. depth=0 yields no
// chains.
func (g *CallGraph) Outgoing(symbol string, depth int) []Chain {
	return g.bfsChains(symbol, depth, g.outgoing)
}

type bfsFrame struct {
	path  []NodeKey
	depth int
}

func (g *CallGraph) bfsChains(symbol string, depth int, edges map[NodeKey]map[NodeKey]bool) []Chain {
	if depth <= 0 {
		return nil
	}

	var starts []NodeKey
	for key := range g.nodes {
		if key.Name == symbol {
			starts = append(starts, key)
		}
	}

	var queue []bfsFrame
	for _, start := range starts {
		for neighbor := range edges[start] {
			queue = append(queue, bfsFrame{path: []NodeKey{start, neighbor}, depth: 1})
		}
	}

	var chains []Chain
	for len(queue) > 0 {
		frame := queue[0]
		queue = queue[1:]
		tip := frame.path[len(frame.path)-1]

		if frame.depth >= depth {
			chains = append(chains, g.toChainLinks(frame.path))
			continue
		}

		visited := make(map[NodeKey]bool, len(frame.path))
		for _, k := range frame.path {
			visited[k] = true
		}

		neighbors := edges[tip]
		if len(neighbors) == 0 {
			chains = append(chains, g.toChainLinks(frame.path))
			continue
		}
		extended := false
		for neighbor := range neighbors {
			if visited[neighbor] {
				continue
			}
			newPath := make([]NodeKey, len(frame.path)+1)
			copy(newPath, frame.path)
			newPath[len(frame.path)] = neighbor
			queue = append(queue, bfsFrame{path: newPath, depth: frame.depth + 1})
			extended = true
		}
		if !extended {
			chains = append(chains, g.toChainLinks(frame.path))
		}
	}

	return chains
}

func (g *CallGraph) toChainLinks(path []NodeKey) Chain {
	chain := make(Chain, len(path))
	for i, key := range path {
		line := key.Line
		if link, ok := g.nodes[key]; ok {
			line = link.Line
		}
		chain[i] = ChainLink{File: key.Path, Name: key.Name, Line: line}
	}
	return chain
}
