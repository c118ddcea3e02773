package analyze

import (
	"fmt"
	"sort"
	"strings"
)

// SizeLimit is the maximum report length, in characters, before CheckSize
// rejects an output unless force is set.
const SizeLimit = 50_000

const multilineThreshold = 10

// FormatStructure renders a directory-tree overview: per-file LOC/function/
// class counts, a language breakdown, and a summary line. totalFiles is the
// number of files considered for analysis, which may exceed len(analyses)
// when some were skipped (unsupported extension or parse failure).
func FormatStructure(analyses []FileAnalysis, root string, depth, totalFiles int) string {
	var out strings.Builder

	var totalLOC, totalFuncs, totalClasses int
	for _, a := range analyses {
		totalLOC += a.LOC
		totalFuncs += len(a.Functions)
		totalClasses += len(a.Classes)
	}

	depthStr := "unlimited"
	if depth != 0 {
		depthStr = fmt.Sprintf("depth=%d", depth)
	}
	fmt.Fprintf(&out, "%d files, %dL, %dF, %dC (%s)\n", len(analyses), totalLOC, totalFuncs, totalClasses, depthStr)

	if skipped := totalFiles - len(analyses); skipped > 0 {
		fmt.Fprintf(&out, "(%d files skipped: no parser)\n", skipped)
	}

	langLOC := make(map[string]int)
	for _, a := range analyses {
		if a.Language != "" && a.LOC > 0 {
			langLOC[a.Language] += a.LOC
		}
	}
	if len(langLOC) > 0 && totalLOC > 0 {
		type langCount struct {
			lang string
			loc  int
		}
		var langs []langCount
		for l, c := range langLOC {
			langs = append(langs, langCount{l, c})
		}
		sort.Slice(langs, func(i, j int) bool { return langs[i].loc > langs[j].loc })

		parts := make([]string, len(langs))
		for i, l := range langs {
			pct := int(float64(l.loc) / float64(totalLOC) * 100.0)
			parts[i] = fmt.Sprintf("%s %d%%", l.lang, pct)
		}
		fmt.Fprintln(&out, strings.Join(parts, " | "))
	}
	out.WriteByte('\n')

	tree := buildDirTree(analyses, root)
	renderTree(&out, tree, 0)

	return out.String()
}

// FormatSemantic renders one file's classes, functions, and imports as a
// dense single-file digest.
func FormatSemantic(a FileAnalysis, root string) string {
	var out strings.Builder

	displayPath := stripRoot(a.Path, root)
	fmt.Fprintf(&out, "%s [%dL, %dF", displayPath, a.LOC, len(a.Functions))
	if len(a.Classes) > 0 {
		fmt.Fprintf(&out, ", %dC", len(a.Classes))
	}
	out.WriteString("]\n\n")

	if len(a.Classes) > 0 {
		items := make([]string, len(a.Classes))
		for i, c := range a.Classes {
			if c.Detail == "" {
				items[i] = fmt.Sprintf("%s:%d", c.Name, c.Line)
			} else {
				items[i] = fmt.Sprintf("%s:%d%s", c.Name, c.Line, c.Detail)
			}
		}
		formatSymbolList(&out, "C:", items)
	}

	if len(a.Functions) > 0 {
		callCounts := make(map[string]int)
		for _, call := range a.Calls {
			callCounts[stripScopePrefix(call.Callee)]++
		}

		items := make([]string, len(a.Functions))
		for i, f := range a.Functions {
			var label strings.Builder
			if f.Parent != "" {
				label.WriteString(f.Parent)
				label.WriteByte('.')
			}
			label.WriteString(f.Name)
			if f.Detail != "" {
				label.WriteString(f.Detail)
			}
			count := callCounts[f.Name]
			if count > 3 {
				items[i] = fmt.Sprintf("%s:%d•%d", label.String(), f.Line, count)
			} else {
				items[i] = fmt.Sprintf("%s:%d", label.String(), f.Line)
			}
		}
		formatSymbolList(&out, "F:", items)
	}

	if len(a.Imports) > 0 {
		out.WriteString("I: ")
		items := make([]string, len(a.Imports))
		for i, imp := range a.Imports {
			if imp.Count > 1 {
				items[i] = fmt.Sprintf("%s(%d)", imp.Module, imp.Count)
			} else {
				items[i] = imp.Module
			}
		}
		out.WriteString(strings.Join(items, "; "))
		out.WriteByte('\n')
	}

	return out.String()
}

func formatSymbolList(out *strings.Builder, prefix string, items []string) {
	if len(items) > multilineThreshold {
		fmt.Fprintln(out, prefix)
		for _, item := range items {
			fmt.Fprintf(out, "  %s\n", item)
		}
	} else {
		fmt.Fprintf(out, "%s ", prefix)
		out.WriteString(strings.Join(items, " "))
		out.WriteByte('\n')
	}
}

// FormatFocused renders a symbol-centric view: every definition site, then
// grouped incoming/outgoing call chains up to followDepth hops, split into
// production and test chains.
func FormatFocused(symbol string, graph *CallGraph, followDepth, filesAnalyzed int, root string) string {
	defs := graph.Definitions(symbol)

	depth1In := graph.Incoming(symbol, 1)
	depth1Out := graph.Outgoing(symbol, 1)

	if len(defs) == 0 && len(depth1In) == 0 && len(depth1Out) == 0 {
		return fmt.Sprintf("Symbol '%s' not found in %d analyzed files.\n", symbol, filesAnalyzed)
	}

	incoming := graph.Incoming(symbol, followDepth)
	outgoing := graph.Outgoing(symbol, followDepth)

	directCallers := make(map[ChainLink]bool)
	for _, chain := range depth1In {
		if len(chain) > 1 {
			directCallers[chain[1]] = true
		}
	}
	directCallees := make(map[ChainLink]bool)
	for _, chain := range depth1Out {
		if len(chain) > 1 {
			directCallees[chain[1]] = true
		}
	}

	var out strings.Builder
	refCount := len(directCallers) + len(directCallees)
	fmt.Fprintf(&out, "FOCUS: %s (%d defs, %d refs)\n\n", symbol, len(defs), refCount)

	sortedDefs := append([]ChainLink{}, defs...)
	sort.Slice(sortedDefs, func(i, j int) bool {
		if sortedDefs[i].File != sortedDefs[j].File {
			return sortedDefs[i].File < sortedDefs[j].File
		}
		return sortedDefs[i].Line < sortedDefs[j].Line
	})
	for _, d := range sortedDefs {
		fmt.Fprintf(&out, "DEF %s:%s:%d\n", stripRoot(d.File, root), d.Name, d.Line)
	}
	if len(defs) > 0 {
		out.WriteByte('\n')
	}

	inProd, inTest := partitionTestChains(incoming)
	formatChainGroup(&out, "IN", inProd, root)
	formatChainGroup(&out, "IN (tests)", inTest, root)

	outProd, outTest := partitionTestChains(outgoing)
	formatChainGroup(&out, "OUT", outProd, root)
	formatChainGroup(&out, "OUT (tests)", outTest, root)

	fmt.Fprintf(&out, "%d files analyzed\n", filesAnalyzed)

	return out.String()
}

func formatChainLink(link ChainLink, root string) string {
	return fmt.Sprintf("%s:%s:%d", stripRoot(link.File, root), link.Name, link.Line)
}

func formatChainGroup(out *strings.Builder, label string, chains []Chain, root string) {
	if len(chains) == 0 {
		return
	}

	formatted := make([][]string, len(chains))
	for i, chain := range chains {
		links := make([]string, len(chain))
		for j, link := range chain {
			links[j] = formatChainLink(link, root)
		}
		formatted[i] = links
	}
	sort.Slice(formatted, func(i, j int) bool {
		return strings.Join(formatted[i], "\x00") < strings.Join(formatted[j], "\x00")
	})

	fmt.Fprintf(out, "%s:\n", label)
	i := 0
	for i < len(formatted) {
		chain := formatted[i]
		groupEnd := i + 1
		if len(chain) >= 2 {
			prefix := chain[:len(chain)-1]
			for groupEnd < len(formatted) {
				next := formatted[groupEnd]
				if len(next) >= 2 && equalSlices(next[:len(next)-1], prefix) {
					groupEnd++
				} else {
					break
				}
			}
		}
		if groupEnd-i > 1 {
			prefix := chain[:len(chain)-1]
			fmt.Fprintf(out, "  %s\n", strings.Join(prefix, " → "))
			for _, entry := range formatted[i:groupEnd] {
				if len(entry) > 0 {
					fmt.Fprintf(out, "    → %s\n", entry[len(entry)-1])
				}
			}
		} else {
			fmt.Fprintf(out, "  %s\n", strings.Join(chain, " → "))
		}
		i = groupEnd
	}
	out.WriteByte('\n')
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var testFileSuffixes = []string{
	"_test.rs", "_test.py",
	".test.ts", ".test.js", ".test.tsx", ".test.jsx",
	"_test.go",
	"Test.java", "Tests.java",
	"Test.kt",
	"_spec.rb", "_test.rb",
	"Test.swift", "Tests.swift",
}

var testPathSubstrings = []string{"/tests/", "/test/", "/src/test/", "/spec/", "/Tests/"}

func isTestChain(chain Chain) bool {
	for _, link := range chain {
		if strings.HasPrefix(link.Name, "test_") || strings.Contains(link.Name, "_test") {
			return true
		}
		for _, suffix := range testFileSuffixes {
			if strings.HasSuffix(link.File, suffix) {
				return true
			}
		}
		for _, sub := range testPathSubstrings {
			if strings.Contains(link.File, sub) {
				return true
			}
		}
	}
	return false
}

func partitionTestChains(chains []Chain) (prod, test []Chain) {
	for _, chain := range chains {
		if isTestChain(chain) {
			test = append(test, chain)
		} else {
			prod = append(prod, chain)
		}
	}
	return prod, test
}

// CheckSize rejects output longer than SizeLimit unless force is set,
// returning a descriptive error suggesting narrower scope otherwise.
func CheckSize(output string, force bool) (string, error) {
	if len(output) > SizeLimit && !force {
		return "", fmt.Errorf("output too large (%d chars, limit %d). Use `force: true` to override, or narrow scope with max_depth/focus", len(output), SizeLimit)
	}
	return output, nil
}

func stripRoot(path, root string) string {
	if root == "" {
		return path
	}
	trimmed := strings.TrimPrefix(path, root)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return path
	}
	return trimmed
}

// --- directory tree building ---

type treeNode struct {
	name     string
	isDir    bool
	children []*treeNode
	loc      int
	funcs    int
	classes  int
}

type rawEntry struct {
	parts []string
	a     FileAnalysis
}

func buildDirTree(analyses []FileAnalysis, root string) []*treeNode {
	var entries []rawEntry
	for _, a := range analyses {
		rel := stripRoot(a.Path, root)
		if rel == a.Path && root != "" && !strings.HasPrefix(a.Path, root) {
			continue
		}
		parts := strings.Split(rel, "/")
		entries = append(entries, rawEntry{parts: parts, a: a})
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.Join(entries[i].parts, "/") < strings.Join(entries[j].parts, "/")
	})

	return buildSubtree(entries, 0)
}

func buildSubtree(entries []rawEntry, depth int) []*treeNode {
	var nodes []*treeNode
	i := 0
	for i < len(entries) {
		parts, a := entries[i].parts, entries[i].a
		if depth >= len(parts) {
			i++
			continue
		}
		name := parts[depth]

		if depth+1 == len(parts) {
			nodes = append(nodes, &treeNode{
				name:    name,
				loc:     a.LOC,
				funcs:   len(a.Functions),
				classes: len(a.Classes),
			})
			i++
		} else {
			j := i + 1
			for j < len(entries) && len(entries[j].parts) > depth && entries[j].parts[depth] == name {
				j++
			}
			nodes = append(nodes, &treeNode{
				name:     name,
				isDir:    true,
				children: buildSubtree(entries[i:j], depth+1),
			})
			i = j
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].isDir != nodes[j].isDir {
			return nodes[i].isDir
		}
		return nodes[i].name < nodes[j].name
	})

	return nodes
}

func renderTree(out *strings.Builder, nodes []*treeNode, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, node := range nodes {
		if node.isDir {
			fmt.Fprintf(out, "%s%s/\n", prefix, node.name)
			renderTree(out, node.children, indent+1)
			continue
		}
		fmt.Fprintf(out, "%s%s [%dL, %dF", prefix, node.name, node.loc, node.funcs)
		if node.classes > 0 {
			fmt.Fprintf(out, ", %dC", node.classes)
		}
		out.WriteString("]\n")
	}
}
