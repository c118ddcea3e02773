// Package analyze implements the static-analysis engine: a tree-sitter
// backed parser producing per-file symbol/import/call facts, a call graph
// built from those facts, and three text report renderers (structure,
// semantic, focused) selected by the shape of the input path.
package analyze

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Symbol is one function or class-like definition found in a file.
type Symbol struct {
	Name   string
	Line   int
	Parent string // nearest enclosing class-like container, "" if none
	Detail string // compact signature or field summary, "" if none
}

// Import is one normalised, deduplicated import statement.
type Import struct {
	Module string
	Count  int
}

// Call is one call-expression or macro invocation found in a file.
type Call struct {
	Caller string // nearest enclosing function name, or "<module>"
	Callee string // captured callee name, possibly scope-prefixed (a::b)
	Line   int
}

// FileAnalysis is the complete set of facts extracted from one source file.
type FileAnalysis struct {
	Path      string
	Language  string
	LOC       int
	Functions []Symbol
	Classes   []Symbol
	Imports   []Import
	Calls     []Call
}

// Parser extracts a FileAnalysis from one source file's path and content.
type Parser struct{}

// NewParser returns a ready-to-use Parser. Parser is stateless; one value
// may be reused and shared across goroutines.
func NewParser() *Parser { return &Parser{} }

// AnalyzeFile parses source according to the language inferred from path's
// extension. It returns ok=false for unsupported extensions or unparseable
// source.
func (p *Parser) AnalyzeFile(path string, source []byte) (FileAnalysis, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	info := langForExt(ext)
	if info == nil {
		return FileAnalysis{}, false
	}

	lang := info.language()
	tsParser := sitter.NewParser()
	tsParser.SetLanguage(lang)

	tree, err := tsParser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return FileAnalysis{}, false
	}
	root := tree.RootNode()

	loc := strings.Count(string(source), "\n")
	if len(source) > 0 && !strings.HasSuffix(string(source), "\n") {
		loc++
	}

	return FileAnalysis{
		Path:      path,
		Language:  info.name,
		LOC:       loc,
		Functions: extractFunctions(lang, info, root, source),
		Classes:   extractClasses(lang, info, root, source),
		Imports:   extractImports(lang, info.queries.imports, root, source),
		Calls:     extractCalls(lang, info.queries.calls, root, source, info),
	}, true
}

// AnalyzeFilePath reads path from disk and parses it.
func (p *Parser) AnalyzeFilePath(path string) (FileAnalysis, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileAnalysis{}, false
	}
	return p.AnalyzeFile(path, data)
}

func extractFunctions(lang *sitter.Language, info *langInfo, root *sitter.Node, source []byte) []Symbol {
	query, err := sitter.NewQuery([]byte(info.queries.functions), lang)
	if err != nil {
		return nil
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var symbols []Symbol
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if query.CaptureNameForId(cap.Index) != "name" {
				continue
			}
			node := cap.Node
			symbols = append(symbols, Symbol{
				Name:   node.Content(source),
				Line:   int(node.StartPoint().Row) + 1,
				Parent: findEnclosingClass(node, source, info),
				Detail: extractFnSignature(node, source),
			})
		}
	}

	if info.name == "swift" {
		collectInitDeinit(root, source, info, &symbols)
	}

	return symbols
}

// collectInitDeinit recursively finds Swift init_declaration/deinit_declaration
// nodes, which have no name child and so can't be captured by a query.
func collectInitDeinit(node *sitter.Node, source []byte, info *langInfo, symbols *[]Symbol) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "init_declaration":
			*symbols = append(*symbols, Symbol{
				Name:   "init",
				Line:   int(child.StartPoint().Row) + 1,
				Parent: findEnclosingClass(child, source, info),
				Detail: extractFnSignatureFromNode(child, source),
			})
		case "deinit_declaration":
			*symbols = append(*symbols, Symbol{
				Name:   "deinit",
				Line:   int(child.StartPoint().Row) + 1,
				Parent: findEnclosingClass(child, source, info),
				Detail: extractFnSignatureFromNode(child, source),
			})
		}
		collectInitDeinit(child, source, info, symbols)
	}
}

func extractClasses(lang *sitter.Language, info *langInfo, root *sitter.Node, source []byte) []Symbol {
	query, err := sitter.NewQuery([]byte(info.queries.classes), lang)
	if err != nil {
		return nil
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var symbols []Symbol
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if query.CaptureNameForId(cap.Index) != "name" {
				continue
			}
			node := cap.Node
			name := node.Content(source)
			line := int(node.StartPoint().Row) + 1

			var inheritance string
			if parent := node.Parent(); parent != nil {
				inheritance = extractInheritance(info.name, parent, source)
			}
			fields := extractClassDetail(node, source, info)

			var detail string
			switch {
			case inheritance != "" && fields != "":
				detail = "(" + inheritance + ") " + fields
			case inheritance != "":
				detail = "(" + inheritance + ")"
			case fields != "":
				detail = fields
			}

			symbols = append(symbols, Symbol{Name: name, Line: line, Detail: detail})
		}
	}
	return symbols
}

// extractInheritance returns the superclass/extends/implements target, or
// "" if none is detected. classNode is the parent of the captured name node
// (i.e. the full class declaration).
func extractInheritance(langName string, classNode *sitter.Node, source []byte) string {
	switch langName {
	case "python":
		if supers := findChildByKind(classNode, "argument_list"); supers != nil {
			text := strings.TrimSpace(supers.Content(source))
			inner := strings.TrimSuffix(strings.TrimPrefix(text, "("), ")")
			if inner != "" {
				return inner
			}
		}
		return ""

	case "typescript", "tsx":
		if heritage := findChildByKind(classNode, "class_heritage"); heritage != nil {
			if extends := findChildByKind(heritage, "extends_clause"); extends != nil {
				if ti := firstDescendantByKinds(extends, "type_identifier", "identifier"); ti != nil {
					return ti.Content(source)
				}
			}
		}
		if extends := findChildByKind(classNode, "extends_type_clause"); extends != nil {
			if ti := firstDescendantByKinds(extends, "type_identifier", "identifier"); ti != nil {
				return ti.Content(source)
			}
		}
		return ""

	case "javascript":
		if heritage := findChildByKind(classNode, "class_heritage"); heritage != nil {
			for i := 0; i < int(heritage.ChildCount()); i++ {
				child := heritage.Child(i)
				text := strings.TrimSpace(child.Content(source))
				if text != "" && text != "extends" {
					return text
				}
			}
		}
		return ""

	case "java":
		if superclass := findChildByKind(classNode, "superclass"); superclass != nil {
			if ti := firstDescendantByKinds(superclass, "type_identifier", "identifier"); ti != nil {
				return ti.Content(source)
			}
		}
		if extends := findChildByKind(classNode, "extends_interfaces"); extends != nil {
			if ti := firstDescendantByKinds(extends, "type_identifier", "identifier"); ti != nil {
				return ti.Content(source)
			}
		}
		return ""

	case "kotlin":
		if specs := findChildByKind(classNode, "delegation_specifiers"); specs != nil {
			if spec := findChildByKind(specs, "delegation_specifier"); spec != nil {
				if ut := findChildByKind(spec, "user_type"); ut != nil {
					if ti := firstDescendantByKinds(ut, "type_identifier", "identifier"); ti != nil {
						return ti.Content(source)
					}
				}
				if ci := findChildByKind(spec, "constructor_invocation"); ci != nil {
					if ut := findChildByKind(ci, "user_type"); ut != nil {
						if ti := firstDescendantByKinds(ut, "type_identifier", "identifier"); ti != nil {
							return ti.Content(source)
						}
					}
				}
			}
		}
		return ""

	case "ruby":
		if superclass := findChildByKind(classNode, "superclass"); superclass != nil {
			if c := findChildByKind(superclass, "scope_resolution"); c != nil {
				return c.Content(source)
			}
			if c := findChildByKind(superclass, "constant"); c != nil {
				return c.Content(source)
			}
		}
		return ""

	case "swift":
		if inh := findChildByKind(classNode, "inheritance_specifier"); inh != nil {
			if ut := findDescendantByKind(inh, "user_type"); ut != nil {
				if id := findDescendantByKind(ut, "type_identifier"); id != nil {
					return id.Content(source)
				}
			}
			if ti := findDescendantByKind(inh, "type_identifier"); ti != nil {
				return ti.Content(source)
			}
		}
		return ""

	case "rust":
		if classNode.Type() != "impl_item" {
			return ""
		}
		hasFor := false
		for i := 0; i < int(classNode.ChildCount()); i++ {
			if classNode.Child(i).Content(source) == "for" {
				hasFor = true
				break
			}
		}
		if !hasFor {
			return "impl"
		}
		var traitName string
		foundFor := false
		for i := 0; i < int(classNode.ChildCount()); i++ {
			child := classNode.Child(i)
			text := child.Content(source)
			if text == "for" {
				foundFor = true
			} else if !foundFor && (child.Type() == "type_identifier" || child.Type() == "scoped_type_identifier" || child.Type() == "generic_type") {
				traitName = text
			}
		}
		if traitName != "" {
			return "impl " + traitName
		}
		return ""

	default:
		return ""
	}
}

// findEnclosingClass walks up from a function node to find the nearest
// enclosing class-like container's name.
func findEnclosingClass(node *sitter.Node, source []byte, info *langInfo) string {
	cur := node
	for {
		parent := cur.Parent()
		if parent == nil {
			return ""
		}
		if containsKind(info.classKinds, parent.Type()) {
			switch parent.Type() {
			case "impl_item":
				foundFor := false
				for i := 0; i < int(parent.ChildCount()); i++ {
					child := parent.Child(i)
					if child.Content(source) == "for" {
						foundFor = true
					} else if foundFor && (child.Type() == "type_identifier" || child.Type() == "generic_type" || child.Type() == "scoped_type_identifier") {
						return child.Content(source)
					}
				}
				if ti := findChildByKind(parent, "type_identifier"); ti != nil {
					return ti.Content(source)
				}
				return ""

			case "method_declaration":
				if params := findChildByKind(parent, "parameter_list"); params != nil {
					if ti := findDescendantByKind(params, "type_identifier"); ti != nil {
						return ti.Content(source)
					}
				}
				return ""

			case "type_declaration":
				for i := 0; i < int(parent.ChildCount()); i++ {
					child := parent.Child(i)
					if child.Type() == "type_spec" {
						if ti := findChildByKind(child, "type_identifier"); ti != nil {
							return ti.Content(source)
						}
						return ""
					}
				}
				return ""
			}

			for _, kind := range []string{"identifier", "type_identifier", "constant", "simple_identifier"} {
				if n := findChildByKind(parent, kind); n != nil {
					return n.Content(source)
				}
			}
			return ""
		}
		cur = parent
	}
}

var paramKinds = []string{"parameters", "formal_parameters", "parameter_list", "function_value_parameters", "method_parameters", "lambda_parameters"}
var retKinds = []string{"type", "return_type", "type_annotation"}

func extractFnSignature(nameNode *sitter.Node, source []byte) string {
	fnNode := nameNode.Parent()
	if fnNode == nil {
		return ""
	}
	return extractFnSignatureFromNode(fnNode, source)
}

func extractFnSignatureFromNode(fnNode *sitter.Node, source []byte) string {
	var parts strings.Builder

	var paramsNode *sitter.Node
	for _, kind := range paramKinds {
		if n := findChildByKind(fnNode, kind); n != nil {
			paramsNode = n
			break
		}
	}

	if paramsNode != nil {
		raw := paramsNode.Content(source)
		if len(raw) <= 60 {
			parts.WriteString(raw)
		} else {
			count := strings.Count(raw, ",") + 1
			parts.WriteString("(" + itoa(count) + " args)")
		}
	} else {
		parts.WriteString("()")
	}

	for i := 0; i < int(fnNode.ChildCount()); i++ {
		child := fnNode.Child(i)
		if containsKind(retKinds, child.Type()) {
			retText := strings.TrimSpace(child.Content(source))
			if retText != "" {
				retText = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(retText, "->"), ":"))
				if retText != "" {
					parts.WriteString("->")
					parts.WriteString(truncate(retText, 30))
				}
			}
			break
		}
		if child.Content(source) == "->" {
			if i+1 < int(fnNode.ChildCount()) {
				typeChild := fnNode.Child(i + 1)
				retText := strings.TrimSpace(typeChild.Content(source))
				if retText != "" {
					parts.WriteString("->")
					parts.WriteString(truncate(retText, 30))
				}
			}
			break
		}
	}

	result := parts.String()
	if result == "()" {
		return ""
	}
	return result
}

func extractClassDetail(nameNode *sitter.Node, source []byte, info *langInfo) string {
	classNode := nameNode.Parent()
	if classNode == nil {
		return ""
	}

	var bodyKinds, fieldKinds []string
	switch info.name {
	case "rust":
		bodyKinds = []string{"field_declaration_list"}
		fieldKinds = []string{"field_declaration"}
	case "go":
		bodyKinds = []string{"field_declaration_list", "struct_type"}
		fieldKinds = []string{"field_declaration"}
	case "java", "kotlin":
		bodyKinds = []string{"class_body"}
		fieldKinds = []string{"field_declaration"}
	default:
		return ""
	}

	var body *sitter.Node
	for _, kind := range bodyKinds {
		if n := findDescendantByKind(classNode, kind); n != nil {
			body = n
			break
		}
	}
	if body == nil {
		return ""
	}

	var fields []string
	collectFieldNames(body, fieldKinds, source, &fields)

	switch {
	case len(fields) == 0:
		return ""
	case len(fields) <= 5:
		return "{" + strings.Join(fields, ",") + "}"
	default:
		return "{" + itoa(len(fields)) + "f}"
	}
}

func collectFieldNames(node *sitter.Node, fieldKinds []string, source []byte, out *[]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !containsKind(fieldKinds, child.Type()) {
			continue
		}
		if vd := findChildByKind(child, "variable_declarator"); vd != nil {
			if n := findChildByKind(vd, "identifier"); n != nil {
				*out = append(*out, n.Content(source))
				continue
			}
		}
		for _, nk := range []string{"field_identifier", "identifier", "type_identifier"} {
			if n := findChildByKind(child, nk); n != nil {
				*out = append(*out, n.Content(source))
				break
			}
		}
	}
}

func findChildByKind(node *sitter.Node, kind string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == kind {
			return child
		}
	}
	return nil
}

func findDescendantByKind(node *sitter.Node, kind string) *sitter.Node {
	if node.Type() == kind {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			if found := findDescendantByKind(child, kind); found != nil {
				return found
			}
		}
	}
	return nil
}

func firstDescendantByKinds(node *sitter.Node, kinds ...string) *sitter.Node {
	for _, kind := range kinds {
		if n := findDescendantByKind(node, kind); n != nil {
			return n
		}
	}
	return nil
}

func extractImports(lang *sitter.Language, querySrc string, root *sitter.Node, source []byte) []Import {
	query, err := sitter.NewQuery([]byte(querySrc), lang)
	if err != nil {
		return nil
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var imports []Import
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if query.CaptureNameForId(cap.Index) != "path" {
				continue
			}
			module := normalizeImport(strings.TrimSpace(cap.Node.Content(source)))
			found := false
			for i := range imports {
				if imports[i].Module == module {
					imports[i].Count++
					found = true
					break
				}
			}
			if !found {
				imports = append(imports, Import{Module: module, Count: 1})
			}
		}
	}
	return imports
}

var importPrefixes = []string{"use ", "import ", "from ", "require_relative ", "require ", "load "}

func normalizeImport(s string) string {
	for _, prefix := range importPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `'"`)

	if idx := strings.Index(s, " import "); idx >= 0 {
		s = s[:idx]
	}

	if idx := strings.Index(s, " from "); idx >= 0 {
		module := strings.TrimSpace(s[idx+len(" from "):])
		module = strings.Trim(module, `'"`)
		if module != "" {
			return module
		}
	}

	if idx := strings.Index(s, "::{"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func extractCalls(lang *sitter.Language, querySrc string, root *sitter.Node, source []byte, info *langInfo) []Call {
	query, err := sitter.NewQuery([]byte(querySrc), lang)
	if err != nil {
		return nil
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var calls []Call
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if query.CaptureNameForId(cap.Index) != "name" {
				continue
			}
			node := cap.Node
			callee := node.Content(source)
			line := int(node.StartPoint().Row) + 1
			caller := findEnclosingFn(node, source, info)
			if caller == "" {
				caller = "<module>"
			}
			calls = append(calls, Call{Caller: caller, Callee: callee, Line: line})
		}
	}
	return calls
}

func findEnclosingFn(node *sitter.Node, source []byte, info *langInfo) string {
	cur := node
	for {
		parent := cur.Parent()
		if parent == nil {
			return ""
		}
		if containsKind(info.fnKinds, parent.Type()) {
			switch parent.Type() {
			case "init_declaration":
				return "init"
			case "deinit_declaration":
				return "deinit"
			case "variable_declarator":
				isFnValue := findChildByKind(parent, "arrow_function") != nil || findChildByKind(parent, "function") != nil
				if !isFnValue {
					cur = parent
					continue
				}
			}
			if name := findChildTextByKinds(parent, info.fnNameKinds, source); name != "" {
				return name
			}
		}
		cur = parent
	}
}

func findChildTextByKinds(node *sitter.Node, kinds []string, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && containsKind(kinds, child.Type()) {
			return child.Content(source)
		}
	}
	return ""
}

// truncate caps s at max bytes, appending "..." when truncated.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	limit := max - 3
	if limit < 0 {
		limit = 0
	}
	return s[:limit] + "..."
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
