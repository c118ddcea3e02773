package analyze

import (
	"strings"
	"testing"
)

func TestFormatStructureSummaryLine(t *testing.T) {
	analyses := []FileAnalysis{
		{Path: "/root/a.go", Language: "go", LOC: 10, Functions: []Symbol{{Name: "f", Line: 1}}},
		{Path: "/root/b.py", Language: "python", LOC: 30, Classes: []Symbol{{Name: "C", Line: 1}}},
	}
	out := FormatStructure(analyses, "/root", 3, 3)

	if !strings.HasPrefix(out, "2 files, 40L, 1F, 1C (depth=3)\n") {
		t.Fatalf("unexpected summary line: %q", firstLine(out))
	}
	if !strings.Contains(out, "(1 files skipped: no parser)") {
		t.Fatalf("expected skipped-files line, got:\n%s", out)
	}
	if !strings.Contains(out, "a.go") || !strings.Contains(out, "b.py") {
		t.Fatalf("expected tree to list both files, got:\n%s", out)
	}
}

func TestFormatStructureUnlimitedDepth(t *testing.T) {
	out := FormatStructure(nil, "/root", 0, 0)
	if !strings.HasPrefix(out, "0 files, 0L, 0F, 0C (unlimited)\n") {
		t.Fatalf("expected unlimited depth label, got: %q", firstLine(out))
	}
}

func TestFormatSemanticIncludesCallCountAnnotation(t *testing.T) {
	a := FileAnalysis{
		Path: "/root/pkg/a.go",
		LOC:  20,
		Functions: []Symbol{
			{Name: "hot", Line: 3},
			{Name: "cold", Line: 10},
		},
		Calls: []Call{
			{Caller: "cold", Callee: "hot", Line: 11},
			{Caller: "cold", Callee: "hot", Line: 12},
			{Caller: "cold", Callee: "hot", Line: 13},
			{Caller: "cold", Callee: "hot", Line: 14},
		},
	}
	out := FormatSemantic(a, "/root")

	if !strings.Contains(out, "hot:3•4") {
		t.Fatalf("expected hot to show a •4 call-count annotation, got:\n%s", out)
	}
	if strings.Contains(out, "cold:10•") {
		t.Fatalf("cold is called 0 times and should have no annotation, got:\n%s", out)
	}
	if !strings.HasPrefix(out, "pkg/a.go [20L, 2F]") {
		t.Fatalf("expected stripped-root header, got: %q", firstLine(out))
	}
}

func TestFormatFocusedSymbolNotFound(t *testing.T) {
	g := BuildCallGraph(nil)
	out := FormatFocused("missing", g, 2, 5, "/root")
	if out != "Symbol 'missing' not found in 5 analyzed files.\n" {
		t.Fatalf("unexpected not-found message: %q", out)
	}
}

func TestFormatFocusedListsDefsAndChains(t *testing.T) {
	analyses := []FileAnalysis{
		{
			Path:      "/root/a.go",
			Language:  "go",
			Functions: []Symbol{{Name: "caller", Line: 1}, {Name: "target", Line: 10}},
			Calls:     []Call{{Caller: "caller", Callee: "target", Line: 2}},
		},
	}
	g := BuildCallGraph(analyses)
	out := FormatFocused("target", g, 1, 1, "/root")

	if !strings.Contains(out, "FOCUS: target (1 defs, 1 refs)") {
		t.Fatalf("expected focus header, got:\n%s", out)
	}
	if !strings.Contains(out, "DEF a.go:target:10") {
		t.Fatalf("expected def line, got:\n%s", out)
	}
	if !strings.Contains(out, "IN:") || !strings.Contains(out, "a.go:target:10 → a.go:caller:1") {
		t.Fatalf("expected IN chain, got:\n%s", out)
	}
}

func TestIsTestChainDetectsVariousConventions(t *testing.T) {
	cases := []struct {
		chain Chain
		want  bool
	}{
		{Chain{{File: "pkg/a_test.go", Name: "f", Line: 1}}, true},
		{Chain{{File: "pkg/a.go", Name: "test_something", Line: 1}}, true},
		{Chain{{File: "src/test/Foo.java", Name: "f", Line: 1}}, true},
		{Chain{{File: "pkg/a.go", Name: "normal", Line: 1}}, false},
	}
	for _, c := range cases {
		if got := isTestChain(c.chain); got != c.want {
			t.Errorf("isTestChain(%+v) = %v, want %v", c.chain, got, c.want)
		}
	}
}

func TestCheckSizeRejectsOversizeUnlessForced(t *testing.T) {
	big := strings.Repeat("x", SizeLimit+1)
	if _, err := CheckSize(big, false); err == nil {
		t.Fatalf("expected error for oversize output without force")
	}
	out, err := CheckSize(big, true)
	if err != nil || out != big {
		t.Fatalf("force=true should bypass the size check, err=%v", err)
	}
}

func TestStripRoot(t *testing.T) {
	if got := stripRoot("/root/pkg/a.go", "/root"); got != "pkg/a.go" {
		t.Errorf("stripRoot = %q, want pkg/a.go", got)
	}
	if got := stripRoot("/other/a.go", ""); got != "/other/a.go" {
		t.Errorf("stripRoot with empty root should return path unchanged, got %q", got)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i+1]
	}
	return s
}
