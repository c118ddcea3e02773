package analyze

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectFilesRespectsMaxDepthAndSkipsVendor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "sub", "b.go"), "package sub\n")
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.go"), "package deeper\n")
	writeFile(t, filepath.Join(dir, "vendor", "d.go"), "package vendor\n")

	all := collectFiles(dir, 0)
	if len(all) != 3 {
		t.Fatalf("unlimited depth should skip vendor but find the other 3 files, got %d: %+v", len(all), all)
	}

	shallow := collectFiles(dir, 1)
	var names []string
	for _, f := range shallow {
		names = append(names, filepath.Base(f))
	}
	if !containsStr(names, "a.go") {
		t.Fatalf("depth=1 should include the top-level file, got %+v", names)
	}
	if containsStr(names, "c.go") {
		t.Fatalf("depth=1 should not descend two levels, got %+v", names)
	}
}

func TestAnalyzeStructureMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package main\n\nfunc main() {}\n")

	out, err := Analyze(Params{Path: dir, MaxDepth: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "1 files") {
		t.Fatalf("expected structure summary, got:\n%s", out)
	}
}

func TestAnalyzeSemanticModeForAFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	writeFile(t, path, "package main\n\nfunc main() {}\n")

	out, err := Analyze(Params{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "main") {
		t.Fatalf("expected semantic output to mention main, got:\n%s", out)
	}
}

func TestAnalyzeFocusedModeRequiresSymbol(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), `package main

func helper() {}

func main() {
	helper()
}
`)

	out, err := Analyze(Params{Path: dir, MaxDepth: 3, Focus: "helper", FollowDepth: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "FOCUS: helper") {
		t.Fatalf("expected focused output, got:\n%s", out)
	}
}

func TestAnalyzePathNotFound(t *testing.T) {
	_, err := Analyze(Params{Path: "/no/such/path/at/all"})
	if err == nil {
		t.Fatalf("expected an error for a nonexistent path")
	}
}

func TestToolExecuteAppliesDefaultsOnlyWhenArgsAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package main\n\nfunc main() {}\n")

	tool := NewTool()
	res := tool.Execute(context.Background(), map[string]interface{}{"path": dir})
	if res.IsError {
		t.Fatalf("expected success, got error result: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "1 files") {
		t.Fatalf("expected structure output via default max_depth, got:\n%s", res.ForLLM)
	}
}

func TestToolExecuteMissingPathIsError(t *testing.T) {
	tool := NewTool()
	res := tool.Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatalf("expected an error result when path is missing")
	}
}

func TestToolExecuteExplicitZeroMaxDepthMeansUnlimited(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "deep", "a.go"), "package deep\n\nfunc f() {}\n")

	tool := NewTool()
	res := tool.Execute(context.Background(), map[string]interface{}{
		"path":      dir,
		"max_depth": float64(0),
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "unlimited") {
		t.Fatalf("explicit max_depth=0 should mean unlimited, got:\n%s", res.ForLLM)
	}
}
