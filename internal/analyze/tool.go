package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/chatgate/internal/tools"
)

const (
	defaultMaxDepth    = 3
	defaultFollowDepth = 2
	maxParallelParses  = 8
)

// Params is the set of arguments accepted by Analyze and by the analyze
// tool's JSON schema.
type Params struct {
	Path        string
	Focus       string // "" means no focus symbol
	MaxDepth    int    // directory recursion limit, 0 = unlimited
	FollowDepth int    // call-graph traversal depth, 0 = definitions only
	Force       bool   // allow outputs over SizeLimit
}

// Analyze runs one of the engine's three modes, auto-selected by params'
// shape: a focus symbol selects call-graph mode; otherwise a file path
// selects semantic mode and a directory path selects structure mode.
func Analyze(params Params) (string, error) {
	info, err := os.Stat(params.Path)
	if err != nil {
		return "", fmt.Errorf("path not found: %s", params.Path)
	}

	// MaxDepth/FollowDepth of 0 means "unlimited"/"definitions only" per
	// params' own field docs; defaults for an unset field are the caller's
	// responsibility to apply before calling Analyze (see Tool.Execute).
	switch {
	case params.Focus != "":
		return focusedMode(params.Path, info, params.Focus, params.FollowDepth, params.MaxDepth, params.Force)
	case !info.IsDir():
		return semanticMode(params.Path, params.Force)
	default:
		return structureMode(params.Path, params.MaxDepth, params.Force)
	}
}

func structureMode(dir string, maxDepth int, force bool) (string, error) {
	files := collectFiles(dir, maxDepth)
	totalFiles := len(files)

	analyses := parseAll(files)
	output := FormatStructure(analyses, dir, maxDepth, totalFiles)
	return finish(output, force)
}

func semanticMode(path string, force bool) (string, error) {
	analysis, ok := analyzeFile(path)
	if !ok {
		return "", fmt.Errorf("could not analyze %s (unsupported language or binary file)", path)
	}
	root := filepath.Dir(path)
	output := FormatSemantic(analysis, root)
	return finish(output, force)
}

func focusedMode(path string, info os.FileInfo, symbol string, followDepth, maxDepth int, force bool) (string, error) {
	var files []string
	if !info.IsDir() {
		files = []string{path}
	} else {
		files = collectFiles(path, maxDepth)
	}

	analyses := parseAll(files)

	root := path
	if !info.IsDir() {
		root = filepath.Dir(path)
	}

	graph := BuildCallGraph(analyses)
	output := FormatFocused(symbol, graph, followDepth, len(analyses), root)
	return finish(output, force)
}

func finish(output string, force bool) (string, error) {
	return CheckSize(output, force)
}

func analyzeFile(path string) (FileAnalysis, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileAnalysis{}, false
	}
	p := NewParser()
	return p.AnalyzeFile(path, data)
}

// parseAll parses files concurrently, bounded by maxParallelParses, and
// drops any file that fails to parse (unsupported extension, read error).
func parseAll(files []string) []FileAnalysis {
	results := make([]*FileAnalysis, len(files))

	g := new(errgroup.Group)
	g.SetLimit(maxParallelParses)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if fa, ok := analyzeFile(f); ok {
				results[i] = &fa
			}
			return nil
		})
	}
	_ = g.Wait()

	analyses := make([]FileAnalysis, 0, len(files))
	for _, r := range results {
		if r != nil {
			analyses = append(analyses, *r)
		}
	}
	return analyses
}

// skipDirNames mirrors the common ignore-file conventions (vendor/build/VCS
// directories) that a directory walk should never descend into.
var skipDirNames = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"__pycache__":  true,
}

// collectFiles walks dir up to maxDepth levels (0 = unlimited), returning
// every regular file path found and skipping common vendor/build/VCS
// directories.
func collectFiles(dir string, maxDepth int) []string {
	var out []string
	baseDepth := len(splitPath(dir))

	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != dir && skipDirNames[info.Name()] {
				return filepath.SkipDir
			}
			if maxDepth > 0 && len(splitPath(path))-baseDepth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out
}

func splitPath(p string) []string {
	var parts []string
	for {
		dir, file := filepath.Split(filepath.Clean(p))
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		if dir == "" || dir == p {
			break
		}
		p = filepath.Clean(dir)
		if p == "." || p == "/" {
			break
		}
	}
	return parts
}

// Tool adapts Analyze to the internal/tools calling convention: Name,
// Description, Parameters (a JSON schema), and Execute.
type Tool struct{}

func NewTool() *Tool { return &Tool{} }

func (t *Tool) Name() string { return "analyze" }

func (t *Tool) Description() string {
	return "Analyze code structure in 3 modes: 1) Directory overview - file tree with LOC/function/class counts to max_depth. 2) File details - functions, classes, imports. 3) Symbol focus - call graphs across directory to max_depth (requires file or directory path, case-sensitive). Typical flow: directory → files → symbols. Functions called >3x show •N."
}

func (t *Tool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File or directory path to analyze",
			},
			"focus": map[string]interface{}{
				"type":        "string",
				"description": "Symbol name to focus on (triggers call graph mode)",
			},
			"max_depth": map[string]interface{}{
				"type":        "number",
				"description": "Directory recursion depth limit (default 3, 0=unlimited). Also limits focus scan depth.",
			},
			"follow_depth": map[string]interface{}{
				"type":        "number",
				"description": "Call graph traversal depth (default 2, 0=definitions only)",
			},
			"force": map[string]interface{}{
				"type":        "boolean",
				"description": "Allow large outputs without size warning",
			},
		},
		"required": []string{"path"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	path, _ := args["path"].(string)
	if path == "" {
		return tools.ErrorResult("Error: path not found: ")
	}

	params := Params{Path: path, MaxDepth: defaultMaxDepth}
	if focus, ok := args["focus"].(string); ok {
		params.Focus = focus
		params.FollowDepth = defaultFollowDepth
	}
	if md, ok := args["max_depth"].(float64); ok {
		params.MaxDepth = int(md)
	}
	if fd, ok := args["follow_depth"].(float64); ok {
		params.FollowDepth = int(fd)
	}
	if force, ok := args["force"].(bool); ok {
		params.Force = force
	}

	output, err := Analyze(params)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("Error: %s", err))
	}
	return tools.NewResult(output)
}
