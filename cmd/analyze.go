package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chatgate/internal/analyze"
)

func analyzeCmd() *cobra.Command {
	var focus string
	var depth int
	var follow int
	var force bool

	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Ad-hoc code analysis via tree-sitter",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAnalyze(args[0], focus, depth, follow, force)
		},
	}

	cmd.Flags().StringVar(&focus, "focus", "", "symbol name to focus on (triggers call graph mode)")
	cmd.Flags().IntVar(&depth, "depth", 3, "directory recursion depth limit (0=unlimited)")
	cmd.Flags().IntVar(&follow, "follow", 2, "call graph traversal depth (0=definitions only)")
	cmd.Flags().BoolVar(&force, "force", false, "allow large outputs without size warning")

	return cmd
}

func runAnalyze(path, focus string, depth, follow int, force bool) {
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err == nil {
			path = filepath.Join(cwd, path)
		}
	}

	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: path not found: %s\n", path)
		os.Exit(1)
	}

	output, err := analyze.Analyze(analyze.Params{
		Path:        path,
		Focus:       focus,
		MaxDepth:    depth,
		FollowDepth: follow,
		Force:       force,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "(use --force to see full output)")
		os.Exit(2)
	}
	fmt.Print(output)
}
