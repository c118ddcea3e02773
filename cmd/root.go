package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/chatgate/cmd.Version=v1.0.0"
var Version = "dev"

// ProtocolVersion identifies the clidriver NDJSON envelope shape (see
// internal/providers/clidriver/protocol.go). Bump when a wire field's
// meaning changes in a way older child binaries wouldn't understand.
const ProtocolVersion = 1

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chatgate",
	Short: "ChatGate — AI agent gateway",
	Long:  "ChatGate: a chat gateway pairing external platform users to long-lived CLI-backed agent sessions, plus a static-analysis tool for codebase exploration.",
	Run: func(cmd *cobra.Command, args []string) {
		runGateway()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $CHATGATE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(pairingCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(analyzeCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chatgate %s (protocol %d)\n", Version, ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CHATGATE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
