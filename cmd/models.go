package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chatgate/internal/config"
	"github.com/nextlevelbuilder/chatgate/internal/providers/clidriver"
)

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models supported by the configured CLI provider binary",
		Run: func(cmd *cobra.Command, args []string) {
			runModels()
		},
	}
}

func runModels() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate models: load config: %s\n", err)
		os.Exit(1)
	}

	binary := cfg.ChatGateway.Binary
	if binary == "" {
		binary = "goose"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := clidriver.FetchSupportedModels(ctx, binary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate models: %s\n", err)
		os.Exit(1)
	}

	if len(models) == 0 {
		fmt.Println("(no models reported)")
		return
	}
	for _, m := range models {
		fmt.Println(m)
	}
}
