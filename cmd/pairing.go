package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chatgate/internal/config"
	"github.com/nextlevelbuilder/chatgate/internal/pairing"
	"github.com/nextlevelbuilder/chatgate/internal/store"
	"github.com/nextlevelbuilder/chatgate/internal/store/file"
)

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage chat gateway pairing codes",
	}
	cmd.AddCommand(pairingGenerateCmd())
	cmd.AddCommand(pairingUnpairCmd())
	return cmd
}

func pairingGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <gateway-type>",
		Short: "Generate a pairing code for a gateway type",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runPairingGenerate(args[0])
		},
	}
}

func pairingUnpairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpair <platform> <user-id>",
		Short: "Remove a paired user from a gateway",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runPairingUnpair(args[0], args[1])
		},
	}
}

func openPairingStore(cfg *config.Config) store.PairingStore {
	dir := filepath.Join(cfg.WorkspacePath(), "gateway")
	_ = os.MkdirAll(dir, 0o755)
	svc := pairing.NewService(filepath.Join(dir, "pairing.json"))
	return file.NewFilePairingStore(svc)
}

func runPairingGenerate(gatewayType string) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate pairing: load config: %s\n", err)
		os.Exit(1)
	}

	pairingStore := openPairingStore(cfg)
	code, err := pairingStore.RequestPairing("", gatewayType, "", "manual")
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate pairing: %s\n", err)
		os.Exit(1)
	}

	expiresAt := time.Now().Add(store.PendingCodeTTL)
	fmt.Printf("Pairing code: %s\n", code)
	fmt.Printf("Expires at:   %s\n", expiresAt.Format(time.RFC3339))
}

func runPairingUnpair(platform, userID string) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate pairing: load config: %s\n", err)
		os.Exit(1)
	}

	pairingStore := openPairingStore(cfg)
	user := store.PlatformUser{Platform: platform, UserID: userID}
	state, err := pairingStore.Get(user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate pairing: %s\n", err)
		os.Exit(1)
	}
	if state.State != "paired" {
		fmt.Printf("%s/%s is not currently paired.\n", platform, userID)
		return
	}
	if err := pairingStore.Remove(user); err != nil {
		fmt.Fprintf(os.Stderr, "chatgate pairing: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Unpaired %s/%s.\n", platform, userID)
}
