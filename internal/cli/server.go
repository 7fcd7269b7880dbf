package cli

import (
	"github.com/spf13/cobra"

	"github.com/Mallikarjun30/OutfitSuggestion/internal/fakebackend"
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory backend for offline development",
	Long: `Serve the backend HTTP API from memory. Accounts and wardrobe items are
lost on exit. Photo descriptions and suggestions are canned.

Examples:
  outfitctl mock-server --addr :8080
  outfitctl --api-url http://localhost:8080 register --email me@example.com --name Me`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

func init() {
	mockServerCmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	rootCmd.AddCommand(mockServerCmd)
}

func runMockServer(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := fakebackend.New(
		fakebackend.WithSecret(cfg.Server.JWTSecret),
		fakebackend.WithTokenTTL(cfg.Server.JWTExpiry),
		fakebackend.WithOrigins(cfg.Server.Origins...),
		fakebackend.WithLogger(logger),
	)
	return srv.ListenAndServe(cmd.Context(), addr)
}
