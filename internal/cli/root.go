// Package cli implements the outfitctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	outfit "github.com/Mallikarjun30/OutfitSuggestion"
	"github.com/Mallikarjun30/OutfitSuggestion/internal/config"
)

var (
	cfgFile      string
	outputFormat string
	apiURL       string
	logFormat    string
	debug        bool

	cfg    *config.Config
	logger *slog.Logger

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "outfitctl",
	Short: "Manage your wardrobe and get outfit suggestions",
	Long: `outfitctl talks to the outfit suggestion backend.

Sign in once; the session is kept in the configured session store
(a file under ~/.outfit by default) and reused by every command.

Examples:
  outfitctl login --email you@example.com
  outfitctl wardrobe upload coat.jpg jeans.png
  outfitctl suggest --city London look.jpg`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ~/.outfit/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json; overrides log.format)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command and prints any error to stderr.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(err)
	}
	return err
}

func loadConfig(_ *cobra.Command, _ []string) error {
	switch outputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if apiURL != "" {
		c.API.BaseURL = apiURL
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if debug {
		c.Log.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger = newLogger(c.Log)
	return nil
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(stderr, opts))
	}
	return slog.New(slog.NewTextHandler(stderr, opts))
}

// getClient opens the session store, restores the session and returns a
// client. The returned close func releases the store.
func getClient(ctx context.Context) (*outfit.Client, func(), error) {
	storage, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	client := outfit.NewClient(storage,
		outfit.WithBaseURL(cfg.API.BaseURL),
		outfit.WithTimeout(cfg.API.Timeout),
		outfit.WithLogger(logger),
		outfit.WithImageDir(cfg.API.ImageDir),
		outfit.WithOnUnauthorized(func() {
			fmt.Fprintln(stderr, "Session expired. Run `outfitctl login` to sign in again.")
		}),
	)

	if err := client.Session.Restore(ctx); err != nil {
		closeStorage()
		return nil, nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return client, closeStorage, nil
}

// requireSession fails early when no one is signed in.
func requireSession(client *outfit.Client) error {
	if !client.Session.IsAuthenticated() {
		return fmt.Errorf("not logged in, run `outfitctl login` first: %w", outfit.ErrNotAuthenticated)
	}
	return nil
}
