package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/mcpserver"
	"github.com/MrWong99/meetnav/pkg/memory/postgres"
)

func newMCPCmd(g *globals) *cobra.Command {
	var (
		dir      string
		useStore bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve saved transcripts to MCP clients over stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout.

The server exposes the tools list_transcripts, get_transcript and
search_transcript over the transcript directory, or over the Postgres
mirror with --store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			logger := newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel.Slog())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var source mcpserver.Source
			if useStore {
				if cfg.Memory.PostgresDSN == "" {
					return errors.New("--store needs memory.postgres_dsn in the config file")
				}
				store, err := postgres.NewStore(ctx, cfg.Memory.PostgresDSN)
				if err != nil {
					return err
				}
				defer store.Close()
				source = mcpserver.StoreSource{Store: store}
			} else {
				if dir == "" {
					dir = cfg.Capture.OutputDir
				}
				if dir == "" {
					if dir, err = capture.DefaultOutputDir(); err != nil {
						return err
					}
				}
				source = mcpserver.DirSource{Dir: dir}
			}

			logger.Info("mcp server starting", "store", useStore, "dir", dir)
			srv := mcpserver.New(source, version, mcpserver.WithLogger(logger))
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("running MCP server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "transcript directory (default: capture.output_dir)")
	cmd.Flags().BoolVar(&useStore, "store", false, "read transcripts from the Postgres mirror")
	return cmd
}
