package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetnav/internal/assist"
	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

func newAnalyzeCmd(g *globals) *cobra.Command {
	var (
		action string
		export bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <transcript file>",
		Short: "Run one assistant action over a saved transcript",
		Long: `Send a saved transcript to the configured LLM and print the answer.

Actions: summarize, viewpoints, navigate, minutes. Minutes are also written
as <name>_minutes.md and <name>_minutes.html next to the transcript unless
--export=false.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act := config.Action(strings.ToLower(action))
			if !slices.Contains(config.Actions, act) {
				return fmt.Errorf("unknown action %q; valid actions: %s", action, joinActions())
			}

			cfg, _, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel.Slog())

			provider, err := buildLLM(cfg, g.registry(), logger)
			if err != nil {
				return err
			}
			if provider == nil {
				return errors.New("no LLM provider configured; set providers.llm in the config file")
			}

			path := args[0]
			entries, err := readTranscript(path)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("%s: %w", path, assist.ErrEmptyTranscript)
			}

			a := assist.New(provider, cfg.Prompts, assist.WithLogger(logger))
			in := assist.NewInput(entries, assist.ContextFromConfig(cfg.Meeting), phonetic.ParseRoster(cfg.Meeting.KeyStakeholders))
			out, err := a.Do(cmd.Context(), act, in.Transcript, in.Context)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if act == config.ActionMinutes && export {
				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				md, html, err := assist.ExportMinutes(filepath.Dir(path), base, out)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "minutes written to %s and %s\n", md, html)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&action, "action", "a", string(config.ActionSummarize), "assistant action: "+joinActions())
	cmd.Flags().BoolVar(&export, "export", true, "write minutes files next to the transcript")
	return cmd
}

func readTranscript(path string) ([]capture.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, skipped, err := capture.ReadTranscript(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "meetnav: skipped %d malformed lines in %s\n", skipped, path)
	}
	return entries, nil
}

func joinActions() string {
	names := make([]string, len(config.Actions))
	for i, a := range config.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
