// Command meetnav captures the live captions of a video meeting into a
// transcript file and asks an LLM for summaries, viewpoints and guidance
// while the meeting runs.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetnav/internal/config"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(newGlobals()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "meetnav: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags and the seams that tests replace.
type globals struct {
	configPath string

	// registry returns the LLM provider registry.
	registry func() *config.Registry
}

func newGlobals() *globals {
	return &globals{
		registry: func() *config.Registry {
			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			return reg
		},
	}
}

func newRootCmd(g *globals) *cobra.Command {
	run := newRunCmd(g)
	root := &cobra.Command{
		Use:   "meetnav",
		Short: "Meeting navigator: live caption capture with LLM guidance",
		Long: `meetnav attaches to the live transcript window of a video meeting client,
saves every caption to a transcript file and shows a dashboard where an LLM
summarises the discussion, maps the participants' viewpoints and suggests
what to say next.

Without a subcommand meetnav behaves like "meetnav run".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "meetnav.yaml", "path to the YAML configuration file")
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run, newTreeCmd(g), newAnalyzeCmd(g), newMCPCmd(g))
	return root
}

// loadConfig reads the config file. A missing file is only an error when the
// path was given explicitly; otherwise the defaults apply.
func loadConfig(cmd *cobra.Command, g *globals) (*config.Config, bool, error) {
	cfg, err := config.Load(g.configPath)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.LoadFromReader(strings.NewReader(""))
		return cfg, false, err
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", g.configPath)
	}
	return nil, false, err
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt reads an integer option. YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
