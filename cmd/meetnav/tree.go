package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetnav/internal/uia"
)

func newTreeCmd(g *globals) *cobra.Command {
	var (
		class string
		depth int
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the accessibility tree of the caption window",
		Long: `Print every element below the caption window with its control type,
class name and accessible name. Use it when meetnav cannot find the caption
list, for example after a client update changed the window layout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if class == "" {
				cfg, _, err := loadConfig(cmd, g)
				if err != nil {
					return err
				}
				class = cfg.Capture.WindowClass
			}

			// UI Automation objects belong to the thread that created them.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			finder := uia.NewFinder()
			defer finder.Close()

			window, err := finder.FindWindow(cmd.Context(), class)
			if errors.Is(err, uia.ErrNotFound) {
				return fmt.Errorf("no window of class %q; is the live transcript open?", class)
			}
			if err != nil {
				return err
			}
			defer window.Release()
			return uia.Dump(cmd.OutOrStdout(), window, depth)
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "window class to inspect (default: capture.window_class)")
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum depth to print, 0 for all")
	return cmd
}
