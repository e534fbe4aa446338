package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pydeadcode/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and re-analyze",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before re-running after a change",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	out := c.App.Writer

	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	paths := []string{absPath}

	watcher, err := watch.NewWatcher(absPath, cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()
	if err := watcher.AddTree(absPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", absPath, err)
	}

	if _, err := analyzeProject(c, cfg, logger, paths); err != nil {
		return err
	}

	watcher.SetCallback(func(changed []string) {
		fmt.Fprintln(out)
		for _, path := range changed {
			rel, err := filepath.Rel(absPath, path)
			if err != nil {
				rel = path
			}
			color.New(color.FgYellow).Fprintf(out, "File changed: %s\n", rel)
		}
		fmt.Fprintln(out, strings.Repeat("-", 40))

		if _, err := analyzeProject(c, cfg, logger, paths); err != nil {
			color.New(color.FgRed).Fprintf(c.App.ErrWriter, "Analysis error: %v\n", err)
		}
	})
	watcher.SetErrorHandler(func(err error) {
		color.New(color.FgRed).Fprintf(c.App.ErrWriter, "Watch error: %v\n", err)
	})

	color.New(color.FgCyan).Fprintf(out, "Watching for changes in %s...\n", absPath)
	color.New(color.FgCyan).Fprintln(out, "Press Ctrl+C to stop")

	err = watcher.Start(c.Context)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\nStopping watch...")
		return nil
	}
	return err
}
