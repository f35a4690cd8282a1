package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <glob...>",
		Short: "Write matching archive files' contents to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			fs, err := buildFS(ctx, logger)
			if err != nil {
				return err
			}

			all, err := fs.List(ctx)
			if err != nil {
				return err
			}
			matched, err := filterPaths(all, args)
			if err != nil {
				return err
			}
			if len(matched) == 0 {
				return fmt.Errorf("no archive paths matched the given patterns")
			}

			results, err := fs.BatchRead(ctx, matched)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failures := 0
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "cat: %s: %v\n", r.Path, r.Err)
					failures++
					continue
				}
				if _, err := out.Write(r.Data); err != nil {
					return fmt.Errorf("writing stdout: %w", err)
				}
			}
			if failures == len(results) {
				return fmt.Errorf("all %d matched paths failed to read", failures)
			}
			return nil
		},
	}
}
