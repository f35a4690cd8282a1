package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "extract <glob...>",
		Short: "Extract matching archive paths into a local directory tree",
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

			failures := 0
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "extract: %s: %v\n", r.Path, r.Err)
					failures++
					continue
				}
				dest := filepath.Join(outDir, filepath.FromSlash(r.Path))
				if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "extract: %s: %v\n", r.Path, err)
					failures++
					continue
				}
				if err := os.WriteFile(dest, r.Data, 0o644); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "extract: %s: %v\n", r.Path, err)
					failures++
					continue
				}
			}
			if failures > 0 && failures == len(results) {
				return fmt.Errorf("all %d matched paths failed to extract", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	return cmd
}
