package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [glob...]",
		Short: "List archive paths matching the given glob patterns (all paths if none given)",
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
			for _, p := range matched {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
