package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ImageConverter turns a DDS texture's raw bytes into a PNG. DDS→PNG
// conversion is an external collaborator spec.md declares out of scope
// (§1); no implementation ships, so dump_art fails clearly instead of
// silently no-op'ing (SPEC_FULL.md's AMBIENT STACK "CLI" note).
type ImageConverter interface {
	Convert(ctx context.Context, dds []byte) (png []byte, err error)
}

func newDumpArtCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "dump_art <glob...>",
		Short: "Convert matching .dds textures to PNG (requires an injected ImageConverter)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("no image converter configured: dump_art has no built-in DDS->PNG provider; inject one via the ImageConverter interface")
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory for PNG images")
	return cmd
}
