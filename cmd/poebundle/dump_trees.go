package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/poebundle/pkg/dat"
	"github.com/user/poebundle/pkg/psg"
	"github.com/user/poebundle/pkg/psgtree"
	"github.com/user/poebundle/pkg/schema"
	"github.com/user/poebundle/pkg/vfs"
)

// Table stems of the three tabular files psgtree.Build joins against,
// matching the names original_source/src/tree/passive_info.rs looks up
// from the game's schema.
const (
	passivesTableStem = "passiveskills"
	statsTableStem    = "stats"
	reminderTableStem = "remindertext"
)

func newDumpTreesCmd() *cobra.Command {
	return newTreeDumpCmd("dump_trees", "Join .psg passive-skill graphs with their tables into RePoE-style JSON trees", 1)
}

func newDumpMapsCmd() *cobra.Command {
	return newTreeDumpCmd("dump_maps", "Join .psg atlas graphs with their tables into RePoE-style JSON trees", 2)
}

// newTreeDumpCmd builds dump_trees/dump_maps: they differ only in which
// psg.File.GraphType value they accept (spec §3: 1 = passive, 2 = atlas).
func newTreeDumpCmd(use, short string, wantGraphType uint8) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   use + " <glob...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			provider, err := buildSchemaProvider()
			if err != nil {
				return err
			}
			edition, err := activeEdition()
			if err != nil {
				return err
			}
			collection, err := provider.Schema(ctx)
			if err != nil {
				return fmt.Errorf("fetching schema: %w", err)
			}

			fs, err := buildFS(ctx, logger)
			if err != nil {
				return err
			}

			passives, stats, reminder, err := loadJoinTables(ctx, fs, collection, edition)
			if err != nil {
				return fmt.Errorf("loading join tables: %w", err)
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

			failures := 0
			for _, p := range matched {
				if err := dumpOneTree(ctx, fs, edition, wantGraphType, p, passives, stats, reminder, outDir); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", use, p, err)
					failures++
				}
			}
			if failures == len(matched) {
				return fmt.Errorf("all %d matched graphs failed", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory for JSON trees")
	return cmd
}

// loadJoinTables locates and schema-applies the three tables psgtree.Build
// needs, by scanning the archive for their table stems.
func loadJoinTables(ctx context.Context, fs *vfs.FS, collection *schema.Collection, edition int) (passives, stats, reminder *dat.ApplyResult, err error) {
	all, err := fs.List(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	find := func(stem string) (string, bool) {
		for _, p := range all {
			if tableStem(p) == stem {
				return p, true
			}
		}
		return "", false
	}

	loadOne := func(stem string) (*dat.ApplyResult, error) {
		path, ok := find(stem)
		if !ok {
			return nil, fmt.Errorf("table %q not found in archive", stem)
		}
		raw, err := fs.Read(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		table, err := dat.ParseRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		tableSchema, ok := collection.For(stem, edition)
		if !ok {
			return nil, fmt.Errorf("no schema entry for table %q", stem)
		}
		return dat.ApplySchema(table, tableSchema.Columns, nil)
	}

	passives, err = loadOne(passivesTableStem)
	if err != nil {
		return nil, nil, nil, err
	}
	stats, err = loadOne(statsTableStem)
	if err != nil {
		return nil, nil, nil, err
	}
	reminder, err = loadOne(reminderTableStem)
	if err != nil {
		return nil, nil, nil, err
	}
	return passives, stats, reminder, nil
}

func dumpOneTree(ctx context.Context, fs *vfs.FS, edition int, wantGraphType uint8, archivePath string, passives, stats, reminder *dat.ApplyResult, outDir string) error {
	raw, err := fs.Read(ctx, archivePath)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	graph, err := psg.Parse(raw, psg.Edition(edition))
	if err != nil {
		return fmt.Errorf("parsing graph: %w", err)
	}
	if graph.GraphType != wantGraphType {
		return fmt.Errorf("graph_type %d does not match requested dump (%d)", graph.GraphType, wantGraphType)
	}

	tree, err := psgtree.Build(graph, passives, stats, reminder)
	if err != nil {
		return fmt.Errorf("joining tables: %w", err)
	}

	stem := tableStem(archivePath)
	dest := filepath.Join(outDir, stem+".json")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	encoded, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	if err := os.WriteFile(dest, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}
