package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/poebundle/pkg/dat"
	"github.com/user/poebundle/pkg/schema"
	"github.com/user/poebundle/pkg/vfs"
)

func newDumpTablesCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "dump_tables <glob...>",
		Short: "Parse matching .datc64 tables against the schema and write them as JSON",
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
				if err := dumpOneTable(ctx, fs, collection, edition, p, outDir); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "dump_tables: %s: %v\n", p, err)
					failures++
				}
			}
			if failures == len(matched) {
				return fmt.Errorf("all %d matched tables failed", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory for JSON tables")
	return cmd
}

// tableStem derives the schema table name from an archive path's file
// name, stripping every extension (".datc64" or the double ".dat.datc64"
// some files carry).
func tableStem(archivePath string) string {
	base := filepath.Base(archivePath)
	for {
		ext := filepath.Ext(base)
		if ext == "" {
			return base
		}
		base = strings.TrimSuffix(base, ext)
	}
}

// dumpOneTable reads, parses, and schema-applies one .datc64 file, then
// writes its rows as a JSON array of column-keyed objects.
func dumpOneTable(ctx context.Context, fs *vfs.FS, collection *schema.Collection, edition int, archivePath, outDir string) error {
	raw, err := fs.Read(ctx, archivePath)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	table, err := dat.ParseRaw(raw)
	if err != nil {
		return fmt.Errorf("parsing table: %w", err)
	}

	stem := tableStem(archivePath)
	tableSchema, ok := collection.For(stem, edition)
	if !ok {
		return fmt.Errorf("no schema entry for table %q (edition %d)", stem, edition)
	}

	applied, err := dat.ApplySchema(table, tableSchema.Columns, nil)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	rows := rowsAsObjects(applied, len(table.Rows))

	dest := filepath.Join(outDir, stem+".json")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	encoded, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	if err := os.WriteFile(dest, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

// rowsAsObjects transposes a schema-applied table's columns into one JSON
// object per row, the shape dump_tables' JSON output and RePoE-style
// tooling both expect.
func rowsAsObjects(applied *dat.ApplyResult, rowCount int) []map[string]any {
	rows := make([]map[string]any, rowCount)
	for i := range rows {
		rows[i] = make(map[string]any, len(applied.Columns))
	}
	for _, col := range applied.Columns {
		for i, v := range col.Values {
			if i >= rowCount {
				break
			}
			rows[i][col.Name] = v
		}
	}
	return rows
}
