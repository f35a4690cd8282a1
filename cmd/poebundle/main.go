// Command poebundle is the CLI surface over the archive toolkit (spec §6):
// list/extract/cat/dump_tables/dump_art/dump_trees/dump_maps, each taking
// glob patterns against the virtual filesystem's path list.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/user/poebundle/pkg/loader"
	"github.com/user/poebundle/pkg/patch"
	"github.com/user/poebundle/pkg/schema"
	"github.com/user/poebundle/pkg/vfs"
)

// globalFlags holds the root command's persistent flags, filled in by cobra.
// The one package-level value lives only in this command package; the pkg/
// packages never read it and receive configuration through constructor
// arguments (the verbosity flag reaches them as the logger's level).
type globalFlags struct {
	install    string
	cdn        string
	patchID    string
	cacheDir   string
	schemaURL  string
	cacheBytes int64
	verbose    bool
}

var flags globalFlags

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poebundle",
		Short:         "Extract and translate content from the game's bundle archive",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flags.install, "install", "", "local game install directory (takes precedence over -cdn)")
	root.PersistentFlags().StringVar(&flags.cdn, "cdn", "", "CDN base URL (resolved automatically from -patch if both this and -install are empty)")
	root.PersistentFlags().StringVar(&flags.patchID, "patch", "2", `patch identity: "1", "2", or an exact client version`)
	root.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", defaultCacheDir(), "on-disk cache directory for CDN bodies and schema JSON")
	root.PersistentFlags().StringVar(&flags.schemaURL, "schema-url", "", "URL of the table-schema JSON (required for dump_tables/dump_trees/dump_maps)")
	root.PersistentFlags().Int64Var(&flags.cacheBytes, "cache-budget", 512<<20, "byte budget for the decompressed bundle-payload cache (0 = unbounded)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newListCmd(),
		newExtractCmd(),
		newCatCmd(),
		newDumpTablesCmd(),
		newDumpTreesCmd(),
		newDumpMapsCmd(),
		newDumpArtCmd(),
	)
	return root
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".poebundle-cache"
	}
	return filepath.Join(dir, "poebundle")
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	if flags.verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// buildFS constructs the virtual filesystem session from the root flags: a
// local install directory if given, otherwise a CDN backend whose base URL
// is either given directly or resolved via the patch-server handshake.
func buildFS(ctx context.Context, logger *logrus.Logger) (*vfs.FS, error) {
	backend, err := buildBackend(ctx, logger)
	if err != nil {
		return nil, err
	}
	return vfs.New(backend, flags.cacheBytes, logger), nil
}

func buildBackend(ctx context.Context, logger *logrus.Logger) (loader.Backend, error) {
	if flags.install != "" {
		return loader.Local{InstallDir: flags.install}, nil
	}

	base := flags.cdn
	if base == "" {
		id, err := patch.Parse(flags.patchID)
		if err != nil {
			return nil, fmt.Errorf("parsing -patch: %w", err)
		}
		if dir, ok := patch.DiscoverLocalInstall(id); ok {
			logger.WithField("dir", dir).Info("poebundle: using discovered local install")
			return loader.Local{InstallDir: dir}, nil
		}

		resolveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		resolved, err := patch.ResolveBaseURL(resolveCtx, id, patch.ResolverConfig{ReadTimeout: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("resolving CDN base URL: %w", err)
		}
		return loader.NewCDN(resolved, flags.cacheDir, logger), nil
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing -cdn: %w", err)
	}
	return loader.NewCDN(parsed, flags.cacheDir, logger), nil
}

// buildSchemaProvider requires -schema-url to be set; dump_* commands that
// need a schema fail clearly when it is absent rather than silently
// stubbing one out (SPEC_FULL.md's AMBIENT STACK "CLI" note).
func buildSchemaProvider() (schema.Provider, error) {
	if flags.schemaURL == "" {
		return nil, fmt.Errorf("no schema provider configured: pass -schema-url")
	}
	return schema.NewURLProvider(flags.schemaURL, flags.cacheDir), nil
}

func activeEdition() (int, error) {
	id, err := patch.Parse(flags.patchID)
	if err != nil {
		return 0, err
	}
	return id.Major()
}
