package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"butterfly/internal/catalog"
	"butterfly/internal/errors"
	"butterfly/internal/logger"
	"butterfly/internal/metrics"
	"butterfly/internal/repository/sqlite"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the reference article catalog",
	Long: `catalog - Manage the reference article catalog

The catalog is a SQLite database of articles with precomputed related keys.
It is loaded from YAML or JSON files and served under /catalog.

Examples:
  butterfly catalog import articles.yaml --db catalog.db
  butterfly catalog export --db catalog.db -o articles.json
  butterfly catalog serve --db catalog.db --watch`,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the catalog with the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogImport,
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog as YAML or JSON",
	RunE:  runCatalogExport,
}

var catalogServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve only the catalog endpoints",
	RunE:  runCatalogServe,
}

var (
	catalogDBFlag     string
	catalogOutFlag    string
	catalogFormatFlag string
	catalogAddrFlag   string
	catalogSourceFlag string
	catalogWatchFlag  bool
)

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogDBFlag, "db", "", "catalog database path (overrides catalog.db_path)")

	catalogExportCmd.Flags().StringVarP(&catalogOutFlag, "output", "o", "", "output file (default stdout)")
	catalogExportCmd.Flags().StringVar(&catalogFormatFlag, "format", "", "yaml or json (default from the output extension)")

	catalogServeCmd.Flags().StringVar(&catalogAddrFlag, "addr", "", "HTTP listen address (overrides server.addr)")
	catalogServeCmd.Flags().StringVar(&catalogSourceFlag, "source", "", "catalog file to load (overrides catalog.source)")
	catalogServeCmd.Flags().BoolVar(&catalogWatchFlag, "watch", false, "reload the source file when it changes")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogExportCmd)
	catalogCmd.AddCommand(catalogServeCmd)
}

func applyCatalogFlags() {
	if catalogDBFlag != "" {
		cfg.Catalog.DBPath = catalogDBFlag
	}
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	applyCatalogFlags()
	if cfg.Catalog.DBPath == ":memory:" {
		return errors.WithHint(errors.New("refusing to import into an in-memory database"), "pass --db or set catalog.db_path")
	}

	repo, err := sqlite.New(cfg.Catalog.DBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer repo.Close()

	svc := catalog.NewService(repo, catalog.Options{ArticleURL: cfg.Catalog.ArticleURL}, nil, logger.Named("catalog"))
	n, err := svc.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d articles into %s\n", n, cfg.Catalog.DBPath)
	return nil
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	applyCatalogFlags()

	repo, err := sqlite.New(cfg.Catalog.DBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer repo.Close()

	format := catalog.Format(catalogFormatFlag)
	if format == "" {
		format = catalog.FormatFromPath(catalogOutFlag)
	}

	out := os.Stdout
	if catalogOutFlag != "" {
		f, err := os.Create(catalogOutFlag)
		if err != nil {
			return errors.Wrap(err, "failed to create output file")
		}
		defer f.Close()
		out = f
	}

	svc := catalog.NewService(repo, catalog.Options{}, nil, logger.Named("catalog"))
	n, err := svc.Export(cmd.Context(), out, format)
	if err != nil {
		return err
	}
	logger.Logger.Infow("Catalog exported", "articles", n, "format", format)
	return nil
}

func runCatalogServe(cmd *cobra.Command, args []string) error {
	applyCatalogFlags()
	if catalogAddrFlag != "" {
		cfg.Server.Addr = catalogAddrFlag
	}
	if catalogSourceFlag != "" {
		cfg.Catalog.Source = catalogSourceFlag
	}
	if cmd.Flags().Changed("watch") {
		cfg.Catalog.Watch = catalogWatchFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector("butterfly")
	svc, closeCatalog, err := openCatalog(ctx, cfg, collector, logger.Named("catalog"))
	if err != nil {
		return err
	}
	defer closeCatalog()

	mux := http.NewServeMux()
	catalog.NewHandler(svc, logger.Named("catalog")).Register(mux)
	mux.Handle("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return listen(ctx, cfg, mux, collector, logger.Named("serve"), nil)
}
