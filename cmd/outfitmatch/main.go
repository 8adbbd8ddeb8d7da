// Package main is the outfitmatch CLI: the HTTP server plus the offline
// ingestion and graph maintenance jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/outfitmatch-backend/internal/app"
	"github.com/yungbote/outfitmatch-backend/internal/ingestion/pipeline"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "outfitmatch",
		Short:         "Outfit matching service: image + caption search over a fashion graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $"+app.ConfigPathEnv+")")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("outfitmatch v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init-schema",
		Short: "Create graph constraints, indexes and seed nodes, then print a verification report",
		RunE:  runInitSchema,
	})

	catalogCmd := &cobra.Command{
		Use:   "ingest-catalog",
		Short: "Tag and load products from a CSV export or the legacy Postgres table",
		RunE:  runIngestCatalog,
	}
	catalogCmd.Flags().String("csv", "", "Catalog CSV path")
	catalogCmd.Flags().Bool("postgres", false, "Read the legacy products table instead of a CSV")
	catalogCmd.Flags().Int("limit", 0, "Read at most this many rows (0 = all)")
	catalogCmd.Flags().Bool("skip-prediction", false, "Re-validate stored predicted_style instead of calling the model")
	catalogCmd.Flags().String("tagged-output", "", "Write the tagged catalog as CSV to this path or gs:// URI")
	catalogCmd.Flags().Bool("embed-images", false, "Also embed product images into the product index")
	rootCmd.AddCommand(catalogCmd)

	postsCmd := &cobra.Command{
		Use:   "ingest-posts",
		Short: "Tag, embed and load social posts from a JSONL file",
		RunE:  runIngestPosts,
	}
	postsCmd.Flags().String("file", "", "Posts JSONL path")
	postsCmd.Flags().String("source", "", "Source label recorded in reports and events (default: file name)")
	rootCmd.AddCommand(postsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "build-relationships",
		Short: "Derive recommendation relationships and print graph statistics",
		RunE:  runBuildRelationships,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, builds the logger and wires the app. The returned
// context is cancelled on SIGINT/SIGTERM.
func bootstrap(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, log, cfg, version)
	if err != nil {
		stop()
		log.Sync()
		return nil, nil, nil, err
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.DrainTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
		stop()
	}
	return ctx, a, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	return a.Serve(ctx)
}

func runInitSchema(cmd *cobra.Command, args []string) error {
	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Services.Store.InitSchema(ctx, a.Cfg.Index.Dim); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	rep, err := a.Services.Store.VerifySchema(ctx)
	if err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}
	fmt.Println("Nodes:")
	printCounts(rep.Nodes)
	fmt.Println("Relationships:")
	printCounts(rep.Relationships)
	fmt.Printf("Indexes: %s\n", strings.Join(rep.Indexes, ", "))
	return nil
}

func runIngestCatalog(cmd *cobra.Command, args []string) error {
	csvPath, _ := cmd.Flags().GetString("csv")
	fromPostgres, _ := cmd.Flags().GetBool("postgres")
	limit, _ := cmd.Flags().GetInt("limit")
	skipPrediction, _ := cmd.Flags().GetBool("skip-prediction")
	taggedOutput, _ := cmd.Flags().GetString("tagged-output")
	embedImages, _ := cmd.Flags().GetBool("embed-images")
	if (csvPath == "") == !fromPostgres {
		return fmt.Errorf("pass exactly one of --csv or --postgres")
	}

	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	if !skipPrediction && !a.Clients.LLMReady {
		return fmt.Errorf("%w; rerun with --skip-prediction to reuse stored styles", app.ErrLLMNotConfigured)
	}

	var src pipeline.CatalogSource = pipeline.CSVSource{Path: csvPath, Limit: limit}
	if fromPostgres {
		pg, err := app.OpenPostgres(a.Log, a.Cfg)
		if err != nil {
			return err
		}
		defer pg.Close()
		src = pipeline.PostgresSource{DB: pg.DB(), Limit: limit}
	}

	rep, err := a.Services.Pipeline.IngestCatalog(ctx, src, pipeline.CatalogOptions{
		SkipPrediction: skipPrediction,
		TaggedOutput:   taggedOutput,
		EmbedImages:    embedImages,
	})
	printReport(rep)
	return err
}

func runIngestPosts(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	source, _ := cmd.Flags().GetString("source")
	if file == "" {
		return fmt.Errorf("--file is required")
	}
	if source == "" {
		source = file
	}

	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := pipeline.ReadPostsFile(ctx, file)
	if err != nil {
		return err
	}
	rep, err := a.Services.Pipeline.IngestPosts(ctx, source, records)
	printReport(rep)
	return err
}

func runBuildRelationships(cmd *cobra.Command, args []string) error {
	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := a.Services.Builder.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("GOES_WITH %d, OUTFIT pairs %d, INSPIRED_BY %d, SIMILAR_STYLE %d (%s)\n",
		rep.GoesWith, rep.OutfitPairs, rep.InspiredBy, rep.StyleSimilarity, rep.Duration.Round(time.Millisecond))
	fmt.Println("Relationship counts:")
	printCounts(rep.Stats.Relationships)
	fmt.Println("Top products by recommendations:")
	for i, p := range rep.Stats.TopProducts {
		fmt.Printf("  %d. %s (%s): %d\n", i+1, p.Name, p.ID, p.Recommendations)
	}
	fmt.Printf("Isolated products: %d\n", rep.Stats.Isolated)
	return nil
}

func printReport(rep pipeline.Report) {
	fmt.Printf("source=%s read=%d tagged=%d revalidated=%d upserted=%d embedded=%d kept=%d no_garment=%d skipped=%d (%s)\n",
		rep.Source, rep.Read, rep.Tagged, rep.Revalidated, rep.Upserted, rep.Embedded, rep.Kept, rep.NoGarment, rep.Skipped, rep.Duration.Round(time.Millisecond))
	for _, w := range rep.Warnings {
		fmt.Println("  warning:", w)
	}
}

func printCounts(counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}
