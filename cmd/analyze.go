package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lsst-sqre/lsst-io-analysis/internal/config"
	collyfetcher "github.com/lsst-sqre/lsst-io-analysis/internal/fetcher/colly"
	"github.com/lsst-sqre/lsst-io-analysis/internal/ingest"
	"github.com/lsst-sqre/lsst-io-analysis/internal/limiter"
	"github.com/lsst-sqre/lsst-io-analysis/internal/logging"
	"github.com/lsst-sqre/lsst-io-analysis/internal/metrics"
	"github.com/lsst-sqre/lsst-io-analysis/internal/policy/ratelimit"
	"github.com/lsst-sqre/lsst-io-analysis/internal/project"
	"github.com/lsst-sqre/lsst-io-analysis/internal/report"
	"github.com/lsst-sqre/lsst-io-analysis/internal/search"
	"github.com/lsst-sqre/lsst-io-analysis/internal/storage"
)

// newAnalyzeCmd creates the 'analyze' subcommand.
func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Inventory LTD products and report them",
		Long: `Lists the LTD product catalog, ingests every product with bounded
concurrency and prints a summary table. When an output path is given the
records are also written as CSV, either to a local file or to gs://bucket/object.

Search enrichment is enabled when both an Algolia application id and API key
are provided, via flags or the ALGOLIA_ID and ALGOLIA_KEY environment variables.`,
		Args: cobra.NoArgs,
		RunE: runAnalyze,
	}

	flags := cmd.Flags()
	flags.String("ltd-base-url", ingest.DefaultCatalogBaseURL, "LTD Keeper API root")
	flags.Int("concurrency", limiter.DefaultSize, "maximum number of products ingested at once")
	flags.Bool("fail-fast", false, "abort the run on the first product failure")
	flags.String("algolia-id", "", "Algolia application id (env ALGOLIA_ID)")
	flags.String("algolia-key", "", "Algolia API key (env ALGOLIA_KEY)")
	flags.String("algolia-index", search.DefaultIndex, "Algolia index name (env ALGOLIA_INDEX)")
	flags.StringP("output", "o", "", "write the CSV report to this path or gs:// URL")

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running analysis.")

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, runErr := pipeline.Run(ctx)
	pushMetrics(ctx, cfg, logger)
	if runErr != nil {
		return fmt.Errorf("run analysis: %w", runErr)
	}

	fmt.Fprint(out, report.RenderConsole(result.Records, result.Failures))

	if cfg.Output.Path != "" {
		uri, err := writeCSV(ctx, cfg.Output.Path, result.Records, logger)
		if err != nil {
			return err
		}
		logger.Info("report written", zap.String("uri", uri), zap.Int("records", len(result.Records)))
	}

	fmt.Fprintln(out, "Complete.")
	return nil
}

func buildPipeline(cfg config.Config, logger *zap.Logger) (*ingest.Pipeline, error) {
	pacer := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, pacer)

	lim, err := limiter.New(cfg.Ingest.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("init limiter: %w", err)
	}

	lookup, err := buildLookup(cfg, logger)
	if err != nil {
		return nil, err
	}

	return ingest.New(fetcher, lookup, lim, ingest.Config{
		CatalogBaseURL: cfg.LTD.BaseURL,
		FailFast:       cfg.Ingest.FailFast,
	}, logger.Named("ingest")), nil
}

// buildLookup returns nil when search enrichment is not configured.
func buildLookup(cfg config.Config, logger *zap.Logger) (ingest.MetadataLookup, error) {
	if !cfg.SearchEnabled() {
		logger.Info("search enrichment disabled; set ALGOLIA_ID and ALGOLIA_KEY to enable it")
		return nil, nil
	}
	client, err := search.NewAlgolia(search.Config{
		AppID:     cfg.Algolia.ID,
		APIKey:    cfg.Algolia.Key,
		IndexName: cfg.Algolia.Index,
	}, logger.Named("search"))
	if err != nil {
		return nil, fmt.Errorf("init search client: %w", err)
	}
	return client, nil
}

func writeCSV(ctx context.Context, path string, records []project.Product, logger *zap.Logger) (string, error) {
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, records); err != nil {
		return "", err
	}

	output, err := storage.Open(ctx, path, logger)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := output.Close(); cerr != nil {
			logger.Warn("failed to close output", zap.Error(cerr))
		}
	}()

	uri, err := output.Save(ctx, report.ContentType, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return uri, nil
}

func pushMetrics(ctx context.Context, cfg config.Config, logger *zap.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", zap.String("url", cfg.Metrics.PushgatewayURL), zap.Error(err))
	}
}
