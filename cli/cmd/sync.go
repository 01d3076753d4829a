package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/copperline-io/ferry/adapter"
	"github.com/copperline-io/ferry/cli/config"
	"github.com/copperline-io/ferry/cli/prompt"
	"github.com/copperline-io/ferry/cli/render"
	"github.com/copperline-io/ferry/csvio"
	"github.com/copperline-io/ferry/engine"
	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/log"
	"github.com/copperline-io/ferry/metrics"
	"github.com/copperline-io/ferry/types"
)

// SyncCommand returns the sync command: push a delimited file to the
// remote object with the selected bulk operation.
func SyncCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Usage:    "Path to the source CSV file",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "object",
			Usage:    "Target object (e.g. Account, Contact)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "operation",
			Usage:    "Bulk operation: insert, update, upsert, delete",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "external-id",
			Usage: "External id field (required for upsert)",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Records per chunk (max 200, default from config)",
		},
		&cli.StringFlag{
			Name:  "mapping",
			Usage: "Path to a YAML column mapping file",
		},
		&cli.BoolFlag{
			Name:  "auto",
			Usage: "Map every column to the same-named field without prompting",
		},
		&cli.StringFlag{
			Name:  "encoding",
			Usage: "Source file encoding (overrides config)",
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "Field delimiter (overrides config)",
		},
		&cli.StringFlag{
			Name:  "error-dir",
			Usage: "Directory for the error file (overrides config)",
		},
		&cli.StringFlag{
			Name:  "results-dir",
			Usage: "Directory for the success results file (overrides config)",
		},
		&cli.BoolFlag{
			Name:  "no-success-file",
			Usage: "Skip writing the per-run success results file",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the summary output",
		},
	}
	flags = append(flags, CommonFlags()...)

	return &cli.Command{
		Name:   "sync",
		Usage:  "Push a CSV file to the remote org",
		Flags:  flags,
		Action: syncAction,
	}
}

func syncAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	op, err := types.ParseOperation(c.String("operation"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if c.String("delimiter") != "" {
		cfg.CSV.Delimiter = c.String("delimiter")
	}
	if c.String("encoding") != "" {
		cfg.CSV.Encoding = c.String("encoding")
	}
	if c.String("error-dir") != "" {
		cfg.CSV.ErrorDirectory = c.String("error-dir")
	}
	if c.String("results-dir") != "" {
		cfg.CSV.ResultsDirectory = c.String("results-dir")
	}
	if cfg.CSV.ResultsDirectory == "" {
		cfg.CSV.ResultsDirectory = cfg.CSV.ErrorDirectory
	}
	delim, err := cfg.CSV.DelimiterRune()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	sourcePath := c.String("file")
	table, err := csvio.ReadFile(sourcePath, csvio.Options{
		Encoding:  cfg.CSV.Encoding,
		Delimiter: delim,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read %s: %v", sourcePath, err), exitIO)
	}

	mapping, err := buildFieldMapping(c, table.Columns)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	object := c.String("object")
	meta := types.NewRunMeta(object, op)
	logger := log.NewLogger(meta)
	collector := metrics.NewCollector(object, string(op), meta.RunID)
	collector.AddRecordsRead(int64(len(table.Rows)))

	client, sessions, err := buildStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitAuth)
	}

	sink := csvio.NewFileSink(cfg.CSV.ErrorDirectory, filepath.Base(sourcePath), table.Columns, delim, meta)
	defer iox.DiscardErr(sink.Close)

	var successes engine.SuccessSink
	if !c.Bool("no-success-file") {
		sf := csvio.NewSuccessFile(cfg.CSV.ResultsDirectory, filepath.Base(sourcePath), table.Columns, delim, meta)
		defer iox.DiscardErr(sf.Close)
		successes = sf
	}

	batchSize := cfg.API.BatchSize
	if c.Int("batch-size") > 0 {
		batchSize = c.Int("batch-size")
	}

	dispatcher, err := engine.NewDispatcher(client, sessions, sink, logger, collector, engine.DispatchConfig{
		BatchSize: batchSize,
		Successes: successes,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, dispatchErr := dispatcher.Dispatch(ctx, object, op, table.Rows, mapping, c.String("external-id"))
	finishedAt := time.Now()

	snap := collector.Snapshot()
	logger.Info("run counters", map[string]any{
		"records_read": snap.RecordsRead,
		"chunks":       snap.ChunksSubmitted,
		"retries":      snap.RetriesScheduled,
		"reauths":      snap.Reauths,
		"succeeded":    snap.RecordsSucceeded,
		"failed":       snap.RecordsFailed,
	})

	if summary != nil && !c.Bool("quiet") {
		view := render.SummaryView{
			RunID:       meta.RunID,
			Object:      object,
			Operation:   string(op),
			Total:       summary.Total,
			Succeeded:   summary.Succeeded,
			Failed:      summary.Failed,
			Chunks:      snap.ChunksSubmitted,
			Retries:     snap.RetriesScheduled,
			Reauths:     snap.Reauths,
			ErrorFile:   summary.ErrorFile,
			SuccessFile: summary.SuccessFile,
			DurationMs:  finishedAt.Sub(meta.StartedAt).Milliseconds(),
		}
		if err := r.RenderSummary(view); err != nil {
			return cli.Exit(err.Error(), exitIO)
		}
	}

	if summary != nil {
		publishCompletion(ctx, cfg, logger, meta, summary, finishedAt)
		archiveArtifact(ctx, cfg, logger, meta, summary.ErrorFile)
		archiveArtifact(ctx, cfg, logger, meta, summary.SuccessFile)
	}

	if dispatchErr != nil {
		if errors.Is(dispatchErr, context.Canceled) {
			return cli.Exit("run canceled", 130)
		}
		return cli.Exit(dispatchErr.Error(), exitCodeFor(dispatchErr))
	}
	return nil
}

// buildFieldMapping negotiates the column mapping. Precedence: mapping
// file, then --auto, then the interactive prompt when on a terminal.
func buildFieldMapping(c *cli.Context, columns []string) (*engine.FieldMapping, error) {
	var decider engine.Decider
	switch {
	case c.String("mapping") != "":
		static, err := engine.LoadStaticDecider(c.String("mapping"))
		if err != nil {
			return nil, err
		}
		decider = static
	case c.Bool("auto") || !isTTY(os.Stdin):
		decider = engine.AutoDecider{}
	default:
		decider = prompt.NewInteractive()
	}
	return engine.BuildMapping(columns, decider)
}

// publishCompletion sends the completion event when an adapter is
// configured. Publish failures are logged, never fatal for the run.
func publishCompletion(ctx context.Context, cfg *config.Config, logger *log.Logger, meta *types.RunMeta, summary *types.Summary, finishedAt time.Time) {
	ad, err := buildAdapter(cfg)
	if err != nil {
		logger.Warn("adapter setup failed", map[string]any{"error": err.Error()})
		return
	}
	if ad == nil {
		return
	}
	defer iox.DiscardErr(ad.Close)

	event := adapter.NewSyncCompletedEvent(meta, summary, finishedAt)
	if err := ad.Publish(ctx, event); err != nil {
		logger.Warn("completion event publish failed", map[string]any{"error": err.Error()})
	}
}

// archiveArtifact uploads a run artifact (error file or export) when
// archiving is configured.
func archiveArtifact(ctx context.Context, cfg *config.Config, logger *log.Logger, meta *types.RunMeta, path string) {
	if path == "" || cfg.Storage.Backend == "" || cfg.Storage.Backend == "none" {
		return
	}

	archiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		logger.Warn("archive setup failed", map[string]any{"error": err.Error()})
		return
	}
	defer iox.DiscardErr(archiver.Close)

	location, err := archiver.Store(ctx, meta, path)
	if err != nil {
		logger.Warn("archive failed", map[string]any{"error": err.Error(), "path": path})
		return
	}
	logger.Info("artifact archived", map[string]any{"location": location})
}
