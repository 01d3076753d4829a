package cmd

import (
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/copperline-io/ferry/cli/prompt"
	"github.com/copperline-io/ferry/cli/render"
	"github.com/copperline-io/ferry/engine"
	"github.com/copperline-io/ferry/enrich"
	"github.com/copperline-io/ferry/log"
	"github.com/copperline-io/ferry/metrics"
	"github.com/copperline-io/ferry/types"
)

// EnrichResponse is the response for the enrich command.
type EnrichResponse struct {
	RecordID string `json:"record_id"`
	Object   string `json:"object"`
	Applied  bool   `json:"applied"`
}

// EnrichCommand returns the enrich command: scrape public data for one
// record and apply the confirmed field changes.
func EnrichCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "Record Id to enrich",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "object",
			Usage:    "Object type (e.g. Account, Contact, Lead)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "fields",
			Usage: "Comma-separated fields to consider (default from config or built-ins)",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Apply changes without prompting",
		},
	}
	flags = append(flags, CommonFlags()...)

	return &cli.Command{
		Name:   "enrich",
		Usage:  "Enrich one record from public web data",
		Flags:  flags,
		Action: enrichAction,
	}
}

func enrichAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	object := c.String("object")
	recordID := c.String("id")

	meta := types.NewRunMeta(object, "")
	logger := log.NewLogger(meta)
	collector := metrics.NewCollector(object, string(types.OpUpdate), meta.RunID)

	client, sessions, err := buildStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitAuth)
	}

	var decider engine.Decider
	if c.Bool("yes") || !isTTY(os.Stdin) {
		decider = engine.AutoDecider{}
	} else {
		decider = prompt.NewInteractive()
	}

	// Single-record updates dispatch one chunk of one row.
	dispatcher, err := engine.NewDispatcher(client, sessions, nil, logger, collector, engine.DispatchConfig{BatchSize: 1})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	scraper := enrich.NewWebScraper(enrich.WebScraperConfig{
		Timeout: cfg.API.Timeout.Duration,
	})
	pipeline := enrich.NewPipeline(client, dispatcher, scraper, decider, logger, cfg.Enrichment.Fields)

	ctx, cancel := signalContext()
	defer cancel()

	applied, err := pipeline.Enrich(ctx, recordID, object, splitFields(c.String("fields")))
	if err != nil {
		return cli.Exit(err.Error(), exitCodeFor(err))
	}

	return r.Render(EnrichResponse{
		RecordID: recordID,
		Object:   object,
		Applied:  applied,
	})
}

// splitFields parses a comma-separated field list. Empty input means
// nil, letting the pipeline fall back to the configured allow-list.
func splitFields(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}
