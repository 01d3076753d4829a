package cmd

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/copperline-io/ferry/cli/render"
	"github.com/copperline-io/ferry/engine"
	"github.com/copperline-io/ferry/log"
	"github.com/copperline-io/ferry/types"
)

// QueryResponse is the response for the query command.
type QueryResponse struct {
	Rows   int    `json:"rows"`
	Output string `json:"output"`
}

// QueryCommand returns the query command: run a SOQL query and export
// the result set to a CSV file.
func QueryCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "query",
			Aliases:  []string{"q"},
			Usage:    "SOQL query to run",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "Output CSV path",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "Field delimiter (overrides config)",
		},
	}
	flags = append(flags, CommonFlags()...)

	return &cli.Command{
		Name:   "query",
		Usage:  "Export a SOQL result set to CSV",
		Flags:  flags,
		Action: queryAction,
	}
}

func queryAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if c.String("delimiter") != "" {
		cfg.CSV.Delimiter = c.String("delimiter")
	}
	delim, err := cfg.CSV.DelimiterRune()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	soql := c.String("query")
	meta := types.NewRunMeta(objectFromSOQL(soql), "")
	logger := log.NewLogger(meta)

	client, _, err := buildStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitAuth)
	}

	ctx, cancel := signalContext()
	defer cancel()

	exporter := engine.NewExporter(client, logger, delim)
	rows, err := exporter.Export(ctx, soql, c.String("output"))
	if err != nil {
		return cli.Exit(err.Error(), exitCodeFor(err))
	}

	if rows > 0 {
		archiveArtifact(ctx, cfg, logger, meta, c.String("output"))
	}

	return r.Render(QueryResponse{Rows: rows, Output: c.String("output")})
}

// objectFromSOQL extracts the FROM object for run identity. Best
// effort only; an empty string is fine for logging.
func objectFromSOQL(soql string) string {
	fields := strings.Fields(soql)
	for i, f := range fields {
		if strings.EqualFold(f, "from") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
