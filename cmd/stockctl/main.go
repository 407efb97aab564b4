package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stockwise/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("stockctl failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stockctl",
		Usage: "Run inventory analytics over spreadsheet exports",
		Flags: sourceFlags(),
		Before: func(c *cli.Context) error {
			// stdout carries CSV output
			logger.ConfigureOutput(os.Stderr, c.String("log-level"), "console")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "forecast",
				Usage:  "Print replenishment recommendations as CSV",
				Flags:  append(forecastFlags(), outputFlags()...),
				Action: runForecast,
			},
			{
				Name:   "series",
				Usage:  "Print the cumulative inventory series as CSV",
				Flags:  append(seriesFlags(), outputFlags()...),
				Action: runSeries,
			},
			{
				Name:   "costs",
				Usage:  "Print supplier unit cost series as CSV",
				Flags:  append(costFlags(), outputFlags()...),
				Action: runCosts,
			},
			{
				Name:   "import",
				Usage:  "Load the dataset tables into postgres",
				Action: runImport,
			},
		},
	}
}
