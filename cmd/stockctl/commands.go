package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stockwise/internal/analytics"
	"github.com/andresuchdata/stockwise/internal/cache"
	"github.com/andresuchdata/stockwise/internal/config"
	"github.com/andresuchdata/stockwise/internal/domain"
	"github.com/andresuchdata/stockwise/internal/export"
	"github.com/andresuchdata/stockwise/internal/repository/postgres"
	"github.com/andresuchdata/stockwise/internal/service"
	"github.com/andresuchdata/stockwise/internal/source"
	"github.com/andresuchdata/stockwise/internal/storage"
	"github.com/andresuchdata/stockwise/pkg/logger"
)

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "source", Usage: "file, object, drive or postgres", Value: source.KindFile, EnvVars: []string{"SOURCE_KIND"}},
		&cli.StringFlag{Name: "data-dir", Usage: "Directory holding the spreadsheets (file source)", EnvVars: []string{"SOURCE_DATA_DIR"}},
		&cli.StringFlag{Name: "items", Usage: "Items master file or object key", EnvVars: []string{"SOURCE_ITEMS_PATH"}},
		&cli.StringFlag{Name: "catalog", Usage: "Catalog file or object key", EnvVars: []string{"SOURCE_CATALOG_PATH"}},
		&cli.StringFlag{Name: "movements", Usage: "Movements file or object key", EnvVars: []string{"SOURCE_MOVEMENTS_PATH"}},
		&cli.StringFlag{Name: "sales", Usage: "Sales file or object key", EnvVars: []string{"SOURCE_SALES_PATH"}},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Usage: "Write CSV to this file instead of stdout"},
		&cli.StringFlag{Name: "upload", Usage: "Also store the CSV under this object key"},
	}
}

func itemFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "item", Usage: "Restrict to item codes (repeatable)"}
}

func granularityFlag() cli.Flag {
	return &cli.StringFlag{Name: "granularity", Value: string(analytics.Month), Usage: "day, week, month or year"}
}

func forecastFlags() []cli.Flag {
	return []cli.Flag{
		itemFlag(),
		&cli.IntFlag{Name: "window-months"},
		&cli.Float64Flag{Name: "target-months"},
		&cli.Float64Flag{Name: "lead-time-months"},
		&cli.Float64Flag{Name: "buffer-months"},
		&cli.StringSliceFlag{Name: "motive", Usage: "Count only outgoing movements with these motives"},
		&cli.BoolFlag{Name: "brands", Usage: "Print the per-brand rollup"},
	}
}

func seriesFlags() []cli.Flag {
	return []cli.Flag{
		itemFlag(),
		granularityFlag(),
		&cli.TimestampFlag{Name: "start", Layout: "2006-01-02", Timezone: time.UTC},
		&cli.TimestampFlag{Name: "end", Layout: "2006-01-02", Timezone: time.UTC},
	}
}

func costFlags() []cli.Flag {
	return []cli.Flag{itemFlag(), granularityFlag()}
}

// loadConfig overlays command line flags on the environment configuration.
func loadConfig(c *cli.Context) *config.Config {
	cfg := config.Load()
	cfg.Source.Kind = c.String("source")
	overrides := map[string]*string{
		"data-dir":  &cfg.Source.DataDir,
		"items":     &cfg.Source.ItemsPath,
		"catalog":   &cfg.Source.CatalogPath,
		"movements": &cfg.Source.MovementsPath,
		"sales":     &cfg.Source.SalesPath,
	}
	for flag, target := range overrides {
		if c.IsSet(flag) {
			*target = c.String(flag)
		}
	}
	return cfg
}

func filterOf(values []string) analytics.Filter[string] {
	if len(values) == 0 {
		return analytics.All[string]()
	}
	return analytics.Subset(values...)
}

// forecastQuery keeps unset flags nil so the configured defaults apply.
func forecastQuery(c *cli.Context) domain.ForecastQuery {
	q := domain.ForecastQuery{Items: filterOf(c.StringSlice("item"))}
	if c.IsSet("window-months") {
		q.WindowMonths = domain.Ptr(c.Int("window-months"))
	}
	if c.IsSet("target-months") {
		q.TargetMonths = domain.Ptr(c.Float64("target-months"))
	}
	if c.IsSet("lead-time-months") {
		q.LeadTimeMonths = domain.Ptr(c.Float64("lead-time-months"))
	}
	if c.IsSet("buffer-months") {
		q.BufferMonths = domain.Ptr(c.Float64("buffer-months"))
	}
	switch {
	case c.Bool("all-motives"):
		q.Motives = domain.Ptr(analytics.All[string]())
	case c.IsSet("motive"):
		q.Motives = domain.Ptr(filterOf(c.StringSlice("motive")))
	}
	return q
}

// loadService builds a service over the selected source and loads it once.
func loadService(c *cli.Context, cfg *config.Config) (*service.AnalyticsService, func(), error) {
	src, closeFn, err := source.New(c.Context, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := service.NewAnalyticsService(src, cache.NewNoopAnalyticsCache(), service.ForecastDefaults{
		WindowMonths:   cfg.Forecast.WindowMonths,
		TargetMonths:   cfg.Forecast.TargetMonths,
		LeadTimeMonths: cfg.Forecast.LeadTimeMonths,
		BufferMonths:   cfg.Forecast.BufferMonths,
		Motives:        cfg.Forecast.Motives,
	})
	summary, err := svc.Refresh(c.Context)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	logger.Log.Info().Int("items", summary.Items).Int("movements", summary.Movements).Msg("dataset loaded")
	return svc, closeFn, nil
}

// emit writes the rendered CSV to --out or stdout and optionally uploads it.
func emit(c *cli.Context, cfg *config.Config, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	} else if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return err
	}

	key := strings.TrimSpace(c.String("upload"))
	if key == "" {
		return nil
	}
	store, err := storage.New(cfg.Storage, cfg.Source.DataDir)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if err := store.PutObject(c.Context, key, buf.Bytes(), "text/csv"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	logger.Log.Info().Str("key", key).Int("bytes", buf.Len()).Msg("csv uploaded")
	return nil
}

func runForecast(c *cli.Context) error {
	cfg := loadConfig(c)
	svc, closeFn, err := loadService(c, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	q := forecastQuery(c)
	if err := service.ValidateForecastQuery(q); err != nil {
		return err
	}
	forecast, err := svc.Forecast(c.Context, q)
	if err != nil {
		return err
	}
	if forecast == nil {
		logger.Log.Warn().Msg("no movements loaded, forecast is empty")
	}

	return emit(c, cfg, func(w io.Writer) error {
		if c.Bool("brands") {
			return export.WriteBrandCSV(w, forecast)
		}
		return export.WriteReplenishmentCSV(w, forecast)
	})
}

func runSeries(c *cli.Context) error {
	g, err := analytics.ParseGranularity(c.String("granularity"))
	if err != nil {
		return err
	}
	cfg := loadConfig(c)
	svc, closeFn, err := loadService(c, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	q := domain.SeriesQuery{Granularity: g, Items: filterOf(c.StringSlice("item"))}
	q.RangeStart = c.Timestamp("start")
	if end := c.Timestamp("end"); end != nil {
		eod := end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		q.RangeEnd = &eod
	}

	series, err := svc.InventorySeries(c.Context, q)
	if err != nil {
		return err
	}
	return emit(c, cfg, func(w io.Writer) error { return export.WriteSeriesCSV(w, series) })
}

func runCosts(c *cli.Context) error {
	g, err := analytics.ParseGranularity(c.String("granularity"))
	if err != nil {
		return err
	}
	cfg := loadConfig(c)
	svc, closeFn, err := loadService(c, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	costs, err := svc.SupplierCosts(c.Context, domain.CostQuery{Granularity: g, Items: filterOf(c.StringSlice("item"))})
	if err != nil {
		return err
	}
	return emit(c, cfg, func(w io.Writer) error { return export.WriteSupplierCostCSV(w, costs) })
}

// runImport copies every table from the selected source into postgres.
func runImport(c *cli.Context) error {
	cfg := loadConfig(c)
	src, closeSrc, err := source.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := postgres.NewRowsRepository(db, cfg.Database.Schema)
	ctx := c.Context
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	return importTables(ctx, src, repo)
}

type tableWriter interface {
	ReplaceTable(ctx context.Context, table analytics.Table, rows []analytics.Row) error
}

func importTables(ctx context.Context, src service.RowSource, dst tableWriter) error {
	for _, table := range analytics.Tables {
		rows, err := src.LoadTable(ctx, table)
		if err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		if err := dst.ReplaceTable(ctx, table, rows); err != nil {
			return fmt.Errorf("import %s: %w", table, err)
		}
		logger.Log.Info().Str("table", string(table)).Int("rows", len(rows)).Msg("table imported")
	}
	return nil
}
