package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/stringutils"
	"github.com/go-pkgz/syncs"
	"github.com/jessevdk/go-flags"

	"github.com/pglance/pglance/pkg/bridge"
	"github.com/pglance/pglance/pkg/catalog"
	"github.com/pglance/pglance/pkg/config"
	"github.com/pglance/pglance/pkg/dataset"
	"github.com/pglance/pglance/pkg/scanner"
)

type options struct {
	Positional struct {
		Datasets []string `positional-arg-name:"dataset" description:"dataset path or @name from the catalog"`
	} `positional-args:"yes"`

	Info  bool `long:"info" description:"print the table schema"`
	Stats bool `long:"stats" description:"print table stats"`
	Scan  bool `long:"scan" description:"print table rows as json objects"`
	Hello bool `long:"hello" description:"print the liveness greeting"`

	Limit   int64  `short:"l" long:"limit" default:"-1" description:"max rows to scan, negative means all"`
	CloneTo string `long:"clone-to" description:"copy the dataset to this directory"`

	Register  string `long:"register" description:"register the dataset under this name in the catalog"`
	ListNames bool   `long:"list" description:"list catalog entries"`
	Catalog   string `long:"catalog" env:"PGLANCE_CATALOG" description:"catalog connection string"`

	Config     string `long:"config" env:"PGLANCE_CONFIG" description:"settings file (yaml or toml)"`
	Concurrent int    `short:"c" long:"concurrent" description:"datasets processed in parallel"`
	BatchSize  int    `long:"batch-size" description:"rows per pulled batch"`
	Workers    int    `long:"workers" description:"column converters per batch"`

	JSON    bool `long:"json" description:"machine-readable output"`
	NoColor bool `long:"no-color" env:"PGLANCE_NO_COLOR" description:"disable colorized output"`
	Dbg     bool `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	fmt.Printf("pglance %s\n", revision)

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
	setupLog(opts.Dbg)

	if err := run(opts); err != nil {
		if opts.Dbg {
			log.Panicf("[ERROR] %v", err)
		}
		fmt.Printf("failed, %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, err := makeSettings(opts)
	if err != nil {
		return err
	}

	rt, err := scanner.New(scanner.Opts{BatchSize: settings.BatchSize, Workers: settings.Workers})
	if err != nil {
		return fmt.Errorf("can't make scan runtime: %w", err)
	}
	b := bridge.New(rt)

	if opts.Hello {
		fmt.Println(b.Hello())
		if len(opts.Positional.Datasets) == 0 {
			return nil
		}
	}

	store, err := makeCatalog(settings.Catalog)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close() // nolint
	}

	if opts.ListNames {
		return listCatalog(store)
	}

	paths, err := resolvePaths(store, stringutils.DeDup(opts.Positional.Datasets))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no dataset given")
	}

	if opts.Register != "" {
		if len(paths) != 1 {
			return fmt.Errorf("register expects a single dataset, got %d", len(paths))
		}
		if store == nil {
			return fmt.Errorf("register needs a catalog, set --catalog")
		}
		return store.Register(opts.Register, paths[0])
	}

	if opts.CloneTo != "" {
		if len(paths) != 1 {
			return fmt.Errorf("clone expects a single dataset, got %d", len(paths))
		}
		return dataset.Copy(paths[0], opts.CloneTo)
	}

	// with no operation picked, show the schema
	if !opts.Info && !opts.Stats && !opts.Scan {
		opts.Info = true
	}

	wg := syncs.NewErrSizedGroup(settings.Concurrent, syncs.Context(ctx), syncs.Preemptive)
	for _, path := range paths {
		path := path
		wg.Go(func() error {
			return processDataset(ctx, b, opts, path, newDSWriter(os.Stdout, path, settings.NoColor))
		})
	}
	return wg.Wait()
}

// processDataset runs the picked operations for one dataset, in the fixed
// info, stats, scan order.
func processDataset(ctx context.Context, b *bridge.Bridge, opts options, path string, out *dsWriter) error {
	if opts.Info {
		cols, err := b.TableInfo(path)
		if err != nil {
			return fmt.Errorf("can't get table info for %s: %w", path, err)
		}
		if opts.JSON {
			if err := out.PrintJSON(cols); err != nil {
				return err
			}
		} else {
			for _, c := range cols {
				nullable := "not null"
				if c.Nullable {
					nullable = "nullable"
				}
				out.Printf("%-24s %-12s %s", c.ColumnName, c.DataType, nullable)
			}
		}
	}

	if opts.Stats {
		st, err := b.TableStats(path)
		if err != nil {
			return fmt.Errorf("can't get table stats for %s: %w", path, err)
		}
		if opts.JSON {
			if err := out.PrintJSON(st); err != nil {
				return err
			}
		} else {
			out.Printf("version: %d, rows: %d, columns: %d", st.Version, st.NumRows, st.NumColumns)
		}
	}

	if opts.Scan {
		var limit *int64
		if opts.Limit >= 0 {
			limit = &opts.Limit
		}
		rows, err := b.ScanJSONB(ctx, path, limit)
		if err != nil {
			return fmt.Errorf("can't scan %s: %w", path, err)
		}
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("can't encode row from %s: %w", path, err)
			}
			out.Printf("%s", data)
		}
	}

	return nil
}

// makeSettings merges the optional settings file with flag overrides.
func makeSettings(opts options) (*config.Settings, error) {
	settings := config.Default()
	if opts.Config != "" {
		var err error
		if settings, err = config.Load(opts.Config); err != nil {
			return nil, fmt.Errorf("can't load settings: %w", err)
		}
	}
	if opts.BatchSize > 0 {
		settings.BatchSize = opts.BatchSize
	}
	if opts.Workers > 0 {
		settings.Workers = opts.Workers
	}
	if opts.Concurrent > 0 {
		settings.Concurrent = opts.Concurrent
	}
	if opts.Catalog != "" {
		settings.Catalog = opts.Catalog
	}
	if opts.NoColor {
		settings.NoColor = true
	}
	return settings, nil
}

func makeCatalog(conn string) (*catalog.Store, error) {
	if conn == "" {
		return nil, nil
	}
	store, err := catalog.NewStore(conn)
	if err != nil {
		return nil, fmt.Errorf("can't open catalog: %w", err)
	}
	return store, nil
}

func listCatalog(store *catalog.Store) error {
	if store == nil {
		return fmt.Errorf("list needs a catalog, set --catalog")
	}
	entries, err := store.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-24s %s\n", e.Name, e.Path)
	}
	return nil
}

// resolvePaths replaces @name references with their catalog paths.
func resolvePaths(store *catalog.Store, args []string) ([]string, error) {
	res := make([]string, 0, len(args))
	for _, a := range args {
		if !strings.HasPrefix(a, "@") {
			res = append(res, a)
			continue
		}
		if store == nil {
			return nil, fmt.Errorf("%s needs a catalog, set --catalog", a)
		}
		path, err := store.Resolve(strings.TrimPrefix(a, "@"))
		if err != nil {
			return nil, err
		}
		res = append(res, path)
	}
	return res, nil
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
