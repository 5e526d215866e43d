package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	appctx "github.com/bassista/go_happyhour/internal/app"
	"github.com/bassista/go_happyhour/internal/config"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/repository"
	"github.com/bassista/go_happyhour/internal/scheduler"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
)

const usage = `Usage: happyhour [flags] <command>

Commands:
  locate        resolve the current location
  search        search venues around --lat/--lng (or the current location)
  details       show a venue with its specials and menu (--id)
  reviews       show review excerpts for a venue (--id)
  favorite      toggle a venue in the favorites (--id)
  happy-now     list the specials of a venue running right now (--id)
  cache-stats   print cache statistics

Flags:
`

type options struct {
	lat, lng    float64
	radius      float64
	term        string
	categories  []string
	price       []int
	id          string
	openNow     bool
	dumpMetrics bool
}

var errUsage = errors.New("exactly one command is required")

// parseArgs parses the command line into options and the command name.
// Usage is printed to stderr on failure.
func parseArgs(args []string, stderr io.Writer) (options, string, error) {
	fs := pflag.NewFlagSet("happyhour", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.Float64Var(&opts.lat, "lat", 0, "search latitude")
	fs.Float64Var(&opts.lng, "lng", 0, "search longitude")
	fs.Float64Var(&opts.radius, "radius", 5, "search radius in miles")
	fs.StringVar(&opts.term, "term", "", "search term")
	fs.StringSliceVar(&opts.categories, "categories", nil, "category aliases (default: happy hour categories)")
	fs.IntSliceVar(&opts.price, "price", nil, "price levels 1-4")
	fs.StringVar(&opts.id, "id", "", "venue id")
	fs.BoolVar(&opts.openNow, "open-now", false, "only venues open now")
	fs.BoolVar(&opts.dumpMetrics, "metrics", false, "print collected metrics on exit")
	if err := config.BindFlags(fs); err != nil {
		return opts, "", fmt.Errorf("cannot bind flags: %w", err)
	}
	if err := fs.Parse(args); err != nil {
		return opts, "", err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return opts, "", errUsage
	}
	return opts, fs.Arg(0), nil
}

func main() {
	opts, command, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		logger.WithComponent("main").Errorf("invalid arguments: %v", err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}
	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using 'info': %v", cfg.Misc.LogLevel, err)
	}

	repo, err := repository.NewJSONRepository(cfg.Data.FilePath)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init repository: %v", err)
	}

	app, err := appctx.New(cfg, repo, appctx.Dependencies{})
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	if err := app.StartWatchers(); err != nil {
		app.Shutdown()
		logger.WithComponent("main").Fatalf("cannot start watchers: %v", err)
	}

	ctx, stop := signal.NotifyContext(app.BaseCtx, syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, app, command, opts, os.Stdout)
	stop()

	if opts.dumpMetrics {
		if merr := writeMetrics(app, os.Stderr); merr != nil {
			logger.WithComponent("main").Warnf("cannot write metrics: %v", merr)
		}
	}
	app.Shutdown()

	if err != nil {
		logger.WithComponent("main").Errorf("%s failed: %v", command, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *appctx.App, command string, opts options, out io.Writer) error {
	svc := app.Services
	switch command {
	case "locate":
		loc, err := svc.Locate(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, loc)

	case "search":
		params := state.SearchParams{
			Latitude:   opts.lat,
			Longitude:  opts.lng,
			Radius:     opts.radius,
			Term:       opts.term,
			Categories: opts.categories,
			Price:      opts.price,
		}
		if opts.openNow {
			params.OpenNow = &opts.openNow
		}
		if opts.lat == 0 && opts.lng == 0 {
			loc, err := svc.Locate(ctx)
			if err != nil {
				return fmt.Errorf("no --lat/--lng given and location lookup failed: %w", err)
			}
			params.Latitude, params.Longitude = loc.Latitude, loc.Longitude
		}
		res, err := svc.SearchVenues(ctx, params)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "details":
		if opts.id == "" {
			return fmt.Errorf("--id is required")
		}
		res, err := svc.GetVenueDetails(ctx, opts.id)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "reviews":
		if opts.id == "" {
			return fmt.Errorf("--id is required")
		}
		reviews, err := svc.Reviews(ctx, opts.id)
		if err != nil {
			return err
		}
		return printJSON(out, reviews)

	case "favorite":
		if opts.id == "" {
			return fmt.Errorf("--id is required")
		}
		res, err := svc.ToggleFavorite(ctx, opts.id)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "happy-now":
		if opts.id == "" {
			return fmt.Errorf("--id is required")
		}
		res, err := svc.GetVenueDetails(ctx, opts.id)
		if err != nil {
			return err
		}
		tz, err := app.Config.Alerts.Location()
		if err != nil {
			return err
		}
		active := scheduler.ActiveSpecials(res.Specials, time.Now().In(tz))
		if active == nil {
			active = []state.HappyHourSpecial{}
		}
		return printJSON(out, active)

	case "cache-stats":
		return printJSON(out, app.Cache.Stats())

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMetrics(app *appctx.App, out io.Writer) error {
	families, err := app.Metrics.Registry().Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
