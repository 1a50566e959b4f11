package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrissnell/nocturne/internal/ingest"
	"github.com/chrissnell/nocturne/internal/log"
	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/internal/storage"
	"github.com/chrissnell/nocturne/pkg/config"
	"github.com/chrissnell/nocturne/pkg/solar"
)

type options struct {
	cfgFile  string
	input    string
	track    string
	strategy string
	zenith   string
	dayBasis string
	save     bool
	summary  bool
	debug    bool
}

// output is what nightsegment prints: either full nights or only their summaries
type output struct {
	Track     string           `json:"track,omitempty"`
	Strategy  string           `json:"strategy"`
	Nights    []nights.Night   `json:"nights,omitempty"`
	Summaries []nights.Summary `json:"summaries,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.cfgFile, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&opts.input, "input", "", "CSV or JSON file of fixes (required)")
	flag.StringVar(&opts.track, "track", "", "Track name used when saving nights")
	flag.StringVar(&opts.strategy, "strategy", "", "Boundary strategy: shifted-midnight or previous-sunset (overrides config)")
	flag.StringVar(&opts.zenith, "zenith", "", "Zenith: official, civil, nautical or astronomical (overrides config)")
	flag.StringVar(&opts.dayBasis, "day-basis", "", "Day basis: local or utc (overrides config)")
	flag.BoolVar(&opts.save, "save", false, "Save the nights to the configured store under -track")
	flag.BoolVar(&opts.summary, "summary", false, "Print night summaries instead of every fix")
	flag.BoolVar(&opts.debug, "debug", false, "Turn on debugging output")
	flag.Parse()

	if opts.input == "" && flag.NArg() > 0 {
		opts.input = flag.Arg(0)
	}
	if opts.input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := log.Init(opts.debug, "warn"); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Errorf("nightsegment failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer) error {
	cfg, err := config.NewYAMLProvider(opts.cfgFile).LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	classifierOpts, err := cfg.Solar.ClassifierOptions()
	if err != nil {
		return err
	}
	if err := applyOverrides(&classifierOpts, opts); err != nil {
		return err
	}

	log.Debugf("classifying with zenith %v, strategy %v, day basis %v, %d workers",
		classifierOpts.Zenith, classifierOpts.Strategy, classifierOpts.Basis, classifierOpts.Workers)

	fixes, err := ingest.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("error reading fixes from %s: %w", opts.input, err)
	}

	classifier := nights.NewClassifier(classifierOpts, log.GetSugaredLogger())
	ns, err := classifier.Nights(ctx, fixes)
	if err != nil {
		return err
	}
	log.Infof("segmented %d fixes into %d nights", len(fixes), len(ns))
	if len(ns) == 0 && len(fixes) > 0 {
		log.Warnf("no night-time fixes found in %s", opts.input)
	}

	out := output{Track: opts.track, Strategy: classifierOpts.Strategy.String()}
	if opts.summary {
		out.Summaries = nights.SummarizeAll(ns)
	} else {
		out.Nights = ns
	}

	if opts.save {
		if opts.track == "" {
			return fmt.Errorf("-save requires -track: %w", nights.ErrEmptyTrack)
		}
		store, err := storage.New(ctx, cfg.Storage, log.GetZapLogger())
		if err != nil {
			return fmt.Errorf("error opening night store: %w", err)
		}
		if store == nil {
			return fmt.Errorf("-save requires a storage backend in the configuration")
		}
		defer store.Close()

		if out.IDs, err = store.SaveNights(ctx, opts.track, ns); err != nil {
			return fmt.Errorf("error saving nights: %w", err)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func applyOverrides(o *nights.Options, opts options) error {
	var err error
	if opts.strategy != "" {
		if o.Strategy, err = nights.ParseStrategy(opts.strategy); err != nil {
			return err
		}
	}
	if opts.zenith != "" {
		if o.Zenith, err = solar.ParseZenith(opts.zenith); err != nil {
			return err
		}
	}
	if opts.dayBasis != "" {
		if o.Basis, err = nights.ParseDayBasis(opts.dayBasis); err != nil {
			return err
		}
	}
	return nil
}
