package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/nocturne/internal/app"
	"github.com/chrissnell/nocturne/internal/log"
	"github.com/chrissnell/nocturne/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFlag := flag.String("config", "", "Path to the YAML configuration file (defaults and NOCTURNE_* environment variables apply without one)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nocturne %s\n", version)
		os.Exit(0)
	}

	cfgFile := *cfgFlag
	provider := newProvider(cfgFile)
	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration. Did you pass the -config flag? Run with -h for help: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug, cfg.Log.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infow("starting nocturne", "version", version, "config", cfgFile, "storage", cfg.Storage.Backend)

	// Create and run the application
	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

func newProvider(cfgFile string) *config.YAMLProvider {
	if cfgFile == "" {
		return config.NewYAMLProvider("")
	}
	filename, _ := filepath.Abs(cfgFile)
	return config.NewYAMLProvider(filename)
}
