package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hydroglacier/glacierfrac/internal/app"
	"github.com/hydroglacier/glacierfrac/internal/constants"
	"github.com/hydroglacier/glacierfrac/internal/log"
	"github.com/hydroglacier/glacierfrac/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	workers := flag.Int("workers", 0, "Number of snapshot years aligned in parallel (overrides config)")
	from := flag.Int("from", 0, "First snapshot year to process (overrides config)")
	to := flag.Int("to", 0, "Last snapshot year to process (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("glacierfrac %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Command-line flags win over the file and the environment.
	if *workers > 0 {
		cfgData.Workers = *workers
	}
	if *from > 0 {
		cfgData.FirstYear = *from
	}
	if *to > 0 {
		cfgData.LastYear = *to
	}
	if err := cfgData.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfgData, log.GetSugaredLogger())
	res, err := application.Run(ctx)
	if err != nil {
		log.Errorf("Run failed: %v", err)
		stop()
		log.Sync()
		os.Exit(1)
	}

	for _, sk := range res.Skipped {
		log.Warnw("year excluded from outputs", "year", sk.Year, "reason", sk.Reason)
	}
	if res.DailyPath != "" {
		fmt.Println(res.DailyPath)
	}
	fmt.Println(res.AnnualPath)
	if res.SeasonalPath != "" {
		fmt.Println(res.SeasonalPath)
	}
}

func loadConfig(cfgFile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider = config.NewYAMLProvider(filename)
	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}
