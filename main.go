package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alphaflow/config"
	"alphaflow/internal/job"
	"alphaflow/logger"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [-manifest path] [<input> <output>]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	manifestPath := flag.String("manifest", "", "Path to a split manifest pinning files to workers")
	flag.Usage = usage
	flag.Parse()

	var (
		input  []string
		output string
	)
	switch flag.NArg() {
	case 0:
	case 2:
		input, output = []string{flag.Arg(0)}, flag.Arg(1)
	default:
		usage()
		os.Exit(2)
	}

	overrides := []config.Override{config.WithPaths(input, output)}
	if *manifestPath != "" {
		overrides = append(overrides, func(c *config.Config) { c.Input.SplitManifest = *manifestPath })
	}

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath), overrides...)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}
	if logger.ReportEnabled(cfg.Logging.Level) {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	runner := job.New(cfg)
	log.WithFields(logger.Fields{
		"job_id":      runner.ID(),
		"job_name":    cfg.Job.Name,
		"version":     cfg.Job.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting alphaflow")

	sum, err := runner.Run(ctx)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"job_id": runner.ID()}).Error("job failed")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"job_id": sum.JobID,
		"files":  len(sum.Files),
	}).Infof("Done! Time: %.3fs", sum.Duration.Seconds())
}
