package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/pipeline"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/config"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/server"
	"github.com/GriffinCanCode/dspconsole/internal/shell"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse flags; each one overrides its DSP_* environment variable
	pipelineFile := flag.String("pipeline", "", "Startup pipeline file (.yaml, .yml or .toml)")
	sourceKind := flag.String("source", "", "Data source: synthetic, replay or hardware")
	sourcePath := flag.String("path", "", "Replay glob or hardware device path")
	httpEnabled := flag.Bool("http", false, "Serve the status API")
	port := flag.String("port", "", "Status API port")
	logLevel := flag.String("log-level", "", "Log level (change at runtime with log_level)")
	logOutput := flag.String("log-output", "", "Log sink: stderr, stdout or a file path")
	dev := flag.Bool("dev", false, "Development logging: colored console output, debug level unless -log-level is set")
	headless := flag.Bool("headless", false, "Run without the interactive shell until interrupted")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dspconsole: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pipeline":
			cfg.Pipeline.File = *pipelineFile
		case "source":
			cfg.Source.Kind = *sourceKind
		case "path":
			cfg.Source.Path = *sourcePath
		case "http":
			cfg.Server.Enabled = *httpEnabled
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-output":
			cfg.Logging.Output = *logOutput
		case "dev":
			cfg.Logging.Development = *dev
		}
	})
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Output:      cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dspconsole: logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	var pipe *config.PipelineFile
	if cfg.Pipeline.File != "" {
		pipe, err = config.LoadPipelineFile(cfg.Pipeline.File)
		if err != nil {
			logger.Error("Invalid pipeline file", zap.String("path", cfg.Pipeline.File), zap.Error(err))
			fmt.Fprintf(os.Stderr, "dspconsole: %v\n", err)
			return 1
		}
	}

	console, err := pipeline.NewConsole(pipeline.Options{
		Config:   cfg,
		Pipeline: pipe,
		Logger:   logger.Logger,
	})
	if err != nil {
		logger.Error("Failed to build pipeline", zap.Error(err))
		fmt.Fprintf(os.Stderr, "dspconsole: %v\n", err)
		return 1
	}
	defer func() {
		if err := console.Close(); err != nil {
			logger.Warn("Console teardown failed", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := pipeline.NewDriver(console)
	if err := driver.Start(ctx); err != nil {
		logger.Error("Failed to start driver", zap.Error(err))
		fmt.Fprintf(os.Stderr, "dspconsole: %v\n", err)
		return 1
	}
	defer func() {
		if err := driver.Stop(); err != nil {
			logger.Warn("Driver stop failed", zap.Error(err))
		}
	}()

	if cfg.Server.Enabled {
		srv := server.NewServer(console.Config, console, driver, logger.Logger)
		if err := srv.Start(); err != nil {
			logger.Error("Failed to start status API", zap.Error(err))
			fmt.Fprintf(os.Stderr, "dspconsole: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.StopTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status API shutdown failed", zap.Error(err))
			}
		}()
	}

	if *headless {
		logger.Info("Running headless; interrupt to stop")
		<-ctx.Done()
		return 0
	}

	sh := shell.New(console, driver, logger.Logger).WithLogLevel(logger)
	err = sh.Run(ctx, os.Stdin, os.Stdout)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		logger.Error("Shell stopped", zap.Error(err))
		return 1
	}
}
