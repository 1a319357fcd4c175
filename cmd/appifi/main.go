package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/RocGit/appifi/config"
	"github.com/RocGit/appifi/forest"
	"github.com/RocGit/appifi/internal/metrics"
	"github.com/RocGit/appifi/internal/util"
	"github.com/RocGit/appifi/mount"
	"github.com/RocGit/appifi/xstat"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "appifi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		verbose     int
		mountPoint  string
		umount      bool
		metricsAddr string
	)
	flagSet := pflag.NewFlagSet("appifi", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML or JSON config file")
	flagSet.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "log verbosity between 1 (error) and 5 (trace)")
	flagSet.StringVarP(&mountPoint, "mount", "m", "", "mount the content index at this directory")
	flagSet.BoolVarP(&umount, "umount", "u", false,
		"unmount the index mount first if needed. Useful for debuggers that don't exit properly.")
	flagSet.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: appifi [flags] <root>\n\nIndexes file content under <root> by digest.\n\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return errors.New("exactly one root directory is required")
	}

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			return err
		}
	}
	if configPath == "" || flagSet.Changed("verbose") {
		cfg.Merge(&config.ConfigOverride{LogLvl: util.Pointer(verbose)})
	}
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")

	root, err := filepath.Abs(flagSet.Arg(0))
	if err != nil {
		return err
	}
	logger.Info().Str("root", root).Str("algorithm", cfg.Algorithm).Int64("segment_size", cfg.SegmentSize).
		Msg("appifi initializing")

	scanner := xstat.NewScanner(cfg)
	fr, err := forest.New(cfg, forest.NewIndex(), root, forest.WithScanner(scanner), forest.WithStamper(scanner))
	if err != nil {
		return err
	}
	defer fr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", metricsAddr).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
	}

	if err := fr.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn().Err(err).Msg("Some directories failed to load")
	}
	logger.Info().Int("digests", fr.Index().Len()).Msg("Initial scan finished, hashing continues in background")

	if mountPoint != "" {
		if umount {
			// ignore the error when nothing is mounted
			exec.Command("fusermount", "-u", mountPoint).Run() // nolint:errcheck
		}
		server, err := mount.Mount(mountPoint, fr, cfg.MountOptions)
		if err != nil {
			return err
		}
		defer func() {
			if err := server.Unmount(); err != nil {
				logger.Error().Err(err).Msg("Failed to unmount index")
			} else {
				logger.Info().Msg("Index unmounted")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("Received signal, shutting down")
	return nil
}
