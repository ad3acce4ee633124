package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvnidx/mvnidx/internal/config"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
	"github.com/mvnidx/mvnidx/internal/index"
	"github.com/mvnidx/mvnidx/internal/logging"
	"github.com/mvnidx/mvnidx/internal/packer"
	"github.com/mvnidx/mvnidx/internal/scanner"
)

func newPackCmd() *cobra.Command {
	var (
		repositoryDir string
		indexDir      string
		targetDir     string
		format        string
		chunks        bool
		checksums     bool
		configFile    string
		logLevel      string
		fullScan      bool
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Scan a repository and publish its index",
		Long: `Scan a Maven repository layout, update the artifact index, and publish
the portable index file set into the target directory.

By default the scan is incremental: unchanged artifacts are skipped and
artifacts that vanished from the repository are tombstoned. Use --full
to rebuild every record from disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.Packer.Format = format
			}
			if cmd.Flags().Changed("chunks") {
				cfg.Packer.IncrementalChunks = chunks
			}
			if cmd.Flags().Changed("checksums") {
				cfg.Packer.Checksums = checksums
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runPack(ctx, cmd, cfg, repositoryDir, indexDir, targetDir, fullScan)
		},
	}

	cmd.Flags().StringVar(&repositoryDir, "repository", "", "Repository root directory (required)")
	cmd.Flags().StringVar(&indexDir, "index", "", "Index directory (required)")
	cmd.Flags().StringVar(&targetDir, "target", "", "Publication target directory (required)")
	cmd.Flags().StringVar(&format, "format", config.FormatV1, "Output format: v1, legacy, or both")
	cmd.Flags().BoolVar(&chunks, "chunks", true, "Emit incremental chunks")
	cmd.Flags().BoolVar(&checksums, "checksums", true, "Write .sha1/.md5 siblings")
	cmd.Flags().StringVar(&configFile, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&fullScan, "full", false, "Rebuild every record instead of scanning incrementally")

	_ = cmd.MarkFlagRequired("repository")
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runPack(ctx context.Context, cmd *cobra.Command, cfg *config.Config, repositoryDir, indexDir, targetDir string, fullScan bool) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	logCfg.Stderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	defer cleanup()
	slog.SetDefault(logger)

	ic, err := index.Open(index.Options{
		ID:            filepath.Base(repositoryDir),
		RepositoryID:  filepath.Base(repositoryDir),
		RepositoryDir: repositoryDir,
		IndexDir:      indexDir,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer ic.Close()

	update := !fullScan && !ic.RecoveredFromCorruption()
	scan, err := scanner.New(logger).Scan(ctx, repositoryDir,
		scanner.Options{Update: update},
		scanner.NewIndexListener(ic, update))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d artifacts (%d removed, %d errors) in %s\n",
		scan.TotalFiles, scan.DeletedFiles, len(scan.Errors), scan.Duration.Round(time.Millisecond))

	res, err := packer.Pack(ctx, packer.Request{
		Context:                 ic,
		TargetDir:               targetDir,
		FormatV1:                cfg.PublishV1(),
		FormatLegacy:            cfg.PublishLegacy(),
		CreateIncrementalChunks: cfg.Packer.IncrementalChunks,
		CreateChecksums:         cfg.Packer.Checksums,
		MaxIncrementalChunks:    cfg.Packer.MaxIncrementalChunks,
		UseTargetProperties:     cfg.Packer.UseTargetProperties,
		Logger:                  logger,
	})
	if err != nil {
		return err
	}

	for _, f := range res.PublishedFiles {
		fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", f)
	}
	if res.ChunkNumber > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Incremental chunk %d emitted\n", res.ChunkNumber)
	}
	if res.ChainReset {
		fmt.Fprintln(cmd.OutOrStdout(), "Incremental chain reset; clients will fetch the full dump")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Full dump holds %d records\n", res.FullRecords)

	if ic.RecoveredFromCorruption() {
		logger.Warn("publication_after_recovery",
			slog.String("code", ierr.ErrCodeCorruptIndex),
			slog.String("index_dir", indexDir))
		indexRecovered = true
	}
	return nil
}
