package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/course"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/decrypt"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/deps"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/download"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/license"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/logging"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/metadata"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/safety"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var chaptersFlag string
	var qualityFlag int
	var outputFlag string
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "download <curriculum.json>",
		Short: "Download a course from its curriculum export",
		Long: `Download walks a curriculum export sequentially and materializes every
lecture under the output directory: videos (plain and protected),
articles, captions, and supplementary files. Interrupted runs resume
where they stopped; finished lectures are skipped by a size check.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			if strings.TrimSpace(cfg.Auth.BearerToken) == "" {
				return services.Wrap(services.ErrConfiguration, "cli", "download", "bearer_token is not set; copy it from an authenticated browser session", nil)
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return services.Wrap(services.ErrConfiguration, "cli", "download",
					fmt.Sprintf("required tools missing: %s (run `udl tools`)", strings.Join(missing, ", ")), nil)
			}

			curriculum, err := course.LoadExport(args[0])
			if err != nil {
				return fmt.Errorf("load curriculum export: %w", err)
			}

			chapters, err := course.ParseChapterFilter(chaptersFlag)
			if err != nil {
				return fmt.Errorf("parse --chapters: %w", err)
			}
			if qualityFlag > 0 {
				cfg.Limits.MaxQuality = qualityFlag
			}
			if strings.TrimSpace(outputFlag) != "" {
				cfg.Paths.OutputDir = strings.TrimSpace(outputFlag)
			}

			runLock := flock.New(cfg.LockPath())
			locked, err := runLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another run is already in progress (lock %s)", cfg.LockPath())
			}
			defer runLock.Unlock()

			governor := safety.NewGovernor(cfg.StatePath(), cfg.Limits.DailyCourseCap, forceFlag, logger)
			if err := governor.CheckDailyLimit(curriculum.Course.ID); err != nil {
				return err
			}
			if err := governor.RecordCourse(curriculum.Course.ID); err != nil {
				return err
			}

			// A broken device only matters for protected lectures, so it
			// degrades to per-lecture failures instead of aborting the run.
			device, err := license.OpenDevice(cfg.CDM.DevicePath)
			if err != nil {
				logger.Warn("key-exchange device unavailable, protected lectures will fail",
					logging.Error(err))
				device = nil
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpc := metadata.NewHTTPClient(cfg.Auth.BearerToken, cfg.Auth.CookieHeader, cfg.Portal.BaseURL)
			portal := metadata.NewClient(httpc, cfg.Portal.BaseURL)
			licenses := license.NewClient(httpc, cfg.Portal.LicenseURL)
			pipeline := decrypt.NewPipeline(cfg, logger)
			orchestrator := download.NewOrchestrator(cfg, portal, licenses, device, pipeline, logger)

			summary, runErr := orchestrator.Run(runCtx, curriculum, download.Options{
				Chapters: chapters,
				Force:    forceFlag,
			})
			printSummary(cmd, curriculum, summary)
			return runErr
		},
	}

	cmd.Flags().StringVar(&chaptersFlag, "chapters", "", "Chapter filter, e.g. \"1,3-5,7\"")
	cmd.Flags().IntVar(&qualityFlag, "quality", 0, "Quality ceiling in pixels for plain streams (default from config)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory override")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Bypass the daily course cap and per-run lecture cap")
	return cmd
}

func printSummary(cmd *cobra.Command, curriculum *course.Curriculum, summary *download.Summary) {
	if summary == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Course", "Downloaded", "Skipped", "Failed", "Elapsed"},
		[][]string{{
			curriculum.Course.Title,
			fmt.Sprintf("%d", summary.Downloaded),
			fmt.Sprintf("%d", summary.Skipped),
			fmt.Sprintf("%d", summary.Failed),
			summary.Elapsed.Round(summaryRounding).String(),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	if summary.CapReached {
		fmt.Fprintln(out, "Per-run lecture cap reached; run again to continue where this run stopped.")
	}
}
