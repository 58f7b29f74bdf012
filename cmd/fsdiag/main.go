package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/compare"
	"github.com/onuse/fsdiag/internal/config"
	"github.com/onuse/fsdiag/internal/detect"
	"github.com/onuse/fsdiag/internal/report"
	"github.com/onuse/fsdiag/internal/source"
	"github.com/onuse/fsdiag/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		formatName  string
		sequential  bool
		fatEntries  int
		verbose     bool
		quiet       bool
		logFile     string
		showVersion bool
	)

	fsys := afero.NewOsFs()
	var logCleanup func()

	rootCmd := &cobra.Command{
		Use:           "fsdiag",
		Short:         "Read-only filesystem metadata diagnostics for exFAT, ext4 and FAT16",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults, &formatName, &fatEntries, &sequential, &verbose, &logFile)

			logCleanup, err = setupLogging(verbose, quiet, logFile)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logCleanup != nil {
				logCleanup()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "fsdiag %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.PersistentFlags().
		StringVarP(&formatName, "format", "f", "auto", "filesystem format: exfat, ext4, fat16, or auto")
	rootCmd.PersistentFlags().
		BoolVar(&sequential, "sequential", false, "access the medium sequentially (rewind-only devices)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Decode and validate one volume's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openInput(fsys, args[0], sequential)
			if err != nil {
				return err
			}
			defer src.Close()

			f, err := resolveFormat(formatName, src)
			if err != nil {
				return err
			}

			res, err := analyze.Analyze(src, f)
			if err != nil {
				return err
			}
			if !quiet {
				report.WriteAnalysis(os.Stdout, args[0], res)
			}
			logReadStats(args[0], src)

			if res.HasCritical() {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare <path-a> <path-b>",
		Short: "Structurally diff the metadata of two volumes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcA, err := openInput(fsys, args[0], sequential)
			if err != nil {
				return err
			}
			defer srcA.Close()
			srcB, err := openInput(fsys, args[1], sequential)
			if err != nil {
				return err
			}
			defer srcB.Close()

			f, err := resolveFormat(formatName, srcA)
			if err != nil {
				return err
			}

			rep := compare.Run(f,
				compare.Input{Label: args[0], Source: srcA},
				compare.Input{Label: args[1], Source: srcB},
				fatEntries)
			if !quiet {
				report.WriteComparison(os.Stdout, rep)
				if verbose {
					writeSideDetail(&rep.A)
					writeSideDetail(&rep.B)
				}
			}
			logReadStats(args[0], srcA)
			logReadStats(args[1], srcB)

			if rep.Attribution != compare.BothClean || len(rep.Fields) > 0 || len(rep.FAT) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	compareCmd.Flags().
		IntVar(&fatEntries, "fat-entries", compare.DefaultFATEntries, "number of leading FAT entries to compare")

	var (
		dumpOffset int64
		dumpLength int
	)
	hexdumpCmd := &cobra.Command{
		Use:   "hexdump <path>",
		Short: "Dump a raw byte range of the medium",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openInput(fsys, args[0], sequential)
			if err != nil {
				return err
			}
			defer src.Close()

			data, err := src.ReadRange(dumpOffset, dumpLength)
			if err != nil {
				return err
			}
			return report.Hexdump(os.Stdout, data, dumpOffset)
		},
	}
	hexdumpCmd.Flags().Int64Var(&dumpOffset, "offset", 0, "byte offset to start at")
	hexdumpCmd.Flags().IntVar(&dumpLength, "length", 512, "number of bytes to dump")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(hexdumpCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// openInput opens path under the requested access model. Sequential mode
// serves media that only honor a rewind to byte 0.
func openInput(fsys afero.Fs, path string, sequential bool) (source.Source, error) {
	if sequential {
		return source.OpenSequential(fsys, path)
	}
	return source.Open(fsys, path)
}

// resolveFormat maps the --format flag to a Format, probing the source when
// the flag is auto.
func resolveFormat(name string, src source.Source) (analyze.Format, error) {
	if name == "" || name == "auto" {
		f, err := detect.Detect(src)
		if err != nil {
			return analyze.FormatUnknown, fmt.Errorf("detect format: %w (specify --format)", err)
		}
		slog.Debug("detected format", "format", f.String())
		return f, nil
	}
	return analyze.ParseFormat(name)
}

// writeSideDetail prints a side's full analysis under a separator, sized to
// the terminal when stdout is one.
func writeSideDetail(s *compare.Side) {
	if s.Result == nil {
		return
	}
	width := 80
	if ui.WriterIsTTY(os.Stdout) {
		width = ui.TermWidth(os.Stdout.Fd())
	}
	fmt.Fprintln(os.Stdout, strings.Repeat("-", width))
	report.WriteAnalysis(os.Stdout, s.Label, s.Result)
}

func logReadStats(path string, src source.Source) {
	if s, ok := src.(interface{ Stats() source.Snapshot }); ok {
		slog.Debug("source read counters", "path", path, "stats", s.Stats().String())
	}
}

// setupLogging installs the default logger: human-readable text on stderr,
// plus full-detail JSON to --log when set. The returned cleanup closes the
// log file.
func setupLogging(verbose, quiet bool, logFile string) (func(), error) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	} else if !quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var handler slog.Handler = textHandler
	cleanup := func() {}

	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		handler = ui.NewMultiHandler(textHandler, jsonHandler)
		cleanup = func() { lf.Close() }
	}

	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	formatName *string,
	fatEntries *int,
	sequential *bool,
	verbose *bool,
	logFile *string,
) {
	if !cmd.Flags().Changed("format") && defaults.Format != nil {
		*formatName = *defaults.Format
	}
	if !cmd.Flags().Changed("fat-entries") && defaults.FATEntries != nil {
		*fatEntries = *defaults.FATEntries
	}
	if !cmd.Flags().Changed("sequential") && defaults.Sequential != nil {
		*sequential = *defaults.Sequential
	}
	if !cmd.Flags().Changed("verbose") && defaults.Verbose != nil {
		*verbose = *defaults.Verbose
	}
	if !cmd.Flags().Changed("log") && defaults.Log != nil {
		*logFile = *defaults.Log
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
