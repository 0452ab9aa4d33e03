package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/pmkit/logbridge/internal/config"
	"github.com/pmkit/logbridge/internal/filter"
	"github.com/pmkit/logbridge/internal/runtime"
	"github.com/pmkit/logbridge/internal/xes"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

func main() {
	// Respect LOGBRIDGE_LOG_LEVEL for CLI output before config is loaded.
	level := os.Getenv("LOGBRIDGE_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "logbridge",
		Short: "Event log bridge CLI",
		Long:  "logbridge builds, archives, and exports hierarchical event logs through the indexed construction protocol.",
	}
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	rootCmd.PersistentFlags().String("config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().String("fsync", "", "Archive fsync mode: always|interval|never")
	rootCmd.PersistentFlags().Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	rootCmd.PersistentFlags().Int("workers", 0, "Populate/read-back fan-out (default NumCPU)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text|json")

	// import
	importCmd := &cobra.Command{
		Use:   "import <file.xes>",
		Short: "Import an XES file into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = baseName(args[0])
			}
			start := time.Now()
			h, err := xes.ImportFile(args[0], rt.Engine(), cfg.Workers)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			defer rt.Engine().DestroyLog(h)
			if err := rt.Archive().Save(rt.Engine(), name, h); err != nil {
				return err
			}
			count, _ := rt.Engine().TraceCount(h)
			fmt.Printf("imported %q: %d traces in %s\n", name, count, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	importCmd.Flags().String("name", "", "Archive name (default: input file name without extension)")
	rootCmd.AddCommand(importCmd)

	// export
	exportCmd := &cobra.Command{
		Use:   "export <name> <out.xes>",
		Short: "Export an archived log to an XES file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			expr, _ := cmd.Flags().GetString("filter")
			f, err := filter.New(expr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			h, err := rt.Archive().Load(rt.Engine(), args[0])
			if err != nil {
				return err
			}
			defer rt.Engine().DestroyLog(h)
			if err := xes.ExportFile(args[1], rt.Engine(), h, f, cfg.Workers); err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}
			fmt.Printf("exported %q to %s\n", args[0], args[1])
			return nil
		},
	}
	exportCmd.Flags().String("filter", "", "CEL trace filter, e.g. 'length > 10 || \"__START\" in activities'")
	rootCmd.AddCommand(exportCmd)

	// inspect
	inspectCmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show trace counts and lengths for an archived log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			h, err := rt.Archive().Load(rt.Engine(), args[0])
			if err != nil {
				return err
			}
			defer rt.Engine().DestroyLog(h)
			lengths, err := rt.Engine().TraceLengths(h)
			if err != nil {
				return err
			}
			var events uint64
			min, max := uint32(0), uint32(0)
			for i, n := range lengths {
				events += uint64(n)
				if i == 0 || n < min {
					min = n
				}
				if n > max {
					max = n
				}
			}
			fmt.Printf("%s: %d traces, %d events", args[0], len(lengths), events)
			if len(lengths) > 0 {
				fmt.Printf(" (trace length %d..%d)", min, max)
			}
			fmt.Println()
			return nil
		},
	}
	rootCmd.AddCommand(inspectCmd)

	// archive list|stat|delete
	archiveCmd := &cobra.Command{Use: "archive", Short: "Archive operations"}
	archiveListCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			metas, err := rt.Archive().List()
			if err != nil {
				return err
			}
			for _, m := range metas {
				stored := time.UnixMilli(m.StoredAtMs).UTC().Format(time.RFC3339)
				fmt.Printf("%s\t%d traces\t%d bytes\t%s\n", m.Name, m.Traces, m.RawBytes, stored)
			}
			return nil
		},
	}
	archiveDeleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an archived log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ok, err := rt.Archive().Delete(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no archived log named %q", args[0])
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
	archiveCmd.AddCommand(archiveListCmd, archiveDeleteCmd)
	rootCmd.AddCommand(archiveCmd)

	// bench copy
	benchCmd := &cobra.Command{Use: "bench", Short: "Protocol benchmarks"}
	benchCopyCmd := &cobra.Command{
		Use:   "copy <name>",
		Short: "Round-trip an archived log through the full construction protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			rounds, _ := cmd.Flags().GetInt("rounds")
			src, err := rt.Archive().Load(rt.Engine(), args[0])
			if err != nil {
				return err
			}
			defer rt.Engine().DestroyLog(src)
			for r := 0; r < rounds; r++ {
				dst, stats, err := rt.Engine().CopyLog(src, cfg.Workers)
				if err != nil {
					return err
				}
				rt.Engine().DestroyLog(dst)
				fmt.Printf("round %d: %d traces, read %s, populate %s\n",
					r+1, stats.Traces, stats.ReadDur.Round(time.Microsecond), stats.PopulateDur.Round(time.Microsecond))
			}
			return nil
		},
	}
	benchCopyCmd.Flags().Int("rounds", 3, "Number of copy rounds")
	benchCmd.AddCommand(benchCopyCmd)
	rootCmd.AddCommand(benchCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", logpkg.Err(err))
		os.Exit(1)
	}
}

// openRuntime builds configuration from file, environment, and flags (in that
// order of increasing precedence) and opens the runtime.
func openRuntime(cmd *cobra.Command) (*runtime.Runtime, cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return nil, cfg, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	if v, _ := cmd.Flags().GetInt("fsync-interval-ms"); v > 0 {
		cfg.FsyncIntervalMs = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, cfg, err
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, cfg, err
	}
	return rt, cfg, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
