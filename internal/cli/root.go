// Package cli implements the novelkit command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kittclouds/novelkit/internal/config"
	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/logger"
	"github.com/kittclouds/novelkit/pkg/metrics"
)

// Version is the novelkit release.
const Version = "0.3.0"

// skipRuntime marks commands that run without opening storage.
const skipRuntime = "novelkit/skip-runtime"

type app struct {
	v   *viper.Viper
	rt  *config.Runtime
	log *slog.Logger
	out io.Writer
}

// NewRootCmd builds the command tree. The returned close func releases
// storage opened by the command that ran.
func NewRootCmd() (*cobra.Command, func() error) {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "novelkit",
		Short: "Manage novels, characters, chapters and plots",
		Long: fmt.Sprintf(`novelkit (v%s)

Stores novel-writing data in a flat key-value engine, SQLite or MongoDB.
The active backend is chosen by the storageType of the persisted settings.`, Version),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.StringP("output", "o", "json", "output format (json, yaml)")
	pf.String("data-dir", "", "root directory for file-backed storage")
	pf.String("engine", "", "flat key-value engine (memory, file, redis)")
	pf.String("storage-type", "", "storage type used when no settings exist yet")
	pf.String("sqlite-path", "", "SQLite database path")
	pf.String("mongo-uri", "", "MongoDB connection string")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("metrics-file", "", "write Prometheus metrics for this run to a textfile-collector file")
	for key, flag := range map[string]string{
		"storage.data-dir":     "data-dir",
		"storage.flat.engine":  "engine",
		"storage.default-type": "storage-type",
		"storage.sqlite.path":  "sqlite-path",
		"storage.mongo.uri":    "mongo-uri",
		"log.level":            "log-level",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.novelCmd(),
		a.characterCmd(),
		a.chapterCmd(),
		a.plotCmd(),
		a.backupCmd(),
		a.settingsCmd(),
		a.mentionsCmd(),
		versionCmd(),
	)

	closeFn := func() error {
		if a.rt == nil {
			return nil
		}
		err := a.rt.Close()
		a.rt = nil
		return err
	}
	return root, closeFn
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.out = cmd.OutOrStdout()
	if _, err := outputFormat(cmd); err != nil {
		return err
	}
	if cmd.Annotations[skipRuntime] == "true" {
		return nil
	}

	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, file)
	if err != nil {
		return err
	}
	a.log = logger.InitWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	rt, err := cfg.Open(cmd.Context(), a.log)
	if err != nil {
		return err
	}
	a.rt = rt
	return nil
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	config.LoadEnvFiles()

	root, closeFn := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	// written on failure too; failed operations are counted by status
	if path, _ := root.PersistentFlags().GetString("metrics-file"); path != "" {
		if merr := metrics.WriteFile(path); err == nil && merr != nil {
			err = fmt.Errorf("write metrics: %w", merr)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// Execute runs the CLI against the process arguments and exits.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func exitCode(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return 2
	case apperr.CodeNotFound:
		return 3
	case apperr.CodeInvalidBackend, apperr.CodeBackendUnavailable:
		return 4
	default:
		return 1
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number of novelkit",
		Annotations: map[string]string{skipRuntime: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "novelkit v%s\n", Version)
		},
	}
}
